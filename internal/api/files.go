package api

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"gatekeeper/internal/blob"
	"gatekeeper/internal/upstream"
)

// GET /files/:bucket/*key: раздача объектов локального хранилища
func FileHandler(store *blob.LocalStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		bucket := c.Param("bucket")
		key := strings.TrimPrefix(c.Param("key"), "/")

		f, err := store.Open(bucket, key)
		if err != nil {
			if upstreamStatus(err) == http.StatusNotFound {
				notFoundEnvelope(c)
				return
			}
			c.JSON(http.StatusBadRequest, Envelope{Status: http.StatusBadRequest, Message: statusName(http.StatusBadRequest), Errors: errorBody{Message: err.Error()}})
			return
		}
		defer f.Close()

		st, err := f.Stat()
		if err != nil || st.IsDir() {
			notFoundEnvelope(c)
			return
		}
		c.Header("Cache-Control", "public, max-age=3600")
		http.ServeContent(c.Writer, c.Request, path.Base(key), st.ModTime(), f)
	}
}

func upstreamStatus(err error) int {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// StaticHandler отдаёт файлы из dir на все прочие GET/HEAD; остальное: 404 в общем формате
func StaticHandler(dir string) gin.HandlerFunc {
	fs := gin.Dir(dir, false)
	return func(c *gin.Context) {
		if dir == "" || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			notFoundEnvelope(c)
			return
		}
		name := path.Clean("/" + c.Request.URL.Path)
		f, err := fs.Open(name)
		if err != nil {
			notFoundEnvelope(c)
			return
		}
		st, err := f.Stat()
		_ = f.Close()
		if err != nil || st.IsDir() {
			notFoundEnvelope(c)
			return
		}
		c.FileFromFS(name, fs)
	}
}

func notFoundEnvelope(c *gin.Context) {
	code := http.StatusNotFound
	c.AbortWithStatusJSON(code, Envelope{Status: code, Message: statusName(code), Errors: errorBody{Message: "Not found"}})
}
