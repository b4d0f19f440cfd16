package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gatekeeper/internal/upstream"
)

const (
	msgFiletype      = "Filetype not supported. Only PNG, JPG/JPEG and PDF files are allowed."
	msgUserRequired  = "User ID is required"
	msgTypeRequired  = "Type is required and must be either avatar, document or image."
	msgFileRequired  = "File is required"
	msgFileTooLarge  = "File too large"
	msgTooManyFiles  = "Too many files"
	msgInvalidUserID = "Invalid user ID"

	avatarListLimit = 100
)

// допустимые типы содержимого и расширение сохраняемого файла
var uploadTypes = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpeg",
	"application/pdf": "pdf",
}

type uploadKind struct {
	folder  string
	allowed func(mime string) bool
	badType string
}

func isImage(m string) bool { return m == "image/png" || m == "image/jpeg" }
func isPDF(m string) bool   { return m == "application/pdf" }

var uploadKinds = map[string]uploadKind{
	"avatar":   {folder: "avatars", allowed: isImage, badType: "Avatar: Invalid file type"},
	"image":    {folder: "images", allowed: isImage, badType: "Image: Invalid file type"},
	"document": {folder: "documents", allowed: isPDF, badType: "Document: Invalid file type"},
}

// uploadedFile: единственный файл из поля "file" с определённым по содержимому типом
type uploadedFile struct {
	hdr  *multipart.FileHeader
	file multipart.File
	mime string
	ext  string
}

func readUpload(c *gin.Context, maxBytes int64) (*uploadedFile, error) {
	if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, invalid(msgFileRequired)
		}
		return nil, invalid("Invalid multipart form")
	}
	files := c.Request.MultipartForm.File["file"]
	switch {
	case len(files) == 0:
		return nil, invalid(msgFileRequired)
	case len(files) > 1:
		return nil, invalid(msgTooManyFiles)
	}
	hdr := files[0]
	if hdr.Size > maxBytes {
		return nil, invalid(msgFileTooLarge)
	}

	f, err := hdr.Open()
	if err != nil {
		return nil, err
	}
	// тип определяем по содержимому: заявленному Content-Type доверять нельзя
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	mime, _, _ := strings.Cut(mt.String(), ";")
	ext, ok := uploadTypes[mime]
	if !ok {
		_ = f.Close()
		return nil, invalid(msgFiletype)
	}
	return &uploadedFile{hdr: hdr, file: f, mime: mime, ext: ext}, nil
}

func validUserID(id string) bool {
	return id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// POST /upload?userId=&type=
// Аватар у пользователя один: перед загрузкой удаляем всё из {userId}/avatars.
func UploadHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if f := c.Request.MultipartForm; f != nil {
				_ = f.RemoveAll()
			}
		}()

		up, err := readUpload(c, gw.Cfg.MaxUploadBytes)
		if err != nil {
			respondError(c, gw.Log, err)
			return
		}
		defer up.file.Close()

		userID := strings.TrimSpace(c.Query("userId"))
		if userID == "" {
			respondError(c, gw.Log, invalid(msgUserRequired))
			return
		}
		if !validUserID(userID) {
			respondError(c, gw.Log, invalid(msgInvalidUserID))
			return
		}
		typ := strings.TrimSpace(c.Query("type"))
		if typ == "" {
			respondError(c, gw.Log, invalid(msgTypeRequired))
			return
		}
		kind, ok := uploadKinds[typ]
		if !ok {
			respondError(c, gw.Log, invalid("Invalid type"))
			return
		}
		if !kind.allowed(up.mime) {
			respondError(c, gw.Log, invalid(kind.badType))
			return
		}

		ctx := c.Request.Context()
		bucket := gw.Cfg.UploadBucket
		dir := path.Join(userID, kind.folder)

		if typ == "avatar" {
			old, err := gw.Store.List(ctx, bucket, dir, upstream.ListOptions{
				Limit:  avatarListLimit,
				SortBy: upstream.SortBy{Column: "name", Order: "asc"},
			})
			if err != nil {
				respondError(c, gw.Log, err)
				return
			}
			keys := make([]string, 0, len(old))
			for _, o := range old {
				// папки приходят без метаданных, удалять в них нечего
				if o.Metadata == nil {
					continue
				}
				keys = append(keys, path.Join(dir, o.Name))
			}
			if err := gw.Store.Remove(ctx, bucket, keys); err != nil {
				respondError(c, gw.Log, err)
				return
			}
		}

		key := path.Join(dir, gw.newName()+"."+up.ext)
		if err := gw.Store.Upload(ctx, bucket, key, up.file, up.mime); err != nil {
			respondError(c, gw.Log, err)
			return
		}
		gw.Log.Info("uploaded",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.String("mime", up.mime),
			zap.Int64("size", up.hdr.Size),
		)
		respond(c, http.StatusOK, gin.H{"url": gw.Store.PublicURL(bucket, key)})
	}
}
