package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /health
func HealthHandler(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondMessage(c, http.StatusOK, "OK: "+gw.Cfg.Mode)
	}
}
