package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gatekeeper/internal/upstream"
)

// Envelope: единый формат ответа
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Errors  any    `json:"errors"`
}

// statusName: 400 → "BAD_REQUEST"
func statusName(code int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
}

func respond(c *gin.Context, code int, data any) {
	c.JSON(code, Envelope{Status: code, Message: statusName(code), Data: data})
}

func respondMessage(c *gin.Context, code int, message string) {
	c.JSON(code, Envelope{Status: code, Message: message})
}

type errorBody struct {
	Message string `json:"message"`
}

// badRequest: ошибка входных данных, сообщение уходит клиенту как есть
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func invalid(msg string) error { return &badRequest{msg: msg} }

// respondError: транспортная ошибка внешнего сервиса → 500 с телом ответа сервиса,
// всё остальное → 400 {message}
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var ue *upstream.Error
	isUpstream := errors.As(err, &ue)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		code := http.StatusRequestEntityTooLarge
		c.AbortWithStatusJSON(code, Envelope{Status: code, Message: statusName(code), Errors: errorBody{Message: "Request body too large"}})
		return
	}

	if isUpstream && ue.Transport {
		code := http.StatusInternalServerError
		log.Error("upstream failure",
			zap.String("service", string(ue.Service)),
			zap.Int("status", ue.Status),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		var body any
		if len(ue.Body) > 0 && json.Valid(ue.Body) {
			body = ue.Body
		} else {
			body = errorBody{Message: ue.Message}
		}
		c.AbortWithStatusJSON(code, Envelope{Status: code, Message: statusName(code), Errors: body})
		return
	}

	msg := err.Error()
	if isUpstream && ue.Message != "" {
		msg = ue.Message
	}
	code := http.StatusBadRequest
	c.AbortWithStatusJSON(code, Envelope{Status: code, Message: statusName(code), Errors: errorBody{Message: msg}})
}
