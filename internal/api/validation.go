package api

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// requiredMessage строит текст ошибки для отсутствующего поля.
// У разных маршрутов исторически разные формулировки, клиенты на них завязаны.
type requiredMessage func(field string) string

var (
	// register: "field firstName is required"
	fieldRequired requiredMessage = func(f string) string { return "field " + f + " is required" }
	// login/verify/resend: "Email is required"
	titleRequired requiredMessage = func(f string) string {
		if f == "" {
			return "is required"
		}
		return strings.ToUpper(f[:1]) + f[1:] + " is required"
	}
	// остальные: "refreshToken is required"
	plainRequired requiredMessage = func(f string) string { return f + " is required" }
)

var jsonNamesOnce sync.Once

// useJSONNames: в ValidationErrors поле называется как в JSON, а не как в Go
func useJSONNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindBody разбирает JSON-тело в dst и проверяет теги binding.
// Пустое тело равносильно {}: клиент получит сообщение о первом обязательном поле.
func bindBody(c *gin.Context, dst any, msg requiredMessage) error {
	useJSONNames()

	err := c.ShouldBindJSON(dst)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(dst)
	}
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		if fe.Tag() == "required" {
			return invalid(msg(fe.Field()))
		}
		return invalid("field " + fe.Field() + " is invalid")
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return invalid("Invalid JSON")
}
