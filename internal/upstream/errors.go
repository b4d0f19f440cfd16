package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Service: какой из внешних сервисов ответил ошибкой
type Service string

const (
	ServiceAuth    Service = "auth"
	ServiceStorage Service = "storage"
	ServiceGraphQL Service = "graphql"
)

// Коды ошибок auth-платформы, на которые смотрят обработчики
const (
	CodeUserAlreadyExists = "user_already_exists"
)

// Error: ошибка внешнего сервиса.
// Transport=true: сеть, 5xx платформы или не-2xx от GraphQL. Остальное: ошибка API (клиентская).
type Error struct {
	Service   Service
	Status    int
	Code      string
	Message   string
	Body      json.RawMessage
	Transport bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: %d: %s", e.Service, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Service, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransport: ошибка уровня транспорта (отдаётся клиенту как 500)
func IsTransport(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Transport
}

// HasCode: ошибка API с данным кодом
func HasCode(err error, code string) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == code
}

func transportErr(svc Service, err error) *Error {
	return &Error{Service: svc, Transport: true, Err: err}
}

// decodeError разбирает тело ошибки. GoTrue и storage-api отдают разные формы:
// {"code":422,"error_code":"...","msg":"..."}, {"error":"...","error_description":"..."},
// {"statusCode":"404","error":"not_found","message":"..."}.
func decodeError(svc Service, status int, body []byte) *Error {
	e := &Error{
		Service:   svc,
		Status:    status,
		Transport: status >= http.StatusInternalServerError,
	}
	if len(body) > 0 && json.Valid(body) {
		e.Body = json.RawMessage(body)
	}

	res := gjson.ParseBytes(body)
	for _, k := range []string{"msg", "message", "error_description", "error"} {
		if v := res.Get(k); v.Type == gjson.String && v.Str != "" {
			e.Message = v.Str
			break
		}
	}
	for _, k := range []string{"error_code", "code", "error"} {
		if v := res.Get(k); v.Type == gjson.String && v.Str != "" {
			e.Code = v.Str
			break
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
