package dsl

import (
	"errors"
	"strings"
)

// ErrInvalidSchema: общий признак ошибки описания сущностей
var ErrInvalidSchema = errors.New("dsl: invalid schema")

// SchemaError описывает некорректную сущность или поле
type SchemaError struct {
	Entity  string
	Field   string // сырое описание поля, если ошибка в нём
	Message string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("dsl: schema error")
	if e.Entity != "" {
		b.WriteString(" on entity ")
		b.WriteString(e.Entity)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

func schemaErr(entity, field, msg string) *SchemaError {
	return &SchemaError{Entity: entity, Field: field, Message: msg}
}
