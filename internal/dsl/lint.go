package dsl

import (
	"fmt"

	"github.com/go-openapi/inflect"
)

// Issue: неблокирующее замечание к описанию сущности
type Issue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint ищет подозрительные, но допустимые места в описаниях.
// Правильность множественного числа не навязывается: это только предупреждение.
func Lint(entities []*Entity) []Issue {
	var issues []Issue

	for _, e := range entities {
		if want := inflect.Pluralize(e.Singular); want != e.Plural {
			issues = append(issues, Issue{
				Entity:  e.Singular,
				Code:    "plural_mismatch",
				Message: fmt.Sprintf("plural %q differs from inflected %q; make sure it matches the GraphQL schema", e.Plural, want),
			})
		}

		if id, ok := e.Field("id"); ok && id.Type != "uuid" {
			issues = append(issues, Issue{
				Entity:  e.Singular,
				Field:   "id",
				Code:    "id_not_uuid",
				Message: fmt.Sprintf("id is %s; primary-key lookups will declare $id: %s", id.Type, id.Annotation()),
			})
		}

		for _, name := range []string{"createdAt", "updatedAt"} {
			if f, ok := e.Field(name); ok && f.NonNull {
				issues = append(issues, Issue{
					Entity:  e.Singular,
					Field:   name,
					Code:    "audit_non_null",
					Message: name + " is non-null but never set by create/update mutations; it needs a database default",
				})
			}
		}
	}
	return issues
}
