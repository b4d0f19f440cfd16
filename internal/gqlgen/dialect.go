package gqlgen

import (
	"fmt"
	"strings"
)

// Dialect задаёт форму выходного файла
type Dialect int

const (
	// QueryLanguage: чистый GraphQL (*.graphql)
	QueryLanguage Dialect = iota
	// TypedModule: Go-пакет со строковыми константами (*.go)
	TypedModule
)

// Dialects: порядок, в котором Driver пишет файлы одной сущности
var Dialects = []Dialect{QueryLanguage, TypedModule}

// Ext: расширение выходного файла
func (d Dialect) Ext() string {
	switch d {
	case QueryLanguage:
		return "graphql"
	case TypedModule:
		return "go"
	}
	return ""
}

func (d Dialect) String() string {
	switch d {
	case QueryLanguage:
		return "query-language"
	case TypedModule:
		return "typed-module"
	}
	return fmt.Sprintf("dialect(%d)", int(d))
}

// ParseDialect принимает имя диалекта или расширение: "graphql", "query-language", "go", "typed-module"
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "graphql", "gql", "query-language":
		return QueryLanguage, nil
	case "go", "typed-module":
		return TypedModule, nil
	}
	return 0, fmt.Errorf("unknown dialect %q", s)
}
