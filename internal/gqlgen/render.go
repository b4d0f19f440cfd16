package gqlgen

import (
	"fmt"
	"strings"

	"gatekeeper/internal/dsl"
)

// Artifact: результат рендера одной сущности в одном диалекте.
// Живёт ровно до записи на диск.
type Artifact struct {
	Entity  *dsl.Entity
	Dialect Dialect
	Body    []byte
}

// Поля, которые не передаются в create; updateSkip: не объявляются переменными в update
var (
	createSkip = map[string]bool{"id": true, "createdAt": true, "updatedAt": true}
	updateSkip = map[string]bool{"createdAt": true, "updatedAt": true}
)

// definition: одно определение GraphQL-документа до форматирования
type definition struct {
	name    string
	comment string
	text    string
	spread  bool // использует фрагмент сущности
}

// names: варианты имени сущности, из которых собираются имена операций
type names struct {
	S, P string // User, Users
	s, p string // user, users
	frag string // UserFragment
}

func namesOf(e *dsl.Entity) names {
	return names{
		S:    e.Singular,
		P:    e.Plural,
		s:    lowerFirst(e.Singular),
		p:    lowerFirst(e.Plural),
		frag: e.Singular + "Fragment",
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func filterFields(fields []dsl.Field, skip map[string]bool) []dsl.Field {
	out := make([]dsl.Field, 0, len(fields))
	for _, f := range fields {
		if !skip[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

// varDecls рендерит список переменных; без переменных скобки не пишутся, "()" не валиден в GraphQL
func varDecls(fields []dsl.Field) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, "$"+f.Name+": "+f.Annotation())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// objectValue рендерит {name: $name, ...}
func objectValue(fields []dsl.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+": $"+f.Name)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// definitions строит фрагмент и семь операций сущности в фиксированном порядке
func definitions(e *dsl.Entity) []definition {
	n := namesOf(e)
	id, _ := e.Field("id")
	idVar := "($id: " + id.Annotation() + ")"

	var defs []definition
	add := func(name, comment string, spread bool, format string, args ...any) {
		defs = append(defs, definition{
			name:    name,
			comment: comment,
			spread:  spread,
			text:    fmt.Sprintf(format, args...),
		})
	}

	add(n.frag, "", false, "fragment %s on %s {\n  %s\n}",
		n.frag, n.P, strings.Join(e.FieldNames(), "\n  "))

	add("Get"+n.P, "Query to get "+n.P+" with pagination", true,
		`query Get%[1]s($limit: Int!, $offset: Int!, $orderBy: [%[1]sOrderBy!], $filter: %[1]sBoolExp) {
  %[2]s(limit: $limit, offset: $offset, orderBy: $orderBy, where: $filter) {
    ...%[3]s
  }
  total: %[2]sAggregate(where: $filter) {
    aggregate {
      count
    }
  }
}`, n.P, n.p, n.frag)

	add("Get"+n.S, "Query to get one "+n.S, true,
		"query Get%s%s {\n  %s(id: $id) {\n    ...%s\n  }\n}",
		n.S, idVar, n.s, n.frag)

	create := filterFields(e.Fields, createSkip)
	add("Create"+n.S, "Mutation to create one "+n.S, true,
		"mutation Create%[1]s%[2]s {\n  create%[1]s(object: %[3]s) {\n    ...%[4]s\n  }\n}",
		n.S, varDecls(create), objectValue(create), n.frag)

	add("Update"+n.S, "Mutation to update one "+n.S, true,
		"mutation Update%[1]s%[2]s {\n  update%[1]s(_set: %[3]s, pk_columns: {id: $id}) {\n    ...%[4]s\n  }\n}",
		n.S, varDecls(filterFields(e.Fields, updateSkip)), objectValue(create), n.frag)

	add("Delete"+n.S, "Mutation to delete one "+n.S, true,
		"mutation Delete%s%s {\n  delete%s(id: $id) {\n    ...%s\n  }\n}",
		n.S, idVar, n.S, n.frag)

	add("GetAll"+n.P, "Query to get all "+n.P+" without pagination (DO NOT USE THIS IN PRODUCTION!!!)", true,
		"query GetAll%s {\n  %s {\n    ...%s\n  }\n}",
		n.P, n.p, n.frag)

	add("DeleteAll"+n.P, "Mutation to delete all "+n.P, false,
		"mutation DeleteAll%[1]s {\n  delete%[1]s(where: {}) {\n    affected_rows\n  }\n}",
		n.P)

	return defs
}

// document склеивает определения в один GraphQL-документ с комментариями
func document(defs []definition) string {
	var b strings.Builder
	for i, d := range defs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if d.comment != "" {
			b.WriteString("# ")
			b.WriteString(d.comment)
			b.WriteString("\n")
		}
		b.WriteString(d.text)
	}
	b.WriteString("\n")
	return b.String()
}

// Renderer детерминированно превращает описание сущности в текст выбранного диалекта
type Renderer struct {
	pkg string
}

// NewRenderer создаёт рендерер; pkg: имя Go-пакета для TypedModule
func NewRenderer(pkg string) *Renderer {
	if pkg == "" {
		pkg = "generated"
	}
	return &Renderer{pkg: pkg}
}

// Render возвращает неотформатированное (для QueryLanguage) тело артефакта
func (r *Renderer) Render(e *dsl.Entity, d Dialect) (*Artifact, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	defs := definitions(e)

	var body []byte
	switch d {
	case QueryLanguage:
		body = []byte(document(defs))
	case TypedModule:
		src, err := r.typedModule(e, defs)
		if err != nil {
			return nil, err
		}
		body = src
	default:
		return nil, fmt.Errorf("unsupported dialect %s", d)
	}
	return &Artifact{Entity: e, Dialect: d, Body: body}, nil
}
