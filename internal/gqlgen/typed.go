package gqlgen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"

	"gatekeeper/internal/dsl"
)

const generatedHeader = "Code generated by gqlgen. DO NOT EDIT."

// rawString: Go-литерал для многострочного GraphQL. Обратная кавычка внутри raw-строки невозможна,
// тогда откатываемся на обычный экранированный литерал.
func rawString(s string) jen.Code {
	if strings.Contains(s, "`") {
		return jen.Lit(s)
	}
	return jen.Op("`" + s + "`")
}

// typedModule рендерит Go-файл: константа на каждое определение и карта операций сущности
func (r *Renderer) typedModule(e *dsl.Entity, defs []definition) ([]byte, error) {
	n := namesOf(e)

	f := jen.NewFile(r.pkg)
	f.HeaderComment(generatedHeader)

	ops := jen.Dict{}
	for _, d := range defs {
		text := d.text + "\n"
		if d.comment != "" {
			text = "# " + d.comment + "\n" + text
		}

		if d.name == n.frag {
			f.Comment(fmt.Sprintf("%s selects every field of %s.", d.name, n.P))
		} else {
			f.Comment(fmt.Sprintf("%s: %s.", d.name, d.comment))
		}

		val := []jen.Code{rawString(text)}
		if d.spread {
			// фрагмент подклеивается по ссылке, список полей живёт в одном месте
			val = append(val, jen.Op("+"), jen.Id(n.frag))
		}
		f.Const().Id(d.name).Op("=").Add(val...)
		f.Line()

		if d.name != n.frag {
			ops[jen.Lit(d.name)] = jen.Id(d.name)
		}
	}

	f.Commentf("%sOperations maps operation names to documents ready to send.", n.P)
	f.Var().Id(n.P + "Operations").Op("=").Map(jen.String()).String().Values(ops)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("render go module for %s: %w", n.P, err)
	}
	return buf.Bytes(), nil
}
