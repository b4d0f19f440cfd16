package gqlgen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
	"golang.org/x/tools/imports"
)

// Format прогоняет тело через форматтер диалекта. Синтаксическая ошибка возвращается как есть, с именем файла.
func Format(d Dialect, filename string, src []byte) ([]byte, error) {
	switch d {
	case QueryLanguage:
		out, err := formatGraphQL(filename, src)
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", filename, err)
		}
		return out, nil
	case TypedModule:
		out, err := imports.Process(filename, src, &imports.Options{
			Comments:   true,
			TabIndent:  true,
			TabWidth:   8,
			FormatOnly: true,
		})
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", filename, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("format %s: unsupported dialect %s", filename, d)
}

// chunk: одно определение документа с позицией в исходнике
type chunk struct {
	line  int
	start int
	doc   *ast.QueryDocument
}

// formatGraphQL разбирает документ и печатает каждое определение отдельно,
// возвращая на место "#"-комментарии, стоящие прямо над ним.
func formatGraphQL(name string, src []byte) ([]byte, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: string(src)})
	if err != nil {
		return nil, err
	}

	var chunks []chunk
	for _, op := range doc.Operations {
		c := chunk{doc: &ast.QueryDocument{Operations: ast.OperationList{op}}}
		if op.Position != nil {
			c.line, c.start = op.Position.Line, op.Position.Start
		}
		chunks = append(chunks, c)
	}
	for _, fr := range doc.Fragments {
		c := chunk{doc: &ast.QueryDocument{Fragments: ast.FragmentDefinitionList{fr}}}
		if fr.Position != nil {
			c.line, c.start = fr.Position.Line, fr.Position.Start
		}
		chunks = append(chunks, c)
	}
	// исходный порядок определений
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].start < chunks[j].start })

	lines := strings.Split(string(src), "\n")
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		var buf bytes.Buffer
		formatter.NewFormatter(&buf).FormatQueryDocument(c.doc)

		text := spaceLiterals(strings.TrimSpace(buf.String()))
		if comments := leadingComments(lines, c.line); comments != "" {
			text = comments + "\n" + text
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return []byte{}, nil
	}
	return []byte(strings.Join(parts, "\n\n") + "\n"), nil
}

// spaceLiterals доводит вывод форматтера до привычной раскладки:
// "{a:$a,b:[1,2]}" в аргументах становится "{a: $a, b: [1, 2]}", "... Fragment" становится "...Fragment".
// Строковые литералы и строки-комментарии не трогаются.
func spaceLiterals(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#") {
			continue
		}
		lines[i] = spaceLine(l)
	}
	return strings.Join(lines, "\n")
}

func spaceLine(l string) string {
	var b strings.Builder
	b.Grow(len(l) + 16)
	depth := 0 // вложенность литералов-значений { } и [ ]
	inString := false
	last := byte(0) // последний значащий символ вне строк
	for i := 0; i < len(l); i++ {
		c := l[i]
		if inString {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(l) {
					i++
					b.WriteByte(l[i])
				}
			case '"':
				inString = false
				last = c
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			// значение начинается после ":" или "=" (значение по умолчанию)
			if depth > 0 || last == ':' || last == '=' {
				depth++
			}
		case '}', ']':
			if depth > 0 {
				depth--
			}
		case ':', ',':
			if depth > 0 {
				b.WriteByte(c)
				if i+1 < len(l) && l[i+1] != ' ' {
					b.WriteByte(' ')
				}
				last = c
				continue
			}
		case '.':
			// фрагмент без пробела; "... on Type" остаётся как есть
			if depth == 0 && strings.HasPrefix(l[i:], "... ") && !strings.HasPrefix(l[i:], "... on ") && i+4 < len(l) && isNameStart(l[i+4]) {
				b.WriteString("...")
				i += 3
				last = '.'
				continue
			}
		}
		b.WriteByte(c)
		if c != ' ' {
			last = c
		}
	}
	return b.String()
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// leadingComments собирает подряд идущие строки-комментарии над строкой line (нумерация с 1)
func leadingComments(lines []string, line int) string {
	var out []string
	for i := line - 2; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(l, "#") {
			break
		}
		out = append([]string{l}, out...)
	}
	return strings.Join(out, "\n")
}
