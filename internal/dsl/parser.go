package dsl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"
)

var (
	nameRe = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)
	// именованный тип или список: uuid, [String!]
	typeRe = regexp.MustCompile(`^(\[[_A-Za-z][_0-9A-Za-z]*!?\]|[_A-Za-z][_0-9A-Za-z]*)$`)
)

// entitySpec: одна запись файла описаний (YAML или JSON)
type entitySpec struct {
	Singular string   `yaml:"singular"`
	Plural   string   `yaml:"plural"`
	Fields   []string `yaml:"fields"`
}

// ParseField разбирает запись вида "firstName:String!"
func ParseField(raw string) (Field, error) {
	name, typ, ok := strings.Cut(raw, ":")
	if !ok {
		return Field{}, schemaErr("", raw, "missing type annotation (expected name:Type)")
	}
	name = strings.TrimSpace(name)
	// пробелы внутри "[ String! ]" не значимы
	typ = strings.Join(strings.Fields(typ), "")

	if name == "" {
		return Field{}, schemaErr("", raw, "empty field name")
	}
	if !nameRe.MatchString(name) {
		return Field{}, schemaErr("", raw, fmt.Sprintf("invalid field name %q", name))
	}
	if typ == "" {
		return Field{}, schemaErr("", raw, "empty type annotation")
	}

	f := Field{Name: name, Type: typ}
	if strings.HasSuffix(typ, "!") {
		f.NonNull = true
		f.Type = strings.TrimSuffix(typ, "!")
	}
	if !typeRe.MatchString(f.Type) {
		return Field{}, schemaErr("", raw, fmt.Sprintf("invalid type annotation %q", typ))
	}
	return f, nil
}

// NewEntity собирает и валидирует сущность. Пустой plural выводится из singular.
func NewEntity(singular, plural string, fields ...string) (*Entity, error) {
	singular = strings.TrimSpace(singular)
	plural = strings.TrimSpace(plural)
	if plural == "" && singular != "" {
		plural = inflect.Pluralize(singular)
	}

	e := &Entity{Singular: singular, Plural: plural}
	for _, raw := range fields {
		f, err := ParseField(raw)
		if err != nil {
			var se *SchemaError
			if errors.As(err, &se) {
				se.Entity = singular
			}
			return nil, err
		}
		e.Fields = append(e.Fields, f)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate проверяет инварианты: валидные имена, уникальные поля, id с non-null типом.
func (e *Entity) Validate() error {
	if !nameRe.MatchString(e.Singular) {
		return schemaErr(e.Singular, "", fmt.Sprintf("invalid singular name %q", e.Singular))
	}
	if !nameRe.MatchString(e.Plural) {
		return schemaErr(e.Singular, "", fmt.Sprintf("invalid plural name %q", e.Plural))
	}
	if e.Singular == e.Plural {
		return schemaErr(e.Singular, "", "singular and plural names must differ")
	}

	seen := make(map[string]struct{}, len(e.Fields))
	for _, f := range e.Fields {
		if _, dup := seen[f.Name]; dup {
			return schemaErr(e.Singular, f.String(), "duplicate field name")
		}
		seen[f.Name] = struct{}{}
	}

	id, ok := e.Field("id")
	if !ok {
		return schemaErr(e.Singular, "", "missing id field")
	}
	if !id.NonNull {
		return schemaErr(e.Singular, id.String(), "id must be non-null")
	}
	return nil
}

// ParseEntities читает список сущностей из YAML (JSON тоже подходит как подмножество YAML)
func ParseEntities(data []byte) ([]*Entity, error) {
	var specs []entitySpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode descriptors: %w", err)
	}

	out := make([]*Entity, 0, len(specs))
	for i, s := range specs {
		e, err := NewEntity(s.Singular, s.Plural, s.Fields...)
		if err != nil {
			return nil, fmt.Errorf("descriptor #%d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// LoadEntities читает файл описаний и возвращает сущности в порядке объявления
func LoadEntities(path string) ([]*Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ents, err := ParseEntities(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ents, nil
}

// IsDescriptorFile: файл описаний по расширению (.yaml, .yml, .json, без учёта регистра)
func IsDescriptorFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadAllEntities обходит каталог (в лексическом порядке) и собирает сущности из всех файлов описаний.
// Если root указывает на файл, читается только он.
func LoadAllEntities(root string) ([]*Entity, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return LoadEntities(root)
	}

	var result []*Entity
	bySingular := map[string]string{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !IsDescriptorFile(d.Name()) {
			return nil
		}

		ents, err := LoadEntities(path)
		if err != nil {
			return err
		}
		for _, e := range ents {
			if prev, exists := bySingular[e.Singular]; exists {
				return fmt.Errorf("duplicate entity %q (files: %s, %s)", e.Singular, prev, path)
			}
			bySingular[e.Singular] = path
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
