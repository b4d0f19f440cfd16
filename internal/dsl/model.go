package dsl

// Entity описывает сущность, для которой генерируются GraphQL-операции
type Entity struct {
	Singular string // User
	Plural   string // Users
	Fields   []Field
}

// Field описывает поле сущности в виде "name:Type!"
type Field struct {
	Name    string
	Type    string // имя GraphQL-типа без завершающего "!": String, uuid, [String!]
	NonNull bool
}

// Annotation возвращает тип в нотации GraphQL, например "String!"
func (f Field) Annotation() string {
	if f.NonNull {
		return f.Type + "!"
	}
	return f.Type
}

func (f Field) String() string {
	return f.Name + ":" + f.Annotation()
}

// Field ищет поле по имени
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames возвращает имена полей в порядке объявления
func (e *Entity) FieldNames() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Name)
	}
	return out
}
