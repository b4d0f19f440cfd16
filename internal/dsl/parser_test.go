package dsl

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		raw  string
		want Field
	}{
		{"id:uuid!", Field{Name: "id", Type: "uuid", NonNull: true}},
		{"lastName:String", Field{Name: "lastName", Type: "String"}},
		{" email : String! ", Field{Name: "email", Type: "String", NonNull: true}},
		{"tags:[String!]!", Field{Name: "tags", Type: "[String!]", NonNull: true}},
		{"aliases:[ String ]", Field{Name: "aliases", Type: "[String]"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseField(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFieldErrors(t *testing.T) {
	for _, raw := range []string{"firstName", "firstName:", ":String", "first-name:String", "x:!", "x:[String", "x:Str-ing"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseField(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSchema))
		})
	}
}

func TestFieldAnnotation(t *testing.T) {
	assert.Equal(t, "uuid!", Field{Name: "id", Type: "uuid", NonNull: true}.Annotation())
	assert.Equal(t, "String", Field{Name: "bio", Type: "String"}.Annotation())
	assert.Equal(t, "bio:String", Field{Name: "bio", Type: "String"}.String())
}

func TestNewEntity(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		e, err := NewEntity("User", "Users", "id:uuid!", "firstName:String!", "lastName:String")
		require.NoError(t, err)
		assert.Equal(t, "User", e.Singular)
		assert.Equal(t, "Users", e.Plural)
		assert.Equal(t, []string{"id", "firstName", "lastName"}, e.FieldNames())
	})

	t.Run("plural defaults to inflection", func(t *testing.T) {
		e, err := NewEntity("Category", "", "id:uuid!")
		require.NoError(t, err)
		assert.Equal(t, "Categories", e.Plural)
	})

	t.Run("entity name is attached to field errors", func(t *testing.T) {
		_, err := NewEntity("User", "Users", "id:uuid!", "firstName")
		var se *SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "User", se.Entity)
		assert.Equal(t, "firstName", se.Field)
		assert.Contains(t, err.Error(), "missing type annotation")
	})

	errCases := map[string]struct {
		singular, plural string
		fields           []string
		msg              string
	}{
		"missing id":        {"User", "Users", []string{"email:String!"}, "missing id field"},
		"nullable id":       {"User", "Users", []string{"id:uuid"}, "id must be non-null"},
		"duplicate field":   {"User", "Users", []string{"id:uuid!", "email:String", "email:String!"}, "duplicate field name"},
		"same names":        {"Sheep", "Sheep", []string{"id:uuid!"}, "must differ"},
		"bad singular":      {"user-profile", "UserProfiles", []string{"id:uuid!"}, "invalid singular"},
		"bad plural":        {"User", "User s", []string{"id:uuid!"}, "invalid plural"},
		"empty descriptor":  {"", "", []string{"id:uuid!"}, "invalid singular"},
		"no fields at all":  {"User", "Users", nil, "missing id field"},
		"empty type string": {"User", "Users", []string{"id:uuid!", "bio:"}, "empty type annotation"},
	}
	for name, tc := range errCases {
		t.Run(name, func(t *testing.T) {
			_, err := NewEntity(tc.singular, tc.plural, tc.fields...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSchema)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestParseEntities(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		src := `
- singular: User
  plural: Users
  fields:
    - id:uuid!
    - firstName:String!
- singular: Post
  fields: ["id:uuid!", "title:String!"]
`
		ents, err := ParseEntities([]byte(src))
		require.NoError(t, err)
		require.Len(t, ents, 2)
		assert.Equal(t, "Users", ents[0].Plural)
		assert.Equal(t, "Posts", ents[1].Plural)
		assert.Equal(t, []string{"id", "title"}, ents[1].FieldNames())
	})

	t.Run("json", func(t *testing.T) {
		src := `[{"singular": "User", "plural": "Users", "fields": ["id:uuid!", "email:String!"]}]`
		ents, err := ParseEntities([]byte(src))
		require.NoError(t, err)
		require.Len(t, ents, 1)
		assert.Equal(t, []string{"id", "email"}, ents[0].FieldNames())
	})

	t.Run("invalid descriptor is reported with its position", func(t *testing.T) {
		src := `[{"singular": "User", "fields": ["id:uuid!"]}, {"singular": "Post", "fields": ["title"]}]`
		_, err := ParseEntities([]byte(src))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "descriptor #2")
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseEntities([]byte("singular: [unterminated"))
		require.Error(t, err)
	})
}

func TestLoadAllEntities(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a_users.yaml", "- singular: User\n  fields: [\"id:uuid!\"]\n")
	write("b_posts.json", `[{"singular": "Post", "fields": ["id:uuid!"]}]`)
	write("README.md", "not a descriptor")

	ents, err := LoadAllEntities(dir)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, "User", ents[0].Singular)
	assert.Equal(t, "Post", ents[1].Singular)

	t.Run("single file", func(t *testing.T) {
		ents, err := LoadAllEntities(filepath.Join(dir, "b_posts.json"))
		require.NoError(t, err)
		require.Len(t, ents, 1)
	})

	t.Run("duplicate entity across files", func(t *testing.T) {
		write("c_users_again.yml", "- singular: User\n  fields: [\"id:uuid!\"]\n")
		_, err := LoadAllEntities(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate entity "User"`)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := LoadAllEntities(filepath.Join(dir, "nope"))
		require.Error(t, err)
	})
}
