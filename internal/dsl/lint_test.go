package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLint(t *testing.T) {
	clean, err := NewEntity("User", "Users", "id:uuid!", "createdAt:timestamptz")
	require.NoError(t, err)
	assert.Empty(t, Lint([]*Entity{clean}))

	odd, err := NewEntity("Person", "Persons", "id:Int!", "updatedAt:timestamptz!")
	require.NoError(t, err)

	codes := map[string]Issue{}
	for _, it := range Lint([]*Entity{odd}) {
		codes[it.Code] = it
	}
	require.Len(t, codes, 3)
	assert.Contains(t, codes["plural_mismatch"].Message, `"People"`)
	assert.Equal(t, "id", codes["id_not_uuid"].Field)
	assert.Equal(t, "updatedAt", codes["audit_non_null"].Field)
}
