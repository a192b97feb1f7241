package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderBy(t *testing.T) {
	allowed := map[string]string{"id": "id", "name": "LOWER(name)"}
	def := DBOrdering{Field: "id", Ascending: true}

	assert.Equal(t, " ORDER BY LOWER(name) DESC, id ASC", OrderBy([]DBOrdering{
		{Field: "name"},
		{Field: "password_hash", Ascending: true},
		{Field: "id", Ascending: true},
	}, allowed, def))
	assert.Equal(t, " ORDER BY id ASC", OrderBy(nil, allowed, def))
	assert.Equal(t, "", OrderBy(nil, allowed))
}
