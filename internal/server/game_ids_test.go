package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGameID_ShapeAndAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewGameID()
		assert.NoError(t, ValidateGameID(id))
		seen[id] = true
	}
	assert.Greater(t, len(seen), 90, "ids should rarely collide")
}

func TestValidateGameID(t *testing.T) {
	valid := []string{"abcd1234", "00000000", "zzzzzzzz"}
	for _, id := range valid {
		assert.NoError(t, ValidateGameID(id))
	}

	invalid := []string{
		"",
		"short",
		"toolong12x",
		"ABCD1234",
		"abcd 123",
		"abcd-123",
		"abcd123é",
	}
	for _, id := range invalid {
		assert.Error(t, ValidateGameID(id), "id %q", id)
	}
}
