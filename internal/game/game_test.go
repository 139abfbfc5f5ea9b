package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func twoPlayerGame() *Game {
	g := New("abc12345", 100, "Alice")
	opponent := int64(200)
	g.OpponentID = &opponent
	g.OpponentName = "Bob"
	return g
}

func TestNew_Defaults(t *testing.T) {
	g := New("abc12345", 100, "Alice")

	assert.Equal(t, "abc12345", g.ID)
	assert.False(t, g.Started)
	assert.Nil(t, g.OpponentID)
	assert.Nil(t, g.Winner)
	assert.Equal(t, Board{}, g.Board)

	// The creator is slated to move first once the game starts.
	if assert.NotNil(t, g.CurrentTurn) {
		assert.Equal(t, int64(100), *g.CurrentTurn)
	}
}

func TestSymbolFor(t *testing.T) {
	g := twoPlayerGame()

	assert.Equal(t, SymbolX, g.SymbolFor(100), "creator is always X")
	assert.Equal(t, SymbolO, g.SymbolFor(200), "opponent is always O")
}

func TestIsPlayer(t *testing.T) {
	g := twoPlayerGame()

	assert.True(t, g.IsPlayer(100))
	assert.True(t, g.IsPlayer(200))
	assert.False(t, g.IsPlayer(300))

	// Before anyone joins only the creator counts.
	solo := New("abc12345", 100, "Alice")
	assert.True(t, solo.IsPlayer(100))
	assert.False(t, solo.IsPlayer(200))
}

func TestNextTurn_Alternates(t *testing.T) {
	g := twoPlayerGame()

	next := g.NextTurn(100)
	if assert.NotNil(t, next) {
		assert.Equal(t, int64(200), *next)
	}

	next = g.NextTurn(200)
	if assert.NotNil(t, next) {
		assert.Equal(t, int64(100), *next)
	}
}

func TestNextTurn_NilOnceFinished(t *testing.T) {
	g := twoPlayerGame()
	winner := OutcomeX
	g.Winner = &winner

	assert.Nil(t, g.NextTurn(100))
	assert.Nil(t, g.NextTurn(200))
}
