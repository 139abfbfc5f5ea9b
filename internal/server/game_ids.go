package server

import (
	"errors"
	"math/rand"
)

const (
	gameIDLength   = 8
	gameIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewGameID returns a random 8-character id. Uniqueness is not guaranteed
// here; the store's insert rejects collisions and the caller regenerates.
func NewGameID() string {
	id := make([]byte, gameIDLength)
	for i := range id {
		id[i] = gameIDAlphabet[rand.Intn(len(gameIDAlphabet))]
	}
	return string(id)
}

// ValidateGameID rejects ids that could never name a game, so malformed
// input skips the store round trip.
func ValidateGameID(id string) error {
	if len(id) != gameIDLength {
		return errors.New("Game id must be exactly 8 characters")
	}
	for _, ch := range id {
		if (ch < 'a' || ch > 'z') && (ch < '0' || ch > '9') {
			return errors.New("Game id must contain only lowercase letters and digits")
		}
	}
	return nil
}
