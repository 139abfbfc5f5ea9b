package game

import "time"

// Outcome is the terminal result of a game.
type Outcome string

const (
	OutcomeX    Outcome = "X"
	OutcomeO    Outcome = "O"
	OutcomeDraw Outcome = "draw"
)

// Game is the authoritative record for one match. The store holds the copy
// of record; in-memory instances are derived views and may be discarded.
type Game struct {
	ID           string    `json:"id"`
	CreatorID    int64     `json:"creator_id"`
	CreatorName  string    `json:"creator_name"`
	OpponentID   *int64    `json:"opponent_id"`
	OpponentName string    `json:"opponent_name,omitempty"`
	Board        Board     `json:"board"`
	CurrentTurn  *int64    `json:"current_turn"`
	Winner       *Outcome  `json:"winner"`
	Started      bool      `json:"game_started"`
	CreatedAt    time.Time `json:"created_at"`
}

// New returns a fresh game: empty board, not started, no opponent, and the
// creator slated to move first once the opponent confirms start.
func New(id string, creatorID int64, creatorName string) *Game {
	turn := creatorID
	return &Game{
		ID:          id,
		CreatorID:   creatorID,
		CreatorName: creatorName,
		CurrentTurn: &turn,
		CreatedAt:   time.Now().UTC(),
	}
}

// IsPlayer reports whether id is one of the game's two known players.
func (g *Game) IsPlayer(id int64) bool {
	if id == g.CreatorID {
		return true
	}
	return g.OpponentID != nil && *g.OpponentID == id
}

// SymbolFor returns the mark a player uses: the creator is always X, the
// opponent always O.
func (g *Game) SymbolFor(playerID int64) Symbol {
	if playerID == g.CreatorID {
		return SymbolX
	}
	return SymbolO
}

// Finished reports whether a winner (or draw) has been decided.
func (g *Game) Finished() bool {
	return g.Winner != nil
}

// NextTurn returns the identity allowed to move after acting, or nil once
// the game has ended.
func (g *Game) NextTurn(acting int64) *int64 {
	if g.Finished() {
		return nil
	}
	if acting == g.CreatorID {
		if g.OpponentID == nil {
			return nil
		}
		next := *g.OpponentID
		return &next
	}
	next := g.CreatorID
	return &next
}
