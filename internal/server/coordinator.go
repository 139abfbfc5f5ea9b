package server

import (
	"context"
	"errors"
	"fmt"
	"log"

	"tictactoe-server/internal/game"
	"tictactoe-server/internal/telegram"
)

var (
	ErrGameNotFound   = errors.New("GAME_NOT_FOUND: Game not found")
	ErrGameFull       = errors.New("GAME_FULL: Game already has two players")
	ErrNoOpponent     = errors.New("NO_OPPONENT: Waiting for an opponent to join")
	ErrAlreadyStarted = errors.New("ALREADY_STARTED: Game already started")
	ErrGameNotStarted = errors.New("GAME_NOT_STARTED: Game has not started yet")
	ErrGameOver       = errors.New("GAME_OVER: Game has already finished")
	ErrOutOfTurn      = errors.New("OUT_OF_TURN: Not your turn")
	ErrNotAPlayer     = errors.New("NOT_A_PLAYER: You are not part of this game")
	ErrNotOpponent    = errors.New("NOT_OPPONENT: Only the joined opponent can confirm start")
)

// maxIDAttempts bounds regeneration when a random game id collides. With an
// 8-character id space a second collision in a row is effectively a store
// fault, not bad luck.
const maxIDAttempts = 5

// gameMutator is the slice of the store the coordinator writes through.
type gameMutator interface {
	FetchGame(ctx context.Context, id string) (*game.Game, error)
	CreateGame(ctx context.Context, g *game.Game) error
	UpdateGame(ctx context.Context, id string, m GameMutation) error
}

// broadcaster decouples the coordinator from socket fan-out.
type broadcaster interface {
	GameState(ctx context.Context, gameID string)
}

// outcomeRecorder is the stats ledger as the coordinator sees it.
type outcomeRecorder interface {
	RecordOutcome(ctx context.Context, playerID int64, username string, field StatField) error
}

// Coordinator orchestrates game mutations end to end: validate, apply via
// the board engine, persist, tally, broadcast. A per-game mutex closes the
// window where two near-simultaneous moves could both pass the turn check
// before either write lands; the store is addressed from this process only,
// so an in-process lock is a sufficient serialization point.
type Coordinator struct {
	store      gameMutator
	stats      outcomeRecorder
	dispatcher broadcaster
	locks      *keyedLocks
}

func NewCoordinator(store gameMutator, stats outcomeRecorder, dispatcher broadcaster) *Coordinator {
	return &Coordinator{
		store:      store,
		stats:      stats,
		dispatcher: dispatcher,
		locks:      newKeyedLocks(),
	}
}

// CreateGame allocates a fresh game for the creator: empty board, no
// opponent, not started. The id is checked against the store by the insert
// itself; a collision regenerates.
func (c *Coordinator) CreateGame(ctx context.Context, who telegram.Identity) (*game.Game, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		g := game.New(NewGameID(), who.ID, who.DisplayName())
		err := c.store.CreateGame(ctx, g)
		if errors.Is(err, ErrGameIDTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("failed to allocate a unique game id after %d attempts", maxIDAttempts)
}

// JoinGame seats who as the opponent. The creator opening their own game and
// an already-seated opponent rejoining are both no-ops that return the
// current state; a third identity is rejected.
func (c *Coordinator) JoinGame(ctx context.Context, who telegram.Identity, gameID string) (*game.Game, error) {
	unlock := c.locks.lock(gameID)
	defer unlock()

	g, err := c.fetch(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if who.ID == g.CreatorID {
		return g, nil
	}
	if g.OpponentID != nil {
		if *g.OpponentID == who.ID {
			return g, nil
		}
		return nil, ErrGameFull
	}

	opponentID := who.ID
	opponentName := who.DisplayName()
	err = c.store.UpdateGame(ctx, gameID, GameMutation{
		OpponentID:   &opponentID,
		OpponentName: &opponentName,
	})
	if err != nil {
		return nil, err
	}

	g.OpponentID = &opponentID
	g.OpponentName = opponentName

	c.dispatcher.GameState(ctx, gameID)
	return g, nil
}

// StartGame is the opponent's explicit confirmation. It flips game_started
// and hands the first move to the creator.
func (c *Coordinator) StartGame(ctx context.Context, who telegram.Identity, gameID string) (*game.Game, error) {
	unlock := c.locks.lock(gameID)
	defer unlock()

	g, err := c.fetch(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if g.Started {
		return nil, ErrAlreadyStarted
	}
	if g.OpponentID == nil {
		return nil, ErrNoOpponent
	}
	if who.ID != *g.OpponentID {
		return nil, ErrNotOpponent
	}

	started := true
	turn := g.CreatorID
	err = c.store.UpdateGame(ctx, gameID, GameMutation{
		Started:     &started,
		CurrentTurn: &turn,
	})
	if err != nil {
		return nil, err
	}

	g.Started = true
	g.CurrentTurn = &turn

	c.dispatcher.GameState(ctx, gameID)
	return g, nil
}

// MakeMove runs one move end to end. Every rejection happens before any
// write; board, turn, and winner persist as one mutation; tally failures are
// logged and swallowed; the broadcast always follows a successful write.
func (c *Coordinator) MakeMove(ctx context.Context, who telegram.Identity, gameID string, row, col int) (*game.Game, error) {
	unlock := c.locks.lock(gameID)
	defer unlock()

	g, err := c.fetch(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if !g.Started {
		return nil, ErrGameNotStarted
	}
	if g.Finished() {
		return nil, ErrGameOver
	}
	if !g.IsPlayer(who.ID) {
		return nil, ErrNotAPlayer
	}
	if g.CurrentTurn == nil || *g.CurrentTurn != who.ID {
		return nil, ErrOutOfTurn
	}

	symbol := g.SymbolFor(who.ID)
	board, err := g.Board.Apply(row, col, symbol)
	if err != nil {
		return nil, err
	}

	// Win before draw: a move that completes a line and fills the board is
	// a win.
	var winner *game.Outcome
	switch {
	case board.Wins(symbol):
		outcome := game.Outcome(symbol)
		winner = &outcome
	case board.Full():
		outcome := game.OutcomeDraw
		winner = &outcome
	}

	mutation := GameMutation{Board: &board}
	g.Board = board
	if winner != nil {
		g.Winner = winner
		g.CurrentTurn = nil
		mutation.Winner = winner
		mutation.ClearTurn = true
	} else {
		next := g.NextTurn(who.ID)
		g.CurrentTurn = next
		mutation.CurrentTurn = next
	}

	if err := c.store.UpdateGame(ctx, gameID, mutation); err != nil {
		return nil, err
	}

	if winner != nil {
		c.recordOutcome(ctx, g, *winner)
	}

	c.dispatcher.GameState(ctx, gameID)
	return g, nil
}

// recordOutcome updates both players' tallies. Failures here never block the
// state broadcast.
func (c *Coordinator) recordOutcome(ctx context.Context, g *game.Game, outcome game.Outcome) {
	if g.OpponentID == nil {
		return
	}

	type tally struct {
		playerID int64
		username string
		field    StatField
	}

	var updates []tally
	switch outcome {
	case game.OutcomeDraw:
		updates = []tally{
			{g.CreatorID, g.CreatorName, StatDraws},
			{*g.OpponentID, g.OpponentName, StatDraws},
		}
	case game.OutcomeX:
		updates = []tally{
			{g.CreatorID, g.CreatorName, StatWins},
			{*g.OpponentID, g.OpponentName, StatLosses},
		}
	case game.OutcomeO:
		updates = []tally{
			{*g.OpponentID, g.OpponentName, StatWins},
			{g.CreatorID, g.CreatorName, StatLosses},
		}
	}

	for _, u := range updates {
		if err := c.stats.RecordOutcome(ctx, u.playerID, u.username, u.field); err != nil {
			log.Printf("stats: failed to record %s for player %d in game %s: %v", u.field, u.playerID, g.ID, err)
		}
	}
}

// fetch loads a game and normalizes absence to ErrGameNotFound. Obviously
// malformed ids skip the store round trip.
func (c *Coordinator) fetch(ctx context.Context, gameID string) (*game.Game, error) {
	if err := ValidateGameID(gameID); err != nil {
		return nil, ErrGameNotFound
	}
	g, err := c.store.FetchGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	return g, nil
}
