package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"

	"tictactoe-server/internal/game"
	"tictactoe-server/internal/telegram"
)

var (
	alice = telegram.Identity{ID: 100, FirstName: "Alice"}
	bob   = telegram.Identity{ID: 200, FirstName: "Bob"}
	carol = telegram.Identity{ID: 300, FirstName: "Carol"}
)

type storedMessage struct {
	gameID   string
	playerID int64
	username string
	text     string
	sentAt   time.Time
}

// fakeStore is an in-memory GameStore. It deep-copies games on the way in
// and out, the way a real store boundary would.
type fakeStore struct {
	mu       sync.Mutex
	games    map[string]*game.Game
	stats    map[int64]map[StatField]int
	messages []storedMessage

	fetchErr  error
	updateErr error
	statErr   error
	msgErr    error

	// conflicts makes the next N creates fail with ErrGameIDTaken.
	conflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games: make(map[string]*game.Game),
		stats: make(map[int64]map[StatField]int),
	}
}

func cloneGame(g *game.Game) *game.Game {
	c := *g
	if g.OpponentID != nil {
		v := *g.OpponentID
		c.OpponentID = &v
	}
	if g.CurrentTurn != nil {
		v := *g.CurrentTurn
		c.CurrentTurn = &v
	}
	if g.Winner != nil {
		v := *g.Winner
		c.Winner = &v
	}
	return &c
}

func (f *fakeStore) FetchGame(ctx context.Context, id string) (*game.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	g, ok := f.games[id]
	if !ok {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (f *fakeStore) CreateGame(ctx context.Context, g *game.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return ErrGameIDTaken
	}
	if _, exists := f.games[g.ID]; exists {
		return ErrGameIDTaken
	}
	f.games[g.ID] = cloneGame(g)
	return nil
}

func (f *fakeStore) UpdateGame(ctx context.Context, id string, m GameMutation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	g, ok := f.games[id]
	if !ok {
		return ErrGameNotFound
	}
	if m.Board != nil {
		g.Board = *m.Board
	}
	if m.ClearTurn {
		g.CurrentTurn = nil
	} else if m.CurrentTurn != nil {
		v := *m.CurrentTurn
		g.CurrentTurn = &v
	}
	if m.Winner != nil {
		v := *m.Winner
		g.Winner = &v
	}
	if m.OpponentID != nil {
		v := *m.OpponentID
		g.OpponentID = &v
	}
	if m.OpponentName != nil {
		g.OpponentName = *m.OpponentName
	}
	if m.Started != nil {
		g.Started = *m.Started
	}
	return nil
}

func (f *fakeStore) IncrementStat(ctx context.Context, playerID int64, username string, field StatField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return f.statErr
	}
	counters := f.stats[playerID]
	if counters == nil {
		counters = make(map[StatField]int)
		f.stats[playerID] = counters
	}
	counters[field]++
	return nil
}

func (f *fakeStore) FetchStats(ctx context.Context, playerID int64) (int, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return 0, 0, 0, f.fetchErr
	}
	counters := f.stats[playerID]
	return counters[StatWins], counters[StatLosses], counters[StatDraws], nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, gameID string, playerID int64, username, text string, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msgErr != nil {
		return f.msgErr
	}
	f.messages = append(f.messages, storedMessage{gameID, playerID, username, text, sentAt})
	return nil
}

func (f *fakeStore) statCount(playerID int64, field StatField) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[playerID][field]
}

// fakeSocket records frames written to it and can be told to fail.
type fakeSocket struct {
	mu        sync.Mutex
	frames    [][]byte
	failWrite bool
	closed    bool
}

func (f *fakeSocket) Write(ctx context.Context, typ websocket.MessageType, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("write to closed socket")
	}
	frame := make([]byte, len(p))
	copy(frame, p)
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSocket) Close(code websocket.StatusCode, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSocket) lastFrame() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

// recordingBroadcaster counts state broadcasts per game id.
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingBroadcaster) GameState(ctx context.Context, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, gameID)
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// liveDone returns a done channel that never closes plus its closer.
func liveDone() (<-chan struct{}, func()) {
	ch := make(chan struct{})
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

// seedGame puts a started two-player game into the store: Alice (creator, X)
// to move first against Bob (opponent, O).
func seedGame(f *fakeStore, id string) *game.Game {
	g := game.New(id, alice.ID, alice.DisplayName())
	opponent := bob.ID
	g.OpponentID = &opponent
	g.OpponentName = bob.DisplayName()
	g.Started = true
	f.games[id] = g
	return g
}
