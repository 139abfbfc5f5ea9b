package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tictactoe-server/internal/game"
)

// GameStore is the surface the transport layer and coordinator need from the
// external table store. *Store is the Postgres implementation; tests swap in
// an in-memory fake.
type GameStore interface {
	FetchGame(ctx context.Context, id string) (*game.Game, error)
	CreateGame(ctx context.Context, g *game.Game) error
	UpdateGame(ctx context.Context, id string, m GameMutation) error
	IncrementStat(ctx context.Context, playerID int64, username string, field StatField) error
	FetchStats(ctx context.Context, playerID int64) (wins, losses, draws int, err error)
	InsertMessage(ctx context.Context, gameID string, playerID int64, username, text string, sentAt time.Time) error
}

var ErrGameIDTaken = errors.New("GAME_ID_TAKEN: Game id already in use")

// GameMutation is one partial update to a game row. Only non-nil fields are
// written; the store applies the whole mutation as a single statement.
type GameMutation struct {
	Board        *game.Board
	CurrentTurn  *int64
	ClearTurn    bool // current_turn = NULL; wins over CurrentTurn
	Winner       *game.Outcome
	OpponentID   *int64
	OpponentName *string
	Started      *bool
}

// StatField names one counter on a player's stats row. The constants are the
// only values IncrementStat interpolates into SQL.
type StatField string

const (
	StatWins   StatField = "wins"
	StatLosses StatField = "losses"
	StatDraws  StatField = "draws"
)

// Store reads and writes the games, stats, and messages tables. Boards cross
// this boundary only in their normalized 3x3 form; the TEXT column holds the
// canonical JSON encoding.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FetchGame loads one game by id. A missing row is (nil, nil), not an error.
// A board that fails to decode aborts the read: corruption is never repaired
// into an empty board.
func (st *Store) FetchGame(ctx context.Context, id string) (*game.Game, error) {
	query := `
		SELECT id, creator_id, creator_name, opponent_id, opponent_name,
		       board, current_turn, winner, game_started, created_at
		FROM games WHERE id = $1
	`

	var (
		g            game.Game
		opponentID   sql.NullInt64
		opponentName sql.NullString
		boardRaw     string
		currentTurn  sql.NullInt64
		winner       sql.NullString
	)
	err := st.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID,
		&g.CreatorID,
		&g.CreatorName,
		&opponentID,
		&opponentName,
		&boardRaw,
		&currentTurn,
		&winner,
		&g.Started,
		&g.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}

	board, err := game.DecodeBoard(boardRaw)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", id, err)
	}
	g.Board = board

	if opponentID.Valid {
		g.OpponentID = &opponentID.Int64
	}
	if opponentName.Valid {
		g.OpponentName = opponentName.String
	}
	if currentTurn.Valid {
		g.CurrentTurn = &currentTurn.Int64
	}
	if winner.Valid {
		switch o := game.Outcome(winner.String); o {
		case game.OutcomeX, game.OutcomeO, game.OutcomeDraw:
			g.Winner = &o
		default:
			return nil, fmt.Errorf("game %s: BOARD_CORRUPT: unknown winner value %q", id, winner.String)
		}
	}

	return &g, nil
}

// CreateGame inserts a new game row. A primary-key collision is reported as
// ErrGameIDTaken so the caller can retry with a fresh id.
func (st *Store) CreateGame(ctx context.Context, g *game.Game) error {
	boardRaw, err := game.EncodeBoard(g.Board)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO games (id, creator_id, creator_name, opponent_id, opponent_name,
		                   board, current_turn, winner, game_started, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var winner *string
	if g.Winner != nil {
		w := string(*g.Winner)
		winner = &w
	}
	var opponentName *string
	if g.OpponentID != nil {
		opponentName = &g.OpponentName
	}

	_, err = st.db.ExecContext(ctx, query,
		g.ID, g.CreatorID, g.CreatorName, g.OpponentID, opponentName,
		boardRaw, g.CurrentTurn, winner, g.Started, g.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrGameIDTaken
		}
		return fmt.Errorf("failed to create game %s: %w", g.ID, err)
	}

	return nil
}

// UpdateGame applies a partial update to one game row as a single UPDATE, so
// board, turn, and winner land together or not at all.
func (st *Store) UpdateGame(ctx context.Context, id string, m GameMutation) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if m.Board != nil {
		boardRaw, err := game.EncodeBoard(*m.Board)
		if err != nil {
			return err
		}
		set("board", boardRaw)
	}
	if m.ClearTurn {
		sets = append(sets, "current_turn = NULL")
	} else if m.CurrentTurn != nil {
		set("current_turn", *m.CurrentTurn)
	}
	if m.Winner != nil {
		set("winner", string(*m.Winner))
	}
	if m.OpponentID != nil {
		set("opponent_id", *m.OpponentID)
	}
	if m.OpponentName != nil {
		set("opponent_name", *m.OpponentName)
	}
	if m.Started != nil {
		set("game_started", *m.Started)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE games SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	result, err := st.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update game %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrGameNotFound
	}

	return nil
}

// IncrementStat bumps one counter on a player's stats row, creating the row
// with that counter at 1 on first contact. The single UPSERT keeps the
// increment atomic at the store.
func (st *Store) IncrementStat(ctx context.Context, playerID int64, username string, field StatField) error {
	var wins, losses, draws int
	switch field {
	case StatWins:
		wins = 1
	case StatLosses:
		losses = 1
	case StatDraws:
		draws = 1
	default:
		return fmt.Errorf("unknown stat field %q", field)
	}

	query := fmt.Sprintf(`
		INSERT INTO stats (player_id, username, wins, losses, draws)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id)
		DO UPDATE SET %s = stats.%s + 1, username = EXCLUDED.username
	`, field, field)

	if _, err := st.db.ExecContext(ctx, query, playerID, username, wins, losses, draws); err != nil {
		return fmt.Errorf("failed to increment %s for player %d: %w", field, playerID, err)
	}
	return nil
}

// FetchStats reads a player's tallies. A missing row reads as all zeros.
func (st *Store) FetchStats(ctx context.Context, playerID int64) (wins, losses, draws int, err error) {
	query := `SELECT wins, losses, draws FROM stats WHERE player_id = $1`
	err = st.db.QueryRowContext(ctx, query, playerID).Scan(&wins, &losses, &draws)
	if err == sql.ErrNoRows {
		return 0, 0, 0, nil
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to load stats for player %d: %w", playerID, err)
	}
	return wins, losses, draws, nil
}

// InsertMessage appends one chat message to the game's history. The history
// is write-only from this subsystem's perspective.
func (st *Store) InsertMessage(ctx context.Context, gameID string, playerID int64, username, text string, sentAt time.Time) error {
	query := `
		INSERT INTO messages (game_id, player_id, username, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := st.db.ExecContext(ctx, query, gameID, playerID, username, text, sentAt); err != nil {
		return fmt.Errorf("failed to insert message for game %s: %w", gameID, err)
	}
	return nil
}
