package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Symbol is a player's mark on the board.
type Symbol string

const (
	SymbolX Symbol = "X"
	SymbolO Symbol = "O"
)

// Cell is one square of the board. The zero value is an empty cell and
// marshals as JSON null. Older revisions of the data stored empty cells as
// "", so decoding accepts both; any other value is corruption.
type Cell string

func (c Cell) Empty() bool {
	return c == ""
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("BOARD_CORRUPT: cell is not a symbol: %w", err)
	}
	switch s {
	case "", string(SymbolX), string(SymbolO):
		*c = Cell(s)
		return nil
	}
	return fmt.Errorf("BOARD_CORRUPT: unknown cell value %q", s)
}

// Board is the 3x3 grid. It has value semantics: Apply returns a new board
// and never mutates the receiver.
type Board [3][3]Cell

var (
	ErrOutOfRange   = errors.New("INVALID_COORDINATES: Row and column must be between 0 and 2")
	ErrCellOccupied = errors.New("CELL_OCCUPIED: That cell has already been played")
)

// Apply places s at (row, col) and returns the resulting board.
func (b Board) Apply(row, col int, s Symbol) (Board, error) {
	if row < 0 || row > 2 || col < 0 || col > 2 {
		return b, ErrOutOfRange
	}
	if !b[row][col].Empty() {
		return b, ErrCellOccupied
	}
	b[row][col] = Cell(s)
	return b, nil
}

// Wins reports whether s holds a complete row, column, or diagonal. Callers
// evaluate it only for the symbol that just moved; a move can never complete
// a line for the opponent.
func (b Board) Wins(s Symbol) bool {
	c := Cell(s)
	for i := 0; i < 3; i++ {
		if b[i][0] == c && b[i][1] == c && b[i][2] == c {
			return true
		}
		if b[0][i] == c && b[1][i] == c && b[2][i] == c {
			return true
		}
	}
	if b[0][0] == c && b[1][1] == c && b[2][2] == c {
		return true
	}
	return b[0][2] == c && b[1][1] == c && b[2][0] == c
}

// Full reports whether every cell is occupied. A full board is a draw only
// when the move that filled it did not win; check Wins first.
func (b Board) Full() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if b[i][j].Empty() {
				return false
			}
		}
	}
	return true
}

// EncodeBoard serializes a board to its canonical stored form, a nested 3x3
// JSON array with null for empty cells.
func EncodeBoard(b Board) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode board: %w", err)
	}
	return string(data), nil
}

// DecodeBoard parses a stored board. A value that does not decode to exactly
// a 3x3 grid of optional symbols is reported as corruption; the board is
// never guess-repaired.
func DecodeBoard(raw string) (Board, error) {
	var rows [][]Cell
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return Board{}, fmt.Errorf("BOARD_CORRUPT: %w", err)
	}
	if len(rows) != 3 {
		return Board{}, fmt.Errorf("BOARD_CORRUPT: expected 3 rows, got %d", len(rows))
	}
	var b Board
	for i, row := range rows {
		if len(row) != 3 {
			return Board{}, fmt.Errorf("BOARD_CORRUPT: row %d has %d cells", i, len(row))
		}
		for j, c := range row {
			b[i][j] = c
		}
	}
	return b, nil
}
