package server

import "tictactoe-server/internal/game"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ============================================================================
// HTTP REQUESTS
// ============================================================================
type CreateGameRequest struct {
	InitData string `json:"initData"`
}

type JoinGameRequest struct {
	InitData string `json:"initData"`
	GameID   string `json:"game_id"`
}

type StartGameRequest struct {
	InitData string `json:"initData"`
	GameID   string `json:"game_id"`
}

type MoveRequest struct {
	InitData string `json:"initData"`
	GameID   string `json:"game_id"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
}

// StatsResponse is a player's lifetime tallies. Unknown players read as all
// zeros.
type StatsResponse struct {
	PlayerID int64 `json:"player_id"`
	Wins     int   `json:"wins"`
	Losses   int   `json:"losses"`
	Draws    int   `json:"draws"`
}

// ============================================================================
// SOCKET MESSAGES
// ============================================================================

// GameStateMessage is the full-state snapshot pushed to every viewer socket
// after each accepted mutation, and once on connect.
type GameStateMessage struct {
	Type string     `json:"type"` // always "game"
	Game *game.Game `json:"game"`
}

// ChatSendRequest is what a chat socket sends inbound.
type ChatSendRequest struct {
	InitData string `json:"initData"`
	Text     string `json:"text"`
}

// ChatMessage is the relayed form pushed to chat sockets.
type ChatMessage struct {
	Type      string `json:"type"` // always "chat"
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
