package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"tictactoe-server/internal/game"
	"tictactoe-server/internal/telegram"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("POST /create-game", s.createGameHandler)
	mux.HandleFunc("POST /join-game", s.joinGameHandler)
	mux.HandleFunc("POST /start-game", s.startGameHandler)
	mux.HandleFunc("POST /move", s.moveHandler)
	mux.HandleFunc("GET /game/{id}", s.getGameHandler)
	mux.HandleFunc("GET /stats/{playerID}", s.statsHandler)

	mux.HandleFunc("POST /webhook", s.webhookHandler)

	mux.HandleFunc("GET /ws/{id}", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.Health())
}

func (s *Server) createGameHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid create-game payload")
		return
	}

	who, err := s.verify(req.InitData)
	if err != nil {
		writeError(w, err)
		return
	}

	g, err := s.coordinator.CreateGame(r.Context(), who)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Game %s created by player %d", g.ID, who.ID)
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) joinGameHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid join-game payload")
		return
	}

	who, err := s.verify(req.InitData)
	if err != nil {
		writeError(w, err)
		return
	}

	g, err := s.coordinator.JoinGame(r.Context(), who, req.GameID)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Player %d joined game %s", who.ID, g.ID)
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) startGameHandler(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid start-game payload")
		return
	}

	who, err := s.verify(req.InitData)
	if err != nil {
		writeError(w, err)
		return
	}

	g, err := s.coordinator.StartGame(r.Context(), who, req.GameID)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Game %s started, first move: player %d", g.ID, g.CreatorID)
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) moveHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid move payload")
		return
	}

	who, err := s.verify(req.InitData)
	if err != nil {
		writeError(w, err)
		return
	}

	g, err := s.coordinator.MakeMove(r.Context(), who, req.GameID, req.Row, req.Col)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, g)
}

func (s *Server) getGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")

	g, err := s.store.FetchGame(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	if g == nil {
		writeError(w, ErrGameNotFound)
		return
	}

	writeJSON(w, http.StatusOK, g)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(r.PathValue("playerID"), 10, 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "INVALID_PLAYER_ID", "Player id must be numeric")
		return
	}

	wins, losses, draws, err := s.store.FetchStats(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		PlayerID: playerID,
		Wins:     wins,
		Losses:   losses,
		Draws:    draws,
	})
}

// verify resolves the acting identity from a signed init data payload.
func (s *Server) verify(initData string) (telegram.Identity, error) {
	return telegram.Verify(initData, s.botToken, telegram.MaxInitDataAge, s.now())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorMessage{Code: code, Message: message})
}

// writeError maps an error to its HTTP status using the CODE: prefix
// convention, keeping the code machine-readable for the client.
func writeError(w http.ResponseWriter, err error) {
	writeErrorMessage(w, statusForError(err), errorCode(err), errorText(err))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, telegram.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGameFull),
		errors.Is(err, ErrNoOpponent),
		errors.Is(err, ErrAlreadyStarted),
		errors.Is(err, ErrGameNotStarted),
		errors.Is(err, ErrGameOver),
		errors.Is(err, ErrOutOfTurn),
		errors.Is(err, ErrNotAPlayer),
		errors.Is(err, ErrNotOpponent),
		errors.Is(err, game.ErrOutOfRange),
		errors.Is(err, game.ErrCellOccupied):
		return http.StatusBadRequest
	default:
		// Store failures, board corruption: the caller did nothing wrong.
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		code := msg[:i]
		if code == strings.ToUpper(code) && !strings.ContainsAny(code, " \t") {
			return code
		}
	}
	return "INTERNAL"
}

func errorText(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 && errorCode(err) != "INTERNAL" {
		return msg[i+2:]
	}
	return msg
}
