package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// webhookHandler answers Telegram bot updates. /start sends a button that
// opens the mini app; /start <gameID> deep-links straight into that game.
// Telegram retries non-200 responses, so every parseable update is acked
// even when the reply could not be sent.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid webhook payload")
		return
	}

	if update.Message != nil && update.Message.Text != "" && update.Message.From != nil && update.Message.Chat != nil {
		s.handleBotCommand(r, &update)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleBotCommand(r *http.Request, update *tgbotapi.Update) {
	if s.notifier == nil {
		log.Printf("Webhook update ignored: notifier not configured")
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	switch {
	case text == "/start":
		if err := s.notifier.SendNewGameButton(chatID); err != nil {
			log.Printf("Failed to send new-game button to chat %d: %v", chatID, err)
		}

	case strings.HasPrefix(text, "/start "):
		gameID := strings.TrimSpace(strings.TrimPrefix(text, "/start "))
		s.replyToJoinLink(r, chatID, userID, gameID)
	}
}

func (s *Server) replyToJoinLink(r *http.Request, chatID, userID int64, gameID string) {
	g, err := s.store.FetchGame(r.Context(), gameID)
	if err != nil {
		log.Printf("Webhook lookup for game %s failed: %v", gameID, err)
		return
	}

	var sendErr error
	switch {
	case g == nil:
		sendErr = s.notifier.SendText(chatID, "Game not found.")
	case g.CreatorID == userID:
		sendErr = s.notifier.SendJoinButton(chatID, "You created this game. Opening it...", gameID)
	case g.OpponentID != nil && *g.OpponentID != userID:
		sendErr = s.notifier.SendText(chatID, "This game is already full.")
	default:
		sendErr = s.notifier.SendJoinButton(chatID, "Join the game!", gameID)
	}
	if sendErr != nil {
		log.Printf("Failed to reply to join link for game %s: %v", gameID, sendErr)
	}
}
