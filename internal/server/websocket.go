package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// chatTextLimit caps relayed chat messages.
const chatTextLimit = 100

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
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

	kind := ChannelViewer
	if r.URL.Query().Get("channel") == "chat" {
		kind = ChannelChat
	}

	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: restrict to the mini-app origin
	})
	if err != nil {
		log.Printf("Failed to open websocket for game %s: %v", gameID, err)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	connectionID := uuid.New().String()
	log.Printf("New %s connection %s for game %s", kind, connectionID, gameID)

	// The request context's Done doubles as the handle's liveness signal: it
	// closes when the transport drops even if this defer never runs.
	conn := s.registry.Register(gameID, kind, socket, ctx.Done())
	defer func() {
		s.registry.Unregister(gameID, conn)
		log.Printf("Connection %s closed for game %s", connectionID, gameID)
	}()

	if kind == ChannelChat {
		s.chatLoop(ctx, socket, gameID, connectionID)
		return
	}

	// Viewer: one full snapshot on connect, then server push only.
	payload, err := json.Marshal(GameStateMessage{Type: "game", Game: g})
	if err != nil {
		log.Printf("Failed to marshal snapshot for game %s: %v", gameID, err)
		return
	}
	if err := socket.Write(ctx, websocket.MessageText, payload); err != nil {
		log.Printf("Failed to send snapshot to %s: %v", connectionID, err)
		return
	}

	s.viewerLoop(ctx, socket, connectionID)
}

// viewerLoop drains the viewer channel. Client traffic on it is keep-alive
// only; the loop exists to notice the close.
func (s *Server) viewerLoop(ctx context.Context, socket *websocket.Conn, connectionID string) {
	for {
		if _, _, err := socket.Read(ctx); err != nil {
			return
		}
	}
}

// chatLoop authenticates, persists, and relays inbound chat messages. A bad
// message costs only an error frame to the sender; the loop keeps running.
func (s *Server) chatLoop(ctx context.Context, socket *websocket.Conn, gameID, connectionID string) {
	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var req ChatSendRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.sendSocketError(ctx, socket, "INVALID_PAYLOAD", "Invalid chat payload")
			continue
		}

		who, err := s.verify(req.InitData)
		if err != nil {
			s.sendSocketError(ctx, socket, errorCode(err), errorText(err))
			continue
		}

		text := strings.TrimSpace(req.Text)
		if text == "" {
			continue
		}
		if runes := []rune(text); len(runes) > chatTextLimit {
			text = string(runes[:chatTextLimit])
		}

		now := s.now()
		// History is best effort; a store hiccup must not stop the relay.
		if err := s.store.InsertMessage(ctx, gameID, who.ID, who.DisplayName(), text, now); err != nil {
			log.Printf("Failed to persist chat message for game %s: %v", gameID, err)
		}

		s.dispatcher.Chat(ctx, gameID, ChatMessage{
			Type:      "chat",
			Username:  who.DisplayName(),
			Text:      text,
			Timestamp: now.Unix(),
		})
	}
}

func (s *Server) sendSocketError(ctx context.Context, socket *websocket.Conn, code, message string) {
	payload, err := json.Marshal(map[string]any{
		"type":    "error",
		"code":    code,
		"message": message,
	})
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := socket.Write(writeCtx, websocket.MessageText, payload); err != nil {
		log.Printf("Failed to send error frame: %v", err)
	}
}
