package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"

	"tictactoe-server/internal/game"
)

// gameFetcher is the slice of the store the dispatcher needs: broadcasts are
// always derived from the authoritative record, never from a cache.
type gameFetcher interface {
	FetchGame(ctx context.Context, id string) (*game.Game, error)
}

// Dispatcher pushes state changes to every socket registered for a game.
// Sends are fire-and-forget: a failed socket is dropped from the registry and
// the rest still get the message. There is no retry; the full state goes out
// again on the next mutation anyway.
type Dispatcher struct {
	store    gameFetcher
	registry *Registry
}

func NewDispatcher(store gameFetcher, registry *Registry) *Dispatcher {
	return &Dispatcher{store: store, registry: registry}
}

// GameState fetches the current authoritative game and pushes it to every
// live viewer socket. A game that no longer exists is a no-op, not an error.
func (d *Dispatcher) GameState(ctx context.Context, gameID string) {
	g, err := d.store.FetchGame(ctx, gameID)
	if err != nil {
		log.Printf("broadcast: failed to fetch game %s: %v", gameID, err)
		return
	}
	if g == nil {
		return
	}

	payload, err := json.Marshal(GameStateMessage{Type: "game", Game: g})
	if err != nil {
		log.Printf("broadcast: failed to marshal game %s: %v", gameID, err)
		return
	}

	d.send(ctx, gameID, ChannelViewer, payload)
}

// Chat relays one chat message to every live chat socket for the game.
func (d *Dispatcher) Chat(ctx context.Context, gameID string, msg ChatMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast: failed to marshal chat for game %s: %v", gameID, err)
		return
	}

	d.send(ctx, gameID, ChannelChat, payload)
}

func (d *Dispatcher) send(ctx context.Context, gameID string, kind ChannelKind, payload []byte) {
	d.registry.SweepDead(gameID)

	for _, c := range d.registry.live(gameID, kind) {
		if err := c.sock.Write(ctx, websocket.MessageText, payload); err != nil {
			// The handle is now known dead; drop it and keep going.
			log.Printf("broadcast: dropping %s socket for game %s: %v", kind, gameID, err)
			d.registry.Unregister(gameID, c)
		}
	}
}
