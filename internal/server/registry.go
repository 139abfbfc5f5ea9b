package server

import (
	"context"
	"sync"

	"github.com/coder/websocket"
)

// ChannelKind separates the two socket populations kept per game: viewers
// receive full board snapshots, chat sockets receive relayed messages.
type ChannelKind int

const (
	ChannelViewer ChannelKind = iota
	ChannelChat
)

func (k ChannelKind) String() string {
	if k == ChannelChat {
		return "chat"
	}
	return "viewer"
}

// gameSocket is the write surface the registry needs from a connection.
// *websocket.Conn satisfies it; tests substitute fakes.
type gameSocket interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Conn is the registry's handle to one open socket. The registry never owns
// the socket's lifetime: done is closed by the connection's request context
// when the transport goes away, and a handle whose done channel is closed is
// dead regardless of whether Unregister ever ran.
type Conn struct {
	sock gameSocket
	kind ChannelKind
	done <-chan struct{}
}

func (c *Conn) dead() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Registry maps game ids to the sockets currently watching them. It is
// process-wide state: built at startup, mutated from every connect,
// disconnect, and broadcast path, and discarded at process exit. One lock
// serializes all mutations; per-game striping is not worth it at this load.
type Registry struct {
	mu      sync.RWMutex
	viewers map[string]map[*Conn]struct{}
	chats   map[string]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		viewers: make(map[string]map[*Conn]struct{}),
		chats:   make(map[string]map[*Conn]struct{}),
	}
}

// Register adds a socket under gameID and returns the handle to pass back to
// Unregister. The first insert for a game id creates its slot.
func (r *Registry) Register(gameID string, kind ChannelKind, sock gameSocket, done <-chan struct{}) *Conn {
	c := &Conn{sock: sock, kind: kind, done: done}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.bucket(kind)
	set := bucket[gameID]
	if set == nil {
		set = make(map[*Conn]struct{})
		bucket[gameID] = set
	}
	set[c] = struct{}{}
	return c
}

// Unregister removes one handle. When the last handle for a game id goes,
// the map slot goes with it.
func (r *Registry) Unregister(gameID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(gameID, c)
}

// SweepDead drops every handle for gameID whose socket has already closed.
// Broadcasts call this first because explicit unregister can be skipped on
// abrupt network loss.
func (r *Registry) SweepDead(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, bucket := range []map[string]map[*Conn]struct{}{r.viewers, r.chats} {
		for c := range bucket[gameID] {
			if c.dead() {
				r.remove(gameID, c)
			}
		}
	}
}

// live snapshots the current handles for one game and channel, so senders
// never hold the registry lock across socket writes.
func (r *Registry) live(gameID string, kind ChannelKind) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.bucket(kind)[gameID]
	conns := make([]*Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Count reports how many sockets are registered for a game on one channel.
func (r *Registry) Count(gameID string, kind ChannelKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bucket(kind)[gameID])
}

// CloseAll closes every registered socket. Used on shutdown; the read loops
// observe the close and unregister themselves.
func (r *Registry) CloseAll(code websocket.StatusCode, reason string) {
	r.mu.RLock()
	var conns []*Conn
	for _, bucket := range []map[string]map[*Conn]struct{}{r.viewers, r.chats} {
		for _, set := range bucket {
			for c := range set {
				conns = append(conns, c)
			}
		}
	}
	r.mu.RUnlock()

	for _, c := range conns {
		_ = c.sock.Close(code, reason)
	}
}

func (r *Registry) bucket(kind ChannelKind) map[string]map[*Conn]struct{} {
	if kind == ChannelChat {
		return r.chats
	}
	return r.viewers
}

// remove expects r.mu held for writing.
func (r *Registry) remove(gameID string, c *Conn) {
	bucket := r.bucket(c.kind)
	set := bucket[gameID]
	if set == nil {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(bucket, gameID)
	}
}
