package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"tictactoe-server/internal/game"
)

func TestBroadcastGameState_ReachesAllViewers(t *testing.T) {
	store := newFakeStore()
	seedGame(store, "game1234")

	registry := NewRegistry()
	d := NewDispatcher(store, registry)

	done, _ := liveDone()
	v1 := &fakeSocket{}
	v2 := &fakeSocket{}
	chat := &fakeSocket{}
	registry.Register("game1234", ChannelViewer, v1, done)
	registry.Register("game1234", ChannelViewer, v2, done)
	registry.Register("game1234", ChannelChat, chat, done)

	d.GameState(context.Background(), "game1234")

	assert.Equal(t, 1, v1.frameCount())
	assert.Equal(t, 1, v2.frameCount())
	assert.Equal(t, 0, chat.frameCount(), "state goes to the viewer channel only")

	var msg GameStateMessage
	assert.NoError(t, json.Unmarshal(v1.lastFrame(), &msg))
	assert.Equal(t, "game", msg.Type)
	assert.Equal(t, "game1234", msg.Game.ID)
}

func TestBroadcastGameState_AbsentGameIsNoop(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry()
	d := NewDispatcher(store, registry)

	done, _ := liveDone()
	v := &fakeSocket{}
	registry.Register("missing1", ChannelViewer, v, done)

	d.GameState(context.Background(), "missing1")

	assert.Equal(t, 0, v.frameCount())
}

func TestBroadcastGameState_Idempotent(t *testing.T) {
	store := newFakeStore()
	seedGame(store, "game1234")

	registry := NewRegistry()
	d := NewDispatcher(store, registry)

	done, _ := liveDone()
	v := &fakeSocket{}
	registry.Register("game1234", ChannelViewer, v, done)

	// No mutation between the two calls: both payloads must be identical.
	d.GameState(context.Background(), "game1234")
	d.GameState(context.Background(), "game1234")

	assert.Equal(t, 2, v.frameCount())
	assert.Equal(t, v.frames[0], v.frames[1])
}

func TestBroadcastGameState_FailedSocketIsIsolatedAndDropped(t *testing.T) {
	store := newFakeStore()
	seedGame(store, "game1234")

	registry := NewRegistry()
	d := NewDispatcher(store, registry)

	done, _ := liveDone()
	bad := &fakeSocket{failWrite: true}
	good := &fakeSocket{}
	registry.Register("game1234", ChannelViewer, bad, done)
	registry.Register("game1234", ChannelViewer, good, done)

	d.GameState(context.Background(), "game1234")

	// The healthy socket still got the message.
	assert.Equal(t, 1, good.frameCount())

	// The failed handle is now known dead and gone from the registry.
	assert.Equal(t, 1, registry.Count("game1234", ChannelViewer))

	// Next broadcast only reaches the survivor.
	d.GameState(context.Background(), "game1234")
	assert.Equal(t, 2, good.frameCount())
	assert.Equal(t, 0, bad.frameCount())
}

func TestBroadcastGameState_SweepsDeadHandlesFirst(t *testing.T) {
	store := newFakeStore()
	seedGame(store, "game1234")

	registry := NewRegistry()
	d := NewDispatcher(store, registry)

	deadDone, kill := liveDone()
	dead := &fakeSocket{}
	registry.Register("game1234", ChannelViewer, dead, deadDone)
	kill()

	d.GameState(context.Background(), "game1234")

	// The dead handle was reclaimed without an explicit unregister, and
	// nothing was written to it.
	assert.Equal(t, 0, registry.Count("game1234", ChannelViewer))
	assert.Equal(t, 0, dead.frameCount())
}

func TestBroadcastChat_UsesChatChannel(t *testing.T) {
	store := newFakeStore()
	seedGame(store, "game1234")

	registry := NewRegistry()
	d := NewDispatcher(store, registry)

	done, _ := liveDone()
	viewer := &fakeSocket{}
	chat := &fakeSocket{}
	registry.Register("game1234", ChannelViewer, viewer, done)
	registry.Register("game1234", ChannelChat, chat, done)

	d.Chat(context.Background(), "game1234", ChatMessage{
		Type:      "chat",
		Username:  "Alice",
		Text:      "good luck!",
		Timestamp: 1717243200,
	})

	assert.Equal(t, 0, viewer.frameCount())
	assert.Equal(t, 1, chat.frameCount())

	var msg ChatMessage
	assert.NoError(t, json.Unmarshal(chat.lastFrame(), &msg))
	assert.Equal(t, "chat", msg.Type)
	assert.Equal(t, "good luck!", msg.Text)
}

func TestBroadcastGameState_PayloadCarriesFullRecord(t *testing.T) {
	store := newFakeStore()
	g := seedGame(store, "game1234")
	g.Board[0][0] = game.Cell("X")
	turn := bob.ID
	g.CurrentTurn = &turn

	registry := NewRegistry()
	d := NewDispatcher(store, registry)

	done, _ := liveDone()
	v := &fakeSocket{}
	registry.Register("game1234", ChannelViewer, v, done)

	d.GameState(context.Background(), "game1234")

	var msg GameStateMessage
	assert.NoError(t, json.Unmarshal(v.lastFrame(), &msg))
	assert.Equal(t, game.Cell("X"), msg.Game.Board[0][0])
	if assert.NotNil(t, msg.Game.CurrentTurn) {
		assert.Equal(t, bob.ID, *msg.Game.CurrentTurn)
	}
	assert.True(t, msg.Game.Started)
}
