package server

import (
	"context"
	"strconv"
	"time"
)

// statsStore is the slice of the store the ledger writes through.
type statsStore interface {
	IncrementStat(ctx context.Context, playerID int64, username string, field StatField) error
}

// StatsLedger increments per-player win/loss/draw counters. The store's
// UPSERT is already atomic per row; the per-player mutex additionally orders
// increments issued for the same player from concurrent game finishes.
type StatsLedger struct {
	store statsStore
	locks *keyedLocks
}

func NewStatsLedger(store statsStore) *StatsLedger {
	return &StatsLedger{store: store, locks: newKeyedLocks()}
}

// statsTimeout bounds ledger writes so a slow store cannot hold up the move
// response or broadcast indefinitely.
const statsTimeout = 5 * time.Second

// RecordOutcome bumps one counter on the player's record, creating the
// record on first contact.
func (l *StatsLedger) RecordOutcome(ctx context.Context, playerID int64, username string, field StatField) error {
	unlock := l.locks.lock(strconv.FormatInt(playerID, 10))
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	return l.store.IncrementStat(ctx, playerID, username, field)
}
