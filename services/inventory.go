package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InventoryLedger is the single source of truth for each tier's remaining
// quantity. Reserve and Release on the same tier are linearizable: the read
// of the current count and the write of the new one form one indivisible
// step. Tiers never contend with each other.
type InventoryLedger interface {
	// Reserve decrements the tier's remaining count by qty. On success the
	// units are consumed and no other caller can observe them.
	Reserve(ctx context.Context, tierID string, qty int, now time.Time) error

	// Release is the compensating increment used on rollback and
	// cancellation. Pushing remaining above total is ErrInvariantViolation.
	Release(ctx context.Context, tierID string, qty int) error

	// Seed installs or refreshes a tier's counters from durable storage.
	Seed(ctx context.Context, entry SeedEntry) error

	// SetClosed opens or closes sales for a tier (event unpublished etc.).
	SetClosed(ctx context.Context, tierID string, closed bool) error

	Remaining(ctx context.Context, tierID string) (int, error)
}

type SeedEntry struct {
	TierID    string
	Remaining int
	Total     int
	Closed    bool
	SalesEnd  time.Time // zero means no sales deadline
}

// MemoryLedger keeps per-tier counters in process memory. Reservation is a
// compare-and-swap loop on an atomic cell, so unrelated tiers never block
// each other and no lock is held across the caller's protocol. Used by the
// memory inventory backend and throughout the tests.
type MemoryLedger struct {
	mu    sync.RWMutex
	tiers map[string]*tierCell
}

type tierCell struct {
	remaining atomic.Int64
	total     int64
	closed    atomic.Bool
	salesEnd  time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{tiers: make(map[string]*tierCell)}
}

func (l *MemoryLedger) cell(tierID string) (*tierCell, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.tiers[tierID]
	return c, ok
}

func (l *MemoryLedger) Seed(_ context.Context, entry SeedEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := &tierCell{total: int64(entry.Total), salesEnd: entry.SalesEnd}
	c.remaining.Store(int64(entry.Remaining))
	c.closed.Store(entry.Closed)
	l.tiers[entry.TierID] = c
	return nil
}

func (l *MemoryLedger) Reserve(_ context.Context, tierID string, qty int, now time.Time) error {
	c, ok := l.cell(tierID)
	if !ok {
		return ErrTierNotFound
	}
	if c.closed.Load() {
		return ErrTierClosed
	}
	if !c.salesEnd.IsZero() && now.After(c.salesEnd) {
		return ErrTierClosed
	}

	for {
		cur := c.remaining.Load()
		if cur < int64(qty) {
			return ErrInsufficientInventory
		}
		if c.remaining.CompareAndSwap(cur, cur-int64(qty)) {
			return nil
		}
		// Lost the race to a concurrent caller; re-read and try again.
	}
}

func (l *MemoryLedger) Release(_ context.Context, tierID string, qty int) error {
	c, ok := l.cell(tierID)
	if !ok {
		return ErrTierNotFound
	}

	for {
		cur := c.remaining.Load()
		if cur+int64(qty) > c.total {
			return ErrInvariantViolation
		}
		if c.remaining.CompareAndSwap(cur, cur+int64(qty)) {
			return nil
		}
	}
}

func (l *MemoryLedger) SetClosed(_ context.Context, tierID string, closed bool) error {
	c, ok := l.cell(tierID)
	if !ok {
		return ErrTierNotFound
	}
	c.closed.Store(closed)
	return nil
}

func (l *MemoryLedger) Remaining(_ context.Context, tierID string) (int, error) {
	c, ok := l.cell(tierID)
	if !ok {
		return 0, ErrTierNotFound
	}
	return int(c.remaining.Load()), nil
}
