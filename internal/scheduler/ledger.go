package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultClaimTTL outlives a weekly occurrence so restarts inside the same
// minute never claim it twice.
const DefaultClaimTTL = 8 * 24 * time.Hour

// Ledger records which occurrences have already been started.
type Ledger interface {
	// Claim reports true when key was not claimed before.
	Claim(ctx context.Context, key string) (bool, error)
	Close() error
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &MemoryLedger{seen: map[string]time.Time{}, ttl: ttl, now: time.Now}
}

func (l *MemoryLedger) Claim(_ context.Context, key string) (bool, error) {
	k := strings.TrimSpace(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for seenKey, exp := range l.seen {
		if now.After(exp) {
			delete(l.seen, seenKey)
		}
	}
	if _, ok := l.seen[k]; ok {
		return false, nil
	}
	l.seen[k] = now.Add(l.ttl)
	return true, nil
}

func (l *MemoryLedger) Close() error { return nil }
