package counter

import (
	"context"
	"sync"
	"time"
)

// sweepInterval is the number of mutations between expired-entry sweeps.
const sweepInterval = 4096

type memEntry struct {
	value       int64
	windowStart time.Time
	expiresAt   time.Time
}

// MemoryStore is the in-process counter store: a mutex-guarded map with
// windowed entries and lazy expiry. It is the fallback when the shared
// backend is unreachable or not configured, and must not be treated as
// authoritative across instances: each process counts independently.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	ops     int64
	closed  bool
	now     func() time.Time
}

var (
	_ Store        = (*MemoryStore)(nil)
	_ ModeReporter = (*MemoryStore)(nil)
	_ Pinger       = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memEntry),
		now:     time.Now,
	}
}

// Increment implements Store.
func (m *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}
	if window <= 0 {
		window = time.Second
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, time.Time{}, ErrClosed
	}

	now := m.now()
	m.maybeSweep(now)

	entry := m.entries[key]
	if entry == nil || !now.Before(entry.expiresAt) {
		entry = &memEntry{windowStart: now, expiresAt: now.Add(window)}
		m.entries[key] = entry
	}
	entry.value++
	return entry.value, entry.windowStart, nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	entry := m.entries[key]
	if entry == nil {
		return 0, ErrNotFound
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return 0, ErrNotFound
	}
	return entry.value, nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	now := m.now()
	m.maybeSweep(now)
	m.entries[key] = &memEntry{value: value, windowStart: now, expiresAt: now.Add(ttl)}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}

// Mode implements ModeReporter.
func (m *MemoryStore) Mode() string {
	return ModeLocal
}

// Ping implements Pinger. Always healthy for a local store.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// SetClock overrides the store's clock. Tests in other packages drive
// window expiry through this; production code never calls it.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// EntryCount returns the number of live map entries, expired or not.
func (m *MemoryStore) EntryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// maybeSweep drops expired entries every sweepInterval mutations so the map
// does not grow unbounded under many one-shot keys. Callers hold mu.
func (m *MemoryStore) maybeSweep(now time.Time) {
	m.ops++
	if m.ops%sweepInterval != 0 {
		return
	}
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}
