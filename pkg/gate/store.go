package gate

import (
	"context"
	"sync"
	"time"
)

// NonceStore records consumed intent nonces. Consume is an atomic
// check-and-insert: for concurrent calls with the same nonce exactly one
// returns true. A multi-process deployment backs this with a key-value
// store offering conditional writes; the abstraction, not the backing
// store, is the contract.
type NonceStore interface {
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// SimulationStore owns SimulationRecord storage. Only the gate mutates it.
type SimulationStore interface {
	Put(ctx context.Context, rec *SimulationRecord) error
	// Get returns (nil, nil) when no record exists.
	Get(ctx context.Context, intentHash string) (*SimulationRecord, error)
	MarkSettled(ctx context.Context, intentHash string, at time.Time) error
	// PurgeExpired drops records created before cutoff and returns the
	// intent hashes it dropped, so the gate can release per-hash state held
	// outside the store. Backends that expire records server-side may
	// return nil.
	PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error)
}

// MemoryNonceStore is the single-process NonceStore.
type MemoryNonceStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	clock   func() time.Time
}

// NewMemoryNonceStore creates an empty store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{expires: make(map[string]time.Time), clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *MemoryNonceStore) WithClock(clock func() time.Time) *MemoryNonceStore {
	s.clock = clock
	return s
}

// Consume checks and inserts under one lock; there is no window between the
// replay check and the insert.
func (s *MemoryNonceStore) Consume(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	if exp, ok := s.expires[nonce]; ok && now.Before(exp) {
		return false, nil
	}
	s.expires[nonce] = now.Add(ttl)
	return true, nil
}

func (s *MemoryNonceStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for nonce, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, nonce)
			n++
		}
	}
	return n, nil
}

// MemorySimulationStore is the single-process SimulationStore.
type MemorySimulationStore struct {
	mu      sync.Mutex
	records map[string]*SimulationRecord
}

// NewMemorySimulationStore creates an empty store.
func NewMemorySimulationStore() *MemorySimulationStore {
	return &MemorySimulationStore{records: make(map[string]*SimulationRecord)}
}

func (s *MemorySimulationStore) Put(_ context.Context, rec *SimulationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.IntentHash] = cloneRecord(rec)
	return nil
}

func (s *MemorySimulationStore) Get(_ context.Context, intentHash string) (*SimulationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[intentHash]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (s *MemorySimulationStore) MarkSettled(_ context.Context, intentHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[intentHash]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Settled = true
	rec.SettledAt = at
	return nil
}

func (s *MemorySimulationStore) PurgeExpired(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged []string
	for hash, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, hash)
			purged = append(purged, hash)
		}
	}
	return purged, nil
}

// cloneRecord keeps callers from aliasing store-owned state.
func cloneRecord(rec *SimulationRecord) *SimulationRecord {
	cp := *rec
	cp.CanonicalJSON = append([]byte(nil), rec.CanonicalJSON...)
	return &cp
}
