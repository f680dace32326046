package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRecordNotFound is returned when mutating a simulation record that does
// not exist.
var ErrRecordNotFound = errors.New("simulation record not found")

// RedisNonceStore backs nonce tracking with Redis. SET NX gives the
// conditional-write semantics the replay check needs: across every process
// sharing the instance, exactly one Consume per nonce wins.
type RedisNonceStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisNonceStore wraps an existing client. prefix namespaces keys per
// deployment.
func NewRedisNonceStore(client redis.Cmdable, prefix string) *RedisNonceStore {
	if prefix == "" {
		prefix = "deltanear"
	}
	return &RedisNonceStore{client: client, prefix: prefix}
}

func (s *RedisNonceStore) nonceKey(nonce string) string {
	return fmt.Sprintf("%s:nonce:%s", s.prefix, nonce)
}

func (s *RedisNonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.nonceKey(nonce), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis nonce consume: %w", err)
	}
	return ok, nil
}

// PurgeExpired is a no-op: Redis TTLs expire nonce keys server-side.
func (s *RedisNonceStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// RedisSimulationStore keeps simulation records as JSON values expiring at
// the retention window.
type RedisSimulationStore struct {
	client    redis.Cmdable
	prefix    string
	retention time.Duration
}

// NewRedisSimulationStore wraps an existing client. Records expire after
// retention regardless of settlement state.
func NewRedisSimulationStore(client redis.Cmdable, prefix string, retention time.Duration) *RedisSimulationStore {
	if prefix == "" {
		prefix = "deltanear"
	}
	return &RedisSimulationStore{client: client, prefix: prefix, retention: retention}
}

func (s *RedisSimulationStore) simKey(intentHash string) string {
	return fmt.Sprintf("%s:sim:%s", s.prefix, intentHash)
}

func (s *RedisSimulationStore) Put(ctx context.Context, rec *SimulationRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis simulation encode: %w", err)
	}
	if err := s.client.Set(ctx, s.simKey(rec.IntentHash), raw, s.retention).Err(); err != nil {
		return fmt.Errorf("redis simulation put: %w", err)
	}
	return nil
}

func (s *RedisSimulationStore) Get(ctx context.Context, intentHash string) (*SimulationRecord, error) {
	raw, err := s.client.Get(ctx, s.simKey(intentHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis simulation get: %w", err)
	}
	var rec SimulationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("redis simulation decode: %w", err)
	}
	return &rec, nil
}

func (s *RedisSimulationStore) MarkSettled(ctx context.Context, intentHash string, at time.Time) error {
	rec, err := s.Get(ctx, intentHash)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrRecordNotFound
	}
	rec.Settled = true
	rec.SettledAt = at
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis simulation encode: %w", err)
	}
	if err := s.client.Set(ctx, s.simKey(intentHash), raw, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("redis simulation settle: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: Redis TTLs expire simulation keys server-side.
func (s *RedisSimulationStore) PurgeExpired(context.Context, time.Time) ([]string, error) {
	return nil, nil
}
