// Package gate implements the execution gate: the stateful component that
// decides whether a prior simulation still authorizes a later execution
// request.
//
// Per intent hash the gate moves through NoRecord -> Simulated ->
// (Consumed | Expired | Settled). It fails closed: execution is allowed
// only when every check passes against a record captured at simulation
// time. Every decision path, success or failure, emits an audit event.
package gate

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/canonical"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/events"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/intenthash"
	"github.com/bpolania/DeltaNEAR-sub001/pkg/metadata"
)

// Gate tracks simulation records and consumed nonces keyed by content hash.
// It exclusively owns both stores; no other component mutates them.
type Gate struct {
	cfg     Config
	nonces  NonceStore
	sims    SimulationStore
	emitter *events.Emitter
	tracker *metadata.Tracker
	logger  *slog.Logger
	clock   func() time.Time
	metrics *gateMetrics

	logMu sync.Mutex
	logs  map[string][]ExecutionLog
}

// Option configures a Gate at construction.
type Option func(*Gate)

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(g *Gate) { g.clock = clock }
}

// WithNonceStore replaces the in-memory nonce store.
func WithNonceStore(s NonceStore) Option {
	return func(g *Gate) { g.nonces = s }
}

// WithSimulationStore replaces the in-memory simulation store.
func WithSimulationStore(s SimulationStore) Option {
	return func(g *Gate) { g.sims = s }
}

// WithSink routes audit events to the given sink.
func WithSink(sink events.Sink) Option {
	return func(g *Gate) { g.emitter = events.NewEmitter(sink) }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithMeterProvider sets the OpenTelemetry meter provider for gate
// counters.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(g *Gate) {
		m, err := newGateMetrics(p)
		if err == nil {
			g.metrics = m
		}
	}
}

// New constructs a gate for one frozen manifest version.
func New(cfg Config, opts ...Option) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Gate{
		cfg:     cfg,
		nonces:  NewMemoryNonceStore(),
		sims:    NewMemorySimulationStore(),
		emitter: events.NewEmitter(nil),
		tracker: metadata.NewTracker(),
		logger:  slog.Default(),
		clock:   time.Now,
		logs:    make(map[string][]ExecutionLog),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		m, err := newGateMetrics(nil)
		if err != nil {
			return nil, err
		}
		g.metrics = m
	}
	g.emitter.WithClock(g.clock)
	return g, nil
}

// StoreSimulation canonicalizes the raw intent, runs the replay checks, and
// records the simulation. The nonce is recorded as consumed the moment the
// simulation is accepted, regardless of whether execution ever follows.
func (g *Gate) StoreSimulation(ctx context.Context, rawIntent []byte, result SimulationResult, meta Metadata) (*SimulationRecord, error) {
	now := g.clock()

	it, err := canonical.Canonicalize(rawIntent)
	if err != nil {
		g.metrics.recordSimulation(ctx, "invalid")
		g.emitEvent(events.SimulationCompleted, events.SimulationCompletedData{
			Success:      false,
			ErrorMessage: err.Error(),
			TimestampNs:  now.UnixNano(),
		})
		return nil, err
	}
	canonicalJSON, err := it.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	contentHash := intenthash.ContentHash(canonicalJSON)
	executionHash := intenthash.ExecutionHash(canonicalJSON, g.cfg.Manifest.Hash())

	deadline, err := canonical.ParseTimestamp(it.Deadline)
	if err != nil {
		return nil, err
	}
	if !now.Before(deadline) {
		return nil, g.rejectReplay(ctx, contentHash, it.Nonce, ReasonDeadlineExpired,
			"deadline "+it.Deadline+" already passed")
	}
	if deadline.After(now.Add(g.cfg.MaxDeadlineHorizon)) {
		return nil, g.rejectReplay(ctx, contentHash, it.Nonce, ReasonClockSkew,
			"deadline "+it.Deadline+" beyond horizon "+g.cfg.MaxDeadlineHorizon.String())
	}
	if !meta.DeclaredAt.IsZero() {
		if d := now.Sub(meta.DeclaredAt); d > g.cfg.MaxClockSkew || d < -g.cfg.MaxClockSkew {
			return nil, g.rejectReplay(ctx, contentHash, it.Nonce, ReasonClockSkew,
				"declared timestamp skews "+d.String()+" from wall clock")
		}
	}

	// Nonce consumption is the last check: rejection paths above must not
	// burn a nonce, and the atomic check-and-insert means exactly one of
	// any concurrent simulations for the same nonce wins.
	ok, err := g.nonces.Consume(ctx, it.Nonce, g.cfg.NonceRetention)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, g.rejectReplay(ctx, contentHash, it.Nonce, ReasonNonceReused, "")
	}

	simulationHash, err := metadata.Checksum(map[string]any{
		"intent_hash":    contentHash,
		"venue":          result.Venue,
		"estimated_fill": result.EstimatedFill,
		"estimated_fees": result.EstimatedFees,
		"timestamp":      now.UnixNano(),
	})
	if err != nil {
		return nil, err
	}

	rec := &SimulationRecord{
		ID:                uuid.New().String(),
		IntentHash:        contentHash,
		ExecutionHash:     executionHash,
		ManifestHash:      g.cfg.Manifest.Hash(),
		SimulationHash:    simulationHash,
		CanonicalJSON:     canonicalJSON,
		CreatedAt:         now,
		Venue:             result.Venue,
		EstimatedFill:     result.EstimatedFill,
		EstimatedFees:     result.EstimatedFees,
		ExclusivityWindow: time.Duration(result.ExclusivityWindowMs) * time.Millisecond,
		Nonce:             it.Nonce,
		Deadline:          deadline,
	}
	if err := g.sims.Put(ctx, rec); err != nil {
		return nil, err
	}

	g.metrics.recordSimulation(ctx, "accepted")
	g.emitEvent(events.IntentSubmitted, events.IntentSubmittedData{
		IntentHash:  contentHash,
		SignerID:    it.SignerID,
		Instrument:  it.Derivatives.Instrument,
		Symbol:      it.Derivatives.Symbol,
		Side:        it.Derivatives.Side,
		Size:        it.Derivatives.Size,
		TimestampNs: now.UnixNano(),
	})
	// The canonical bytes and manifest hash travel with the event so
	// downstream auditors can recompute both hashes independently.
	g.emitEvent(events.SimulationCompleted, events.SimulationCompletedData{
		IntentHash:     contentHash,
		SimulationHash: simulationHash,
		Success:        true,
		CanonicalJSON:  string(canonicalJSON),
		ManifestHash:   g.cfg.Manifest.Hash(),
		Venue:          result.Venue,
		EstimatedFill:  result.EstimatedFill,
		EstimatedFees:  result.EstimatedFees,
		TimestampNs:    now.UnixNano(),
	})
	g.recordChecksum(contentHash, meta)

	g.logger.Debug("simulation stored",
		"intent_hash", contentHash, "venue", result.Venue, "nonce", it.Nonce)
	return cloneRecord(rec), nil
}

// CheckExecutionAllowed recomputes the content hash from the freshly
// supplied intent and decides whether the stored simulation still
// authorizes execution. The check is read-only until the decision is
// reached and never consumes gate state: a simulation record authorizes
// executions idempotently until it expires or is marked settled.
func (g *Gate) CheckExecutionAllowed(ctx context.Context, rawIntent []byte, meta Metadata) (Decision, error) {
	now := g.clock()

	it, err := canonical.Canonicalize(rawIntent)
	if err != nil {
		return Decision{}, err
	}
	canonicalJSON, err := it.CanonicalJSON()
	if err != nil {
		return Decision{}, err
	}
	contentHash := intenthash.ContentHash(canonicalJSON)

	rec, err := g.sims.Get(ctx, contentHash)
	if err != nil {
		return Decision{}, err
	}
	if rec == nil {
		return g.deny(ctx, contentHash, ReasonNoPriorSimulation), nil
	}
	if age := now.Sub(rec.CreatedAt); age > g.cfg.SimulationValidity {
		return g.deny(ctx, contentHash, ReasonSimulationExpired+
			": simulation age "+age.String()+" exceeds validity "+g.cfg.SimulationValidity.String()), nil
	}
	if rec.ManifestHash != g.cfg.Manifest.Hash() {
		return g.deny(ctx, contentHash, ReasonManifestMismatch), nil
	}
	if !bytes.Equal(rec.CanonicalJSON, canonicalJSON) {
		return g.deny(ctx, contentHash, ReasonIntentModified), nil
	}
	if rec.Settled {
		return g.deny(ctx, contentHash, ReasonAlreadySettled), nil
	}

	g.recordChecksum(contentHash, meta)

	receiptID := uuid.New().String()
	g.appendExecutionLog(ExecutionLog{
		IntentHash:  contentHash,
		ReceiptID:   receiptID,
		Venue:       rec.Venue,
		FillPrice:   rec.EstimatedFill,
		FeesPaid:    rec.EstimatedFees,
		SimulatedAt: rec.CreatedAt,
		AllowedAt:   now,
	})
	g.metrics.recordDecision(ctx, true, "")
	g.emitEvent(events.ExecutionLogged, events.ExecutionLoggedData{
		IntentHash:    contentHash,
		ReceiptID:     receiptID,
		Venue:         rec.Venue,
		EstimatedFill: rec.EstimatedFill,
		EstimatedFees: rec.EstimatedFees,
		TimestampNs:   now.UnixNano(),
	})
	g.logger.Debug("execution allowed", "intent_hash", contentHash, "receipt_id", receiptID)
	return Decision{Allowed: true, ReceiptID: receiptID}, nil
}

// InitiateSettlement emits the settlement_initiated audit event for an
// intent that passed the gate.
func (g *Gate) InitiateSettlement(ctx context.Context, intentHash string) error {
	rec, err := g.sims.Get(ctx, intentHash)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrRecordNotFound
	}
	g.emitEvent(events.SettlementInitiated, events.SettlementInitiatedData{
		IntentHash:  intentHash,
		TimestampNs: g.clock().UnixNano(),
	})
	return nil
}

// MarkSettled flips the record to its terminal settled state so it can
// never authorize another execution, and emits settlement_completed. This
// is the explicit double-settlement guard paired with idempotent
// execution checks.
func (g *Gate) MarkSettled(ctx context.Context, intentHash, txHash string) error {
	now := g.clock()
	if err := g.sims.MarkSettled(ctx, intentHash, now); err != nil {
		return err
	}
	g.emitEvent(events.SettlementCompleted, events.SettlementCompletedData{
		IntentHash:  intentHash,
		TxHash:      txHash,
		TimestampNs: now.UnixNano(),
	})
	return nil
}

// StartGC runs periodic cleanup of expired simulation and nonce records
// until ctx is cancelled. Cleanup is decoupled from request handling and
// safe to run concurrently with lookups: expiry is monotonic.
func (g *Gate) StartGC(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := g.clock()
				purged, err := g.sims.PurgeExpired(ctx, now.Add(-g.cfg.NonceRetention))
				if err != nil {
					g.logger.Warn("simulation GC failed", "error", err)
				}
				// Release per-hash state held outside the store, so a later
				// re-simulation starts from a fresh checksum reference.
				for _, hash := range purged {
					g.tracker.Forget(hash)
				}
				nonces, err := g.nonces.PurgeExpired(ctx, now)
				if err != nil {
					g.logger.Warn("nonce GC failed", "error", err)
				}
				g.pruneExecutionLogs(now.Add(-g.cfg.NonceRetention))
				if len(purged) > 0 || nonces > 0 {
					g.logger.Debug("gate GC", "simulations_purged", len(purged), "nonces_purged", nonces)
				}
			}
		}
	}()
}

func (g *Gate) appendExecutionLog(log ExecutionLog) {
	g.logMu.Lock()
	defer g.logMu.Unlock()
	g.logs[log.IntentHash] = append(g.logs[log.IntentHash], log)
}

// ExecutionLogs returns the audit log of every execution authorized for an
// intent, oldest first.
func (g *Gate) ExecutionLogs(intentHash string) []ExecutionLog {
	g.logMu.Lock()
	defer g.logMu.Unlock()
	out := make([]ExecutionLog, len(g.logs[intentHash]))
	copy(out, g.logs[intentHash])
	return out
}

// pruneExecutionLogs drops per-intent logs whose last authorization is
// older than the cutoff, keeping the log book bounded by the retention
// window.
func (g *Gate) pruneExecutionLogs(cutoff time.Time) {
	g.logMu.Lock()
	defer g.logMu.Unlock()
	for hash, entries := range g.logs {
		if len(entries) > 0 && entries[len(entries)-1].AllowedAt.Before(cutoff) {
			delete(g.logs, hash)
		}
	}
}

func (g *Gate) rejectReplay(ctx context.Context, intentHash, nonce, reason, detail string) error {
	g.metrics.recordSimulation(ctx, "rejected")
	g.metrics.recordReplayPrevented(ctx, reason)
	g.emitEvent(events.ReplayPrevented, events.ReplayPreventedData{
		IntentHash:  intentHash,
		Reason:      reason,
		Nonce:       nonce,
		TimestampNs: g.clock().UnixNano(),
	})
	return &ReplayPreventedError{Reason: reason, Detail: detail}
}

func (g *Gate) deny(ctx context.Context, intentHash, reason string) Decision {
	g.metrics.recordDecision(ctx, false, reason)
	g.emitEvent(events.SimulationRequired, events.SimulationRequiredData{
		IntentHash:         intentHash,
		Reason:             reason,
		AttemptedExecution: true,
		TimestampNs:        g.clock().UnixNano(),
	})
	g.logger.Debug("execution denied", "intent_hash", intentHash, "reason", reason)
	return Decision{Allowed: false, Reason: reason}
}

// recordChecksum registers a stage checksum when the caller supplied one,
// and emits the comparison. Checksums never influence the decision above.
func (g *Gate) recordChecksum(intentHash string, meta Metadata) {
	if meta.Checksum == "" {
		return
	}
	stage := meta.Stage
	if stage == "" {
		stage = metadata.StagePreDistribution
	}
	cmp := g.tracker.Record(intentHash, stage, meta.Checksum)
	g.emitEvent(events.MetadataChecksum, events.MetadataChecksumData{
		IntentHash:  intentHash,
		Stage:       cmp.Stage,
		Checksum:    cmp.Checksum,
		Reference:   cmp.Reference,
		Match:       cmp.Match,
		TimestampNs: g.clock().UnixNano(),
	})
}

func (g *Gate) emitEvent(name string, data any) {
	if err := g.emitter.Emit(name, data); err != nil {
		g.logger.Warn("audit event emission failed", "event", name, "error", err)
	}
}
