package gate

import (
	"errors"
	"fmt"
	"time"

	"github.com/bpolania/DeltaNEAR-sub001/pkg/manifest"
)

// Replay-prevention reasons rejected at simulation time.
const (
	ReasonNonceReused     = "nonce_reused"
	ReasonDeadlineExpired = "deadline_expired"
	ReasonClockSkew       = "clock_skew_exceeded"
)

// Execution-denial reasons returned by CheckExecutionAllowed.
const (
	ReasonNoPriorSimulation = "no_prior_simulation"
	ReasonSimulationExpired = "simulation_expired"
	ReasonManifestMismatch  = "manifest_version_mismatch"
	ReasonIntentModified    = "intent_modified_after_simulation"
	ReasonAlreadySettled    = "already_settled"
)

// ErrReplayPrevented wraps every simulation-time replay rejection.
var ErrReplayPrevented = errors.New("replay prevented")

// ReplayPreventedError carries the specific replay-prevention reason.
type ReplayPreventedError struct {
	Reason string
	Detail string
}

func (e *ReplayPreventedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("replay prevented: %s (%s)", e.Reason, e.Detail)
	}
	return "replay prevented: " + e.Reason
}

func (e *ReplayPreventedError) Unwrap() error { return ErrReplayPrevented }

// SimulationResult is the outcome the solver/venue layer reports for a
// dry-run pricing evaluation.
type SimulationResult struct {
	Venue               string `json:"venue"`
	EstimatedFill       string `json:"estimated_fill"`
	EstimatedFees       string `json:"estimated_fees"`
	ExclusivityWindowMs int64  `json:"exclusivity_window_ms,omitempty"`
}

// Metadata accompanies simulation and execution requests from the
// distribution layer. The checksum feeds the audit trail only.
type Metadata struct {
	DeclaredAt time.Time // wall-clock time the caller claims for the request
	Stage      string    // pipeline stage for checksum tracking
	Checksum   string    // opaque metadata checksum, optional
}

// SimulationRecord is created once per accepted simulation and is read-only
// until it expires or is settled.
type SimulationRecord struct {
	ID                string        `json:"id"`
	IntentHash        string        `json:"intent_hash"`
	ExecutionHash     string        `json:"execution_hash"`
	ManifestHash      string        `json:"manifest_hash"`
	SimulationHash    string        `json:"simulation_hash"`
	CanonicalJSON     []byte        `json:"canonical_json"`
	CreatedAt         time.Time     `json:"created_at"`
	Venue             string        `json:"venue"`
	EstimatedFill     string        `json:"estimated_fill"`
	EstimatedFees     string        `json:"estimated_fees"`
	ExclusivityWindow time.Duration `json:"exclusivity_window"`
	Nonce             string        `json:"nonce"`
	Deadline          time.Time     `json:"deadline"`
	Settled           bool          `json:"settled"`
	SettledAt         time.Time     `json:"settled_at,omitempty"`
}

// ExecutionLog records an authorized execution decision for later audit.
type ExecutionLog struct {
	IntentHash  string    `json:"intent_hash"`
	ReceiptID   string    `json:"receipt_id"`
	Venue       string    `json:"venue"`
	FillPrice   string    `json:"fill_price"`
	FeesPaid    string    `json:"fees_paid"`
	SimulatedAt time.Time `json:"simulated_at"`
	AllowedAt   time.Time `json:"allowed_at"`
}

// Decision is the gate's answer to an execution request.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	ReceiptID string `json:"receipt_id,omitempty"`
}

// Config is the explicit gate configuration. There is no ambient or global
// state: a gate is constructed from exactly these values, once per manifest
// version.
type Config struct {
	MaxClockSkew       time.Duration
	SimulationValidity time.Duration
	NonceRetention     time.Duration
	MaxDeadlineHorizon time.Duration
	Manifest           *manifest.Manifest
}

// Validate enforces the configuration invariants. Nonce retention must
// cover the deadline horizon: otherwise a nonce record could age out while
// its intent's deadline is still live, reopening the replay window.
func (c Config) Validate() error {
	if c.Manifest == nil {
		return errors.New("gate config: manifest is required")
	}
	if c.MaxClockSkew <= 0 || c.SimulationValidity <= 0 || c.NonceRetention <= 0 || c.MaxDeadlineHorizon <= 0 {
		return errors.New("gate config: all windows must be positive")
	}
	if c.NonceRetention < c.MaxDeadlineHorizon {
		return fmt.Errorf("gate config: nonce retention %s shorter than deadline horizon %s",
			c.NonceRetention, c.MaxDeadlineHorizon)
	}
	return nil
}
