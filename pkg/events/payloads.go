package events

// Typed payloads for the frozen event set. Field names and types are part
// of the event standard; timestamps are nanoseconds since the Unix epoch.

// IntentSubmittedData announces an intent entering the pipeline.
type IntentSubmittedData struct {
	IntentHash  string `json:"intent_hash"`
	SignerID    string `json:"signer_id"`
	Instrument  string `json:"instrument"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Size        string `json:"size"`
	TimestampNs int64  `json:"timestamp_ns"`
}

// SimulationCompletedData records a simulation outcome. On success the
// canonical bytes and manifest hash are carried so auditors can recompute
// the intent hash independently.
type SimulationCompletedData struct {
	IntentHash     string `json:"intent_hash"`
	SimulationHash string `json:"simulation_hash"`
	Success        bool   `json:"success"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CanonicalJSON  string `json:"canonical_json,omitempty"`
	ManifestHash   string `json:"manifest_hash,omitempty"`
	Venue          string `json:"venue,omitempty"`
	EstimatedFill  string `json:"estimated_fill,omitempty"`
	EstimatedFees  string `json:"estimated_fees,omitempty"`
	TimestampNs    int64  `json:"timestamp_ns"`
}

// ReplayPreventedData records a rejected simulation attempt and why.
type ReplayPreventedData struct {
	IntentHash  string `json:"intent_hash"`
	Reason      string `json:"reason"`
	Nonce       string `json:"nonce,omitempty"`
	TimestampNs int64  `json:"timestamp_ns"`
}

// SimulationRequiredData records an execution attempt denied by the gate.
type SimulationRequiredData struct {
	IntentHash         string `json:"intent_hash"`
	Reason             string `json:"reason"`
	AttemptedExecution bool   `json:"attempted_execution"`
	TimestampNs        int64  `json:"timestamp_ns"`
}

// ExecutionLoggedData records an authorized execution.
type ExecutionLoggedData struct {
	IntentHash    string `json:"intent_hash"`
	ReceiptID     string `json:"receipt_id"`
	Venue         string `json:"venue"`
	EstimatedFill string `json:"estimated_fill"`
	EstimatedFees string `json:"estimated_fees"`
	TimestampNs   int64  `json:"timestamp_ns"`
}

// MetadataChecksumData records a metadata-preservation comparison at one
// pipeline stage. Checksums are audit-trail only, never authorization
// inputs.
type MetadataChecksumData struct {
	IntentHash  string `json:"intent_hash"`
	Stage       string `json:"stage"`
	Checksum    string `json:"checksum"`
	Reference   string `json:"reference,omitempty"`
	Match       bool   `json:"match"`
	TimestampNs int64  `json:"timestamp_ns"`
}

// SettlementInitiatedData marks the start of settlement for an intent.
type SettlementInitiatedData struct {
	IntentHash  string `json:"intent_hash"`
	TimestampNs int64  `json:"timestamp_ns"`
}

// SettlementCompletedData marks finalized settlement.
type SettlementCompletedData struct {
	IntentHash  string `json:"intent_hash"`
	TxHash      string `json:"tx_hash"`
	TimestampNs int64  `json:"timestamp_ns"`
}
