package domain

import "github.com/ethereum/go-ethereum/common"

// SimulationRequest describes a candidate transaction to pre-flight before
// submission. Either the EVM fields or the Solana fields are populated,
// never both.
type SimulationRequest struct {
	Chain uint64

	// EVM-style skeleton.
	From     common.Address
	To       common.Address
	Data     []byte
	Value    string // decimal string, "0" when absent
	GasLimit *uint64

	// Solana variant.
	SolanaTxBase64 string
	Commitment     string

	StateOverrides map[common.Address]StateOverride
	BlockNumber    *uint64 // pinned block, nil = latest
	IncludeState   bool
	IncludeLogs    bool
}

// StateOverride mirrors the eth_call third-parameter override shape.
type StateOverride struct {
	Balance  *string
	Nonce    *uint64
	Code     *string
	State    map[string]string
	StateDiff map[string]string
}

// StateChange is one entry of a simulation's reported state diff.
type StateChange struct {
	Address  common.Address
	Slot     string
	OldValue string
	NewValue string
}

// LogEntry is one decoded event log emitted during simulation.
type LogEntry struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// SolanaExtension carries the Solana-specific fields of a simulation
// result; nil for EVM simulations.
type SolanaExtension struct {
	ProgramLogs     []string
	ComputeUnits    uint64
	AccountDeltas   map[string]string
	InnerInstructions []string
}

// SimulationResult is the provider-agnostic outcome of a simulate() call.
// success and wouldRevert are deliberately two independent booleans — per
// spec §9, a successful simulation can still predict an on-chain revert.
type SimulationResult struct {
	Success      bool
	WouldRevert  bool
	RevertReason string // decoded per §4.3, empty when WouldRevert is false
	GasUsed      *uint64
	ReturnValue  []byte
	StateChanges []StateChange
	Logs         []LogEntry
	Error        string // set when Success is false
	Provider     string
	LatencyMs    int64
	BlockNumber  *uint64
	Solana       *SolanaExtension
}
