package database

import (
	"github.com/cockroachdb/errors"
)

// Reasons reported by the validation pipeline.
const (
	ReasonStaleParent         = "stale or forked parent"
	ReasonUTXONotFound        = "UTXO not found"
	ReasonPOWNotMet           = "proof-of-work not met"
	ReasonRewardMismatch      = "reward mismatch"
	ReasonMerkleRootMismatch  = "merkle root mismatch"
	ReasonHeaderHashMismatch  = "header hash mismatch"
	ReasonNoTransactions      = "block has no transactions"
	ReasonScriptFailed        = "script validation failed"
	ReasonFundsMismatch       = "funds mismatch"
	ReasonTxHashMismatch      = "transaction hash mismatch"
	ReasonNoPendingTxs        = "no pending transactions"
	ReasonOutputIndexNotFound = "output index out of range"
)

// =============================================================================

// ChainError is returned when a block does not link to the tip or a
// referenced output does not exist in the chain.
type ChainError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	return format("chain error", e.Reason, e.Err)
}

// Unwrap provides access to the underlying error.
func (e *ChainError) Unwrap() error {
	return e.Err
}

// ConsensusError is returned when a block breaks the proof-of-work or the
// block level accounting rules.
type ConsensusError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConsensusError) Error() string {
	return format("consensus error", e.Reason, e.Err)
}

// Unwrap provides access to the underlying error.
func (e *ConsensusError) Unwrap() error {
	return e.Err
}

// TransactionError is returned when a single transaction fails its script
// or balance checks.
type TransactionError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	return format("transaction error", e.Reason, e.Err)
}

// Unwrap provides access to the underlying error.
func (e *TransactionError) Unwrap() error {
	return e.Err
}

// BlockError is returned when a block can't be assembled for mining.
type BlockError struct {
	Reason string
}

// Error implements the error interface.
func (e *BlockError) Error() string {
	return format("block error", e.Reason, nil)
}

// =============================================================================

// IsChainError checks if an error of type ChainError exists.
func IsChainError(err error) bool {
	var ce *ChainError
	return errors.As(err, &ce)
}

// IsConsensusError checks if an error of type ConsensusError exists.
func IsConsensusError(err error) bool {
	var ce *ConsensusError
	return errors.As(err, &ce)
}

// IsTransactionError checks if an error of type TransactionError exists.
func IsTransactionError(err error) bool {
	var te *TransactionError
	return errors.As(err, &te)
}

// IsBlockError checks if an error of type BlockError exists.
func IsBlockError(err error) bool {
	var be *BlockError
	return errors.As(err, &be)
}

// Reason returns the reason carried by the first taxonomy error found in
// the chain. An empty string is returned when none exists.
func Reason(err error) string {
	var ce *ChainError
	var cse *ConsensusError
	var te *TransactionError
	var be *BlockError

	switch {
	case errors.As(err, &te):
		return te.Reason
	case errors.As(err, &ce):
		return ce.Reason
	case errors.As(err, &cse):
		return cse.Reason
	case errors.As(err, &be):
		return be.Reason
	}

	return ""
}

func format(kind string, reason string, err error) string {
	if err == nil {
		return kind + ": " + reason
	}
	return kind + ": " + reason + ": " + err.Error()
}
