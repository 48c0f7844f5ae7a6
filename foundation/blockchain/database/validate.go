package database

import (
	"math"

	"github.com/ardanlabs/powledger/foundation/blockchain/script"
	"github.com/cockroachdb/errors"
)

// Totals are the resolved input and declared output amounts of a
// transaction.
type Totals struct {
	Inputs  uint64
	Outputs uint64
}

// Add accumulates the totals of another transaction. The sums are checked,
// an overflow is a funds mismatch.
func (t Totals) Add(other Totals) (Totals, error) {
	inputs, ok := addAmount(t.Inputs, other.Inputs)
	if !ok {
		return Totals{}, &TransactionError{Reason: ReasonFundsMismatch, Err: errors.New("inputs overflow")}
	}

	outputs, ok := addAmount(t.Outputs, other.Outputs)
	if !ok {
		return Totals{}, &TransactionError{Reason: ReasonFundsMismatch, Err: errors.New("outputs overflow")}
	}

	return Totals{Inputs: inputs, Outputs: outputs}, nil
}

// Fee returns the inputs minus the outputs, clamped to the int64 range.
func (t Totals) Fee() int64 {
	if t.Inputs >= t.Outputs {
		diff := t.Inputs - t.Outputs
		if diff > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(diff)
	}

	diff := t.Outputs - t.Inputs
	if diff > math.MaxInt64 {
		return math.MinInt64
	}
	return -int64(diff)
}

// ValidateTransaction checks every input of the transaction resolves to an
// output in the chain and that its unlocking script satisfies that output's
// locking script. A standalone transaction must also spend exactly what it
// declares. Inside a block that rule is checked over the whole block.
func (db *Database) ValidateTransaction(tx Tx, standalone bool) (Totals, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.validateTransaction(tx, standalone)
}

func (db *Database) validateTransaction(tx Tx, standalone bool) (Totals, error) {
	payload, err := tx.SigningPayload()
	if err != nil {
		return Totals{}, err
	}

	outputs, err := tx.TotalOutputs()
	if err != nil {
		return Totals{}, err
	}

	totals := Totals{
		Outputs: outputs,
	}

	for i, in := range tx.Inputs {
		out, err := db.resolveUTXO(in.TransactionHash, in.OutputIndex)
		if err != nil {
			return Totals{}, &TransactionError{Reason: ReasonUTXONotFound, Err: errors.Wrapf(err, "input[%d]", i)}
		}

		if err := script.Execute(in.UnlockingScript, out.LockingScript, payload); err != nil {
			return Totals{}, &TransactionError{Reason: ReasonScriptFailed, Err: errors.Wrapf(err, "input[%d]", i)}
		}

		var ok bool
		if totals.Inputs, ok = addAmount(totals.Inputs, out.Amount); !ok {
			return Totals{}, &TransactionError{Reason: ReasonFundsMismatch, Err: errors.Newf("input[%d]: inputs overflow", i)}
		}
	}

	if standalone && totals.Inputs != totals.Outputs {
		return Totals{}, &TransactionError{Reason: ReasonFundsMismatch}
	}

	return totals, nil
}
