package database

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/bits"

	"github.com/ardanlabs/powledger/foundation/blockchain/script"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/cockroachdb/errors"
)

// Input references a prior output being spent and carries the proof that
// the spender owns it.
type Input struct {
	TransactionHash string `json:"transaction_hash" validate:"required,hexadecimal"`
	OutputIndex     uint32 `json:"output_index"`
	UnlockingScript string `json:"unlocking_script" validate:"required"`
}

// Output assigns an amount to whoever can satisfy the locking script.
type Output struct {
	Amount        uint64 `json:"amount"`
	LockingScript string `json:"locking_script" validate:"required"`
}

// PublicKeyHash returns the public key hash the output is locked to.
func (o Output) PublicKeyHash() string {
	pkh, _ := script.PublicKeyHash(o.LockingScript)
	return pkh
}

// =============================================================================

// Tx moves value from a set of prior outputs into a set of new outputs. A
// transaction with no inputs is a coinbase.
type Tx struct {
	Inputs          []Input  `json:"inputs" validate:"dive"`
	Outputs         []Output `json:"outputs" validate:"required,min=1,dive"`
	TransactionHash string   `json:"transaction_hash,omitempty"`
}

// NewTx constructs a transaction and derives its hash. The unlocking
// scripts are expected to be added by calling Sign.
func NewTx(inputs []Input, outputs []Output) (Tx, error) {
	tx := Tx{
		Inputs:  inputs,
		Outputs: outputs,
	}

	hash, err := tx.ComputeHash()
	if err != nil {
		return Tx{}, err
	}
	tx.TransactionHash = hash

	return tx, nil
}

// NewCoinbaseTx constructs the zero input transaction that pays the amount
// to the public key hash.
func NewCoinbaseTx(pubKeyHash string, amount uint64) (Tx, error) {
	return NewTx([]Input{}, []Output{{Amount: amount, LockingScript: script.LockingScript(pubKeyHash)}})
}

// outpoint is the part of an input covered by the signature.
type outpoint struct {
	TransactionHash string `json:"transaction_hash"`
	OutputIndex     uint32 `json:"output_index"`
}

// SigningPayload returns the canonical encoding that is signed and hashed.
// Unlocking scripts are excluded.
func (tx Tx) SigningPayload() ([]byte, error) {
	payload := struct {
		Inputs  []outpoint `json:"inputs"`
		Outputs []Output   `json:"outputs"`
	}{
		Inputs:  make([]outpoint, 0, len(tx.Inputs)),
		Outputs: make([]Output, 0, len(tx.Outputs)),
	}

	for _, in := range tx.Inputs {
		payload.Inputs = append(payload.Inputs, outpoint{TransactionHash: in.TransactionHash, OutputIndex: in.OutputIndex})
	}
	payload.Outputs = append(payload.Outputs, tx.Outputs...)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal signing payload")
	}

	return data, nil
}

// ComputeHash derives the transaction hash from the signing payload.
func (tx Tx) ComputeHash() (string, error) {
	payload, err := tx.SigningPayload()
	if err != nil {
		return "", err
	}

	return signature.Hash(payload), nil
}

// CheckHash recomputes the transaction hash. A transaction without a hash
// has it filled in and one whose hash disagrees is rejected.
func (tx Tx) CheckHash() (Tx, error) {
	hash, err := tx.ComputeHash()
	if err != nil {
		return Tx{}, err
	}

	switch tx.TransactionHash {
	case "":
		tx.TransactionHash = hash
	case hash:
	default:
		return Tx{}, &TransactionError{Reason: ReasonTxHashMismatch}
	}

	return tx, nil
}

// Sign uses the specified private key to place an unlocking script in every
// input. All inputs are expected to be owned by the same key.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (Tx, error) {
	payload, err := tx.SigningPayload()
	if err != nil {
		return Tx{}, err
	}

	sig, err := signature.Sign(payload, privateKey)
	if err != nil {
		return Tx{}, err
	}

	unlocking := script.UnlockingScript(sig, signature.PublicKeyHex(privateKey.PublicKey))

	inputs := make([]Input, len(tx.Inputs))
	for i, in := range tx.Inputs {
		in.UnlockingScript = unlocking
		inputs[i] = in
	}
	tx.Inputs = inputs

	tx.TransactionHash = signature.Hash(payload)

	return tx, nil
}

// IsCoinbase reports whether the transaction mints new value.
func (tx Tx) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// TotalOutputs sums the amounts declared by the outputs. A sum that does
// not fit in 64 bits can't be balanced against any inputs and is reported
// as a funds mismatch.
func (tx Tx) TotalOutputs() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		var ok bool
		if total, ok = addAmount(total, out.Amount); !ok {
			return 0, &TransactionError{Reason: ReasonFundsMismatch, Err: errors.New("outputs overflow")}
		}
	}

	return total, nil
}

// addAmount adds two amounts and reports false when the sum overflows.
func addAmount(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// Hash implements the merkle Hashable interface for providing a hash
// of a transaction.
func (tx Tx) Hash() ([]byte, error) {
	hash, err := tx.ComputeHash()
	if err != nil {
		return nil, err
	}

	return hex.DecodeString(hash)
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two transactions.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.TransactionHash == otherTx.TransactionHash
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:in[%d]:out[%d]", tx.TransactionHash, len(tx.Inputs), len(tx.Outputs))
}
