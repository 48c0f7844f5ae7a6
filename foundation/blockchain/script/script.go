// Package script implements the stack machine used to prove ownership of
// an output. Only four opcodes exist and every other token is a literal.
package script

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/cockroachdb/errors"
)

// Opcode represents one of the operations the machine understands.
type Opcode int

// Set of opcodes the machine can dispatch.
const (
	OpDup Opcode = iota + 1
	OpHash160
	OpEqualVerify
	OpCheckSig
)

var opcodeNames = map[string]Opcode{
	"OP_DUP":          OpDup,
	"OP_HASH160":      OpHash160,
	"OP_EQUAL_VERIFY": OpEqualVerify,
	"OP_CHECKSIG":     OpCheckSig,
}

// String implements the fmt.Stringer interface.
func (op Opcode) String() string {
	for name, code := range opcodeNames {
		if code == op {
			return name
		}
	}

	return fmt.Sprintf("Opcode(%d)", int(op))
}

// ParseOpcode returns the opcode for the token and false if the token is
// a literal.
func ParseOpcode(token string) (Opcode, bool) {
	op, exists := opcodeNames[token]
	return op, exists
}

// =============================================================================

// Error is returned for any failure while executing a script.
type Error struct {
	Op     string
	Reason string
}

// NewError constructs a script error for the named operation.
func NewError(op string, reason string) error {
	return &Error{Op: op, Reason: reason}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return "script error: " + e.Reason
	}
	return fmt.Sprintf("script error: %s: %s", e.Op, e.Reason)
}

// IsError checks if an error of type Error exists in the chain.
func IsError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// =============================================================================

// Machine holds the stack and the payload a signature must cover.
type Machine struct {
	stack   []string
	payload []byte
}

// dispatch maps every opcode to the function that performs it.
var dispatch = map[Opcode]func(m *Machine) error{
	OpDup:         (*Machine).dup,
	OpHash160:     (*Machine).hash160,
	OpEqualVerify: (*Machine).equalVerify,
	OpCheckSig:    (*Machine).checkSig,
}

// NewMachine constructs a machine for verifying signatures over the
// specified payload.
func NewMachine(payload []byte) *Machine {
	return &Machine{
		payload: payload,
	}
}

// Execute runs the unlocking script followed by the locking script against
// the payload. The scripts are valid if no operation fails.
func Execute(unlocking string, locking string, payload []byte) error {
	m := NewMachine(payload)

	if err := m.Run(unlocking); err != nil {
		return err
	}

	return m.Run(locking)
}

// Run tokenizes the script on spaces and processes each token in order.
func (m *Machine) Run(script string) error {
	for _, token := range strings.Fields(script) {
		op, isOp := ParseOpcode(token)
		if !isOp {
			m.Push(token)
			continue
		}

		if err := dispatch[op](m); err != nil {
			return err
		}
	}

	return nil
}

// Push places a literal token on the stack.
func (m *Machine) Push(token string) {
	m.stack = append(m.stack, token)
}

// Stack returns a copy of the current stack, bottom first.
func (m *Machine) Stack() []string {
	return append([]string(nil), m.stack...)
}

func (m *Machine) pop(op Opcode) (string, error) {
	if len(m.stack) == 0 {
		return "", NewError(op.String(), "stack underflow")
	}

	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]

	return top, nil
}

func (m *Machine) dup() error {
	top, err := m.pop(OpDup)
	if err != nil {
		return err
	}

	m.stack = append(m.stack, top, top)
	return nil
}

func (m *Machine) hash160() error {
	top, err := m.pop(OpHash160)
	if err != nil {
		return err
	}

	pub, err := hex.DecodeString(top)
	if err != nil {
		return NewError(OpHash160.String(), "public key is not hex encoded")
	}

	m.Push(signature.Hash160(pub))
	return nil
}

func (m *Machine) equalVerify() error {
	a, err := m.pop(OpEqualVerify)
	if err != nil {
		return err
	}

	b, err := m.pop(OpEqualVerify)
	if err != nil {
		return err
	}

	if a != b {
		return NewError(OpEqualVerify.String(), "values are not equal")
	}

	return nil
}

func (m *Machine) checkSig() error {
	pubHex, err := m.pop(OpCheckSig)
	if err != nil {
		return err
	}

	sigHex, err := m.pop(OpCheckSig)
	if err != nil {
		return err
	}

	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return NewError(OpCheckSig.String(), "public key is not hex encoded")
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return NewError(OpCheckSig.String(), "signature is not hex encoded")
	}

	if err := signature.Verify(pub, sig, m.payload); err != nil {
		return NewError(OpCheckSig.String(), err.Error())
	}

	return nil
}

// =============================================================================

// LockingScript returns the locking script paying to the public key hash.
func LockingScript(pubKeyHash string) string {
	return fmt.Sprintf("OP_DUP OP_HASH160 %s OP_EQUAL_VERIFY OP_CHECKSIG", pubKeyHash)
}

// UnlockingScript returns the spender proof placed in an input.
func UnlockingScript(sig string, publicKey string) string {
	return sig + " " + publicKey
}

// PublicKeyHash returns the public key hash embedded in a locking script.
func PublicKeyHash(locking string) (string, bool) {
	for _, token := range strings.Fields(locking) {
		if _, isOp := ParseOpcode(token); !isOp {
			return token, true
		}
	}

	return "", false
}
