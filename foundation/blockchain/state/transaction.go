package state

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// SubmitTransaction accepts a transaction from a wallet or a peer for
// inclusion. A transaction already pending is accepted again without being
// shared, which stops it bouncing between peers.
func (s *State) SubmitTransaction(tx database.Tx) error {
	tx, err := tx.CheckHash()
	if err != nil {
		return err
	}

	if s.mempool.Exists(tx.TransactionHash) {
		s.evHandler("state: SubmitTransaction: tx[%s] already pending", tx.TransactionHash)
		return nil
	}

	if _, err := s.db.ValidateTransaction(tx, true); err != nil {
		return err
	}

	if !s.mempool.Upsert(tx) {
		return nil
	}

	s.evHandler("viewer: tx: %s", tx)

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}

// UpsertMempool places a transaction into the mempool without any checks.
// Block validation still applies when the transaction is mined.
func (s *State) UpsertMempool(tx database.Tx) (bool, error) {
	tx, err := tx.CheckHash()
	if err != nil {
		return false, err
	}

	return s.mempool.Upsert(tx), nil
}
