// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// Mempool represents a cache of pending transactions keyed by transaction
// hash. Transactions are returned in the order they were received.
type Mempool struct {
	mu    sync.RWMutex
	pool  map[string]database.Tx
	order []string
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]database.Tx),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a transaction to the mempool. It returns false when a
// transaction with the same hash is already pending.
func (mp *Mempool) Upsert(tx database.Tx) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[tx.TransactionHash]; exists {
		return false
	}

	mp.pool[tx.TransactionHash] = tx
	mp.order = append(mp.order, tx.TransactionHash)

	return true
}

// Exists reports whether a transaction with the hash is pending.
func (mp *Mempool) Exists(txHash string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[txHash]
	return exists
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[tx.TransactionHash]; !exists {
		return
	}

	delete(mp.pool, tx.TransactionHash)

	for i, hash := range mp.order {
		if hash == tx.TransactionHash {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
	mp.order = nil
}

// PickAll returns a copy of every pending transaction in the order they
// were received. The pool is left untouched, transactions are removed once
// the block holding them is added to the chain.
func (mp *Mempool) PickAll() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	trans := make([]database.Tx, 0, len(mp.order))
	for _, hash := range mp.order {
		trans = append(trans, mp.pool[hash])
	}

	return trans
}
