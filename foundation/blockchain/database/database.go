// Package database handles all the lower level support for maintaining the
// blockchain: the chain of blocks, the validation pipeline and the queries
// that resolve unspent outputs.
package database

import (
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/cockroachdb/errors"
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(hash string) (BlockData, error)
	ForEach() Iterator
	Close() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks. Blocks are returned
// starting at the tip and ending at genesis.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// DatabaseIterator walks the chain from the tip to genesis.
type DatabaseIterator struct {
	iterator Iterator
}

// Next retrieves the next block in the chain.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}

// =============================================================================

// UTXO represents an output attributed to a user.
type UTXO struct {
	Amount          uint64 `json:"amount"`
	TransactionHash string `json:"transaction_hash"`
}

// Balance represents the outputs attributed to a user.
type Balance struct {
	User  string `json:"user"`
	Total uint64 `json:"total"`
	UTXOs []UTXO `json:"utxos"`
}

// =============================================================================

// Database manages the chain of blocks. Blocks are kept in storage keyed by
// hash, the database tracks the tip and an index of transactions.
type Database struct {
	mu sync.RWMutex

	genesis     genesis.Genesis
	latestBlock Block
	height      uint64
	txIndex     map[string]Tx

	storage Storage
}

// New constructs a new database. When the storage is empty the genesis block
// is built from the genesis information and written, otherwise the chain in
// storage is loaded and re-indexed. The lookup function translates genesis
// balance keys into public key hashes.
func New(gen genesis.Genesis, storage Storage, lookup func(name string) (string, bool)) (*Database, error) {
	db := Database{
		genesis: gen,
		txIndex: make(map[string]Tx),
		storage: storage,
	}

	// Read the chain so it can be indexed from genesis forward.
	var chain []Block
	iter := db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		chain = append(chain, block)
	}

	if len(chain) == 0 {
		block, err := GenesisBlock(gen, lookup)
		if err != nil {
			return nil, err
		}

		if err := db.add(block); err != nil {
			return nil, err
		}

		return &db, nil
	}

	for i := len(chain) - 1; i >= 0; i-- {
		db.index(chain[i])
	}

	return &db, nil
}

// Close closes the blocks storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Genesis returns the genesis information the chain was created with.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// LatestBlock returns the tip of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// Height returns the number of blocks in the chain, genesis included.
func (db *Database) Height() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.height
}

// ForEach returns an iterator to walk through all the blocks
// starting with the tip.
func (db *Database) ForEach() DatabaseIterator {
	return DatabaseIterator{iterator: db.storage.ForEach()}
}

// GetBlock locates the block by hash.
func (db *Database) GetBlock(hash string) (Block, error) {
	blockData, err := db.storage.GetBlock(hash)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Blocks returns every block from the tip to genesis.
func (db *Database) Blocks() ([]Block, error) {
	var blocks []Block

	iter := db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

// =============================================================================

// Validate runs the proof of work, transaction and block accounting checks
// against the current chain.
func (db *Database) Validate(candidate Block) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.validate(candidate)
}

// ProcessBlock performs receive, validate and add as one operation. It is
// the only way a block is linked into the chain. No other block can be
// processed against the same tip while this runs and nothing changes when
// any step fails.
func (db *Database) ProcessBlock(candidate Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.receive(candidate); err != nil {
		return err
	}

	if err := db.validate(candidate); err != nil {
		return err
	}

	return db.add(candidate)
}

// ResolveUTXO returns the output at the index of the most recent
// transaction carrying the hash.
func (db *Database) ResolveUTXO(txHash string, index uint32) (Output, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.resolveUTXO(txHash, index)
}

// QueryTransaction returns the most recent transaction carrying the hash.
func (db *Database) QueryTransaction(txHash string) (Tx, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tx, exists := db.txIndex[txHash]
	return tx, exists
}

// QueryTransactionBlock returns the most recent block holding a
// transaction with the hash.
func (db *Database) QueryTransactionBlock(txHash string) (Block, Tx, error) {
	iter := db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return Block{}, Tx{}, err
		}

		for _, tx := range block.Trans.Values() {
			if tx.TransactionHash == txHash {
				return block, tx, nil
			}
		}
	}

	return Block{}, Tx{}, errors.Newf("transaction %q not found", txHash)
}

// UserBalance walks every output in the chain and sums the ones locked to
// the public key hash.
func (db *Database) UserBalance(pubKeyHash string) (Balance, error) {
	bal := Balance{
		User:  pubKeyHash,
		UTXOs: []UTXO{},
	}

	iter := db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return Balance{}, err
		}

		for _, tx := range block.Trans.Values() {
			for _, out := range tx.Outputs {
				if out.PublicKeyHash() != pubKeyHash {
					continue
				}

				bal.Total += out.Amount
				bal.UTXOs = append(bal.UTXOs, UTXO{Amount: out.Amount, TransactionHash: tx.TransactionHash})
			}
		}
	}

	return bal, nil
}

// Fees sums the resolved inputs minus the declared outputs of the
// transactions. Inputs that can't be resolved contribute nothing.
func (db *Database) Fees(trans []Tx) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var totals Totals
	for _, tx := range trans {
		outputs, err := tx.TotalOutputs()
		if err != nil {
			return 0, errors.Wrapf(err, "tx[%s]", tx.TransactionHash)
		}

		txTotals := Totals{Outputs: outputs}
		for _, in := range tx.Inputs {
			out, err := db.resolveUTXO(in.TransactionHash, in.OutputIndex)
			if err != nil {
				continue
			}

			var ok bool
			if txTotals.Inputs, ok = addAmount(txTotals.Inputs, out.Amount); !ok {
				return 0, errors.Wrapf(&TransactionError{Reason: ReasonFundsMismatch, Err: errors.New("inputs overflow")}, "tx[%s]", tx.TransactionHash)
			}
		}

		if totals, err = totals.Add(txTotals); err != nil {
			return 0, err
		}
	}

	return totals.Fee(), nil
}

// =============================================================================

func (db *Database) receive(candidate Block) error {
	if candidate.Header.PreviousBlockHash != db.latestBlock.Hash() {
		return &ChainError{Reason: ReasonStaleParent}
	}

	return nil
}

func (db *Database) validate(candidate Block) error {
	hash := candidate.Header.ComputeHash()
	if !isHashSolved(db.genesis.Difficulty, hash) {
		return &ConsensusError{Reason: ReasonPOWNotMet}
	}

	if candidate.Header.MerkleRoot != candidate.Trans.RootHex() {
		return &ConsensusError{Reason: ReasonMerkleRootMismatch}
	}

	var block Totals
	for _, tx := range candidate.Trans.Values() {
		totals, err := db.validateTransaction(tx, false)
		if err != nil {
			return errors.Wrapf(err, "tx[%s]", tx.TransactionHash)
		}

		if block, err = block.Add(totals); err != nil {
			return errors.Wrapf(err, "tx[%s]", tx.TransactionHash)
		}
	}

	// The block mints exactly the reward: outputs = inputs + reward.
	minted, ok := addAmount(block.Inputs, db.genesis.BlockReward)
	if !ok || block.Outputs != minted {
		return &ConsensusError{Reason: ReasonRewardMismatch}
	}

	return nil
}

func (db *Database) add(candidate Block) error {
	if err := db.storage.Write(NewBlockData(candidate)); err != nil {
		return err
	}

	db.index(candidate)

	return nil
}

// index makes the block the tip and records its transactions. A later
// transaction with the same hash replaces the earlier one, matching a walk
// from the tip.
func (db *Database) index(block Block) {
	for _, tx := range block.Trans.Values() {
		db.txIndex[tx.TransactionHash] = tx
	}

	db.latestBlock = block
	db.height++
}

func (db *Database) resolveUTXO(txHash string, index uint32) (Output, error) {
	tx, exists := db.txIndex[txHash]
	if !exists {
		return Output{}, &ChainError{Reason: ReasonUTXONotFound}
	}

	if int(index) >= len(tx.Outputs) {
		return Output{}, &ChainError{Reason: ReasonUTXONotFound, Err: errors.New(ReasonOutputIndexNotFound)}
	}

	return tx.Outputs[index], nil
}
