// Package memory implements the ability to read and write blocks to memory
// using a map keyed by block hash and a slice recording the chain order.
package memory

import (
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/cockroachdb/errors"
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory. This implements the database.Storage interface.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string]database.BlockData
	order  []string
}

// New constructs an Memory value for use.
func New() (*Memory, error) {
	m := Memory{
		blocks: make(map[string]database.BlockData),
	}

	return &m, nil
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified block and stores it in memory. The block must
// link to the last block written.
func (m *Memory) Write(blockData database.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := blockData.Header.Hash
	if _, exists := m.blocks[hash]; exists {
		return errors.Newf("block %q already exists", hash)
	}

	if l := len(m.order); l > 0 && m.order[l-1] != blockData.Header.PreviousBlockHash {
		return errors.New("block is out of order")
	}

	m.blocks[hash] = blockData
	m.order = append(m.order, hash)

	return nil
}

// GetBlock locates and returns the contents of the specified block by hash.
func (m *Memory) GetBlock(hash string) (database.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blockData, exists := m.blocks[hash]
	if !exists {
		return database.BlockData{}, errors.Newf("block %q does not exist", hash)
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with the latest block.
func (m *Memory) ForEach() database.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &memoryIterator{
		storage: m,
		current: len(m.order) - 1,
	}
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking
// through the blocks from the tip to genesis. This implements the database
// Iterator interface.
type memoryIterator struct {
	storage *Memory // Access to the storage API.
	current int     // Position of the block being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block moving towards genesis.
func (mi *memoryIterator) Next() (database.BlockData, error) {
	if mi.eoc || mi.current < 0 {
		mi.eoc = true
		return database.BlockData{}, errors.New("end of chain")
	}

	mi.storage.mu.RLock()
	hash := mi.storage.order[mi.current]
	mi.storage.mu.RUnlock()

	mi.current--

	return mi.storage.GetBlock(hash)
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}
