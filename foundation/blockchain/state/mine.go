package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Every pending transaction goes into the next block. A transaction
	// that can no longer be validated would fail the block, it is dropped.
	var trans []database.Tx
	for _, tx := range s.mempool.PickAll() {
		if _, err := s.db.ValidateTransaction(tx, false); err != nil {
			s.evHandler("state: MineNewBlock: MINING: drop tx[%s]: %s", tx.TransactionHash, err)
			s.mempool.Delete(tx)
			continue
		}
		trans = append(trans, tx)
	}

	if len(trans) == 0 {
		return database.Block{}, &database.BlockError{Reason: database.ReasonNoPendingTxs}
	}

	fees, err := s.db.Fees(trans)
	if err != nil {
		return database.Block{}, err
	}

	if s.miningTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.miningTimeout)
		defer cancel()
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: txs[%d]", len(trans))

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		MinerPKH:      s.minerPKH,
		Difficulty:    s.genesis.Difficulty,
		BlockReward:   s.genesis.BlockReward,
		PrevBlockHash: s.db.LatestBlock().Hash(),
		Trans:         trans,
		Fees:          fees,
		EvHandler:     s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: validate and update database")

	// Validate the block and then update the blockchain database.
	if err := s.validateUpdateDatabase(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain.
func (s *State) ProcessProposedBlock(blockData database.BlockData) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", blockData.Header.PreviousBlockHash, blockData.Header.Hash, len(blockData.Transactions))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", blockData.Header.Hash)

	block, err := database.ToBlock(blockData)
	if err != nil {
		return err
	}

	// Validate the block and then update the blockchain database.
	if err := s.validateUpdateDatabase(block); err != nil {
		return err
	}

	// If the runMiningOperation function is being executed it needs to stop
	// immediately. The G executing runMiningOperation will not return from the
	// function until done is called. That allows this function to complete
	// its state changes before a new mining operation takes place.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
		done()
	}()

	return nil
}

// =============================================================================

// validateUpdateDatabase takes the block and validates the block against the
// consensus rules. If the block passes, then the state of the node is updated
// and the mined transactions are removed from the mempool.
func (s *State) validateUpdateDatabase(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: validateUpdateDatabase: validate and add block[%s]", block.Hash())

	if err := s.db.ProcessBlock(block); err != nil {
		return err
	}

	s.evHandler("state: validateUpdateDatabase: remove from mempool")

	for _, tx := range block.Trans.Values() {
		s.evHandler("state: validateUpdateDatabase: tx[%s] remove", tx)
		s.mempool.Delete(tx)
	}

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTransJSON, err := json.Marshal(block.Trans.Values())
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"header":%s,"transactions":%s}`, block.Hash(), string(blockHeaderJSON), string(blockTransJSON))
}
