package state

import (
	"encoding/hex"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
)

// MerkleProof represents the proof that a transaction is part of a block.
type MerkleProof struct {
	BlockHash       string   `json:"block_hash"`
	MerkleRoot      string   `json:"merkle_root"`
	TransactionHash string   `json:"transaction_hash"`
	Proof           []string `json:"proof"`
	Order           []int64  `json:"order"`
}

// =============================================================================

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBlocks returns every block from the tip to genesis.
func (s *State) QueryBlocks() ([]database.Block, error) {
	return s.db.Blocks()
}

// QueryBalance returns the outputs attributed to the user. The user is a
// public key hash or a name known to the name service.
func (s *State) QueryBalance(user string) (database.Balance, error) {
	pkh := user
	if resolved, exists := s.lookup(user); exists {
		pkh = resolved
	}

	bal, err := s.db.UserBalance(pkh)
	if err != nil {
		return database.Balance{}, err
	}
	bal.User = user

	return bal, nil
}

// QueryTransaction returns the transaction with the specified hash.
func (s *State) QueryTransaction(txHash string) (database.Tx, bool) {
	return s.db.QueryTransaction(txHash)
}

// QueryMerkleProof returns the proof that the transaction is part of the
// block that holds it.
func (s *State) QueryMerkleProof(txHash string) (MerkleProof, error) {
	block, tx, err := s.db.QueryTransactionBlock(txHash)
	if err != nil {
		return MerkleProof{}, err
	}

	hashes, order, err := block.Trans.Proof(tx)
	if err != nil {
		return MerkleProof{}, err
	}

	proof := make([]string, len(hashes))
	for i, h := range hashes {
		proof[i] = hex.EncodeToString(h)
	}
	if order == nil {
		order = []int64{}
	}

	mp := MerkleProof{
		BlockHash:       block.Hash(),
		MerkleRoot:      block.Header.MerkleRoot,
		TransactionHash: tx.TransactionHash,
		Proof:           proof,
		Order:           order,
	}

	return mp, nil
}

// QueryStatus returns the status of this node.
func (s *State) QueryStatus() peer.PeerStatus {
	latest := s.db.LatestBlock()

	return peer.PeerStatus{
		LatestBlockHash: latest.Hash(),
		Height:          s.db.Height(),
		MempoolLength:   s.mempool.Count(),
		KnownPeers:      s.RetrieveKnownPeers(),
	}
}
