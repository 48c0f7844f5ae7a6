package database

import (
	"context"
	"strings"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/cockroachdb/errors"
)

// BlockHeader represents common information required for each block. The
// hash is derived from the other four fields and is recomputed whenever
// one of them changes.
type BlockHeader struct {
	PreviousBlockHash string `json:"previous_block_hash"` // Hash of the previous block in the chain.
	MerkleRoot        string `json:"merkle_root"`         // Merkle tree root hash for the transactions in this block.
	Timestamp         int64  `json:"timestamp"`           // Time the block was mined.
	Nonce             uint64 `json:"nonce"`               // Value identified to solve the hash solution.
	Hash              string `json:"hash"`
}

// NewBlockHeader constructs a header and derives its hash.
func NewBlockHeader(previousBlockHash string, merkleRoot string, timestamp int64, nonce uint64) BlockHeader {
	bh := BlockHeader{
		PreviousBlockHash: previousBlockHash,
		MerkleRoot:        merkleRoot,
		Timestamp:         timestamp,
		Nonce:             nonce,
	}
	bh.Hash = bh.ComputeHash()

	return bh
}

// SetNonce changes the nonce and recomputes the hash.
func (bh *BlockHeader) SetNonce(nonce uint64) {
	bh.Nonce = nonce
	bh.Hash = bh.ComputeHash()
}

// ComputeHash returns the hash of the canonical encoding of the header
// fields in the order previous block hash, merkle root, timestamp, nonce.
func (bh BlockHeader) ComputeHash() string {
	fields := struct {
		PreviousBlockHash string `json:"previous_block_hash"`
		MerkleRoot        string `json:"merkle_root"`
		Timestamp         int64  `json:"timestamp"`
		Nonce             uint64 `json:"nonce"`
	}{
		PreviousBlockHash: bh.PreviousBlockHash,
		MerkleRoot:        bh.MerkleRoot,
		Timestamp:         bh.Timestamp,
		Nonce:             bh.Nonce,
	}

	hash, err := signature.HashValue(fields)
	if err != nil {
		return signature.ZeroHash
	}

	return hash
}

// =============================================================================

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[Tx]
}

// NewBlock constructs an unlinked block from the transactions on top of the
// previous block hash.
func NewBlock(previousBlockHash string, timestamp int64, trans []Tx) (Block, error) {
	if len(trans) == 0 {
		return Block{}, &ConsensusError{Reason: ReasonNoTransactions}
	}

	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, errors.Wrap(err, "building merkle tree")
	}

	b := Block{
		Header: NewBlockHeader(previousBlockHash, tree.RootHex(), timestamp, 0),
		Trans:  tree,
	}

	return b, nil
}

// GenesisBlock constructs the first block of the chain. Each allocation
// becomes a coinbase transaction and no proof of work is required.
func GenesisBlock(gen genesis.Genesis, lookup func(name string) (string, bool)) (Block, error) {
	var trans []Tx
	for _, alloc := range gen.Allocations(lookup) {
		tx, err := NewCoinbaseTx(alloc.PublicKeyHash, alloc.Amount)
		if err != nil {
			return Block{}, err
		}
		trans = append(trans, tx)
	}

	if len(trans) == 0 {
		return Block{}, errors.New("genesis requires at least one balance")
	}

	return NewBlock(signature.ZeroHash, gen.Date.UTC().Unix(), trans)
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() string {
	return b.Header.Hash
}

// Transactions returns the transactions in the order they were mined.
func (b Block) Transactions() []Tx {
	return b.Trans.Values()
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	MinerPKH      string
	Difficulty    uint
	BlockReward   uint64
	PrevBlockHash string
	Trans         []Tx
	Fees          int64
	EvHandler     func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The coinbase paying the fees and the
// block reward to the miner is appended after the transactions.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	if len(args.Trans) == 0 {
		return Block{}, &BlockError{Reason: ReasonNoPendingTxs}
	}

	amount := args.Fees + int64(args.BlockReward)
	if amount < 0 {
		amount = 0
	}

	coinbase, err := NewCoinbaseTx(args.MinerPKH, uint64(amount))
	if err != nil {
		return Block{}, err
	}

	trans := make([]Tx, 0, len(args.Trans)+1)
	trans = append(trans, args.Trans...)
	trans = append(trans, coinbase)

	nb, err := NewBlock(args.PrevBlockHash, time.Now().UTC().Unix(), trans)
	if err != nil {
		return Block{}, err
	}

	if err := nb.performPOW(ctx, args.Difficulty, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, difficulty uint, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started")
	defer ev("database: PerformPOW: MINING: completed")

	for _, tx := range b.Trans.Values() {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		b.Header.SetNonce(b.Header.Nonce + 1)
		if !isHashSolved(difficulty, b.Header.Hash) {
			continue
		}

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: nonce[%d]", b.Header.PreviousBlockHash, b.Header.Hash, b.Header.Nonce)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty uint, hash string) bool {
	if len(hash) != 64 || difficulty > 64 {
		return false
	}

	return strings.HasPrefix(hash, strings.Repeat("0", int(difficulty)))
}

// =============================================================================

// BlockData represents what is sent over the wire and kept in storage.
type BlockData struct {
	Header       BlockHeader `json:"header"`
	Transactions []Tx        `json:"transactions" validate:"required,min=1,dive"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Header:       block.Header,
		Transactions: block.Trans.Values(),
	}
}

// ToBlock converts BlockData into a Block. Every hash is recomputed, a hash
// that was supplied must agree with its recomputation.
func ToBlock(bd BlockData) (Block, error) {
	if len(bd.Transactions) == 0 {
		return Block{}, &ConsensusError{Reason: ReasonNoTransactions}
	}

	trans := make([]Tx, len(bd.Transactions))
	for i, tx := range bd.Transactions {
		tx, err := tx.CheckHash()
		if err != nil {
			return Block{}, err
		}
		trans[i] = tx
	}

	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, errors.Wrap(err, "building merkle tree")
	}

	header := NewBlockHeader(bd.Header.PreviousBlockHash, bd.Header.MerkleRoot, bd.Header.Timestamp, bd.Header.Nonce)
	if bd.Header.Hash != "" && bd.Header.Hash != header.Hash {
		return Block{}, &ConsensusError{Reason: ReasonHeaderHashMismatch}
	}

	b := Block{
		Header: header,
		Trans:  tree,
	}

	return b, nil
}
