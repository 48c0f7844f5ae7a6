package ledgergrp

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// blockRequest is the body of a block proposed by a miner.
type blockRequest struct {
	Block database.BlockData `json:"block"`
}

// txRequest is the body of a submitted transaction.
type txRequest struct {
	Transaction database.Tx `json:"transaction"`
}

// pending is a mempool transaction with the names of the owners it pays.
type pending struct {
	database.Tx
	Payees []string `json:"payees"`
}
