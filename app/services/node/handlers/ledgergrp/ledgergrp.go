// Package ledgergrp maintains the group of handlers for the ledger.
package ledgergrp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ardanlabs/powledger/business/sys/metrics"
	"github.com/ardanlabs/powledger/business/sys/validate"
	"github.com/ardanlabs/powledger/business/web/errs"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// accepted is the body returned when a block or transaction is taken.
const accepted = "Transaction success"

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// ProposeBlock takes a block mined by a peer and adds it to the chain when
// it passes validation.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req blockRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	if err := validate.Check(req); err != nil {
		return err
	}

	h.Log.Infow("propose block", "traceid", web.GetTraceID(ctx), "blk", req.Block.Header.Hash, "prev", req.Block.Header.PreviousBlockHash, "txs", len(req.Block.Transactions))

	if err := h.State.ProcessProposedBlock(req.Block); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	metrics.AddBlocks()

	return web.RespondText(ctx, w, accepted, http.StatusOK)
}

// SubmitTransaction adds a transaction from a wallet or a peer to the
// mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req txRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	if err := validate.Check(req); err != nil {
		return err
	}

	h.Log.Infow("submit tx", "traceid", web.GetTraceID(ctx), "tx", req.Transaction)

	if err := h.State.SubmitTransaction(req.Transaction); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	metrics.AddTransactions()

	return web.RespondText(ctx, w, accepted, http.StatusOK)
}

// Blocks returns the chain from the tip back to genesis.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks, err := h.State.QueryBlocks()
	if err != nil {
		return err
	}

	data := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		data[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, data, http.StatusOK)
}

// Transaction returns the transaction with the specified hash. An unknown
// hash returns an empty document.
func (h Handlers) Transaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tx, exists := h.State.QueryTransaction(web.Param(r, "hash"))
	if !exists {
		return web.Respond(ctx, w, struct{}{}, http.StatusOK)
	}

	return web.Respond(ctx, w, tx, http.StatusOK)
}

// MerkleProof returns the proof that the transaction is part of its block.
func (h Handlers) MerkleProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mp, err := h.State.QueryMerkleProof(web.Param(r, "hash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, mp, http.StatusOK)
}

// Balance returns the unspent outputs of a user given by public key hash
// or by name.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	bal, err := h.State.QueryBalance(web.Param(r, "user"))
	if err != nil {
		return err
	}
	if bal.UTXOs == nil {
		bal.UTXOs = []database.UTXO{}
	}

	return web.Respond(ctx, w, bal, http.StatusOK)
}

// Mempool returns the set of pending transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	trans := make([]pending, len(mempool))
	for i, tx := range mempool {
		payees := make([]string, len(tx.Outputs))
		for j, out := range tx.Outputs {
			payees[j] = h.NS.Lookup(out.PublicKeyHash())
		}

		trans[i] = pending{
			Tx:     tx,
			Payees: payees,
		}
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryStatus(), http.StatusOK)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// The upgrade wrote the response, the status is recorded for the logger.
	web.SetStatusCode(ctx, http.StatusSwitchingProtocols)

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				if errors.Is(err, websocket.ErrCloseSent) {
					h.Log.Infow("events", "traceid", web.GetTraceID(ctx), "status", "closed")
				}
				return nil
			}
		}
	}
}
