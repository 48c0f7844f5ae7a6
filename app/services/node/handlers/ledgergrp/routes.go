package ledgergrp

import (
	"net/http"

	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ardanlabs/powledger/foundation/web"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// Routes binds all the ledger routes. Peers use the same POST routes as
// wallets.
func Routes(app *web.App, cfg Config) {
	hdl := Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	const group = ""

	app.Handle(http.MethodPost, group, "/block", hdl.ProposeBlock)
	app.Handle(http.MethodGet, group, "/block", hdl.Blocks)
	app.Handle(http.MethodPost, group, "/transactions", hdl.SubmitTransaction)
	app.Handle(http.MethodGet, group, "/transactions/:hash", hdl.Transaction)
	app.Handle(http.MethodGet, group, "/transactions/:hash/proof", hdl.MerkleProof)
	app.Handle(http.MethodGet, group, "/utxo/:user", hdl.Balance)
	app.Handle(http.MethodGet, group, "/mempool", hdl.Mempool)
	app.Handle(http.MethodGet, group, "/status", hdl.Status)
	app.Handle(http.MethodGet, group, "/events", hdl.Events)
}
