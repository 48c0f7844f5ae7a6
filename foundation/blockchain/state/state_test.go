package state_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/script"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	albertKey   = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	bertrandKey = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	minerKey    = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
)

// =============================================================================

type fakeWorker struct {
	mu       sync.Mutex
	shared   []database.Tx
	starts   int
	cancels  int
	shutdown bool
}

func (fw *fakeWorker) Shutdown() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.shutdown = true
}

func (fw *fakeWorker) SignalStartMining() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.starts++
}

func (fw *fakeWorker) SignalCancelMining() func() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.cancels++
	return func() {}
}

func (fw *fakeWorker) SignalShareTx(tx database.Tx) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.shared = append(fw.shared, tx)
}

// =============================================================================

type accounts struct {
	albert   *ecdsa.PrivateKey
	bertrand *ecdsa.PrivateKey
	miner    *ecdsa.PrivateKey
}

func loadAccounts(t *testing.T) accounts {
	var acc accounts
	var err error

	if acc.albert, err = crypto.HexToECDSA(albertKey); err != nil {
		t.Fatalf("Should be able to load albert's key: %v", err)
	}
	if acc.bertrand, err = crypto.HexToECDSA(bertrandKey); err != nil {
		t.Fatalf("Should be able to load bertrand's key: %v", err)
	}
	if acc.miner, err = crypto.HexToECDSA(minerKey); err != nil {
		t.Fatalf("Should be able to load the miner's key: %v", err)
	}

	return acc
}

func (acc accounts) lookup(name string) (string, bool) {
	switch name {
	case "albert":
		return signature.PublicKeyHash(acc.albert.PublicKey), true
	case "bertrand":
		return signature.PublicKeyHash(acc.bertrand.PublicKey), true
	}
	return "", false
}

func newState(t *testing.T, acc accounts, balance uint64, peers *peer.PeerSet) (*state.State, *fakeWorker) {
	strg, err := memory.New()
	if err != nil {
		t.Fatalf("Should be able to open storage: %v", err)
	}

	st, err := state.New(state.Config{
		MinerPKH: signature.PublicKeyHash(acc.miner.PublicKey),
		Host:     "localhost:9080",
		Genesis: genesis.Genesis{
			Date:        time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
			Difficulty:  1,
			BlockReward: 1,
			Balances:    map[string]uint64{"albert": balance},
		},
		Storage:    strg,
		Lookup:     acc.lookup,
		KnownPeers: peers,
		EvHandler:  func(v string, args ...any) { t.Logf(v, args...) },
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	fw := fakeWorker{}
	st.Worker = &fw

	return st, &fw
}

func spend(t *testing.T, st *state.State, pk *ecdsa.PrivateKey, outputs []database.Output) database.Tx {
	bal, err := st.QueryBalance("albert")
	if err != nil || len(bal.UTXOs) == 0 {
		t.Fatalf("Should be able to find albert's output: %v", err)
	}

	tx, err := database.NewTx([]database.Input{{TransactionHash: bal.UTXOs[0].TransactionHash, OutputIndex: 0}}, outputs)
	if err != nil {
		t.Fatalf("Should be able to create a transaction: %v", err)
	}

	tx, err = tx.Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign a transaction: %v", err)
	}

	return tx
}

// =============================================================================

func Test_SubmitAndMine(t *testing.T) {
	acc := loadAccounts(t)
	bertrandPKH := signature.PublicKeyHash(acc.bertrand.PublicKey)
	albertPKH := signature.PublicKeyHash(acc.albert.PublicKey)

	t.Log("Given the need to admit transactions and mine them into a block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen Albert pays Bertrand 30 out of 40.", testID)
		{
			st, fw := newState(t, acc, 40, nil)

			bad := spend(t, st, acc.albert, []database.Output{
				{Amount: 50, LockingScript: script.LockingScript(bertrandPKH)},
			})
			if err := st.SubmitTransaction(bad); database.Reason(err) != database.ReasonFundsMismatch {
				t.Fatalf("\t%s\tTest %d:\tShould reject a transaction that creates value: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a transaction that creates value.", success, testID)

			tx := spend(t, st, acc.albert, []database.Output{
				{Amount: 30, LockingScript: script.LockingScript(bertrandPKH)},
				{Amount: 10, LockingScript: script.LockingScript(albertPKH)},
			})

			tx.TransactionHash = ""
			if err := st.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit the transaction: %v", failed, testID, err)
			}
			if err := st.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept a duplicate submission: %v", failed, testID, err)
			}
			if st.QueryMempoolLength() != 1 || len(fw.shared) != 1 || fw.starts != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould hold and share the transaction once: pool[%d] shared[%d].", failed, testID, st.QueryMempoolLength(), len(fw.shared))
			}
			t.Logf("\t%s\tTest %d:\tShould hold and share the transaction once.", success, testID)

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, testID)

			if st.RetrieveHeight() != 2 || st.RetrieveLatestBlock().Hash() != block.Hash() || st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould add the block and clear the mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould add the block and clear the mempool.", success, testID)

			bal, err := st.QueryBalance("bertrand")
			if err != nil || bal.User != "bertrand" || bal.Total != 30 || len(bal.UTXOs) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould see Bertrand with 30: %+v: %v", failed, testID, bal, err)
			}
			t.Logf("\t%s\tTest %d:\tShould see Bertrand with 30.", success, testID)

			bal, err = st.QueryBalance(signature.PublicKeyHash(acc.miner.PublicKey))
			if err != nil || bal.Total != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould pay the miner the reward: %+v: %v", failed, testID, bal, err)
			}
			t.Logf("\t%s\tTest %d:\tShould pay the miner the reward.", success, testID)

			if _, err := st.MineNewBlock(context.Background()); !database.IsBlockError(err) {
				t.Fatalf("\t%s\tTest %d:\tShould not mine an empty block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not mine an empty block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen asking for the proof of a mined transaction.", testID)
		{
			st, _ := newState(t, acc, 40, nil)

			tx := spend(t, st, acc.albert, []database.Output{
				{Amount: 40, LockingScript: script.LockingScript(bertrandPKH)},
			})
			if err := st.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit the transaction: %v", failed, testID, err)
			}
			if _, err := st.MineNewBlock(context.Background()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}

			mp, err := st.QueryMerkleProof(tx.TransactionHash)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to get a proof: %v", failed, testID, err)
			}

			hash, _ := hex.DecodeString(tx.TransactionHash)
			for i, p := range mp.Proof {
				ph, _ := hex.DecodeString(p)
				var sum [32]byte
				if mp.Order[i] == 1 {
					sum = sha256.Sum256(append(append([]byte{}, hash...), ph...))
				} else {
					sum = sha256.Sum256(append(append([]byte{}, ph...), hash...))
				}
				hash = sum[:]
			}

			if hex.EncodeToString(hash) != mp.MerkleRoot || mp.BlockHash != st.RetrieveLatestBlock().Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould be able to rebuild the merkle root from the proof.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to rebuild the merkle root from the proof.", success, testID)

			if _, err := st.QueryMerkleProof(signature.ZeroHash); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not find a proof for an unknown transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not find a proof for an unknown transaction.", success, testID)
		}
	}
}

func Test_ScenarioB(t *testing.T) {
	acc := loadAccounts(t)
	bertrandPKH := signature.PublicKeyHash(acc.bertrand.PublicKey)

	t.Log("Given the need to collect fees for the miner.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the mempool holds a transaction of 10 in and 8 out.", testID)
		{
			st, _ := newState(t, acc, 10, nil)

			tx := spend(t, st, acc.albert, []database.Output{
				{Amount: 8, LockingScript: script.LockingScript(bertrandPKH)},
			})
			if added, err := st.UpsertMempool(tx); err != nil || !added {
				t.Fatalf("\t%s\tTest %d:\tShould be able to place the transaction in the mempool: %v", failed, testID, err)
			}

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine and validate the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine and validate the block.", success, testID)

			trans := block.Transactions()
			coinbase := trans[len(trans)-1]
			if total, err := coinbase.TotalOutputs(); err != nil || !coinbase.IsCoinbase() || total != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould pay a coinbase of 3, got %d: %v", failed, testID, total, err)
			}
			t.Logf("\t%s\tTest %d:\tShould pay a coinbase of 3.", success, testID)
		}
	}
}

func Test_Shutdown(t *testing.T) {
	acc := loadAccounts(t)
	bertrandPKH := signature.PublicKeyHash(acc.bertrand.PublicKey)

	t.Log("Given the need to bring a node down.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen transactions are still pending.", testID)
		{
			st, fw := newState(t, acc, 10, nil)

			tx := spend(t, st, acc.albert, []database.Output{
				{Amount: 10, LockingScript: script.LockingScript(bertrandPKH)},
			})
			if added, err := st.UpsertMempool(tx); err != nil || !added {
				t.Fatalf("\t%s\tTest %d:\tShould be able to place the transaction in the mempool: %v", failed, testID, err)
			}

			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to shut down: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to shut down.", success, testID)

			if !fw.shutdown || st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould stop the worker and clear the mempool: pool[%d].", failed, testID, st.QueryMempoolLength())
			}
			t.Logf("\t%s\tTest %d:\tShould stop the worker and clear the mempool.", success, testID)
		}
	}
}

func Test_ProcessProposedBlock(t *testing.T) {
	acc := loadAccounts(t)

	t.Log("Given the need to accept blocks mined by peers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a peer mines on the same genesis.", testID)
		{
			miner, _ := newState(t, acc, 40, nil)
			node, fw := newState(t, acc, 40, nil)

			if miner.RetrieveLatestBlock().Hash() != node.RetrieveLatestBlock().Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould build the same genesis block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould build the same genesis block.", success, testID)

			tx := spend(t, miner, acc.albert, []database.Output{
				{Amount: 40, LockingScript: script.LockingScript(signature.PublicKeyHash(acc.bertrand.PublicKey))},
			})
			if err := miner.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit the transaction: %v", failed, testID, err)
			}
			if err := node.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit the transaction to the peer: %v", failed, testID, err)
			}

			block, err := miner.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}

			data, err := json.Marshal(database.NewBlockData(block))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to marshal the block: %v", failed, testID, err)
			}

			var bd database.BlockData
			if err := json.Unmarshal(data, &bd); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to unmarshal the block: %v", failed, testID, err)
			}

			if err := node.ProcessProposedBlock(bd); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to accept the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to accept the block.", success, testID)

			if node.RetrieveLatestBlock().Hash() != block.Hash() || node.QueryMempoolLength() != 0 || fw.cancels != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould adopt the block, clear the mempool and cancel mining.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt the block, clear the mempool and cancel mining.", success, testID)

			err = node.ProcessProposedBlock(bd)
			if !database.IsChainError(err) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the same block twice: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the same block twice.", success, testID)
		}
	}
}

func Test_NetSend(t *testing.T) {
	acc := loadAccounts(t)

	t.Log("Given the need to broadcast to peers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen one of the peers is unreachable.", testID)
		{
			var mu sync.Mutex
			var paths []string

			good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				paths = append(paths, r.URL.Path)
				mu.Unlock()
				w.Write([]byte("Transaction success"))
			}))
			defer good.Close()

			down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			down.Close()

			bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "chain error: stale or forked parent", http.StatusBadRequest)
			}))
			defer bad.Close()

			st, _ := newState(t, acc, 40, peer.NewPeerSet(down.URL, good.URL, bad.URL))

			if sent := st.NetSendBlockToPeers(st.RetrieveLatestBlock()); sent != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould deliver the block to the reachable peer, sent[%d].", failed, testID, sent)
			}
			t.Logf("\t%s\tTest %d:\tShould deliver the block to the reachable peer.", success, testID)

			tx := spend(t, st, acc.albert, []database.Output{
				{Amount: 40, LockingScript: script.LockingScript("aa")},
			})
			if sent := st.NetSendTxToPeers(tx); sent != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould deliver the transaction to the reachable peer, sent[%d].", failed, testID, sent)
			}
			t.Logf("\t%s\tTest %d:\tShould deliver the transaction to the reachable peer.", success, testID)

			mu.Lock()
			defer mu.Unlock()
			if len(paths) != 2 || paths[0] != "/block" || paths[1] != "/transactions" {
				t.Fatalf("\t%s\tTest %d:\tShould post to the public routes, got %v.", failed, testID, paths)
			}
			t.Logf("\t%s\tTest %d:\tShould post to the public routes.", success, testID)

			status := st.QueryStatus()
			if status.Height != 1 || len(status.KnownPeers) != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould report the node status: %+v.", failed, testID, status)
			}
			t.Logf("\t%s\tTest %d:\tShould report the node status.", success, testID)
		}
	}
}
