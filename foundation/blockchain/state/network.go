package state

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/cockroachdb/errors"
)

// peerTimeout bounds a single call to a peer so one unreachable node can't
// hold up delivery to the rest.
const peerTimeout = 5 * time.Second

// NetSendBlockToPeers takes the new mined block and sends it to all known
// peers. A failing peer is logged and skipped. The number of peers that
// accepted the block is returned.
func (s *State) NetSendBlockToPeers(block database.Block) int {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	body := struct {
		Block database.BlockData `json:"block"`
	}{
		Block: database.NewBlockData(block),
	}

	var sent int
	for _, pr := range s.RetrieveKnownPeers() {
		if err := send(http.MethodPost, peerURL(pr, "/block"), body, nil); err != nil {
			s.evHandler("state: NetSendBlockToPeers: WARNING: peer[%s]: %s", pr.Host, err)
			continue
		}

		sent++
		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", pr.Host)
	}

	return sent
}

// NetSendTxToPeers shares a new transaction with the known peers. A failing
// peer is logged and skipped. The number of peers that accepted the
// transaction is returned.
func (s *State) NetSendTxToPeers(tx database.Tx) int {
	s.evHandler("state: NetSendTxToPeers: started")
	defer s.evHandler("state: NetSendTxToPeers: completed")

	body := struct {
		Transaction database.Tx `json:"transaction"`
	}{
		Transaction: tx,
	}

	var sent int
	for _, pr := range s.RetrieveKnownPeers() {
		if err := send(http.MethodPost, peerURL(pr, "/transactions"), body, nil); err != nil {
			s.evHandler("state: NetSendTxToPeers: WARNING: peer[%s]: %s", pr.Host, err)
			continue
		}

		sent++
	}

	return sent
}

// NetRequestPeerStatus asks the peer for its status.
func (s *State) NetRequestPeerStatus(pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr.Host)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr.Host)

	var ps peer.PeerStatus
	if err := send(http.MethodGet, peerURL(pr, "/status"), nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: latest-blk[%s]: height[%d]", pr.Host, ps.LatestBlockHash, ps.Height)

	return ps, nil
}

// =============================================================================

// peerURL builds the url for the path on the peer. Hosts without a scheme
// are reached over http.
func peerURL(pr peer.Peer, path string) string {
	host := strings.TrimSuffix(pr.Host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}

	return host + path
}

// send is a helper function to send an HTTP request to a node.
func send(method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader

	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if dataSend != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := http.Client{
		Timeout: peerTimeout,
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "read response")
		}
		return errors.Newf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}

	return nil
}
