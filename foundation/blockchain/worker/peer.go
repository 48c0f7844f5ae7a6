package worker

// peerOperations handles checking the status of the known peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation asks every known peer for its status. The peer set is
// static so an unreachable or diverging peer is only reported.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	latest := w.state.RetrieveLatestBlock().Hash()
	height := w.state.RetrieveHeight()

	for _, pr := range w.state.RetrieveKnownPeers() {
		ps, err := w.state.NetRequestPeerStatus(pr)
		if err != nil {
			w.evHandler("worker: runPeersOperation: queryPeerStatus: %s: ERROR: %s", pr.Host, err)
			continue
		}

		if ps.LatestBlockHash != latest {
			w.evHandler("worker: runPeersOperation: %s: WARNING: peer tip[%s] height[%d] differs from tip[%s] height[%d]", pr.Host, ps.LatestBlockHash, ps.Height, latest, height)
		}
	}
}
