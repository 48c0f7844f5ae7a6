package peer_test

import (
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host1"}, {Host: "host2"}, {Host: "host3"}},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, peer := range tst.peers {
				ps.Add(peer)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			peers = ps.Copy("host2")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Seeded(t *testing.T) {
	ps := peer.NewPeerSet("host3", "host1", "", "host2", "host1")

	peers := ps.Copy("")
	if len(peers) != 3 {
		t.Logf("got: %d", len(peers))
		t.Logf("exp: %d", 3)
		t.Fatalf("Should get back the seeded peers without blanks or duplicates.")
	}

	for i, host := range []string{"host1", "host2", "host3"} {
		if peers[i].Host != host {
			t.Fatalf("Should get back the peers sorted by host, got %s at %d.", peers[i].Host, i)
		}
	}

	if ps.Add(peer.New("host2")) {
		t.Fatalf("Should not add a known peer twice.")
	}

	ps.Remove(peer.New("host2"))
	if len(ps.Copy("")) != 2 {
		t.Fatalf("Should be able to remove a peer.")
	}
}
