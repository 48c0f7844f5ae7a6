package commands_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/app/tooling/admin/commands"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Commands(t *testing.T) {
	dir := t.TempDir()

	pk, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
	if err != nil {
		t.Fatalf("Should be able to load the key: %v", err)
	}
	if err := crypto.SaveECDSA(filepath.Join(dir, "albert.ecdsa"), pk); err != nil {
		t.Fatalf("Should be able to save the key: %v", err)
	}

	ns, err := nameservice.New(dir)
	if err != nil {
		t.Fatalf("Should be able to load the name service: %v", err)
	}

	t.Log("Given the need to inspect the node's starting state.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen printing the genesis block.", testID)
		{
			gen := genesis.Genesis{
				Date:        time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
				Difficulty:  1,
				BlockReward: 1,
				Balances:    map[string]uint64{"albert": 40},
			}

			var buf bytes.Buffer
			if err := commands.Genesis(&buf, gen, ns); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the genesis block: %v", failed, testID, err)
			}

			if !strings.Contains(buf.String(), "Block: ") || !strings.Contains(buf.String(), "albert") || !strings.Contains(buf.String(), "Amount: 40") {
				t.Fatalf("\t%s\tTest %d:\tShould print the allocation by name:\n%s", failed, testID, buf.String())
			}
			t.Logf("\t%s\tTest %d:\tShould print the allocation by name.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen printing the accounts.", testID)
		{
			var buf bytes.Buffer
			commands.Accounts(&buf, ns)

			if !strings.Contains(buf.String(), "albert") || strings.Count(buf.String(), "\n") != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould print one account:\n%s", failed, testID, buf.String())
			}
			t.Logf("\t%s\tTest %d:\tShould print one account.", success, testID)
		}
	}
}
