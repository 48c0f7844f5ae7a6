// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date        time.Time         `json:"date"`
	Difficulty  uint              `json:"difficulty"`   // How many leading zeros a block hash needs.
	BlockReward uint64            `json:"block_reward"` // Value minted for the miner of each block.
	Balances    map[string]uint64 `json:"balances"`     // Starting allocations by name or public key hash.
}

// Allocation is a single starting balance.
type Allocation struct {
	PublicKeyHash string
	Amount        uint64
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, errors.Wrapf(err, "reading genesis file %q", path)
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, errors.Wrap(err, "decoding genesis file")
	}

	if genesis.Difficulty > 64 {
		return Genesis{}, errors.Newf("difficulty %d is larger than a hash", genesis.Difficulty)
	}

	return genesis, nil
}

// Allocations returns the starting balances sorted by public key hash. Keys
// are translated with the lookup function, keys it doesn't know are used as
// public key hashes unchanged.
func (g Genesis) Allocations(lookup func(name string) (string, bool)) []Allocation {
	allocs := make([]Allocation, 0, len(g.Balances))
	for key, amount := range g.Balances {
		pkh := key
		if lookup != nil {
			if resolved, exists := lookup(key); exists {
				pkh = resolved
			}
		}
		allocs = append(allocs, Allocation{PublicKeyHash: pkh, Amount: amount})
	}

	sort.Slice(allocs, func(i, j int) bool {
		return allocs[i].PublicKeyHash < allocs[j].PublicKeyHash
	})

	return allocs
}
