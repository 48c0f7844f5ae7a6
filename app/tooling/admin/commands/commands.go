// Package commands contains the admin commands.
package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/nameservice"
)

// Accounts prints the names known to the name service with their public
// key hashes.
func Accounts(w io.Writer, ns *nameservice.NameService) {
	accounts := ns.Copy()

	pkhs := make([]string, 0, len(accounts))
	for pkh := range accounts {
		pkhs = append(pkhs, pkh)
	}
	sort.Slice(pkhs, func(i, j int) bool { return accounts[pkhs[i]] < accounts[pkhs[j]] })

	for _, pkh := range pkhs {
		fmt.Fprintf(w, "Name: %-10s PKH: %s\n", accounts[pkh], pkh)
	}
}

// Genesis builds the genesis block every node starts from and prints the
// coinbase transactions that fund the first spends.
func Genesis(w io.Writer, gen genesis.Genesis, ns *nameservice.NameService) error {
	block, err := database.GenesisBlock(gen, ns.Resolve)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Block: %s\n", block.Hash())
	fmt.Fprintf(w, "Merkle Root: %s\n\n", block.Header.MerkleRoot)

	for _, tx := range block.Transactions() {
		for _, out := range tx.Outputs {
			fmt.Fprintf(w, "Tx: %s  Owner: %-10s  Amount: %d\n", tx.TransactionHash, ns.Lookup(out.PublicKeyHash()), out.Amount)
		}
	}

	return nil
}
