// Package nameservice reads the zblock/accounts folder and creates a name
// service lookup between account names and public key hashes.
package nameservice

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of public key hashes for name lookup.
type NameService struct {
	names  map[string]string // pkh -> name
	hashes map[string]string // name -> pkh
}

// New constructs a Name Service with accounts from the zblock/accounts
// folder. Every file with the .ecdsa extension holds a hex encoded private
// key and the file name is the account name.
func New(root string) (*NameService, error) {
	ns := NameService{
		names:  make(map[string]string),
		hashes: make(map[string]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		pkh := signature.PublicKeyHash(privateKey.PublicKey)
		name := strings.TrimSuffix(path.Base(fileName), ".ecdsa")

		ns.names[pkh] = name
		ns.hashes[name] = pkh

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified public key hash. The hash is
// returned when no name is known.
func (ns *NameService) Lookup(pkh string) string {
	name, exists := ns.names[pkh]
	if !exists {
		return pkh
	}
	return name
}

// Resolve returns the public key hash for the specified name.
func (ns *NameService) Resolve(name string) (string, bool) {
	pkh, exists := ns.hashes[name]
	return pkh, exists
}

// Copy returns a copy of the map of public key hashes and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.names))
	for pkh, name := range ns.names {
		cpy[pkh] = name
	}
	return cpy
}
