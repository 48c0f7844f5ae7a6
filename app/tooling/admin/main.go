// This program performs administrative tasks for the ledger node.
package main

import (
	"fmt"
	"os"

	"github.com/ardanlabs/powledger/app/tooling/admin/commands"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/logger"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

const (
	genesisPath  = "zblock/genesis.json"
	accountsPath = "zblock/accounts/"
)

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	log.Infow("startup", "version", build)

	ns, err := nameservice.New(accountsPath)
	if err != nil {
		return err
	}

	return processCommands(os.Args, ns)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, ns *nameservice.NameService) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: admin accounts | admin genesis [path]")
	}

	switch args[1] {
	case "accounts":
		commands.Accounts(os.Stdout, ns)

	case "genesis":
		path := genesisPath
		if len(args) > 2 {
			path = args[2]
		}

		gen, err := genesis.Load(path)
		if err != nil {
			return fmt.Errorf("loading genesis: %w", err)
		}

		if err := commands.Genesis(os.Stdout, gen, ns); err != nil {
			return fmt.Errorf("building genesis block: %w", err)
		}

	default:
		return fmt.Errorf("unknown command %q", args[1])
	}

	return nil
}
