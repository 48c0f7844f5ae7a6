package cmd

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/script"
	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount uint64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Name or public key hash of the payee.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	if to == "" || amount == 0 {
		return errors.New("a payee and an amount are required")
	}

	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	// A payee can be named by any key file in the accounts folder.
	payee := to
	if ns, err := nameservice.New(accountPath); err == nil {
		if pkh, exists := ns.Resolve(to); exists {
			payee = pkh
		}
	}

	c := newClient(url)

	bal, err := c.balance(signature.PublicKeyHash(privateKey.PublicKey))
	if err != nil {
		return err
	}

	tx, err := buildSend(privateKey, bal, c.transaction, payee, amount)
	if err != nil {
		return err
	}

	msg, err := c.submit(tx)
	if err != nil {
		return err
	}

	fmt.Println(labelText("Tx:    "), tx.TransactionHash)
	fmt.Println(labelText("Status:"), valueText(msg))

	return nil
}

// buildSend spends outputs of the balance until the amount is covered. The
// outputs pay the amount to the payee and the remainder back to the owner
// so inputs and outputs balance exactly.
func buildSend(privateKey *ecdsa.PrivateKey, bal database.Balance, fetch func(hash string) (database.Tx, error), payee string, amount uint64) (database.Tx, error) {
	owner := signature.PublicKeyHash(privateKey.PublicKey)

	var inputs []database.Input
	var total uint64

	seen := make(map[string]bool)
	for _, utxo := range bal.UTXOs {
		if total >= amount {
			break
		}
		if seen[utxo.TransactionHash] {
			continue
		}
		seen[utxo.TransactionHash] = true

		// The balance doesn't carry output positions, the transaction does.
		tx, err := fetch(utxo.TransactionHash)
		if err != nil {
			return database.Tx{}, err
		}

		for i, out := range tx.Outputs {
			if out.PublicKeyHash() != owner {
				continue
			}

			inputs = append(inputs, database.Input{TransactionHash: tx.TransactionHash, OutputIndex: uint32(i)})
			total += out.Amount
		}
	}

	if total < amount {
		return database.Tx{}, fmt.Errorf("insufficient funds: have %d, need %d", total, amount)
	}

	outputs := []database.Output{{Amount: amount, LockingScript: script.LockingScript(payee)}}
	if change := total - amount; change > 0 {
		outputs = append(outputs, database.Output{Amount: change, LockingScript: script.LockingScript(owner)})
	}

	tx, err := database.NewTx(inputs, outputs)
	if err != nil {
		return database.Tx{}, err
	}

	return tx.Sign(privateKey)
}
