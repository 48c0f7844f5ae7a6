package cmd

import (
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	pkh := signature.PublicKeyHash(privateKey.PublicKey)

	bal, err := newClient(url).balance(pkh)
	if err != nil {
		return err
	}

	fmt.Println(labelText("Account:"), pkh)
	fmt.Println(labelText("Total:  "), valueText(bal.Total))
	for _, utxo := range bal.UTXOs {
		fmt.Printf("  %s %d\n", utxo.TransactionHash, utxo.Amount)
	}

	return nil
}
