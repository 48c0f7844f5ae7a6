package main

import (
	"github.com/ardanlabs/powledger/app/wallet/cli/cmd"
)

func main() {
	cmd.Execute()
}
