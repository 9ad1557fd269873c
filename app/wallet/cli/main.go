package main

import "github.com/starledger/starledger/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
