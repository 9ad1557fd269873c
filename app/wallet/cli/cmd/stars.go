package cmd

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/starledger/starledger/foundation/starchain/database"
)

var starsURL string

var starsCmd = &cobra.Command{
	Use:   "stars",
	Short: "List the stars notarized for this wallet",
	Run:   starsRun,
}

func init() {
	rootCmd.AddCommand(starsCmd)
	starsCmd.Flags().StringVarP(&starsURL, "url", "u", "http://localhost:8080", "Url of the node.")
}

func starsRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	address := database.PublicKeyToAccountID(privateKey.PublicKey)

	resp, err := http.Get(fmt.Sprintf("%s/v1/stars/list/%s", starsURL, address))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(body))
}
