package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/starledger/starledger/foundation/starchain/database"
	"github.com/starledger/starledger/foundation/starchain/signature"
)

var (
	url   string
	ra    string
	dec   string
	story string
)

// submitCmd walks the full two-phase flow, it requests a challenge from the
// node, signs it with the wallet key, and submits the star.
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Notarize a star on the ledger",
	Run:   submitRun,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	submitCmd.Flags().StringVarP(&ra, "ra", "r", "", "Right ascension of the star.")
	submitCmd.Flags().StringVarP(&dec, "dec", "d", "", "Declination of the star.")
	submitCmd.Flags().StringVarP(&story, "story", "s", "", "Story to attach to the claim.")
}

func submitRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	address := database.PublicKeyToAccountID(privateKey.PublicKey)

	// Phase one, ask the node for a challenge bound to our address.
	challenge, err := requestChallenge(address)
	if err != nil {
		log.Fatal(err)
	}

	// Sign the exact challenge message with the wallet key.
	sig, err := signature.Sign(challenge, privateKey)
	if err != nil {
		log.Fatal(err)
	}

	// Phase two, submit the star with the proof of ownership.
	submission := struct {
		Address   string        `json:"address"`
		Challenge string        `json:"challenge"`
		Signature string        `json:"signature"`
		Star      database.Star `json:"star"`
	}{
		Address:   string(address),
		Challenge: challenge,
		Signature: sig,
		Star:      database.Star{RA: ra, Dec: dec, Story: story},
	}

	data, err := json.Marshal(submission)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/star/submit", url), "application/json", bytes.NewBuffer(data))
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

// requestChallenge asks the node to issue a fresh challenge for the address.
func requestChallenge(address database.AccountID) (string, error) {
	request := struct {
		Address string `json:"address"`
	}{
		Address: string(address),
	}

	data, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/challenge", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("challenge request failed with status %d", resp.StatusCode)
	}

	var response struct {
		Challenge string `json:"challenge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}

	return response.Challenge, nil
}
