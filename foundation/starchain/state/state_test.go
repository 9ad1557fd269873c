package state_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/starledger/starledger/foundation/starchain/database"
	"github.com/starledger/starledger/foundation/starchain/genesis"
	"github.com/starledger/starledger/foundation/starchain/signature"
	"github.com/starledger/starledger/foundation/starchain/state"
	"github.com/starledger/starledger/foundation/starchain/storage/memory"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	pkHexKey  = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	pk2HexKey = "9f332e3700d8fc78c7ffc6ca4e4b75e8425002b4d91dcb24c3a4cc29b719d6a5"
)

// =============================================================================

func Test_EndToEnd(t *testing.T) {
	t.Log("Given the need to notarize a star end to end.")
	{
		t.Logf("\tTest 0:\tWhen walking the full challenge, sign, submit flow.")
		{
			st := newState(t)

			pk, err := crypto.HexToECDSA(pkHexKey)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to load the private key: %v", failed, err)
			}
			address := database.PublicKeyToAccountID(pk.PublicKey)

			msg := st.IssueChallenge(address)
			if !strings.HasPrefix(msg, string(address)+":") || !strings.HasSuffix(msg, ":starRegistry") {
				t.Logf("got: %s", msg)
				t.Fatalf("\t%s\tTest 0:\tShould issue the address:time:purpose challenge.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould issue the address:time:purpose challenge.", success)

			sig, err := signature.Sign(msg, pk)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the challenge: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to sign the challenge.", success)

			block, err := st.SubmitStar(address, msg, sig, database.Star{Story: "Polaris"})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit the star: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to submit the star.", success)

			if block.Header.Number != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould notarize into block 1, got %d.", failed, block.Header.Number)
			}
			t.Logf("\t%s\tTest 0:\tShould notarize into block 1.", success)

			records, err := st.StarsByOwner(address)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to look up the owner's stars: %v", failed, err)
			}
			if len(records) != 1 || records[0].Owner != address || records[0].Star.Story != "Polaris" {
				t.Fatalf("\t%s\tTest 0:\tShould get back the one notarized star.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get back the one notarized star.", success)

			if issues := st.ValidateChain(); len(issues) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould have no validation issues, got %d.", failed, len(issues))
			}
			t.Logf("\t%s\tTest 0:\tShould have no validation issues.", success)
		}
	}
}

func Test_SubmitRejections(t *testing.T) {
	t.Log("Given the need to refuse submissions that fail the protocol.")
	{
		pk, err := crypto.HexToECDSA(pkHexKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the private key: %v", failed, err)
		}
		address := database.PublicKeyToAccountID(pk.PublicKey)

		t.Logf("\tTest 0:\tWhen the challenge is malformed.")
		{
			st := newState(t)

			_, err := st.SubmitStar(address, "garbage", "0xsig", database.Star{})
			if !errors.Is(err, state.ErrMalformedChallenge) {
				t.Fatalf("\t%s\tTest 0:\tShould reject a malformed challenge: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a malformed challenge.", success)
		}

		t.Logf("\tTest 1:\tWhen the challenge was issued for another address.")
		{
			st := newState(t)

			other := database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
			msg := st.IssueChallenge(other)

			_, err := st.SubmitStar(address, msg, "0xsig", database.Star{})
			if !errors.Is(err, state.ErrMalformedChallenge) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a challenge bound to another address: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject a challenge bound to another address.", success)
		}

		t.Logf("\tTest 2:\tWhen the challenge has expired.")
		{
			st := newState(t)

			issued := time.Now().Add(-genesis.DefaultChallengeWindow - 2*time.Second)
			msg := fmt.Sprintf("%s:%d:starRegistry", address, issued.Unix())

			sig, err := signature.Sign(msg, pk)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to sign the challenge: %v", failed, err)
			}

			_, err = st.SubmitStar(address, msg, sig, database.Star{})
			if !errors.Is(err, state.ErrExpiredChallenge) {
				t.Fatalf("\t%s\tTest 2:\tShould reject an expired challenge: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject an expired challenge.", success)
		}

		t.Logf("\tTest 3:\tWhen the challenge is still inside the window.")
		{
			st := newState(t)

			issued := time.Now().Add(-genesis.DefaultChallengeWindow + 2*time.Second)
			msg := fmt.Sprintf("%s:%d:starRegistry", address, issued.Unix())

			sig, err := signature.Sign(msg, pk)
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to sign the challenge: %v", failed, err)
			}

			if _, err := st.SubmitStar(address, msg, sig, database.Star{Story: "Vega"}); err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould accept a challenge near the end of the window: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould accept a challenge near the end of the window.", success)
		}

		t.Logf("\tTest 4:\tWhen the signature was produced by another wallet.")
		{
			st := newState(t)

			msg := st.IssueChallenge(address)

			otherPK, err := crypto.HexToECDSA(pk2HexKey)
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to load the other private key: %v", failed, err)
			}

			sig, err := signature.Sign(msg, otherPK)
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to sign the challenge: %v", failed, err)
			}

			heightBefore := st.Height()

			_, err = st.SubmitStar(address, msg, sig, database.Star{})
			if !errors.Is(err, state.ErrBadSignature) {
				t.Fatalf("\t%s\tTest 4:\tShould reject a non-matching signature: %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould reject a non-matching signature.", success)

			if st.Height() != heightBefore {
				t.Fatalf("\t%s\tTest 4:\tShould leave the chain height unchanged.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould leave the chain height unchanged.", success)
		}
	}
}

func Test_OwnerIsolation(t *testing.T) {
	t.Log("Given the need to keep owner lookups isolated per address.")
	{
		t.Logf("\tTest 0:\tWhen two wallets notarize stars.")
		{
			st := newState(t)

			pkA, err := crypto.HexToECDSA(pkHexKey)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to load private key A: %v", failed, err)
			}
			pkB, err := crypto.HexToECDSA(pk2HexKey)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to load private key B: %v", failed, err)
			}

			addrA := database.PublicKeyToAccountID(pkA.PublicKey)
			addrB := database.PublicKeyToAccountID(pkB.PublicKey)

			for _, sub := range []struct {
				addr  database.AccountID
				pk    string
				story string
			}{
				{addrA, pkHexKey, "Polaris"},
				{addrB, pk2HexKey, "Sirius"},
				{addrA, pkHexKey, "Vega"},
			} {
				pk, err := crypto.HexToECDSA(sub.pk)
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to load a private key: %v", failed, err)
				}

				msg := st.IssueChallenge(sub.addr)
				sig, err := signature.Sign(msg, pk)
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to sign the challenge: %v", failed, err)
				}

				if _, err := st.SubmitStar(sub.addr, msg, sig, database.Star{Story: sub.story}); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to submit %q: %v", failed, sub.story, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould be able to submit stars for both wallets.", success)

			records, err := st.StarsByOwner(addrA)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to look up wallet A's stars: %v", failed, err)
			}

			if len(records) != 2 || records[0].Star.Story != "Polaris" || records[1].Star.Story != "Vega" {
				t.Fatalf("\t%s\tTest 0:\tShould only return wallet A's stars in submission order.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould only return wallet A's stars in submission order.", success)
		}
	}
}

// =============================================================================

func newState(t *testing.T) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		Genesis: genesis.Genesis{ChallengeWindow: genesis.DefaultChallengeWindow},
		Storage: memory.New(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return st
}
