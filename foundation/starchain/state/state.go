// Package state is the core API for the star ledger and implements the
// ownership notarization rules.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starledger/starledger/foundation/starchain/challenge"
	"github.com/starledger/starledger/foundation/starchain/database"
	"github.com/starledger/starledger/foundation/starchain/genesis"
	"github.com/starledger/starledger/foundation/starchain/signature"
)

// The closed set of reasons a star submission is refused. All of them are
// recoverable by the caller restarting the flow with a fresh challenge.
var (
	ErrMalformedChallenge = errors.New("challenge is malformed")
	ErrExpiredChallenge   = errors.New("challenge has expired")
	ErrBadSignature       = errors.New("signature does not match address")
	ErrChainRejected      = errors.New("chain rejected block")
)

// EventHandler defines a function that is called when events occur in the
// processing of notarizing stars.
type EventHandler func(v string, args ...any)

// =============================================================================

// Config represents the configuration required to start the ledger node.
type Config struct {
	Genesis   genesis.Genesis
	Storage   database.Storage
	EvHandler EventHandler
}

// State manages the chain database and implements the two-phase
// challenge/submit protocol in front of it.
type State struct {
	genesis   genesis.Genesis
	evHandler EventHandler

	db *database.Database
}

// New constructs a new ledger state for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	state := State{
		genesis:   cfg.Genesis,
		evHandler: ev,
		db:        db,
	}

	return &state, nil
}

// Shutdown cleanly brings the ledger down.
func (s *State) Shutdown() error {
	s.db.Close()
	return nil
}

// =============================================================================

// IssueChallenge returns the message the wallet owner must sign to prove
// control of the specified address. No state is kept between this call and
// the submit, the issue time travels inside the message.
func (s *State) IssueChallenge(address database.AccountID) string {
	msg := challenge.New(string(address), time.Now())

	s.evHandler("state: issuechallenge: addr[%s]", address)

	return msg
}

// SubmitStar validates the signed challenge and, on success, seals the star
// into the next block. Checks run cheapest first: shape, freshness, then the
// signature oracle, and only then the chain-mutating append.
func (s *State) SubmitStar(address database.AccountID, challengeMsg string, sig string, star database.Star) (database.Block, error) {
	s.evHandler("state: submitstar: addr[%s]: validating challenge", address)

	ch, err := challenge.Parse(challengeMsg)
	if err != nil {
		return database.Block{}, ErrMalformedChallenge
	}

	if ch.Address != string(address) {
		return database.Block{}, fmt.Errorf("%w: issued for a different address", ErrMalformedChallenge)
	}

	window := s.genesis.ChallengeWindow
	if window == 0 {
		window = genesis.DefaultChallengeWindow
	}
	if ch.Expired(time.Now(), window) {
		return database.Block{}, ErrExpiredChallenge
	}

	s.evHandler("state: submitstar: addr[%s]: verifying signature", address)

	from, err := signature.FromAddress(challengeMsg, sig)
	if err != nil {
		return database.Block{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if from != string(address) {
		return database.Block{}, ErrBadSignature
	}

	record := database.StarRecord{
		Owner: address,
		Star:  star,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return database.Block{}, fmt.Errorf("encoding star record: %w", err)
	}

	block, err := s.db.Append(data)
	if err != nil {
		return database.Block{}, fmt.Errorf("%w: %v", ErrChainRejected, err)
	}

	s.evHandler("state: submitstar: addr[%s]: notarized: blk[%d]: hash[%s]", address, block.Header.Number, block.Hash)

	return block, nil
}

// =============================================================================

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Height returns the current height of the chain.
func (s *State) Height() int {
	return s.db.Height()
}

// LatestBlock returns a copy of the current latest block.
func (s *State) LatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveBlock returns the block at the specified height.
func (s *State) RetrieveBlock(num uint64) (database.Block, error) {
	return s.db.GetBlock(num)
}

// RetrieveBlockByHash returns the block with the specified hash. A miss is
// reported through the boolean, not an error.
func (s *State) RetrieveBlockByHash(hash string) (database.Block, bool) {
	return s.db.GetBlockByHash(hash)
}

// StarsByOwner returns every star record notarized for the specified
// address in submission order.
func (s *State) StarsByOwner(owner database.AccountID) ([]database.StarRecord, error) {
	return s.db.StarsByOwner(owner)
}

// ValidateChain walks the chain and reports every integrity issue found.
func (s *State) ValidateChain() []database.Issue {
	return s.db.Validate()
}
