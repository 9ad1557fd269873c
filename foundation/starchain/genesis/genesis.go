// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date            time.Time     `json:"date"`
	ChainID         uint16        `json:"chain_id"`         // The chain id represents an unique id for this running instance.
	ChallengeWindow time.Duration `json:"challenge_window"` // How long an issued challenge stays valid for submission.
	Marker          string        `json:"marker"`           // Text stored as the payload of the genesis block.
}

// DefaultChallengeWindow is the validity window applied when the genesis
// file does not specify one.
const DefaultChallengeWindow = 5 * time.Minute

// =============================================================================

// Load opens and consumes the genesis file.
func Load() (Genesis, error) {
	path := "zblock/genesis.json"
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if genesis.ChallengeWindow == 0 {
		genesis.ChallengeWindow = DefaultChallengeWindow
	}

	return genesis, nil
}
