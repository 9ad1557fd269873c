// Package challenge implements the time-boxed message a wallet owner signs
// to prove control of an address. The challenge carries its own issue time
// so no server side session state is needed between the two phases.
package challenge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// purposeTag marks what the signed message is for so a signature produced
// for the star registry can not be replayed against another purpose.
const purposeTag = "starRegistry"

// ErrMalformed is returned when a submitted challenge does not have the
// address:time:purpose shape this package produces.
var ErrMalformed = errors.New("malformed challenge")

// =============================================================================

// Challenge represents the parsed form of an issued challenge message.
type Challenge struct {
	Address  string
	IssuedAt time.Time
}

// New constructs the challenge message for the specified address. The caller
// signs this exact string with the wallet's private key.
func New(address string, now time.Time) string {
	return fmt.Sprintf("%s:%d:%s", address, now.Unix(), purposeTag)
}

// Parse validates the shape of a submitted challenge message and extracts
// the address and issue time bound inside of it.
func Parse(message string) (Challenge, error) {
	parts := strings.Split(message, ":")
	if len(parts) != 3 {
		return Challenge{}, ErrMalformed
	}

	if parts[0] == "" || parts[2] != purposeTag {
		return Challenge{}, ErrMalformed
	}

	seconds, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Challenge{}, ErrMalformed
	}

	ch := Challenge{
		Address:  parts[0],
		IssuedAt: time.Unix(seconds, 0),
	}

	return ch, nil
}

// Expired reports whether the challenge is no longer valid at the specified
// time. The boundary is inclusive, a challenge submitted exactly window
// seconds after issue is still accepted.
func (c Challenge) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(c.IssuedAt) > window
}
