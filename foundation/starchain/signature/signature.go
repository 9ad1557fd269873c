// Package signature provides helper functions for handling the digest and
// wallet signature needs of the star ledger.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros. It is used as the parent
// reference of the genesis block.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// ledgerID is an arbitrary number for signing messages. This will make it
// clear that the signature comes from the star ledger.
// Ethereum and Bitcoin do this as well, but they use the value of 27.
const ledgerID = 31

// =============================================================================

// Hash returns a unique string for the value.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// Sign uses the specified private key to sign the message and returns the
// signature as a hex encoded string in the [R|S|V] format.
func Sign(message string, privateKey *ecdsa.PrivateKey) (string, error) {

	// Prepare the message for signing.
	data := stamp(message)

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return "", errors.New("invalid signature produced")
	}

	// Embed the ledger id in the recovery byte before encoding.
	sig[crypto.RecoveryIDOffset] += ledgerID

	return hexutil.Encode(sig), nil
}

// FromAddress extracts the wallet address that signed the message. If the
// exact message that was signed is not provided, the wrong address is
// recovered. There is no way to detect that here since the public key is
// being extracted from the message and signature.
func FromAddress(message string, sigStr string) (string, error) {
	sig, err := toSignatureBytes(sigStr)
	if err != nil {
		return "", err
	}

	// Validate the signature conforms to our standards before any
	// expensive recovery work takes place.
	if err := verifySignature(sig); err != nil {
		return "", err
	}

	// Prepare the message the same way it was prepared for signing.
	data := stamp(message)

	// Capture the public key associated with this message and signature.
	sig[crypto.RecoveryIDOffset] -= ledgerID
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	// Extract the wallet address from the public key.
	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this message with the
// star ledger stamp embedded into the final hash.
func stamp(message string) []byte {

	// Hash the message into a 32 byte array. This will provide a data
	// length consistency with all messages.
	msgHash := crypto.Keccak256([]byte(message))

	// This stamp is used so signatures produced when signing messages
	// are always unique to the star ledger.
	stamp := []byte("\x19Star Ledger Signed Message:\n32")

	// Hash the stamp and message hash together in a final 32 byte array
	// that represents the message.
	return crypto.Keccak256(stamp, msgHash)
}

// verifySignature verifies the signature conforms to our standards.
func verifySignature(sig []byte) error {

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset] - ledgerID
	if v != 0 && v != 1 {
		return errors.New("invalid recovery id")
	}

	// Check the signature values are valid.
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, false) {
		return errors.New("invalid signature values")
	}

	return nil
}

// toSignatureBytes converts the hex encoded signature into its original
// 65 bytes, keeping the ledger id in the recovery byte.
func toSignatureBytes(sigStr string) ([]byte, error) {
	if len(sigStr) < 2 || sigStr[:2] != "0x" {
		return nil, errors.New("signature is not hex encoded")
	}

	sig, err := hex.DecodeString(sigStr[2:])
	if err != nil {
		return nil, err
	}

	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("signature has wrong length, got %d, exp %d", len(sig), crypto.SignatureLength)
	}

	return sig, nil
}
