package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starledger/starledger/foundation/starchain/signature"
)

// ErrGenesisPayload is returned when the payload of the genesis block is
// asked for a star record. The genesis payload is a marker, not a claim,
// and must never be surfaced to owner lookups.
var ErrGenesisPayload = fmt.Errorf("genesis block carries no star record")

// ErrPayloadCorrupt is returned when stored payload bytes can not be decoded
// back into a star record. This is data corruption, not a caller mistake.
var ErrPayloadCorrupt = fmt.Errorf("block payload is corrupt")

// =============================================================================

// BlockHeader represents the linkage information required for each block.
type BlockHeader struct {
	Number        uint64 `json:"number"`          // Position of the block in the chain, assigned at seal time.
	TimeStamp     uint64 `json:"timestamp"`       // Time the block was sealed.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
}

// Block represents a sealed record on the chain. Once sealed the hash is
// set and the other fields never change. The hash is only ever recomputed
// to detect tampering, never to repair a block.
type Block struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"header"`
	Data   []byte      `json:"data"`
}

// newBlock seals the specified payload into a block. The hash is computed
// over the header and payload with the hash field itself excluded, using a
// stable field order of number, timestamp, parent hash, payload.
func newBlock(data []byte, prevBlockHash string, number uint64, now time.Time) Block {
	b := Block{
		Header: BlockHeader{
			Number:        number,
			TimeStamp:     uint64(now.UTC().Unix()),
			PrevBlockHash: prevBlockHash,
		},
		Data: data,
	}
	b.Hash = b.contentHash()

	return b
}

// contentHash computes the digest of the block with the stored hash
// excluded from the input.
func (b Block) contentHash() string {
	content := struct {
		Header BlockHeader `json:"header"`
		Data   []byte      `json:"data"`
	}{
		Header: b.Header,
		Data:   b.Data,
	}

	return signature.Hash(content)
}

// Validate recomputes the digest for the block and compares it against the
// stored hash. A mismatch means the block was mutated after sealing. Tamper
// detection is a boolean outcome, not a fault.
func (b Block) Validate() bool {
	return b.Hash == b.contentHash()
}

// IsGenesis reports whether this block is the sentinel first block.
func (b Block) IsGenesis() bool {
	return b.Header.PrevBlockHash == signature.ZeroHash
}

// StarRecord decodes the payload back into the owner attributed record.
func (b Block) StarRecord() (StarRecord, error) {
	if b.IsGenesis() {
		return StarRecord{}, ErrGenesisPayload
	}

	var record StarRecord
	if err := json.Unmarshal(b.Data, &record); err != nil {
		return StarRecord{}, fmt.Errorf("%w: blk[%d]: %v", ErrPayloadCorrupt, b.Header.Number, err)
	}

	return record, nil
}
