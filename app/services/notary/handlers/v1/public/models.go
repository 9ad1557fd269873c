package public

import (
	"fmt"

	"github.com/starledger/starledger/foundation/nameservice"
	"github.com/starledger/starledger/foundation/starchain/database"
)

type challengeRequest struct {
	Address string `json:"address" validate:"required"`
}

type challengeResponse struct {
	Challenge string `json:"challenge"`
}

type submitRequest struct {
	Address   string `json:"address" validate:"required"`
	Challenge string `json:"challenge" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	Star      star   `json:"star"`
}

type star struct {
	RA    string `json:"ra"`
	Dec   string `json:"dec"`
	Story string `json:"story" validate:"required"`
}

type starRecord struct {
	Owner     string `json:"owner"`
	OwnerName string `json:"owner_name"`
	Star      star   `json:"star"`
}

// block is the external view of a sealed block. Callers always get the raw
// hex payload, the decoded star is added for non-genesis blocks.
type block struct {
	Number        uint64 `json:"number"`
	TimeStamp     uint64 `json:"timestamp"`
	Hash          string `json:"hash"`
	PrevBlockHash string `json:"prev_block_hash"`
	Data          string `json:"data"`
	Owner         string `json:"owner,omitempty"`
	OwnerName     string `json:"owner_name,omitempty"`
	Star          *star  `json:"star,omitempty"`
}

// toBlock constructs the external view for the specified block.
func toBlock(blk database.Block, ns *nameservice.NameService) block {
	bv := block{
		Number:        blk.Header.Number,
		TimeStamp:     blk.Header.TimeStamp,
		Hash:          blk.Hash,
		PrevBlockHash: blk.Header.PrevBlockHash,
		Data:          fmt.Sprintf("%x", blk.Data),
	}

	// The genesis block carries a marker payload and stays raw only.
	record, err := blk.StarRecord()
	if err != nil {
		return bv
	}

	bv.Owner = string(record.Owner)
	bv.OwnerName = ns.Lookup(record.Owner)
	bv.Star = &star{
		RA:    record.Star.RA,
		Dec:   record.Star.Dec,
		Story: record.Star.Story,
	}

	return bv
}

// toStarRecord constructs the external view for an owner lookup result.
func toStarRecord(record database.StarRecord, ns *nameservice.NameService) starRecord {
	return starRecord{
		Owner:     string(record.Owner),
		OwnerName: ns.Lookup(record.Owner),
		Star: star{
			RA:    record.Star.RA,
			Dec:   record.Star.Dec,
			Story: record.Star.Story,
		},
	}
}
