// Package database maintains the in-memory chain of sealed blocks and
// implements the append, lookup, and tamper detection rules.
package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/starledger/starledger/foundation/starchain/genesis"
	"github.com/starledger/starledger/foundation/starchain/signature"
)

// defaultMarker is stored as the genesis payload when the genesis file does
// not specify one.
const defaultMarker = "First block in the chain - Genesis block"

// Database manages the ordered, append-only sequence of sealed blocks.
// All mutation goes through Append under an exclusive lock, reads observe
// either the pre-append or post-append state, never a partial one.
type Database struct {
	mu          sync.RWMutex
	genesis     genesis.Genesis
	latestBlock Block
	storage     Storage
	evHandler   func(v string, args ...any)
}

// New constructs the database, synthesizes the genesis block when the
// storage is empty, and validates any blocks already present.
func New(gen genesis.Genesis, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	db := Database{
		genesis:   gen,
		storage:   storage,
		evHandler: ev,
	}

	// Capture the latest block from any pre-existing chain and make sure
	// what we were handed is consistent before accepting it.
	if storage.Count() > 0 {
		iter := storage.ForEach()
		for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
			if err != nil {
				return nil, err
			}
			db.latestBlock = block
		}

		if issues := db.validateChain(nil); len(issues) > 0 {
			return nil, &AppendError{Issue: issues[0]}
		}

		return &db, nil
	}

	// The chain starts with exactly one synthesized genesis block carrying
	// a marker payload. It is never produced by a caller.
	marker := gen.Marker
	if marker == "" {
		marker = defaultMarker
	}

	at := gen.Date
	if at.IsZero() {
		at = time.Now()
	}

	if _, err := db.append([]byte(marker), at); err != nil {
		return nil, fmt.Errorf("creating genesis block: %w", err)
	}

	return &db, nil
}

// Close closes the underlying block storage.
func (db *Database) Close() {
	db.storage.Close()
}

// =============================================================================

// Append seals the specified payload into the next block and commits it.
// The chain with the candidate applied is validated in full before the
// commit so corruption never becomes visible through a successful append.
func (db *Database) Append(data []byte) (Block, error) {
	return db.append(data, time.Now())
}

func (db *Database) append(data []byte, now time.Time) (Block, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	// Seal the candidate with the next height and the hash of the current
	// tail. The first block links to the zero hash.
	prevBlockHash := signature.ZeroHash
	number := db.storage.Count()
	if number > 0 {
		prevBlockHash = db.latestBlock.Hash
	}

	block := newBlock(data, prevBlockHash, number, now)

	db.evHandler("database: append: blk[%d]: validating chain with candidate", number)

	if issues := db.validateChain(&block); len(issues) > 0 {
		return Block{}, &AppendError{Issue: issues[0]}
	}

	if err := db.storage.Write(block); err != nil {
		return Block{}, err
	}
	db.latestBlock = block

	db.evHandler("database: append: blk[%d]: committed: hash[%s]", number, block.Hash)

	return block, nil
}

// Height returns the current highest block number, or -1 when no blocks
// exist yet. The -1 state is only observable during construction.
func (db *Database) Height() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	count := db.storage.Count()
	if count == 0 {
		return -1
	}

	return int(count - 1)
}

// LatestBlock returns the current tail of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// GetBlock returns the block at the specified height.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.storage.GetBlock(num)
}

// GetBlockByHash walks the chain to locate the block with the specified
// hash. The boolean reports whether the block was found, a miss is not
// an error.
func (db *Database) GetBlockByHash(hash string) (Block, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	iter := db.storage.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return Block{}, false
		}
		if block.Hash == hash {
			return block, true
		}
	}

	return Block{}, false
}

// StarsByOwner returns every star record claimed by the specified account in
// submission order. The genesis block carries no record and is skipped here.
// A decode failure on any other block is corruption and aborts the lookup.
func (db *Database) StarsByOwner(owner AccountID) ([]StarRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var records []StarRecord

	iter := db.storage.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, fmt.Errorf("owner lookup: %w", err)
		}

		if block.IsGenesis() {
			continue
		}

		record, err := block.StarRecord()
		if err != nil {
			return nil, fmt.Errorf("owner lookup: %w", err)
		}

		if record.Owner == owner {
			records = append(records, record)
		}
	}

	return records, nil
}

// Validate walks the chain once and reports every integrity issue found.
// An empty slice means the chain is fully consistent. The walk is read-only
// and safe to run at any time, including concurrently with appends.
func (db *Database) Validate() []Issue {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.validateChain(nil)
}

// =============================================================================

// validateChain checks every block for self-integrity and linkage to its
// predecessor, with the optional candidate treated as the new tail. Callers
// must hold at least a read lock.
func (db *Database) validateChain(candidate *Block) []Issue {
	var issues []Issue
	var prev Block
	var have bool

	check := func(block Block) {
		if !block.Validate() {
			issues = append(issues, Issue{
				Kind:   IssueTamperedBlock,
				Number: block.Header.Number,
				Hash:   block.Hash,
			})
		}

		// Linkage compares against the predecessor's stored hash so a
		// tampered payload reports exactly one issue at its own height.
		if have && block.Header.PrevBlockHash != prev.Hash {
			issues = append(issues, Issue{
				Kind:       IssueBrokenLink,
				Number:     block.Header.Number,
				Hash:       block.Hash,
				WantParent: prev.Hash,
				GotParent:  block.Header.PrevBlockHash,
			})
		}

		prev = block
		have = true
	}

	iter := db.storage.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return issues
		}
		check(block)
	}

	if candidate != nil {
		check(*candidate)
	}

	return issues
}
