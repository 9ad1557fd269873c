package database_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/starledger/starledger/foundation/starchain/database"
	"github.com/starledger/starledger/foundation/starchain/genesis"
	"github.com/starledger/starledger/foundation/starchain/signature"
	"github.com/starledger/starledger/foundation/starchain/storage/memory"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	ownerA = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	ownerB = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
)

// =============================================================================

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to validate a freshly constructed chain.")
	{
		t.Logf("\tTest 0:\tWhen constructing a new database.")
		{
			db, err := database.New(genesis.Genesis{}, memory.New(), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the database: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to construct the database.", success)

			if h := db.Height(); h != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould have height 0, got %d.", failed, h)
			}
			t.Logf("\t%s\tTest 0:\tShould have height 0.", success)

			block, err := db.GetBlock(0)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to read the genesis block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to read the genesis block.", success)

			if block.Header.PrevBlockHash != signature.ZeroHash {
				t.Fatalf("\t%s\tTest 0:\tShould link the genesis block to the zero hash.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould link the genesis block to the zero hash.", success)

			if _, err := block.StarRecord(); !errors.Is(err, database.ErrGenesisPayload) {
				t.Fatalf("\t%s\tTest 0:\tShould refuse to decode the genesis payload: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse to decode the genesis payload.", success)

			if issues := db.Validate(); len(issues) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould have no validation issues, got %d.", failed, len(issues))
			}
			t.Logf("\t%s\tTest 0:\tShould have no validation issues.", success)
		}
	}
}

func Test_AppendLinkage(t *testing.T) {
	t.Log("Given the need to validate appends keep the chain linked.")
	{
		t.Logf("\tTest 0:\tWhen appending a run of blocks.")
		{
			db, err := database.New(genesis.Genesis{}, memory.New(), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the database: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to construct the database.", success)

			const appends = 5
			for i := 1; i <= appends; i++ {
				block, err := db.Append(recordData(t, ownerA, "star"))
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to append block %d: %v", failed, i, err)
				}

				if block.Header.Number != uint64(i) {
					t.Fatalf("\t%s\tTest 0:\tShould assign height %d, got %d.", failed, i, block.Header.Number)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould be able to append %d blocks with increasing heights.", success, appends)

			if h := db.Height(); h != appends {
				t.Fatalf("\t%s\tTest 0:\tShould have height %d, got %d.", failed, appends, h)
			}
			t.Logf("\t%s\tTest 0:\tShould have height %d.", success, appends)

			for i := 1; i <= appends; i++ {
				prev, err := db.GetBlock(uint64(i - 1))
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to read block %d: %v", failed, i-1, err)
				}
				block, err := db.GetBlock(uint64(i))
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to read block %d: %v", failed, i, err)
				}
				if block.Header.PrevBlockHash != prev.Hash {
					t.Fatalf("\t%s\tTest 0:\tShould link block %d to its parent.", failed, i)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould link every block to its parent.", success)

			if issues := db.Validate(); len(issues) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould have no validation issues, got %d.", failed, len(issues))
			}
			t.Logf("\t%s\tTest 0:\tShould have no validation issues.", success)
		}
	}
}

func Test_TamperDetection(t *testing.T) {
	t.Log("Given the need to detect post-seal mutation of a block.")
	{
		t.Logf("\tTest 0:\tWhen mutating a stored block's payload.")
		{
			strg := newStubStorage()
			db := newChain(t, strg, 3)

			strg.blocks[2].Data = []byte(`{"owner":"evil"}`)

			issues := db.Validate()
			if len(issues) != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould surface exactly one issue, got %d.", failed, len(issues))
			}
			t.Logf("\t%s\tTest 0:\tShould surface exactly one issue.", success)

			if issues[0].Kind != database.IssueTamperedBlock || issues[0].Number != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould report a tampered block at height 2, got %s at %d.", failed, issues[0].Kind, issues[0].Number)
			}
			t.Logf("\t%s\tTest 0:\tShould report a tampered block at height 2.", success)
		}

		t.Logf("\tTest 1:\tWhen replacing a stored block with a re-sealed imposter.")
		{
			strg := newStubStorage()
			db := newChain(t, strg, 3)

			// Re-seal block 2 so it is self-consistent but no longer the
			// parent block 3 declares.
			strg.blocks[2].Data = []byte(`{"owner":"evil"}`)
			strg.blocks[2].Hash = contentHash(strg.blocks[2])

			issues := db.Validate()
			if len(issues) != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould surface exactly one issue, got %d.", failed, len(issues))
			}
			t.Logf("\t%s\tTest 1:\tShould surface exactly one issue.", success)

			issue := issues[0]
			if issue.Kind != database.IssueBrokenLink || issue.Number != 3 {
				t.Fatalf("\t%s\tTest 1:\tShould report a broken link at height 3, got %s at %d.", failed, issue.Kind, issue.Number)
			}
			t.Logf("\t%s\tTest 1:\tShould report a broken link at height 3.", success)

			if issue.WantParent != strg.blocks[2].Hash || issue.GotParent == issue.WantParent {
				t.Fatalf("\t%s\tTest 1:\tShould capture both the declared and actual parent hash.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould capture both the declared and actual parent hash.", success)
		}

		t.Logf("\tTest 2:\tWhen appending on top of a corrupted chain.")
		{
			strg := newStubStorage()
			db := newChain(t, strg, 2)

			strg.blocks[1].Data = []byte(`{"owner":"evil"}`)
			heightBefore := db.Height()

			_, err := db.Append(recordData(t, ownerA, "star"))

			var appendErr *database.AppendError
			if !errors.As(err, &appendErr) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the append with an AppendError: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the append with an AppendError.", success)

			if db.Height() != heightBefore {
				t.Fatalf("\t%s\tTest 2:\tShould leave the chain unchanged on a rejected append.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould leave the chain unchanged on a rejected append.", success)
		}
	}
}

func Test_BlockRoundTrip(t *testing.T) {
	t.Log("Given the need to validate a sealed block against itself.")
	{
		t.Logf("\tTest 0:\tWhen sealing and then corrupting a block.")
		{
			db, err := database.New(genesis.Genesis{}, memory.New(), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the database: %v", failed, err)
			}

			block, err := db.Append(recordData(t, ownerA, "Polaris"))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append a block: %v", failed, err)
			}

			if !block.Validate() {
				t.Fatalf("\t%s\tTest 0:\tShould validate a freshly sealed block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould validate a freshly sealed block.", success)

			block.Data = append(block.Data, ' ')
			if block.Validate() {
				t.Fatalf("\t%s\tTest 0:\tShould fail validation after the payload changes.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould fail validation after the payload changes.", success)

			block.Data = block.Data[:len(block.Data)-1]
			block.Header.TimeStamp++
			if block.Validate() {
				t.Fatalf("\t%s\tTest 0:\tShould fail validation after the timestamp changes.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould fail validation after the timestamp changes.", success)
		}
	}
}

func Test_StarsByOwner(t *testing.T) {
	t.Log("Given the need to look up star records by owner.")
	{
		t.Logf("\tTest 0:\tWhen two owners have submitted stars.")
		{
			db, err := database.New(genesis.Genesis{}, memory.New(), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the database: %v", failed, err)
			}

			for _, star := range []string{"Polaris", "Vega"} {
				if _, err := db.Append(recordData(t, ownerA, star)); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to append a block: %v", failed, err)
				}
			}
			if _, err := db.Append(recordData(t, ownerB, "Sirius")); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append a block: %v", failed, err)
			}

			records, err := db.StarsByOwner(ownerA)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to look up stars by owner: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to look up stars by owner.", success)

			if len(records) != 2 || records[0].Star.Story != "Polaris" || records[1].Star.Story != "Vega" {
				t.Fatalf("\t%s\tTest 0:\tShould only return owner A's stars in submission order.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould only return owner A's stars in submission order.", success)

			for _, record := range records {
				if record.Owner != ownerA {
					t.Fatalf("\t%s\tTest 0:\tShould never include another owner's record.", failed)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould never include another owner's record.", success)
		}

		t.Logf("\tTest 1:\tWhen a stored payload is corrupt.")
		{
			strg := newStubStorage()
			db := newChain(t, strg, 2)

			strg.blocks[1].Data = []byte("not json")

			if _, err := db.StarsByOwner(ownerA); !errors.Is(err, database.ErrPayloadCorrupt) {
				t.Fatalf("\t%s\tTest 1:\tShould abort the lookup on corrupt payload bytes: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould abort the lookup on corrupt payload bytes.", success)
		}
	}
}

func Test_GetBlockByHash(t *testing.T) {
	t.Log("Given the need to look up a block by its hash.")
	{
		t.Logf("\tTest 0:\tWhen searching for existing and missing hashes.")
		{
			db, err := database.New(genesis.Genesis{}, memory.New(), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the database: %v", failed, err)
			}

			appended, err := db.Append(recordData(t, ownerA, "Polaris"))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append a block: %v", failed, err)
			}

			block, found := db.GetBlockByHash(appended.Hash)
			if !found || block.Header.Number != appended.Header.Number {
				t.Fatalf("\t%s\tTest 0:\tShould find the appended block by hash.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould find the appended block by hash.", success)

			if _, found := db.GetBlockByHash(signature.ZeroHash); found {
				t.Fatalf("\t%s\tTest 0:\tShould not find a block for an unknown hash.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not find a block for an unknown hash.", success)
		}
	}
}

// =============================================================================

// newChain constructs a database on the specified storage and appends the
// requested number of star blocks on top of genesis.
func newChain(t *testing.T, strg database.Storage, stars int) *database.Database {
	t.Helper()

	db, err := database.New(genesis.Genesis{}, strg, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the database: %v", failed, err)
	}

	for i := 0; i < stars; i++ {
		if _, err := db.Append(recordData(t, ownerA, "star")); err != nil {
			t.Fatalf("\t%s\tShould be able to append a block: %v", failed, err)
		}
	}

	return db
}

// recordData encodes an owner attributed star record the way submit does.
func recordData(t *testing.T, owner database.AccountID, story string) []byte {
	t.Helper()

	data, err := json.Marshal(database.StarRecord{Owner: owner, Star: database.Star{Story: story}})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to encode a star record: %v", failed, err)
	}

	return data
}

// contentHash recomputes a block digest the way sealing does so tests can
// forge a self-consistent imposter block.
func contentHash(b database.Block) string {
	content := struct {
		Header database.BlockHeader `json:"header"`
		Data   []byte               `json:"data"`
	}{
		Header: b.Header,
		Data:   b.Data,
	}

	return signature.Hash(content)
}

// =============================================================================

// stubStorage implements database.Storage with direct slice access so tests
// can mutate sealed blocks out-of-band.
type stubStorage struct {
	blocks []database.Block
}

func newStubStorage() *stubStorage {
	return &stubStorage{}
}

func (s *stubStorage) Write(block database.Block) error {
	if uint64(len(s.blocks)) != block.Header.Number {
		return errors.New("block is out of order")
	}
	s.blocks = append(s.blocks, block)
	return nil
}

func (s *stubStorage) GetBlock(num uint64) (database.Block, error) {
	if num >= uint64(len(s.blocks)) {
		return database.Block{}, errors.New("block does not exist")
	}
	return s.blocks[num], nil
}

func (s *stubStorage) Count() uint64 {
	return uint64(len(s.blocks))
}

func (s *stubStorage) ForEach() database.Iterator {
	return &stubIterator{storage: s}
}

func (s *stubStorage) Close() error {
	return nil
}

type stubIterator struct {
	storage *stubStorage
	current uint64
	eoc     bool
}

func (si *stubIterator) Next() (database.Block, error) {
	if si.eoc {
		return database.Block{}, errors.New("end of chain")
	}

	block, err := si.storage.GetBlock(si.current)
	if err != nil {
		si.eoc = true
	}

	si.current++

	return block, err
}

func (si *stubIterator) Done() bool {
	return si.eoc
}
