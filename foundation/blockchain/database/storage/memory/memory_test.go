package memory_test

import (
	"testing"

	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/database/storage/memory"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_WriteReadIterate(t *testing.T) {
	t.Log("Given the need to store and retrieve block records in order.")
	{
		store := memory.New()
		defer store.Close()

		for i := uint64(0); i < 3; i++ {
			blockData := database.BlockData{
				Hash:   "hash",
				Header: database.BlockHeader{Number: i},
			}
			if err := store.Write(blockData); err != nil {
				t.Fatalf("\t%s\tShould be able to write block %d: %v", failed, i, err)
			}
		}
		t.Logf("\t%s\tShould be able to write blocks in order.", success)

		// The store only accepts the next block number.
		err := store.Write(database.BlockData{Header: database.BlockHeader{Number: 7}})
		if err == nil {
			t.Fatalf("\t%s\tShould reject an out of order block.", failed)
		}
		t.Logf("\t%s\tShould reject an out of order block.", success)

		blockData, err := store.GetBlock(1)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to read block 1: %v", failed, err)
		}
		if blockData.Header.Number != 1 {
			t.Fatalf("\t%s\tShould read back block 1, got %d.", failed, blockData.Header.Number)
		}
		t.Logf("\t%s\tShould be able to read a block by number.", success)

		if _, err := store.GetBlock(9); err == nil {
			t.Fatalf("\t%s\tShould error on a missing block.", failed)
		}
		t.Logf("\t%s\tShould error on a missing block.", success)

		var count uint64
		iter := store.ForEach()
		for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
			if err != nil {
				t.Fatalf("\t%s\tShould be able to iterate: %v", failed, err)
			}
			if blockData.Header.Number != count {
				t.Fatalf("\t%s\tShould iterate in order, got %d, exp %d.", failed, blockData.Header.Number, count)
			}
			count++
		}
		if count != 3 {
			t.Fatalf("\t%s\tShould have iterated 3 blocks, got %d.", failed, count)
		}
		t.Logf("\t%s\tShould iterate every block in order.", success)

		if err := store.Reset(); err != nil {
			t.Fatalf("\t%s\tShould be able to reset the store: %v", failed, err)
		}
		if _, err := store.GetBlock(0); err == nil {
			t.Fatalf("\t%s\tShould be empty after a reset.", failed)
		}
		t.Logf("\t%s\tShould be empty after a reset.", success)
	}
}
