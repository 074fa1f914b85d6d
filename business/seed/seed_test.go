package seed_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgermint/ledgermint/business/seed"
	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Load(t *testing.T) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}
	senderID := database.PublicKeyToAccountID(pk.PublicKey)

	pkTo, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}
	toID := database.PublicKeyToAccountID(pkTo.PublicKey)

	t.Log("Given the need to load pre-signed transactions from a seed file.")
	{
		var txs []database.SignedTx
		for nonce := uint64(0); nonce < 2; nonce++ {
			tx, err := database.NewTx(1, nonce, toID, 10, 3, 15, nil)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
			}
			signedTx, err := tx.Sign(pk)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
			}
			txs = append(txs, signedTx)
		}

		data, err := json.Marshal(txs)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to marshal the seed set: %v", failed, err)
		}

		path := filepath.Join(t.TempDir(), "seed.json")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("\t%s\tShould be able to write the seed file: %v", failed, err)
		}

		loaded, err := seed.Load(path)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the seed file: %v", failed, err)
		}
		if len(loaded) != len(txs) {
			t.Fatalf("\t%s\tShould load %d transactions, got %d.", failed, len(txs), len(loaded))
		}
		t.Logf("\t%s\tShould be able to load the seed file.", success)

		for i, tx := range loaded {
			if err := tx.Validate(1); err != nil {
				t.Fatalf("\t%s\tShould load a valid transaction at index %d: %v", failed, i, err)
			}
			from, err := tx.FromAccount()
			if err != nil {
				t.Fatalf("\t%s\tShould be able to recover the sender at index %d: %v", failed, i, err)
			}
			if from != senderID {
				t.Fatalf("\t%s\tShould recover the original sender, got %s.", failed, from)
			}
			if tx.Nonce != uint64(i) {
				t.Fatalf("\t%s\tShould preserve the nonce, exp %d got %d.", failed, i, tx.Nonce)
			}
		}
		t.Logf("\t%s\tShould preserve signatures and nonces through the file.", success)
	}

	t.Log("Given a missing seed file.")
	{
		loaded, err := seed.Load(filepath.Join(t.TempDir(), "missing.json"))
		if err != nil {
			t.Fatalf("\t%s\tShould not error on a missing file: %v", failed, err)
		}
		if loaded != nil {
			t.Fatalf("\t%s\tShould have nothing to seed, got %d transactions.", failed, len(loaded))
		}
		t.Logf("\t%s\tShould have nothing to seed.", success)
	}

	t.Log("Given a malformed seed file.")
	{
		path := filepath.Join(t.TempDir(), "seed.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatalf("\t%s\tShould be able to write the seed file: %v", failed, err)
		}

		if _, err := seed.Load(path); err == nil {
			t.Fatalf("\t%s\tShould reject a malformed seed file.", failed)
		}
		t.Logf("\t%s\tShould reject a malformed seed file.", success)
	}
}
