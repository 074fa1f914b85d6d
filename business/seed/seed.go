// Package seed loads a set of pre-signed transactions for submission into
// the ledger at startup. Only the application layer reads the file; the
// ledger receives these transactions through its submit API like any other
// caller's.
package seed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
)

// Load opens and consumes the seed file. A missing file is not an error,
// it means there is nothing to seed.
func Load(path string) ([]database.SignedTx, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var txs []database.SignedTx
	if err := json.Unmarshal(content, &txs); err != nil {
		return nil, fmt.Errorf("unable to decode seed file: %w", err)
	}

	return txs, nil
}
