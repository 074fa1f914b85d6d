package selector

import (
	"sort"

	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
)

// prioritySelect returns transactions with the best miner priority while
// respecting the nonce order for each account and the block limits. Once a
// transaction from an account doesn't fit, no later transaction from that
// account can be taken either, or a nonce gap would enter the block.
var prioritySelect = func(m map[database.AccountID][]database.BlockTx, baseFee uint64, limits Limits) []database.BlockTx {

	// Sort the transactions per account by nonce.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byNonce(m[key]))
		}
	}

	// Pick the first transaction in the slice for each account. Each
	// iteration represents a new row of selections. Keep doing that until
	// all the transactions have been assigned to a row.
	var rows [][]database.BlockTx
	for {
		var row []database.BlockTx
		for key := range m {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	// Walk the rows, best priority first, taking transactions while the
	// limits hold. Accounts whose transaction didn't fit are blocked for
	// the rest of the selection.
	var final []database.BlockTx
	var bytesUsed uint64
	var gasUsed uint64
	blocked := make(map[database.AccountID]bool)

	for _, row := range rows {
		sort.Sort(byPriority{txs: row, baseFee: baseFee})

		for _, tx := range row {
			from, err := tx.FromAccount()
			if err != nil || blocked[from] {
				blocked[from] = true
				continue
			}

			if limits.MaxTrans > 0 && len(final) == limits.MaxTrans {
				blocked[from] = true
				continue
			}

			size := tx.Size()
			if limits.MaxBytes > 0 && bytesUsed+size > limits.MaxBytes {
				blocked[from] = true
				continue
			}

			if limits.MaxGas > 0 && gasUsed+tx.GasUnits > limits.MaxGas {
				blocked[from] = true
				continue
			}

			final = append(final, tx)
			bytesUsed += size
			gasUsed += tx.GasUnits
		}
	}

	return final
}
