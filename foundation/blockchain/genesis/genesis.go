// Package genesis maintains access to the genesis document that seeds the
// chain: difficulty, rewards, the fee schedule, block limits, and the
// starting balances.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Genesis represents the genesis document.
type Genesis struct {
	Date            time.Time         `json:"date"`
	ChainID         uint16            `json:"chain_id"`          // Unique id for this running instance.
	TransPerBlock   uint16            `json:"trans_per_block"`   // Maximum number of transactions in a block.
	MaxBlockBytes   uint64            `json:"max_block_bytes"`   // Maximum serialized byte size of a block's transactions.
	MaxGasPerBlock  uint64            `json:"max_gas_per_block"` // Maximum total gas units in a block.
	Difficulty      uint16            `json:"difficulty"`        // Number of leading zero hex characters required of a block hash.
	MaxMineAttempts uint64            `json:"max_mine_attempts"` // Nonce search budget before mining is reported exhausted.
	MiningReward    uint64            `json:"mining_reward"`     // Reward for mining a block.
	BaseFee         uint64            `json:"base_fee"`          // Starting base fee, burned per unit of gas.
	GasUnits        uint64            `json:"gas_units"`         // Gas units charged per transaction.
	Balances        map[string]uint64 `json:"balances"`
}

// =============================================================================

// Load opens and consumes the genesis file. Only the application layer calls
// this; the ledger itself receives the Genesis as a value.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}
