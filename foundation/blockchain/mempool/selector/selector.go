// Package selector provides different transaction selecting algorithms for
// assembling the next block.
package selector

import (
	"fmt"
	"strings"

	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyPriority = "priority"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyPriority: prioritySelect,
}

// Limits represents the MTU-style constraints a block assembly must honor:
// the maximum number of transactions, the maximum total serialized byte
// size, and the maximum total gas units. A zero value means unconstrained
// for that dimension.
type Limits struct {
	MaxTrans int
	MaxBytes uint64
	MaxGas   uint64
}

// Func defines a function that takes a mempool of transactions grouped by
// account and selects a set to mine under the specified limits, ranked with
// knowledge of the current base fee. All selector functions MUST respect
// nonce ordering within an account.
type Func func(transactions map[database.AccountID][]database.BlockTx, baseFee uint64, limits Limits) []database.BlockTx

// Retrieve returns the specified select strategy function. The strategy
// name is not case sensitive.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strings.ToLower(strategy)]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}

	return fn, nil
}

// =============================================================================

// byNonce provides sorting support by the transaction nonce value.
type byNonce []database.BlockTx

// Len returns the number of transactions in the list.
func (bn byNonce) Len() int {
	return len(bn)
}

// Less helps to sort the list by nonce in ascending order to keep the
// transactions in the right order of processing.
func (bn byNonce) Less(i, j int) bool {
	return bn[i].Nonce < bn[j].Nonce
}

// Swap moves transactions in the order of the nonce value.
func (bn byNonce) Swap(i, j int) {
	bn[i], bn[j] = bn[j], bn[i]
}

// =============================================================================

// byPriority provides sorting support by the miner priority of the
// transaction under a given base fee.
type byPriority struct {
	txs     []database.BlockTx
	baseFee uint64
}

// Len returns the number of transactions in the list.
func (bp byPriority) Len() int {
	return len(bp.txs)
}

// Less helps to sort the list by priority in descending order to pick the
// transactions that provide the best reward.
func (bp byPriority) Less(i, j int) bool {
	return bp.txs[i].Priority(bp.baseFee) > bp.txs[j].Priority(bp.baseFee)
}

// Swap moves transactions in the order of the priority value.
func (bp byPriority) Swap(i, j int) {
	bp.txs[i], bp.txs[j] = bp.txs[j], bp.txs[i]
}
