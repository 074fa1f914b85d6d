// Package mempool maintains the pool of validated transactions waiting to be
// mined, keyed by account and nonce.
package mempool

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/mempool/selector"
)

// ErrDuplicate is returned when a transaction with the same sender and
// nonce already exists in the pool.
var ErrDuplicate = errors.New("transaction already in mempool")

// Mempool represents a cache of transactions organized by account:nonce.
type Mempool struct {
	pool     map[string]database.BlockTx
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyPriority)
}

// NewWithStrategy constructs a new mempool with the specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.BlockTx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add puts a new transaction in the mempool. A transaction that is already
// present is rejected, it is not replaced.
func (mp *Mempool) Add(tx database.BlockTx) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key, err := mapKey(tx)
	if err != nil {
		return err
	}

	if _, exists := mp.pool[key]; exists {
		return ErrDuplicate
	}

	mp.pool[key] = tx

	return nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.BlockTx) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key, err := mapKey(tx)
	if err != nil {
		return err
	}

	delete(mp.pool, key)

	return nil
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.BlockTx)
}

// Copy returns a list of the current transactions in the pool.
func (mp *Mempool) Copy() []database.BlockTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	cpy := make([]database.BlockTx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		cpy = append(cpy, tx)
	}

	return cpy
}

// PickBest uses the configured sort strategy to return the next set of
// transactions for the next block under the specified limits.
func (mp *Mempool) PickBest(baseFee uint64, limits selector.Limits) []database.BlockTx {

	// Group the transactions by account.
	m := make(map[database.AccountID][]database.BlockTx)
	mp.mu.RLock()
	{
		for key, tx := range mp.pool {
			account := database.AccountID(strings.Split(key, ":")[0])
			m[account] = append(m[account], tx)
		}
	}
	mp.mu.RUnlock()

	return mp.selectFn(m, baseFee, limits)
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(tx database.BlockTx) (string, error) {
	account, err := tx.FromAccount()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s:%d", account, tx.Nonce), nil
}
