// Package database handles the lower level support for maintaining the
// chain in storage and maintaining an in-memory database of account
// information.
package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ledgermint/ledgermint/foundation/blockchain/genesis"
)

// Database manages data related to accounts who have transacted on the
// ledger, the latest block, and the running supply counters.
type Database struct {
	mu sync.RWMutex

	genesis     genesis.Genesis
	latestBlock Block
	accounts    map[AccountID]Account
	totalBurned uint64
	totalMined  uint64

	storage Storage
}

// New constructs a new database, applies the genesis balances, and replays
// any blocks already present in storage.
func New(genesis genesis.Genesis, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis:  genesis,
		accounts: make(map[AccountID]Account),
		storage:  storage,
	}

	// Update the database with account balance information from genesis.
	for accountStr, balance := range genesis.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return nil, err
		}
		db.accounts[accountID] = newAccount(accountID, balance)
	}

	// Replay all the blocks from storage. A freshly constructed storage has
	// no blocks and this loop does nothing.
	iter := db.storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		if block.Header.Number > 0 {
			if err := block.ValidateBlock(db.latestBlock, evHandler); err != nil {
				return nil, err
			}
		}

		for _, tx := range block.Transactions() {
			if err := db.ApplyTransaction(block, tx); err != nil {
				return nil, err
			}
		}
		db.ApplyMiningReward(block)

		db.latestBlock = block
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() {
	db.storage.Close()
}

// Reset re-initializes the database back to the genesis state.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Reset(); err != nil {
		return err
	}

	db.latestBlock = Block{}
	db.totalBurned = 0
	db.totalMined = 0
	db.accounts = make(map[AccountID]Account)
	for accountStr, balance := range db.genesis.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return err
		}
		db.accounts[accountID] = newAccount(accountID, balance)
	}

	return nil
}

// Query returns a copy of the specified account from the database.
func (db *Database) Query(accountID AccountID) (Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[accountID]
	if !exists {
		return Account{}, fmt.Errorf("account %s does not exist", accountID)
	}

	return account, nil
}

// CopyAccounts makes a copy of the current accounts in the database.
func (db *Database) CopyAccounts() map[AccountID]Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[AccountID]Account)
	for accountID, account := range db.accounts {
		accounts[accountID] = account
	}

	return accounts
}

// AllAccounts returns the current set of accounts sorted by account id for
// deterministic iteration.
func (db *Database) AllAccounts() []Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make([]Account, 0, len(db.accounts))
	for _, account := range db.accounts {
		accounts = append(accounts, account)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountID < accounts[j].AccountID
	})

	return accounts
}

// TotalBurned returns the amount of value permanently removed from the
// supply as base fees.
func (db *Database) TotalBurned() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.totalBurned
}

// TotalMined returns the amount of value minted as mining rewards.
func (db *Database) TotalMined() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.totalMined
}

// ApplyMiningReward gives the block's beneficiary the mining reward.
func (db *Database) ApplyMiningReward(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	account := db.accounts[block.Header.BeneficiaryID]
	account.AccountID = block.Header.BeneficiaryID
	account.Balance += block.Header.MiningReward

	db.accounts[block.Header.BeneficiaryID] = account
	db.totalMined += block.Header.MiningReward
}

// ApplyTransaction performs the business logic for applying a transaction
// to the database. Either every balance change for the transaction is
// applied or none is; the checks run before any account is mutated.
func (db *Database) ApplyTransaction(block Block, tx BlockTx) error {

	// Capture the from address from the signature of the transaction.
	fromID, err := tx.FromAccount()
	if err != nil {
		return fmt.Errorf("invalid signature, %s", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	from := db.accounts[fromID]

	baseFee := block.Header.BaseFee
	burn := baseFee * tx.GasUnits
	tip := tx.Priority(baseFee) * tx.GasUnits
	cost := tx.Value + burn + tip

	// Perform the accounting checks before touching any balance.
	{
		if tx.ChainID != db.genesis.ChainID {
			return fmt.Errorf("transaction invalid, wrong chain id, got %d, exp %d", tx.ChainID, db.genesis.ChainID)
		}

		if tx.GasFeeCap < baseFee {
			return fmt.Errorf("transaction invalid, gas fee cap %d below base fee %d", tx.GasFeeCap, baseFee)
		}

		if tx.Nonce != from.Nonce {
			return fmt.Errorf("transaction invalid, wrong nonce, exp %d, got %d", from.Nonce, tx.Nonce)
		}

		if from.Balance < cost {
			return fmt.Errorf("transaction invalid, insufficient funds, bal %d, needed %d", from.Balance, cost)
		}
	}

	// Debit the sender the full cost and advance the nonce.
	from.AccountID = fromID
	from.Balance -= cost
	from.Nonce = tx.Nonce + 1
	db.accounts[fromID] = from

	// Credit the recipient the value. Reload the account so a self transfer
	// settles against the debited balance.
	to := db.accounts[tx.ToID]
	to.AccountID = tx.ToID
	to.Balance += tx.Value
	db.accounts[tx.ToID] = to

	// Give the beneficiary the priority portion of the fee.
	bnfc := db.accounts[block.Header.BeneficiaryID]
	bnfc.AccountID = block.Header.BeneficiaryID
	bnfc.Balance += tip
	db.accounts[block.Header.BeneficiaryID] = bnfc

	// The base portion leaves the supply for good.
	db.totalBurned += burn

	return nil
}

// UpdateLatestBlock provides safe access to update the latest block.
func (db *Database) UpdateLatestBlock(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.latestBlock = block
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// Write adds a new block record to storage.
func (db *Database) Write(block Block) error {
	return db.storage.Write(NewBlockData(block))
}

// ForEach returns an iterator to walk through all the blocks starting with
// the genesis block.
func (db *Database) ForEach() DatabaseIterator {
	return DatabaseIterator{iterator: db.storage.ForEach()}
}

// ForEachRecord returns an iterator over the raw block records in storage.
func (db *Database) ForEachRecord() Iterator {
	return db.storage.ForEach()
}

// GetBlock searches storage to locate and return the block with the
// specified number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	blockData, err := db.storage.GetBlock(num)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}
