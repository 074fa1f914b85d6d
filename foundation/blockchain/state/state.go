// Package state is the core API for the ledger and implements all the
// business rules and processing.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgermint/ledgermint/foundation/blockchain/bloom"
	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/genesis"
	"github.com/ledgermint/ledgermint/foundation/blockchain/mempool"
	"github.com/ledgermint/ledgermint/foundation/blockchain/signature"
)

// EventHandler defines a function that is called when events occur in the
// processing of the ledger.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start the ledger.
type Config struct {
	BeneficiaryID  database.AccountID
	Genesis        genesis.Genesis
	Storage        database.Storage
	SelectStrategy string
	EvHandler      EventHandler
}

// State manages the ledger: the chain of blocks, the account database, the
// pending transaction pool, and the membership filter. All mutating
// operations are serialized through a single writer lock.
type State struct {
	mu sync.Mutex

	beneficiaryID database.AccountID
	evHandler     EventHandler
	genesis       genesis.Genesis
	baseFee       uint64

	mempool       *mempool.Mempool
	db            *database.Database
	filter        *bloom.Filter
	pendingNonces map[database.AccountID]uint64

	// Worker is not set during construction. The call to worker.Run assigns
	// itself here and starts the mining goroutines.
	Worker Worker
}

// New constructs a new ledger for data management. The genesis block is
// mined here, so a freshly constructed ledger already carries a one block
// chain that validates.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Access the storage for the chain and replay any blocks it holds.
	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	// Construct a mempool with the specified sort strategy.
	strategy := cfg.SelectStrategy
	if strategy == "" {
		return nil, fmt.Errorf("no select strategy configured")
	}
	mpool, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	s := State{
		beneficiaryID: cfg.BeneficiaryID,
		evHandler:     ev,
		genesis:       cfg.Genesis,
		baseFee:       cfg.Genesis.BaseFee,
		mempool:       mpool,
		db:            db,
		filter:        bloom.New(0, 0),
		pendingNonces: make(map[database.AccountID]uint64),
	}

	latest := db.LatestBlock()

	switch {
	case latest.Header.PrevBlockHash == "":

		// The storage had no blocks. Mine the genesis block to establish
		// the chain's root of trust.
		if err := s.mineGenesisBlock(); err != nil {
			return nil, err
		}

	default:

		// The chain was replayed from records. Re-index every mined
		// transaction into the filter and carry the base fee forward.
		iter := db.ForEach()
		for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
			if err != nil {
				return nil, err
			}
			for _, tx := range block.Transactions() {
				s.indexTransaction(tx)
			}
		}
		s.baseFee = database.NextBaseFee(latest.Header.BaseFee, latest.Header.GasUsed, cfg.Genesis.MaxGasPerBlock)

		// Pending nonces continue from the replayed account state.
		for _, account := range db.AllAccounts() {
			s.pendingNonces[account.AccountID] = account.Nonce
		}
	}

	return &s, nil
}

// Shutdown cleanly brings the ledger down.
func (s *State) Shutdown() error {
	defer s.db.Close()

	// Stop all mining activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// =============================================================================

// mineGenesisBlock constructs and mines block 0: zero previous hash, no
// transactions, no reward. The starting balances come from the genesis
// document, not from this block.
func (s *State) mineGenesisBlock() error {
	s.evHandler("state: mineGenesisBlock: started")
	defer s.evHandler("state: mineGenesisBlock: completed")

	block, err := database.POW(context.Background(), database.POWArgs{
		BeneficiaryID: s.beneficiaryID,
		Difficulty:    s.genesis.Difficulty,
		BaseFee:       s.genesis.BaseFee,
		Number:        0,
		PrevBlockHash: signature.ZeroHash,
		MaxAttempts:   s.genesis.MaxMineAttempts,
		EvHandler:     s.evHandler,
	})
	if err != nil {
		return err
	}

	if err := s.db.Write(block); err != nil {
		return err
	}
	s.db.UpdateLatestBlock(block)

	return nil
}

// indexTransaction adds a transaction's content hash to the membership
// filter. Bits only ever get set, so once indexed a transaction can never be
// reported absent.
func (s *State) indexTransaction(tx database.BlockTx) {
	hash, err := tx.Hash()
	if err != nil {
		s.evHandler("state: indexTransaction: ERROR: %s", err)
		return
	}

	s.filter.Add(hash)
}

// pendingNonce returns the next nonce expected from the account, accounting
// for transactions already admitted to the mempool.
func (s *State) pendingNonce(accountID database.AccountID) uint64 {
	if nonce, exists := s.pendingNonces[accountID]; exists {
		return nonce
	}

	account, err := s.db.Query(accountID)
	if err != nil {
		return 0
	}

	return account.Nonce
}
