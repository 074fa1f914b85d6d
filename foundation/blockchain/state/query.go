package state

import (
	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/genesis"
)

// QueryLatest represents a query against the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// BeneficiaryID returns the account id configured to receive this node's
// mining rewards.
func (s *State) BeneficiaryID() database.AccountID {
	return s.beneficiaryID
}

// RetrieveLatestBlock returns a copy of the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.LatestBlock()
}

// RetrieveBaseFee returns the base fee that will be charged by the next
// block.
func (s *State) RetrieveBaseFee() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.baseFee
}

// RetrieveAccounts returns a copy of the complete account database.
func (s *State) RetrieveAccounts() map[database.AccountID]database.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.CopyAccounts()
}

// QueryAccount returns a copy of the specified account, including its
// balance and next expected nonce.
func (s *State) QueryAccount(accountID database.AccountID) (database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Query(accountID)
}

// RetrieveMempool returns a copy of the transactions waiting to be mined.
func (s *State) RetrieveMempool() []database.BlockTx {
	return s.mempool.Copy()
}

// MempoolCount returns the current number of pending transactions.
func (s *State) MempoolCount() int {
	return s.mempool.Count()
}

// QueryBlocksByNumber returns the set of blocks for the specified range of
// block numbers.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	if from == QueryLatest {
		from = s.RetrieveLatestBlock().Header.Number
		to = from
	}
	if to == QueryLatest {
		to = s.RetrieveLatestBlock().Header.Number
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		block, err := s.db.GetBlock(i)
		if err != nil {
			s.evHandler("state: QueryBlocksByNumber: ERROR: %s", err)
			return nil
		}
		out = append(out, block)
	}

	return out
}
