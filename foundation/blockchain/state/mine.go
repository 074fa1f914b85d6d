package state

import (
	"context"
	"time"

	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/mempool/selector"
)

// MineNewBlock attempts to create a new block with a proper hash that can
// become the next block in the chain, crediting the specified beneficiary.
// The mempool may be empty; the resulting block then mints the reward only.
// If mining fails or is cancelled, no ledger state changes.
func (s *State) MineNewBlock(ctx context.Context, beneficiaryID database.AccountID) (database.Block, time.Duration, error) {
	t := time.Now()

	s.evHandler("state: MineNewBlock: MINING: select transactions")

	limits := selector.Limits{
		MaxTrans: int(s.genesis.TransPerBlock),
		MaxBytes: s.genesis.MaxBlockBytes,
		MaxGas:   s.genesis.MaxGasPerBlock,
	}
	trans := s.mempool.PickBest(s.RetrieveBaseFee(), limits)

	s.evHandler("state: MineNewBlock: MINING: perform POW: txs[%d]", len(trans))

	latest := s.db.LatestBlock()

	// Attempt to create a new block by solving the POW puzzle.
	// This can be cancelled or run out of attempts.
	block, err := database.POW(ctx, database.POWArgs{
		BeneficiaryID: beneficiaryID,
		Difficulty:    s.genesis.Difficulty,
		MiningReward:  s.genesis.MiningReward,
		BaseFee:       s.RetrieveBaseFee(),
		Number:        latest.Header.Number + 1,
		PrevBlockHash: latest.Hash(),
		MaxAttempts:   s.genesis.MaxMineAttempts,
		Trans:         trans,
		EvHandler:     s.evHandler,
	})
	if err != nil {
		return database.Block{}, time.Since(t), err
	}

	// Check one more time we were not cancelled while solving.
	if ctx.Err() != nil {
		return database.Block{}, time.Since(t), ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	if err := s.updateLocalState(block); err != nil {
		return database.Block{}, time.Since(t), err
	}

	return block, time.Since(t), nil
}

// =============================================================================

// updateLocalState applies a successfully mined block to the ledger as one
// atomic transition: the block is appended, every transaction's balance
// delta is applied, the beneficiary is credited, mined transactions leave
// the mempool, and the base fee for the next block is computed.
func (s *State) updateLocalState(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: updateLocalState: append block[%d]", block.Header.Number)

	if err := s.db.Write(block); err != nil {
		return err
	}
	s.db.UpdateLatestBlock(block)

	s.evHandler("state: updateLocalState: apply transactions and evict from mempool")

	for _, tx := range block.Transactions() {
		s.evHandler("state: updateLocalState: tx[%s] apply and evict", tx)

		// Apply the balance changes based on this transaction. A failing
		// transaction is skipped whole; no partial balance write happens.
		if err := s.db.ApplyTransaction(block, tx); err != nil {
			s.evHandler("state: updateLocalState: WARNING: %s", err)

			// The admission-time nonce claim is void now. Realign the
			// tracked nonce with the account so the sender can continue.
			if fromID, ferr := tx.FromAccount(); ferr == nil {
				if account, qerr := s.db.Query(fromID); qerr == nil {
					s.pendingNonces[fromID] = account.Nonce
				}
			}
		}

		// Remove this transaction from the mempool either way.
		s.mempool.Delete(tx)
	}

	s.evHandler("state: updateLocalState: apply mining reward")

	s.db.ApplyMiningReward(block)

	// Settle the base fee for the next block from this block's gas usage.
	s.baseFee = database.NextBaseFee(block.Header.BaseFee, block.Header.GasUsed, s.genesis.MaxGasPerBlock)

	return nil
}
