package state

import (
	"fmt"

	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
)

// SubmitWalletTransaction accepts a signed transaction from a wallet for
// inclusion into the next block. On acceptance the transaction enters the
// mempool, its hash is indexed into the membership filter, and the sender's
// tracked nonce advances. On rejection nothing changes.
func (s *State) SubmitWalletTransaction(signedTx database.SignedTx) error {
	s.evHandler("state: SubmitWalletTransaction: started: tx[%s]", signedTx)
	defer s.evHandler("state: SubmitWalletTransaction: completed")

	tx := database.NewBlockTx(signedTx, s.genesis.GasUnits)

	s.mu.Lock()
	{
		if err := s.admitTransaction(tx); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return nil
}

// =============================================================================

// admitTransaction validates the transaction against the current ledger
// state and, if it passes, admits it into the mempool. The caller must hold
// the state lock.
func (s *State) admitTransaction(tx database.BlockTx) error {
	if err := s.validateTransaction(tx); err != nil {
		return err
	}

	fromID, err := tx.FromAccount()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	if err := s.mempool.Add(tx); err != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTx, err)
	}

	s.indexTransaction(tx)
	s.pendingNonces[fromID] = tx.Nonce + 1

	s.evHandler("state: admitTransaction: admitted: tx[%s]: pool[%d]", tx, s.mempool.Count())

	return nil
}

// validateTransaction takes the transaction and validates the signature,
// the addresses, the fee fields, the balance, and the nonce sequence. The
// caller must hold the state lock.
func (s *State) validateTransaction(tx database.BlockTx) error {
	if !tx.ToID.IsAccountID() {
		return ErrMalformedAddress
	}

	if err := tx.Validate(s.genesis.ChainID); err != nil {
		return fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	fromID, err := tx.FromAccount()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	if tx.Value == 0 {
		return ErrNonPositiveValue
	}

	if tx.GasFeeCap < s.baseFee {
		return fmt.Errorf("%w: cap %d, base fee %d", ErrFeeTooLow, tx.GasFeeCap, s.baseFee)
	}

	// Transferring to yourself burns the fee for nothing, but it's money
	// moving to a valid place, so it's only worth a warning.
	if fromID == tx.ToID {
		s.evHandler("state: validateTransaction: WARNING: from and to are the same account: %s", fromID)
	}

	if nonce := s.pendingNonce(fromID); tx.Nonce != nonce {
		return fmt.Errorf("%w: exp %d, got %d", ErrBadNonce, nonce, tx.Nonce)
	}

	account, err := s.db.Query(fromID)
	if err != nil {
		return fmt.Errorf("%w: account %s holds nothing", ErrInsufficientBalance, fromID)
	}

	if cost := tx.Cost(s.baseFee); account.Balance < cost {
		return fmt.Errorf("%w: bal %d, needed %d", ErrInsufficientBalance, account.Balance, cost)
	}

	return nil
}
