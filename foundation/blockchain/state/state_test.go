package state_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/database/storage/memory"
	"github.com/ledgermint/ledgermint/foundation/blockchain/genesis"
	"github.com/ledgermint/ledgermint/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func newAccount(t *testing.T) (*ecdsa.PrivateKey, database.AccountID) {
	t.Helper()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
	}

	return pk, database.PublicKeyToAccountID(pk.PublicKey)
}

func newGenesis() genesis.Genesis {
	return genesis.Genesis{
		Date:            time.Now(),
		ChainID:         1,
		TransPerBlock:   10,
		MaxBlockBytes:   1 << 20,
		MaxGasPerBlock:  100,
		Difficulty:      1,
		MaxMineAttempts: 10_000_000,
		MiningReward:    100,
		BaseFee:         2,
		GasUnits:        1,
	}
}

func newState(t *testing.T, beneficiaryID database.AccountID, gen genesis.Genesis) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		BeneficiaryID:  beneficiaryID,
		Genesis:        gen,
		Storage:        memory.New(),
		SelectStrategy: "priority",
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return st
}

func submit(t *testing.T, st *state.State, pk *ecdsa.PrivateKey, nonce uint64, toID database.AccountID, value uint64, gasTipCap uint64, gasFeeCap uint64) error {
	t.Helper()

	tx, err := database.NewTx(1, nonce, toID, value, gasTipCap, gasFeeCap, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
	}

	signedTx, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
	}

	return st.SubmitWalletTransaction(signedTx)
}

// =============================================================================

func Test_LedgerLifecycle(t *testing.T) {
	ctx := context.Background()

	pkA, accountA := newAccount(t)
	_, accountB := newAccount(t)
	_, accountC := newAccount(t)

	t.Log("Given the need to run a full ledger lifecycle.")
	{
		st := newState(t, accountA, newGenesis())
		defer st.Shutdown()

		// Construction mines the genesis block, so the chain starts one
		// block long and already validates.
		if st.RetrieveLatestBlock().Header.Number != 0 {
			t.Fatalf("\t%s\tShould start with the genesis block at number 0.", failed)
		}
		t.Logf("\t%s\tShould start with the genesis block.", success)

		if err := st.ValidateChain(); err != nil {
			t.Fatalf("\t%s\tShould validate the fresh chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould validate the fresh chain.", success)

		// Fund three accounts through empty reward-only blocks.
		for _, beneficiaryID := range []database.AccountID{accountA, accountB, accountC} {
			if _, _, err := st.MineNewBlock(ctx, beneficiaryID); err != nil {
				t.Fatalf("\t%s\tShould be able to mine a reward block: %v", failed, err)
			}
		}
		t.Logf("\t%s\tShould be able to mine reward blocks to three accounts.", success)

		for _, accountID := range []database.AccountID{accountA, accountB, accountC} {
			account, err := st.QueryAccount(accountID)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to query account %s: %v", failed, accountID, err)
			}
			if account.Balance != 100 {
				t.Fatalf("\t%s\tShould have a balance of 100 for %s, got %d.", failed, accountID, account.Balance)
			}
		}
		t.Logf("\t%s\tShould have credited each reward.", success)

		// A pays B 10 with a tip cap of 3 and a fee cap of 10 against a
		// base fee of 2. The effective price is 5: 2 burned, 3 to the miner.
		if err := submit(t, st, pkA, 0, accountB, 10, 3, 10); err != nil {
			t.Fatalf("\t%s\tShould be able to submit a transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to submit a transaction.", success)

		if st.MempoolCount() != 1 {
			t.Fatalf("\t%s\tShould have 1 pending transaction, got %d.", failed, st.MempoolCount())
		}
		t.Logf("\t%s\tShould have 1 pending transaction.", success)

		block, _, err := st.MineNewBlock(ctx, accountA)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the transaction: %v", failed, err)
		}
		if len(block.Transactions()) != 1 {
			t.Fatalf("\t%s\tShould have 1 transaction in the block, got %d.", failed, len(block.Transactions()))
		}
		t.Logf("\t%s\tShould be able to mine the transaction.", success)

		if st.MempoolCount() != 0 {
			t.Fatalf("\t%s\tShould have an empty mempool after mining, got %d.", failed, st.MempoolCount())
		}
		t.Logf("\t%s\tShould have an empty mempool after mining.", success)

		// A: 100 - 15 cost + 100 reward + 3 tip. B: 100 + 10. C: unchanged.
		final := map[database.AccountID]uint64{
			accountA: 188,
			accountB: 110,
			accountC: 100,
		}
		for accountID, exp := range final {
			account, err := st.QueryAccount(accountID)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to query account %s: %v", failed, accountID, err)
			}
			if account.Balance != exp {
				t.Fatalf("\t%s\tShould have a balance of %d for %s, got %d.", failed, exp, accountID, account.Balance)
			}
		}
		t.Logf("\t%s\tShould settle every balance correctly.", success)

		// Nothing minted may leak and nothing burned may survive.
		stats := st.RetrieveStats()
		if stats.TotalMined != 400 {
			t.Fatalf("\t%s\tShould have minted 400, got %d.", failed, stats.TotalMined)
		}
		if stats.TotalBurned != 2 {
			t.Fatalf("\t%s\tShould have burned 2, got %d.", failed, stats.TotalBurned)
		}

		var total uint64
		for _, account := range st.RetrieveAccounts() {
			total += account.Balance
		}
		if total+stats.TotalBurned != stats.TotalMined {
			t.Fatalf("\t%s\tShould conserve value: balances %d + burned %d != minted %d.", failed, total, stats.TotalBurned, stats.TotalMined)
		}
		t.Logf("\t%s\tShould conserve value across the ledger.", success)

		if stats.ChainLength != 5 {
			t.Fatalf("\t%s\tShould have a chain of 5 blocks, got %d.", failed, stats.ChainLength)
		}
		t.Logf("\t%s\tShould have a chain of 5 blocks.", success)

		if err := st.ValidateChain(); err != nil {
			t.Fatalf("\t%s\tShould validate the full chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould validate the full chain.", success)

		// The mined transaction must be provable, an unknown hash must not.
		txHash := block.Transactions()[0].HashHex()

		if !st.MightContainTransaction(txHash) {
			t.Fatalf("\t%s\tShould report the mined transaction as possibly present.", failed)
		}
		t.Logf("\t%s\tShould report the mined transaction as possibly present.", success)

		proof, err := st.VerifyTransactionInclusion(txHash)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to produce an inclusion proof: %v", failed, err)
		}
		if !proof.Found || !proof.Valid {
			t.Fatalf("\t%s\tShould have a found and valid proof, got %+v.", failed, proof)
		}
		if proof.BlockNumber != 4 {
			t.Fatalf("\t%s\tShould locate the transaction in block 4, got %d.", failed, proof.BlockNumber)
		}
		t.Logf("\t%s\tShould produce a valid inclusion proof.", success)

		unknown := "0x59625b896c694ed9d4988edd58e4bd9d382c40bdee4e21084c9fb8e8e06c5a95"
		proof, err = st.VerifyTransactionInclusion(unknown)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to query an unknown hash: %v", failed, err)
		}
		if proof.Found {
			t.Fatalf("\t%s\tShould not find an unknown hash.", failed)
		}
		t.Logf("\t%s\tShould not find an unknown hash.", success)
	}
}

func Test_TransactionRejection(t *testing.T) {
	ctx := context.Background()

	pkA, accountA := newAccount(t)
	pkB, accountB := newAccount(t)

	t.Log("Given the need to reject transactions that break the rules.")
	{
		st := newState(t, accountA, newGenesis())
		defer st.Shutdown()

		// Fund A with one reward block. B stays empty.
		if _, _, err := st.MineNewBlock(ctx, accountA); err != nil {
			t.Fatalf("\t%s\tShould be able to mine a reward block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a reward block.", success)

		if err := submit(t, st, pkA, 0, accountB, 10, 0, 0); !errors.Is(err, state.ErrFeeTooLow) {
			t.Fatalf("\t%s\tShould reject a fee cap below the base fee, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a fee cap below the base fee.", success)

		if err := submit(t, st, pkA, 0, accountB, 0, 3, 10); !errors.Is(err, state.ErrNonPositiveValue) {
			t.Fatalf("\t%s\tShould reject a zero value transfer, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a zero value transfer.", success)

		if err := submit(t, st, pkA, 5, accountB, 10, 3, 10); !errors.Is(err, state.ErrBadNonce) {
			t.Fatalf("\t%s\tShould reject a nonce out of sequence, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a nonce out of sequence.", success)

		if err := submit(t, st, pkB, 0, accountA, 10, 3, 10); !errors.Is(err, state.ErrInsufficientBalance) {
			t.Fatalf("\t%s\tShould reject a spend from an unfunded account, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a spend from an unfunded account.", success)

		if err := submit(t, st, pkA, 0, accountB, 1000, 3, 10); !errors.Is(err, state.ErrInsufficientBalance) {
			t.Fatalf("\t%s\tShould reject a spend over the balance, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a spend over the balance.", success)

		// A transaction against the wrong chain fails signature validation.
		tx := database.Tx{
			ChainID:   99,
			Nonce:     0,
			ToID:      accountB,
			Value:     10,
			GasTipCap: 3,
			GasFeeCap: 10,
		}
		signedTx, err := tx.Sign(pkA)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}
		if err := st.SubmitWalletTransaction(signedTx); !errors.Is(err, state.ErrBadSignature) {
			t.Fatalf("\t%s\tShould reject a wrong chain id, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a wrong chain id.", success)

		// A malformed destination never reaches the mempool.
		tx = database.Tx{
			ChainID:   1,
			Nonce:     0,
			ToID:      "not-an-address",
			Value:     10,
			GasTipCap: 3,
			GasFeeCap: 10,
		}
		signedTx, err = tx.Sign(pkA)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %v", failed, err)
		}
		if err := st.SubmitWalletTransaction(signedTx); !errors.Is(err, state.ErrMalformedAddress) {
			t.Fatalf("\t%s\tShould reject a malformed destination, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a malformed destination.", success)

		// A valid submission claims the nonce, so sending it twice is a
		// replay of an already claimed sequence number.
		if err := submit(t, st, pkA, 0, accountB, 10, 3, 10); err != nil {
			t.Fatalf("\t%s\tShould accept a valid transaction: %v", failed, err)
		}
		if err := submit(t, st, pkA, 0, accountB, 10, 3, 10); !errors.Is(err, state.ErrBadNonce) {
			t.Fatalf("\t%s\tShould reject a replayed nonce, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould reject a replayed nonce.", success)

		// The next nonce in sequence queues behind the pending one.
		if err := submit(t, st, pkA, 1, accountB, 10, 3, 10); err != nil {
			t.Fatalf("\t%s\tShould accept the next nonce in sequence: %v", failed, err)
		}
		if st.MempoolCount() != 2 {
			t.Fatalf("\t%s\tShould have 2 pending transactions, got %d.", failed, st.MempoolCount())
		}
		t.Logf("\t%s\tShould queue the next nonce behind the pending one.", success)
	}
}

func Test_MiningCancel(t *testing.T) {
	_, accountA := newAccount(t)

	t.Log("Given the need to cancel mining without changing the ledger.")
	{
		st := newState(t, accountA, newGenesis())
		defer st.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		before := st.RetrieveLatestBlock().Header.Number

		if _, _, err := st.MineNewBlock(ctx, accountA); err == nil {
			t.Fatalf("\t%s\tShould not mine against a cancelled context.", failed)
		}
		t.Logf("\t%s\tShould not mine against a cancelled context.", success)

		if st.RetrieveLatestBlock().Header.Number != before {
			t.Fatalf("\t%s\tShould leave the chain untouched after a cancel.", failed)
		}
		t.Logf("\t%s\tShould leave the chain untouched after a cancel.", success)
	}
}

func Test_MiningBudgetExhaustion(t *testing.T) {
	_, accountA := newAccount(t)

	t.Log("Given the need to surface an exhausted mining budget.")
	{
		st := newState(t, accountA, newGenesis())
		defer st.Shutdown()

		// Deepen the requirement past what two attempts can solve. The
		// genesis document is fixed, so exercise the POW engine directly
		// from the state's view of the chain tip.
		latest := st.RetrieveLatestBlock()

		_, err := database.POW(context.Background(), database.POWArgs{
			BeneficiaryID: accountA,
			Difficulty:    16,
			MiningReward:  100,
			BaseFee:       2,
			Number:        latest.Header.Number + 1,
			PrevBlockHash: latest.Hash(),
			MaxAttempts:   2,
		})
		if !errors.Is(err, database.ErrMiningExhausted) {
			t.Fatalf("\t%s\tShould get ErrMiningExhausted, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould get ErrMiningExhausted.", success)
	}
}

// Test_StatsSnapshotConsistency hammers the stats query while blocks are
// being mined and applied. Every snapshot must land between block
// applications: the mined and burned totals always reconcile with the
// chain length, never reflecting a half-applied block.
func Test_StatsSnapshotConsistency(t *testing.T) {
	ctx := context.Background()

	pkA, accountA := newAccount(t)
	_, accountB := newAccount(t)

	t.Log("Given the need to observe consistent stats during mining.")
	{
		gen := newGenesis()
		gen.TransPerBlock = 2
		gen.Balances = map[string]uint64{
			string(accountA): 1000,
		}

		st := newState(t, accountA, gen)
		defer st.Shutdown()

		// Ten transactions at two per block gives five blocks of work.
		// With a base fee of 2 and a tip cap of 3 under a fee cap of 10,
		// every applied transaction burns 2 and tips 3.
		const txCount = 10
		const burnPerTx = 2
		const tipPerTx = 3
		for nonce := uint64(0); nonce < txCount; nonce++ {
			if err := submit(t, st, pkA, nonce, accountB, 5, tipPerTx, 10); err != nil {
				t.Fatalf("\t%s\tShould be able to submit transaction %d: %v", failed, nonce, err)
			}
		}
		t.Logf("\t%s\tShould be able to submit %d transactions.", success, txCount)

		mineErr := make(chan error, 1)
		go func() {
			for st.MempoolCount() > 0 {
				if _, _, err := st.MineNewBlock(ctx, accountA); err != nil {
					mineErr <- err
					return
				}
			}
			mineErr <- nil
		}()

		// Sample the stats continuously while the miner runs. In every
		// sample the mined total must equal the per block reward across
		// the mined blocks plus the tips of the applied transactions,
		// which the burned total counts exactly.
		for {
			select {
			case err := <-mineErr:
				if err != nil {
					t.Fatalf("\t%s\tShould be able to mine the pending transactions: %v", failed, err)
				}
			default:
				stats := st.RetrieveStats()

				if stats.TotalBurned%burnPerTx != 0 {
					t.Fatalf("\t%s\tShould never observe a partial burn, got %d.", failed, stats.TotalBurned)
				}
				appliedTxs := stats.TotalBurned / burnPerTx

				exp := gen.MiningReward*(stats.ChainLength-1) + appliedTxs*tipPerTx
				if stats.TotalMined != exp {
					t.Fatalf("\t%s\tShould reconcile mined total with chain length, exp %d got %d.", failed, exp, stats.TotalMined)
				}
				continue
			}
			break
		}
		t.Logf("\t%s\tShould never observe a half-applied block.", success)

		stats := st.RetrieveStats()
		if stats.ChainLength != 6 {
			t.Fatalf("\t%s\tShould end with a chain length of 6, got %d.", failed, stats.ChainLength)
		}
		if stats.TotalBurned != txCount*burnPerTx {
			t.Fatalf("\t%s\tShould end with %d burned, got %d.", failed, txCount*burnPerTx, stats.TotalBurned)
		}
		if stats.TotalMined != 5*gen.MiningReward+txCount*tipPerTx {
			t.Fatalf("\t%s\tShould end with %d mined, got %d.", failed, 5*gen.MiningReward+txCount*tipPerTx, stats.TotalMined)
		}
		t.Logf("\t%s\tShould end with reconciled totals.", success)
	}
}
