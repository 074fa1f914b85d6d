package database

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ledgermint/ledgermint/foundation/blockchain/merkle"
	"github.com/ledgermint/ledgermint/foundation/blockchain/signature"
)

// ErrMiningExhausted is returned from POW when no valid nonce is found
// within the attempt budget. The chain state is untouched when this happens.
var ErrMiningExhausted = errors.New("mining attempt budget exhausted")

// Consensus errors returned from block validation. A block failing any of
// these is rejected outright and the chain tip does not advance.
var (
	ErrInvalidIndex        = errors.New("block number is not the next in the chain")
	ErrInvalidPreviousHash = errors.New("previous hash does not match the parent block")
	ErrInvalidProofOfWork  = errors.New("block hash does not satisfy the difficulty")
	ErrInvalidMerkleRoot   = errors.New("merkle root does not match the transactions")
)

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64    `json:"number"`          // Block number in the chain, genesis is 0.
	PrevBlockHash string    `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64    `json:"timestamp"`       // Time the block was mined.
	BeneficiaryID AccountID `json:"beneficiary"`     // The account receiving the mining reward and tips.
	Difficulty    uint16    `json:"difficulty"`      // Number of leading zero hex characters required of the hash.
	MiningReward  uint64    `json:"mining_reward"`   // Newly minted value credited to the beneficiary.
	BaseFee       uint64    `json:"base_fee"`        // Base fee per unit of gas, burned for every transaction.
	GasUsed       uint64    `json:"gas_used"`        // Total gas units consumed by the block's transactions.
	TransRoot     string    `json:"trans_root"`      // Merkle tree root hash for the transactions in this block.
	Nonce         uint64    `json:"nonce"`           // Value identified by the POW search to solve the hash.
}

// Block represents a group of transactions batched together. A block with no
// transactions carries a zero transaction root and is still valid; it mints
// the reward only.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[BlockTx]
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	BeneficiaryID AccountID
	Difficulty    uint16
	MiningReward  uint64
	BaseFee       uint64
	Number        uint64
	PrevBlockHash string
	MaxAttempts   uint64
	Trans         []BlockTx
	EvHandler     func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle within the attempt budget.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	// Construct a merkle tree from the transactions for this block. The
	// root of this tree will be part of the block to be mined. An empty
	// batch commits to the zero hash.
	transRoot := signature.ZeroHash
	var tree *merkle.Tree[BlockTx]
	var gasUsed uint64

	if len(args.Trans) > 0 {
		t, err := merkle.NewTree(args.Trans)
		if err != nil {
			return Block{}, err
		}
		tree = t
		transRoot = t.RootHex()

		for _, tx := range args.Trans {
			gasUsed += tx.GasUnits
		}
	}

	// Construct the block to be mined.
	nb := Block{
		Header: BlockHeader{
			Number:        args.Number,
			PrevBlockHash: args.PrevBlockHash,
			TimeStamp:     uint64(time.Now().UTC().Unix()),
			BeneficiaryID: args.BeneficiaryID,
			Difficulty:    args.Difficulty,
			MiningReward:  args.MiningReward,
			BaseFee:       args.BaseFee,
			GasUsed:       gasUsed,
			TransRoot:     transRoot,
			Nonce:         0, // Will be identified by the POW algorithm.
		},
		Trans: tree,
	}

	// Perform the proof of work mining operation.
	if err := nb.performPOW(ctx, args.MaxAttempts, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for the block.
// Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, maxAttempts uint64, ev func(v string, args ...any)) error {
	ev("database: performPOW: mining: started: blk[%d]", b.Header.Number)
	defer ev("database: performPOW: mining: completed: blk[%d]", b.Header.Number)

	// Choose a random starting point for the nonce. After this, the nonce
	// is incremented by 1 for every attempt.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return err
	}
	b.Header.Nonce = nBig.Uint64()

	// Loop until a solution is found, the budget is spent, or the caller
	// cancels the search.
	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: performPOW: mining: attempts[%d]", attempts)
		}

		if maxAttempts > 0 && attempts > maxAttempts {
			return ErrMiningExhausted
		}

		// Did the caller cancel the search.
		if ctx.Err() != nil {
			ev("database: performPOW: mining: cancelled")
			return ctx.Err()
		}

		// Hash the block and check if we have solved the puzzle.
		hash := b.Hash()
		if !IsHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		ev("database: performPOW: mining: solved: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: performPOW: mining: attempts[%d]", attempts)

		return nil
	}
}

// Hash returns the unique hash for the Block by hashing the header. Hashing
// only the header means the chain can be cryptographically checked with
// block headers alone; the transactions are committed through the
// transaction root.
func (b Block) Hash() string {
	return signature.Hash(b.Header)
}

// Transactions returns the ordered set of transactions in the block. A
// reward-only block returns nil.
func (b Block) Transactions() []BlockTx {
	if b.Trans == nil {
		return nil
	}

	return b.Trans.Values()
}

// VerifyProofOfWork checks the block's hash meets the declared difficulty
// target.
func (b Block) VerifyProofOfWork() error {
	if !IsHashSolved(b.Header.Difficulty, b.Hash()) {
		return ErrInvalidProofOfWork
	}

	return nil
}

// VerifyMerkleRoot recomputes the transaction root from the current
// transactions and compares it against the header.
func (b Block) VerifyMerkleRoot() error {
	transRoot := signature.ZeroHash
	if b.Trans != nil {
		transRoot = b.Trans.RootHex()
	}

	if b.Header.TransRoot != transRoot {
		return fmt.Errorf("%w: got %s, exp %s", ErrInvalidMerkleRoot, transRoot, b.Header.TransRoot)
	}

	return nil
}

// ValidateBlock takes a block and validates it to be included into the chain
// after the specified previous block.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("%w: got %d, exp %d", ErrInvalidIndex, b.Header.Number, nextNumber)
	}

	evHandler("database: ValidateBlock: blk[%d]: check: parent hash matches parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash() {
		return fmt.Errorf("%w: got %s, exp %s", ErrInvalidPreviousHash, b.Header.PrevBlockHash, previousBlock.Hash())
	}

	evHandler("database: ValidateBlock: blk[%d]: check: block hash has been solved", b.Header.Number)

	if err := b.VerifyProofOfWork(); err != nil {
		return err
	}

	if previousBlock.Header.TimeStamp > 0 {
		evHandler("database: ValidateBlock: blk[%d]: check: block timestamp is after parent block", b.Header.Number)

		parentTime := time.Unix(int64(previousBlock.Header.TimeStamp), 0)
		blockTime := time.Unix(int64(b.Header.TimeStamp), 0)
		if blockTime.Before(parentTime) {
			return fmt.Errorf("block timestamp is before parent block, parent %s, block %s", parentTime, blockTime)
		}
	}

	evHandler("database: ValidateBlock: blk[%d]: check: merkle root matches transactions", b.Header.Number)

	return b.VerifyMerkleRoot()
}

// =============================================================================

// IsHashSolved checks the hash to make sure it complies with the POW rules:
// the hash must carry at least difficulty leading zero hex characters.
func IsHashSolved(difficulty uint16, hash string) bool {
	const match = "0x00000000000000000"

	if len(hash) != 66 {
		return false
	}

	return hash[:2+difficulty] == match[:2+difficulty]
}

// NextBaseFee computes the base fee for the block after one that consumed
// gasUsed units against a capacity of maxGasPerBlock. The adjustment is
// additive against a half-capacity target with a divisor of 8, and the
// result is floored at zero.
func NextBaseFee(baseFee uint64, gasUsed uint64, maxGasPerBlock uint64) uint64 {
	target := maxGasPerBlock / 2
	if target == 0 || gasUsed == target {
		return baseFee
	}

	if gasUsed > target {
		delta := baseFee * (gasUsed - target) / target / 8
		return baseFee + delta
	}

	delta := baseFee * (target - gasUsed) / target / 8
	if delta > baseFee {
		return 0
	}

	return baseFee - delta
}
