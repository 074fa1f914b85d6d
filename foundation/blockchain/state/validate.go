package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ledgermint/ledgermint/foundation/blockchain/database"
	"github.com/ledgermint/ledgermint/foundation/blockchain/merkle"
	"github.com/ledgermint/ledgermint/foundation/blockchain/signature"
)

// Stats represents the observable condition of the ledger.
type Stats struct {
	ChainLength             uint64  `json:"chain_length"`
	PendingCount            int     `json:"pending_count"`
	MempoolBytes            uint64  `json:"mempool_bytes"`
	Difficulty              uint16  `json:"difficulty"`
	BaseFee                 uint64  `json:"base_fee"`
	FilterFalsePositiveRate float64 `json:"filter_false_positive_rate"`
	TotalBurned             uint64  `json:"total_burned"`
	TotalMined              uint64  `json:"total_mined"`
}

// InclusionProof represents the result of a transaction inclusion query:
// whether the transaction was found in a mined block and the merkle path
// proving it belongs to that block's transaction root.
type InclusionProof struct {
	Found       bool     `json:"found"`
	Valid       bool     `json:"valid"`
	BlockNumber uint64   `json:"block_number,omitempty"`
	MerkleRoot  string   `json:"merkle_root,omitempty"`
	Proof       []string `json:"proof,omitempty"`
	Order       []int64  `json:"order,omitempty"`
}

// =============================================================================

// RetrieveStats returns the current observable condition of the ledger.
// Every field is read under the writer lock so the snapshot is taken
// between block applications, never in the middle of one.
func (s *State) RetrieveStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mempoolBytes uint64
	for _, tx := range s.mempool.Copy() {
		mempoolBytes += tx.Size()
	}

	return Stats{
		ChainLength:             s.db.LatestBlock().Header.Number + 1,
		PendingCount:            s.mempool.Count(),
		MempoolBytes:            mempoolBytes,
		Difficulty:              s.genesis.Difficulty,
		BaseFee:                 s.baseFee,
		FilterFalsePositiveRate: s.filter.FalsePositiveRate(),
		TotalBurned:             s.db.TotalBurned(),
		TotalMined:              s.db.TotalMined(),
	}
}

// ValidateChain walks the chain from genesis verifying every block: the
// stored hash against the recomputed hash, the previous hash linkage, the
// block numbering, the proof of work, and the merkle root. Any tampering
// with a historical block surfaces here.
func (s *State) ValidateChain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blockCount uint64
	var previous database.Block

	iter := s.db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return err
		}

		switch block.Header.Number {
		case 0:
			if block.Header.PrevBlockHash != signature.ZeroHash {
				return fmt.Errorf("genesis block previous hash is not zero")
			}
			if err := block.VerifyProofOfWork(); err != nil {
				return err
			}
			if err := block.VerifyMerkleRoot(); err != nil {
				return err
			}

		default:
			if err := block.ValidateBlock(previous, s.evHandler); err != nil {
				return err
			}
		}

		previous = block
		blockCount++
	}

	if latest := s.db.LatestBlock(); blockCount != latest.Header.Number+1 {
		return fmt.Errorf("chain is missing blocks, have %d, exp %d", blockCount, latest.Header.Number+1)
	}

	return nil
}

// MightContainTransaction performs a membership filter probe for the
// specified transaction hash. A false result is definitive; a true result
// carries the filter's current false positive rate.
func (s *State) MightContainTransaction(txHash string) bool {
	hash, err := hexutil.Decode(txHash)
	if err != nil {
		return false
	}

	return s.filter.MightContain(hash)
}

// VerifyTransactionInclusion searches the chain for the specified
// transaction hash and, when found, produces and checks a merkle inclusion
// proof against the owning block's transaction root.
func (s *State) VerifyTransactionInclusion(txHash string) (InclusionProof, error) {
	leafHash, err := hexutil.Decode(txHash)
	if err != nil {
		return InclusionProof{}, fmt.Errorf("invalid transaction hash: %w", err)
	}

	// The filter can prove absence without touching the chain.
	if !s.filter.MightContain(leafHash) {
		return InclusionProof{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	iter := s.db.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return InclusionProof{}, err
		}

		for _, tx := range block.Transactions() {
			if tx.HashHex() != txHash {
				continue
			}

			proof, order, err := block.Trans.Proof(tx)
			if err != nil {
				return InclusionProof{}, err
			}

			ip := InclusionProof{
				Found:       true,
				Valid:       merkle.VerifyProof(leafHash, proof, order, block.Trans.MerkleRoot),
				BlockNumber: block.Header.Number,
				MerkleRoot:  block.Header.TransRoot,
				Order:       order,
			}
			for _, sibling := range proof {
				ip.Proof = append(ip.Proof, hexutil.Encode(sibling))
			}

			return ip, nil
		}
	}

	// The filter reported a false positive.
	return InclusionProof{}, nil
}
