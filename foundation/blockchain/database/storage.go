package database

import (
	"fmt"

	"github.com/ledgermint/ledgermint/foundation/blockchain/merkle"
)

// Storage interface represents the behavior required to be implemented by
// any package providing support for storing and reading the chain of block
// records.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by
// any package providing support to iterate over the block records.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// BlockData represents what is serialized for a block. Every field needed to
// reconstruct an identical block is preserved, including the solved hash and
// nonce, so a reconstructed chain validates exactly like the original.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []BlockTx   `json:"trans"`
}

// NewBlockData constructs the record to serialize for the block.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Transactions(),
	}
}

// ToBlock converts a BlockData record into a Block. The recorded hash must
// match the hash recomputed from the record's fields, so any tampering with
// a stored block surfaces here.
func ToBlock(blockData BlockData) (Block, error) {
	nb := Block{
		Header: blockData.Header,
	}

	if len(blockData.Trans) > 0 {
		tree, err := merkle.NewTree(blockData.Trans)
		if err != nil {
			return Block{}, err
		}
		nb.Trans = tree

		// The header commits to the transactions through the merkle root.
		// A record whose transactions no longer hash to that root has
		// been modified since it was written.
		if err := nb.VerifyMerkleRoot(); err != nil {
			return Block{}, err
		}
	}

	if h := nb.Hash(); h != blockData.Hash {
		return Block{}, fmt.Errorf("invalid block record, hash mismatch, got %s, exp %s", blockData.Hash, h)
	}

	return nb, nil
}

// =============================================================================

// DatabaseIterator provides support for iterating over the blocks in
// storage, converting each record back into a block.
type DatabaseIterator struct {
	iterator Iterator
}

// Next retrieves the next block from storage.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}
