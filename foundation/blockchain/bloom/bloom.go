// Package bloom implements the membership filter used to index transaction
// hashes. The filter is a fixed-size bit array probed by k hash functions:
// it never reports a seen item as absent, and it never forgets. Over the
// life of a chain the bit array only fills up, so the false positive rate
// climbs toward one; callers watch FalsePositiveRate to observe that.
package bloom

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
)

// Default sizing for the filter. With these values the false positive rate
// stays under one percent for roughly the first 25,000 insertions.
const (
	DefaultBits   = 256 * 1024
	DefaultHashes = 7
)

// Filter is a fixed-size, insert-only membership filter. The zero value is
// not usable; construct it with New.
type Filter struct {
	mu   sync.RWMutex
	bits []uint64
	m    uint64 // Number of bits in the filter.
	k    uint64 // Number of hash functions probed per item.
	n    uint64 // Number of items inserted.
}

// New constructs a filter with m bits and k hash functions. Values of zero
// fall back to the package defaults.
func New(m uint64, k uint64) *Filter {
	if m == 0 {
		m = DefaultBits
	}
	if k == 0 {
		k = DefaultHashes
	}

	return &Filter{
		bits: make([]uint64, (m+63)/64),
		m:    m,
		k:    k,
	}
}

// Add inserts an item into the filter. Bits are only ever set; there is no
// removal operation.
func (f *Filter) Add(item []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := uint64(0); i < f.k; i++ {
		pos := f.position(item, i)
		f.bits[pos/64] |= 1 << (pos % 64)
	}

	f.n++
}

// MightContain reports whether the item may have been added to the filter.
// A false result is definitive; a true result may be a false positive.
func (f *Filter) MightContain(item []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for i := uint64(0); i < f.k; i++ {
		pos := f.position(item, i)
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}

	return true
}

// Count returns the number of items inserted into the filter.
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.n
}

// FalsePositiveRate returns the expected false positive probability for the
// current number of insertions: (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.n == 0 {
		return 0
	}

	exp := -float64(f.k) * float64(f.n) / float64(f.m)
	return math.Pow(1-math.Exp(exp), float64(f.k))
}

// position computes the bit position for the item under hash function i.
// Each probe is domain separated by prefixing the item with the hash
// function index.
func (f *Filter) position(item []byte, i uint64) uint64 {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], i)

	h := sha256.New()
	h.Write(prefix[:])
	h.Write(item)
	sum := h.Sum(nil)

	return binary.BigEndian.Uint64(sum[:8]) % f.m
}

// =============================================================================

// Record represents the serialized form of the filter. Every field required
// to reconstruct an identical filter is preserved.
type Record struct {
	Bits  []uint64 `json:"bits"`
	M     uint64   `json:"m"`
	K     uint64   `json:"k"`
	Count uint64   `json:"count"`
}

// ToRecord captures the filter state for serialization.
func (f *Filter) ToRecord() Record {
	f.mu.RLock()
	defer f.mu.RUnlock()

	bits := make([]uint64, len(f.bits))
	copy(bits, f.bits)

	return Record{
		Bits:  bits,
		M:     f.m,
		K:     f.k,
		Count: f.n,
	}
}

// FromRecord reconstructs a filter from its serialized form.
func FromRecord(record Record) *Filter {
	f := New(record.M, record.K)
	copy(f.bits, record.Bits)
	f.n = record.Count

	return f
}
