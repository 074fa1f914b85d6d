package merkle_test

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/ledgermint/ledgermint/foundation/blockchain/merkle"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Data uses the sha256 hashing algorithm for the merkle tree.
type Data struct {
	x string
}

// Hash hashes the value using sha256.
func (d Data) Hash() ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write([]byte(d.x)); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// Equals tests for equality of two pieces of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

// =============================================================================

func values(ss ...string) []Data {
	data := make([]Data, len(ss))
	for i, s := range ss {
		data[i] = Data{x: s}
	}
	return data
}

func Test_TreeRoot(t *testing.T) {
	type table struct {
		name string
		data []Data
	}

	tt := []table{
		{name: "single", data: values("a")},
		{name: "even", data: values("a", "b", "c", "d")},
		{name: "odd", data: values("a", "b", "c")},
	}

	t.Log("Given the need to validate the merkle tree root.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %d values.", testID, len(tst.data))
			{
				f := func(t *testing.T) {
					tree, err := merkle.NewTree(tst.data)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to build the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to build the tree.", success, testID)

					if err := tree.Verify(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to verify the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to verify the tree.", success, testID)

					root := make([]byte, len(tree.MerkleRoot))
					copy(root, tree.MerkleRoot)

					if err := tree.Rebuild(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to rebuild the tree: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to rebuild the tree.", success, testID)

					if !bytes.Equal(root, tree.MerkleRoot) {
						t.Fatalf("\t%s\tTest %d:\tShould get the same root after a rebuild.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the same root after a rebuild.", success, testID)

					vals := tree.Values()
					if len(vals) != len(tst.data) {
						t.Fatalf("\t%s\tTest %d:\tShould get back %d values, got %d.", failed, testID, len(tst.data), len(vals))
					}
					t.Logf("\t%s\tTest %d:\tShould get back the original values.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Proof(t *testing.T) {
	data := values("a", "b", "c", "d", "e")

	t.Log("Given the need to prove a value is in the tree.")
	{
		tree, err := merkle.NewTree(data)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build the tree: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to build the tree.", success)

		for i, d := range data {
			proof, order, err := tree.Proof(d)
			if err != nil {
				t.Fatalf("\t%s\tValue %d:\tShould be able to generate a proof: %v", failed, i, err)
			}
			t.Logf("\t%s\tValue %d:\tShould be able to generate a proof.", success, i)

			leafHash, err := d.Hash()
			if err != nil {
				t.Fatalf("\t%s\tValue %d:\tShould be able to hash the value: %v", failed, i, err)
			}

			if !merkle.VerifyProof(leafHash, proof, order, tree.MerkleRoot) {
				t.Fatalf("\t%s\tValue %d:\tShould be able to verify the proof against the root.", failed, i)
			}
			t.Logf("\t%s\tValue %d:\tShould be able to verify the proof against the root.", success, i)
		}

		// A proof must stop verifying the moment any sibling hash changes.
		proof, order, err := tree.Proof(data[0])
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a proof: %v", failed, err)
		}
		leafHash, _ := data[0].Hash()

		proof[0][0] ^= 0xff
		if merkle.VerifyProof(leafHash, proof, order, tree.MerkleRoot) {
			t.Fatalf("\t%s\tShould not be able to verify a tampered proof.", failed)
		}
		t.Logf("\t%s\tShould not be able to verify a tampered proof.", success)

		if _, _, err := tree.Proof(Data{x: "z"}); err == nil {
			t.Fatalf("\t%s\tShould not be able to prove a missing value.", failed)
		}
		t.Logf("\t%s\tShould not be able to prove a missing value.", success)
	}
}
