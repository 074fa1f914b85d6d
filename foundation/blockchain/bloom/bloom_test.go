package bloom_test

import (
	"fmt"
	"testing"

	"github.com/ledgermint/ledgermint/foundation/blockchain/bloom"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_NoFalseNegatives(t *testing.T) {
	t.Log("Given the need to validate every added item is reported present.")
	{
		filter := bloom.New(0, 0)

		const items = 1000
		for i := 0; i < items; i++ {
			filter.Add([]byte(fmt.Sprintf("tx-%d", i)))
		}

		if filter.Count() != items {
			t.Fatalf("\t%s\tShould have counted %d items, got %d.", failed, items, filter.Count())
		}
		t.Logf("\t%s\tShould have counted %d items.", success, items)

		for i := 0; i < items; i++ {
			if !filter.MightContain([]byte(fmt.Sprintf("tx-%d", i))) {
				t.Fatalf("\t%s\tShould report item %d as present.", failed, i)
			}
		}
		t.Logf("\t%s\tShould report every added item as present.", success)
	}
}

func Test_FalsePositiveRate(t *testing.T) {
	t.Log("Given the need to validate the false positive rate estimate.")
	{
		filter := bloom.New(0, 0)

		if rate := filter.FalsePositiveRate(); rate != 0 {
			t.Fatalf("\t%s\tShould have a zero rate for an empty filter, got %v.", failed, rate)
		}
		t.Logf("\t%s\tShould have a zero rate for an empty filter.", success)

		filter.Add([]byte("tx-1"))
		low := filter.FalsePositiveRate()

		for i := 2; i <= 10000; i++ {
			filter.Add([]byte(fmt.Sprintf("tx-%d", i)))
		}
		high := filter.FalsePositiveRate()

		if high <= low {
			t.Fatalf("\t%s\tShould have a rate that grows with additions: low %v, high %v.", failed, low, high)
		}
		t.Logf("\t%s\tShould have a rate that grows with additions.", success)

		if high >= 1 {
			t.Fatalf("\t%s\tShould have a rate below one, got %v.", failed, high)
		}
		t.Logf("\t%s\tShould have a rate below one.", success)

		// With the default sizing, 10k entries should still be well clear of
		// saturation.
		if high > 0.01 {
			t.Fatalf("\t%s\tShould have a rate below one percent, got %v.", failed, high)
		}
		t.Logf("\t%s\tShould have a rate below one percent.", success)
	}
}

func Test_RecordRoundTrip(t *testing.T) {
	t.Log("Given the need to validate a filter survives the record form.")
	{
		filter := bloom.New(2048, 5)

		const items = 100
		for i := 0; i < items; i++ {
			filter.Add([]byte(fmt.Sprintf("tx-%d", i)))
		}

		restored := bloom.FromRecord(filter.ToRecord())

		if restored.Count() != filter.Count() {
			t.Fatalf("\t%s\tShould preserve the item count, got %d, exp %d.", failed, restored.Count(), filter.Count())
		}
		t.Logf("\t%s\tShould preserve the item count.", success)

		for i := 0; i < items; i++ {
			if !restored.MightContain([]byte(fmt.Sprintf("tx-%d", i))) {
				t.Fatalf("\t%s\tShould preserve membership for item %d.", failed, i)
			}
		}
		t.Logf("\t%s\tShould preserve membership for every item.", success)

		if restored.FalsePositiveRate() != filter.FalsePositiveRate() {
			t.Fatalf("\t%s\tShould preserve the false positive rate.", failed)
		}
		t.Logf("\t%s\tShould preserve the false positive rate.", success)
	}
}
