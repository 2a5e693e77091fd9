package pcodec

import (
	"bytes"
	"math/rand"
	"testing"
)

func newTestLZPTable() []lzpEntry {
	return make([]lzpEntry, lzpTableEntries)
}

func TestLZPFilterRoundTrip(t *testing.T) {
	table := newTestLZPTable()
	r := rand.New(rand.NewSource(4))
	input := randomBytes(r, 400)

	filtered := lzpFilter(table, input)
	out := lzpUnfilter(table, filtered)
	if !bytes.Equal(out, input) {
		t.Fatalf("round trip mismatch")
	}
}

func TestLZPFilterEmpty(t *testing.T) {
	table := newTestLZPTable()
	if out := lzpFilter(table, nil); len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
}

func TestLZPUpdateConfidenceDecay(t *testing.T) {
	table := newTestLZPTable()
	data := bytes.Repeat([]byte{0xAB, 0xCD}, 50)

	// Repeated training on the same pattern should saturate confidence.
	for i := 0; i < 20; i++ {
		lzpUpdate(table, data)
	}
	h := lzpHash(data[0], 1)
	if table[h].Confidence != 4 {
		t.Errorf("confidence = %d, want saturated at 4", table[h].Confidence)
	}
	if table[h].Predicted != data[1] {
		t.Errorf("predicted = %d, want %d", table[h].Predicted, data[1])
	}

	// A single contradicting observation should only decay confidence by one.
	contradicting := []byte{data[0], data[1] + 1}
	lzpUpdate(table, contradicting)
	if table[h].Confidence != 3 {
		t.Errorf("confidence after one miss = %d, want 3", table[h].Confidence)
	}
}

func TestLZPUpdateReplacesAtZeroConfidence(t *testing.T) {
	table := newTestLZPTable()
	h := lzpHash(0x11, 1)
	table[h] = lzpEntry{Predicted: 0x22, Confidence: 0}

	data := []byte{0x11, 0x33}
	lzpUpdate(table, data)
	if table[h].Predicted != 0x33 || table[h].Confidence != 1 {
		t.Errorf("entry = %+v, want replaced prediction with confidence 1", table[h])
	}
}
