package pcodec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestGenericDispatchMatchesReference pins the generic dispatch table to
// the behavior any substituted vectorized table must reproduce
// bit-for-bit.
func TestGenericDispatchMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(30))
	data := randomBytes(rng, 777)
	prev := randomBytes(rng, 777)

	var counts [256]uint32
	GenericDispatchTable.FreqCount(data, &counts)
	var want [256]uint32
	for _, b := range data {
		want[b]++
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("FreqCount mismatch (-want +got):\n%s", diff)
	}

	enc := make([]byte, len(data))
	dec := make([]byte, len(data))
	GenericDispatchTable.DeltaEncode(data, prev, enc)
	if !bytes.Equal(enc, deltaOrder1(data, prev)) {
		t.Errorf("DeltaEncode disagrees with deltaOrder1")
	}
	GenericDispatchTable.DeltaDecode(enc, prev, dec)
	if !bytes.Equal(dec, data) {
		t.Errorf("DeltaDecode does not invert DeltaEncode")
	}
}

// TestCRC32UpdateIsIncremental checks the rolling form matches a one-shot
// checksum over the concatenation, which is what lets a vectorized
// implementation process a buffer in chunks.
func TestCRC32UpdateIsIncremental(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	a := randomBytes(rng, 100)
	b := randomBytes(rng, 57)

	rolling := GenericDispatchTable.CRC32Update(0, a)
	rolling = GenericDispatchTable.CRC32Update(rolling, b)
	oneShot := crc32IEEE(append(append([]byte(nil), a...), b...))
	if rolling != oneShot {
		t.Fatalf("rolling CRC %#x != one-shot CRC %#x", rolling, oneShot)
	}
}

func TestSIMDLevelStrings(t *testing.T) {
	names := map[SIMDLevel]string{
		SIMDAuto:    "auto",
		SIMDGeneric: "generic",
		SIMDSSE42:   "sse4.2",
		SIMDAVX2:    "avx2",
		SIMDNEON:    "neon",
	}
	for l, want := range names {
		if got := l.String(); got != want {
			t.Errorf("SIMDLevel(%d).String() = %q, want %q", l, got, want)
		}
	}
}
