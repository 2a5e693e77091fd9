package pcodec

import (
	"bytes"
	"math/rand"
	"testing"
)

// TestDecompressTruncatedInputNeverPanics truncates a valid compressed
// packet at every byte offset: every prefix must either error or produce a
// result within capacity, never panic.
func TestDecompressTruncatedInputNeverPanics(t *testing.T) {
	d := testDict(t, true)
	ctx, err := NewContext(d, Config{Mode: ModeStateless, Flags: FlagCompactHeader})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	p := make([]byte, 96)
	rand.New(rand.NewSource(11)).Read(p)
	dst := make([]byte, MaxCompressedSize(len(p)))
	n, err := ctx.Compress(dst, p)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	full := dst[:n]

	out := make([]byte, len(p))
	for truncLen := 0; truncLen <= len(full); truncLen++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("truncLen=%d: panicked: %v", truncLen, r)
				}
			}()
			dctx, err := NewContext(d, Config{Mode: ModeStateless, Flags: FlagCompactHeader})
			if err != nil {
				t.Fatalf("NewContext: %v", err)
			}
			m, derr := dctx.Decompress(out, full[:truncLen])
			if truncLen == len(full) {
				if derr != nil {
					t.Fatalf("full-length input: Decompress: %v", derr)
				}
				if !bytes.Equal(out[:m], p) {
					t.Fatalf("full-length input: round trip mismatch")
				}
				return
			}
			if derr == nil && m > len(out) {
				t.Fatalf("truncLen=%d: m=%d exceeds dst capacity %d", truncLen, m, len(out))
			}
		}()
	}
}

// TestDecompressBitFlipsNeverPanicAndMostlyCorrupt flips every bit of a
// valid compressed packet; a majority must be detected, either as an error
// or as an observable output mismatch.
func TestDecompressBitFlipsNeverPanicAndMostlyCorrupt(t *testing.T) {
	d := testDict(t, true)
	ctx, err := NewContext(d, Config{Mode: ModeStateless, Flags: FlagCompactHeader})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	p := make([]byte, 64)
	rand.New(rand.NewSource(12)).Read(p)
	dst := make([]byte, MaxCompressedSize(len(p)))
	n, err := ctx.Compress(dst, p)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	full := dst[:n]

	out := make([]byte, len(p)+64)
	detected := 0
	total := 0
	for i := 0; i < len(full); i++ {
		for bit := 0; bit < 8; bit++ {
			total++
			flipped := make([]byte, len(full))
			copy(flipped, full)
			flipped[i] ^= 1 << bit
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("byte %d bit %d: panicked: %v", i, bit, r)
					}
				}()
				dctx, err := NewContext(d, Config{Mode: ModeStateless, Flags: FlagCompactHeader})
				if err != nil {
					t.Fatalf("NewContext: %v", err)
				}
				m, derr := dctx.Decompress(out, flipped)
				if derr != nil {
					detected++
					return
				}
				if m != len(p) || !bytes.Equal(out[:m], p) {
					detected++
				}
			}()
		}
	}
	if detected*2 < total {
		t.Fatalf("only %d/%d single-bit flips detected as corrupt or mismatched, want a majority", detected, total)
	}
}

// TestDecompressOversizedDeclaredSizeIsCorruptNotBufferTooSmall: a packet
// declaring original_size = 65535 but carrying far fewer compressed bytes
// must yield Corrupt, not BufferTooSmall, and must write 0 bytes to dst.
func TestDecompressOversizedDeclaredSizeIsCorruptNotBufferTooSmall(t *testing.T) {
	d := testDict(t, false)
	ctx, err := NewContext(d, Config{Mode: ModeStateless, Flags: FlagCompactHeader})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	code := tans12Code[0][0] // plain tANS-12, bucket 0, sizeLong + tANS state
	hdr := make([]byte, 5)
	n, err := encodeCompactHeader(hdr, code, 65535, 4096+1)
	if err != nil {
		t.Fatalf("encodeCompactHeader: %v", err)
	}
	packet := append(hdr[:n], 0x01, 0x02) // 2 bytes of "compressed payload", nowhere near enough

	dst := make([]byte, 65536)
	m, err := ctx.Decompress(dst, packet)
	if err != ErrCorrupt {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if m != 0 {
		t.Fatalf("m = %d, want 0", m)
	}
}

func TestDecompressRejectsSentinelAndReservedCodes(t *testing.T) {
	d := testDict(t, false)
	ctx, err := NewContext(d, Config{Mode: ModeStateless, Flags: FlagCompactHeader})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	dst := make([]byte, 64)
	if _, err := ctx.Decompress(dst, []byte{0xFF, 0, 0}); err != ErrCorrupt {
		t.Fatalf("sentinel 0xFF: err = %v, want ErrCorrupt", err)
	}
	if _, err := ctx.Decompress(dst, []byte{0x07, 0, 0}); err != ErrCorrupt {
		t.Fatalf("reserved 0x07: err = %v, want ErrCorrupt", err)
	}
}

// TestDecompressErrorRollsBackContext: on decoder error, the ring buffer
// and previous-packet state are not updated.
func TestDecompressErrorRollsBackContext(t *testing.T) {
	d := testDict(t, true)
	cfg := Config{Mode: ModeStateful, Flags: FlagDelta | FlagCompactHeader}
	enc, err := NewContext(d, cfg)
	if err != nil {
		t.Fatalf("NewContext (encoder): %v", err)
	}
	dec, err := NewContext(d, cfg)
	if err != nil {
		t.Fatalf("NewContext (decoder): %v", err)
	}

	p1 := make([]byte, 64)
	rand.New(rand.NewSource(13)).Read(p1)
	dst := make([]byte, MaxCompressedSize(64))
	out := make([]byte, 64)

	n, err := enc.Compress(dst, p1)
	if err != nil {
		t.Fatalf("Compress p1: %v", err)
	}
	if _, err := dec.Decompress(out, dst[:n]); err != nil {
		t.Fatalf("Decompress p1: %v", err)
	}
	prevBefore := append([]byte(nil), dec.prev...)

	if _, err := dec.Decompress(out, []byte{0xFF}); err == nil {
		t.Fatalf("expected error decoding sentinel packet")
	}
	if !bytes.Equal(prevBefore, dec.prev) {
		t.Fatalf("decoder prev mutated after failed decode: before=%v after=%v", prevBefore, dec.prev)
	}

	p2 := make([]byte, 64)
	rand.New(rand.NewSource(14)).Read(p2)
	n2, err := enc.Compress(dst, p2)
	if err != nil {
		t.Fatalf("Compress p2: %v", err)
	}
	m, err := dec.Decompress(out, dst[:n2])
	if err != nil {
		t.Fatalf("Decompress p2 after rollback: %v", err)
	}
	if !bytes.Equal(out[:m], p2) {
		t.Fatalf("decode after rollback mismatch")
	}
}

// TestLegacyHeaderModelMismatch: a legacy packet names the dictionary model that produced it, and
// decoding against a differently-numbered model must fail rather than emit
// garbage.
func TestLegacyHeaderModelMismatch(t *testing.T) {
	d1, err := DictTrain(sampleCorpus(), 1, false)
	if err != nil {
		t.Fatalf("DictTrain(1): %v", err)
	}
	d2, err := DictTrain(sampleCorpus(), 2, false)
	if err != nil {
		t.Fatalf("DictTrain(2): %v", err)
	}
	enc, err := NewContext(d1, Config{Mode: ModeStateless})
	if err != nil {
		t.Fatalf("NewContext (encoder): %v", err)
	}
	dec, err := NewContext(d2, Config{Mode: ModeStateless})
	if err != nil {
		t.Fatalf("NewContext (decoder): %v", err)
	}

	p := make([]byte, 64)
	rand.New(rand.NewSource(15)).Read(p)
	dst := make([]byte, MaxCompressedSize(len(p)))
	n, err := enc.Compress(dst, p)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	out := make([]byte, len(p))
	if _, err := dec.Decompress(out, dst[:n]); err != ErrModelMismatch {
		t.Fatalf("err = %v, want ErrModelMismatch", err)
	}
}
