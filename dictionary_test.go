package pcodec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleCorpus() [][]byte {
	corpus := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		p := make([]byte, 48)
		for j := range p {
			p[j] = byte((i*7 + j*3) % 251)
		}
		corpus = append(corpus, p)
	}
	return corpus
}

func TestDictTrainRejectsEmptyCorpus(t *testing.T) {
	if _, err := DictTrain(nil, 1, false); err != ErrInvalidArg {
		t.Fatalf("err = %v, want ErrInvalidArg", err)
	}
}

func TestDictTrainRejectsReservedModelID(t *testing.T) {
	corpus := sampleCorpus()
	if _, err := DictTrain(corpus, 0, false); err != ErrInvalidArg {
		t.Fatalf("model_id=0: err = %v, want ErrInvalidArg", err)
	}
	if _, err := DictTrain(corpus, 255, false); err != ErrInvalidArg {
		t.Fatalf("model_id=255: err = %v, want ErrInvalidArg", err)
	}
}

func TestDictTrainUnigramSumsTo4096(t *testing.T) {
	d, err := DictTrain(sampleCorpus(), 1, true)
	if err != nil {
		t.Fatalf("DictTrain: %v", err)
	}
	for b := 0; b < numBuckets; b++ {
		var sum uint32
		for _, v := range d.Unigram[b] {
			sum += v
		}
		if sum != freqTableSum {
			t.Fatalf("bucket %d unigram sum = %d, want %d", b, sum, freqTableSum)
		}
		for cls := 0; cls < d.NumBigramClasses; cls++ {
			var bsum uint32
			for _, v := range d.Bigram[b][cls] {
				bsum += v
			}
			if bsum != freqTableSum {
				t.Fatalf("bucket %d class %d bigram sum = %d, want %d", b, cls, bsum, freqTableSum)
			}
		}
	}
}

// TestDictSaveLoadRoundTrip: saving then loading a dictionary must
// reproduce it exactly.
func TestDictSaveLoadRoundTrip(t *testing.T) {
	d, err := DictTrain(sampleCorpus(), 7, true)
	if err != nil {
		t.Fatalf("DictTrain: %v", err)
	}
	blob, err := d.DictSave()
	if err != nil {
		t.Fatalf("DictSave: %v", err)
	}
	got, err := DictLoad(blob)
	if err != nil {
		t.Fatalf("DictLoad: %v", err)
	}
	if diff := cmp.Diff(d.Version, got.Version); diff != "" {
		t.Errorf("Version mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(d.ModelID, got.ModelID); diff != "" {
		t.Errorf("ModelID mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(d.HasLZP, got.HasLZP); diff != "" {
		t.Errorf("HasLZP mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(d.BigramClassMap, got.BigramClassMap); diff != "" {
		t.Errorf("BigramClassMap mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(d.Unigram, got.Unigram); diff != "" {
		t.Errorf("Unigram mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(d.Bigram, got.Bigram); diff != "" {
		t.Errorf("Bigram mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(d.LZP, got.LZP); diff != "" {
		t.Errorf("LZP mismatch (-want +got):\n%s", diff)
	}
}

// TestDictLoadRejectsBitFlip: any single-bit flip in the blob must yield
// DictInvalid.
func TestDictLoadRejectsBitFlip(t *testing.T) {
	d, err := DictTrain(sampleCorpus(), 3, true)
	if err != nil {
		t.Fatalf("DictTrain: %v", err)
	}
	blob, err := d.DictSave()
	if err != nil {
		t.Fatalf("DictSave: %v", err)
	}

	flipped := 0
	for i := range blob {
		for bit := 0; bit < 8; bit++ {
			cp := make([]byte, len(blob))
			copy(cp, blob)
			cp[i] ^= 1 << bit
			if _, err := DictLoad(cp); err != ErrDictInvalid {
				t.Fatalf("byte %d bit %d: err = %v, want ErrDictInvalid", i, bit, err)
			}
			flipped++
			if flipped > 2000 {
				return // sample, not every one of the ~2.7M flips
			}
		}
	}
}

func TestDictLoadRejectsBadMagic(t *testing.T) {
	d, err := DictTrain(sampleCorpus(), 2, false)
	if err != nil {
		t.Fatalf("DictTrain: %v", err)
	}
	blob, err := d.DictSave()
	if err != nil {
		t.Fatalf("DictSave: %v", err)
	}
	blob[0] ^= 0xFF
	// Fix the CRC so only the magic is wrong, isolating which check fires.
	crc := crc32IEEE(blob[:len(blob)-4])
	blob[len(blob)-4] = byte(crc)
	blob[len(blob)-3] = byte(crc >> 8)
	blob[len(blob)-2] = byte(crc >> 16)
	blob[len(blob)-1] = byte(crc >> 24)
	if _, err := DictLoad(blob); err != ErrDictInvalid {
		t.Fatalf("err = %v, want ErrDictInvalid", err)
	}
}

func TestDictLoadRejectsTruncated(t *testing.T) {
	if _, err := DictLoad([]byte{1, 2, 3}); err != ErrDictInvalid {
		t.Fatalf("err = %v, want ErrDictInvalid", err)
	}
}
