package pcodec

import (
	"encoding/binary"
	"sync"
)

// Dictionary training and the versioned, checksummed blob layout.

const (
	dictMagic   = 0x50434443 // "PCDC" as a big-endian word; stored little-endian, the blob starts "CDCP"
	dictVersion = 5

	numBigramClassesV5 = 8
	numBigramClassesV4 = 4
)

// Dictionary is an immutable trained model shared read-only by any number
// of Contexts. The zero value is not usable; construct via DictTrain or
// DictLoad.
type Dictionary struct {
	Version uint8
	ModelID uint8
	HasLZP  bool

	BigramClassMap [256]uint8 // previous-byte value -> class index

	// Raw trained tables, each bucket/class summing to freqTableSum (4096).
	Unigram          [numBuckets][256]uint32
	Bigram           [numBuckets][numBigramClassesV5][256]uint32
	NumBigramClasses int // 8 for v5, 4 for a downgraded v4 load

	LZP []lzpEntry // len lzpTableEntries if HasLZP, else nil

	mu     sync.Mutex
	tables map[tansTableKey]*tansTable
}

type tansTableKey struct {
	bucket   int
	bigram   bool
	class    int
	tableLog uint
}

// DictTrain builds a Dictionary from a corpus of representative payloads.
// Returns ErrInvalidArg for an empty corpus or a reserved model_id (0 or
// 255).
func DictTrain(payloads [][]byte, modelID uint8, enableLZP bool) (*Dictionary, error) {
	if len(payloads) == 0 {
		return nil, ErrInvalidArg
	}
	if modelID == 0 || modelID == 255 {
		return nil, ErrInvalidArg
	}

	d := &Dictionary{
		Version:          dictVersion,
		ModelID:          modelID,
		NumBigramClasses: numBigramClassesV5,
		tables:           make(map[tansTableKey]*tansTable),
	}

	var uniCounts [numBuckets][256]uint32
	// Per-previous-byte conditional counts, used both to build the bigram
	// class map and, once classes are assigned, the per-class tables.
	var condCounts [256][numBuckets][256]uint32

	for _, p := range payloads {
		for i, b := range p {
			buck := bucket(i)
			uniCounts[buck][b]++
			if i >= 1 {
				condCounts[p[i-1]][buck][b]++
			}
		}
	}

	for b := 0; b < numBuckets; b++ {
		d.Unigram[b] = normalizeFreqs(&uniCounts[b], freqTableSum)
	}

	d.BigramClassMap = buildBigramClassMap(&condCounts)

	var classCounts [numBigramClassesV5][numBuckets][256]uint32
	for prevByte := 0; prevByte < 256; prevByte++ {
		cls := d.BigramClassMap[prevByte]
		for b := 0; b < numBuckets; b++ {
			for sym := 0; sym < 256; sym++ {
				classCounts[cls][b][sym] += condCounts[prevByte][b][sym]
			}
		}
	}
	for cls := 0; cls < numBigramClassesV5; cls++ {
		for b := 0; b < numBuckets; b++ {
			d.Bigram[b][cls] = normalizeFreqs(&classCounts[cls][b], freqTableSum)
		}
	}

	if enableLZP {
		d.HasLZP = true
		d.LZP = trainLZP(payloads)
	}

	return d, nil
}

// buildBigramClassMap sorts the 256 previous-byte values by the peak
// frequency of their conditional distribution (summed across buckets) and
// assigns 32 consecutive values per class (8 classes of 32).
func buildBigramClassMap(condCounts *[256][numBuckets][256]uint32) [256]uint8 {
	type peak struct {
		prevByte int
		score    uint64
	}
	peaks := make([]peak, 256)
	for pb := 0; pb < 256; pb++ {
		var total [256]uint64
		for b := 0; b < numBuckets; b++ {
			for sym := 0; sym < 256; sym++ {
				total[sym] += uint64(condCounts[pb][b][sym])
			}
		}
		var max uint64
		for _, v := range total {
			if v > max {
				max = v
			}
		}
		peaks[pb] = peak{prevByte: pb, score: max}
	}
	// Stable insertion sort by score ascending over the fixed 256 entries.
	for i := 1; i < len(peaks); i++ {
		for j := i; j > 0 && peaks[j].score < peaks[j-1].score; j-- {
			peaks[j], peaks[j-1] = peaks[j-1], peaks[j]
		}
	}
	var classMap [256]uint8
	for rank, p := range peaks {
		classMap[p.prevByte] = uint8(rank / 32)
	}
	return classMap
}

// trainLZP accumulates a majority-vote predictor over (prev_byte, position)
// -> byte[i] across the corpus.
func trainLZP(payloads [][]byte) []lzpEntry {
	type vote struct {
		byteCounts map[byte]int
	}
	votes := make(map[uint32]*vote)
	for _, p := range payloads {
		for i := 1; i < len(p); i++ {
			h := lzpHash(p[i-1], i)
			v := votes[h]
			if v == nil {
				v = &vote{byteCounts: make(map[byte]int)}
				votes[h] = v
			}
			v.byteCounts[p[i]]++
		}
	}
	table := make([]lzpEntry, lzpTableEntries)
	for h, v := range votes {
		var best byte
		var bestCount, total int
		for b, c := range v.byteCounts {
			total += c
			if c > bestCount {
				bestCount, best = c, b
			}
		}
		conf := uint8(4 * bestCount / total)
		if conf == 0 {
			conf = 1
		}
		table[h] = lzpEntry{Predicted: best, Confidence: conf}
	}
	return table
}

// --- blob serialization ----------------------------------------------------

// DictSave serializes d into the v5 little-endian blob layout, ending with
// an IEEE CRC-32 over all preceding bytes.
func (d *Dictionary) DictSave() ([]byte, error) {
	size := 8 + 256 + 16*256*2 + 16*numBigramClassesV5*256*2 + 4
	if d.HasLZP {
		size += len(d.LZP) * 2
	}
	size += 4 // crc

	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], dictMagic)
	off += 4
	buf[off] = dictVersion
	off++
	buf[off] = d.ModelID
	off++
	if d.HasLZP {
		buf[off] = 1
	}
	off++
	buf[off] = 0 // reserved
	off++

	copy(buf[off:off+256], d.BigramClassMap[:])
	off += 256

	for b := 0; b < numBuckets; b++ {
		for sym := 0; sym < 256; sym++ {
			binary.LittleEndian.PutUint16(buf[off:], uint16(d.Unigram[b][sym]))
			off += 2
		}
	}
	for b := 0; b < numBuckets; b++ {
		for cls := 0; cls < numBigramClassesV5; cls++ {
			for sym := 0; sym < 256; sym++ {
				binary.LittleEndian.PutUint16(buf[off:], uint16(d.Bigram[b][cls][sym]))
				off += 2
			}
		}
	}

	if d.HasLZP {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(d.LZP)))
		off += 4
		for _, e := range d.LZP {
			buf[off] = e.Predicted
			buf[off+1] = e.Confidence
			off += 2
		}
	} else {
		binary.LittleEndian.PutUint32(buf[off:], 0)
		off += 4
	}

	crc := crc32IEEE(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], crc)
	off += 4

	return buf[:off], nil
}

// DictLoad parses and validates a dictionary blob, including its CRC-32:
// any single-bit flip in the blob must be rejected. Versions >= 3 are
// accepted with graceful downgrade of features the older layout lacks.
func DictLoad(buf []byte) (*Dictionary, error) {
	if len(buf) < 12 {
		return nil, ErrDictInvalid
	}
	crcOff := len(buf) - 4
	wantCRC := binary.LittleEndian.Uint32(buf[crcOff:])
	gotCRC := crc32IEEE(buf[:crcOff])
	if wantCRC != gotCRC {
		return nil, ErrDictInvalid
	}

	off := 0
	magic := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if magic != dictMagic {
		return nil, ErrDictInvalid
	}
	version := buf[off]
	off++
	if version < 3 {
		return nil, ErrDictInvalid
	}
	modelID := buf[off]
	off++
	flags := buf[off]
	off++
	off++ // reserved

	d := &Dictionary{
		Version: version,
		ModelID: modelID,
		HasLZP:  flags&1 != 0,
		tables:  make(map[tansTableKey]*tansTable),
	}

	if off+256 > crcOff {
		return nil, ErrDictInvalid
	}
	copy(d.BigramClassMap[:], buf[off:off+256])
	off += 256

	numClasses := numBigramClassesV5
	if version == 4 {
		numClasses = numBigramClassesV4
		// v4 dictionaries used a default prev>>6 class map rather than a
		// trained one; normalize the loaded map to that scheme so bigram
		// lookups stay within [0, numBigramClassesV4).
		for i := range d.BigramClassMap {
			d.BigramClassMap[i] = uint8(i >> 6)
		}
	}
	d.NumBigramClasses = numClasses

	for b := 0; b < numBuckets; b++ {
		if off+512 > crcOff {
			return nil, ErrDictInvalid
		}
		for sym := 0; sym < 256; sym++ {
			d.Unigram[b][sym] = uint32(binary.LittleEndian.Uint16(buf[off:]))
			off += 2
		}
	}
	for b := 0; b < numBuckets; b++ {
		for cls := 0; cls < numClasses; cls++ {
			if off+512 > crcOff {
				return nil, ErrDictInvalid
			}
			for sym := 0; sym < 256; sym++ {
				d.Bigram[b][cls][sym] = uint32(binary.LittleEndian.Uint16(buf[off:]))
				off += 2
			}
		}
	}

	if off+4 > crcOff {
		return nil, ErrDictInvalid
	}
	lzpSize := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if d.HasLZP {
		if lzpSize != lzpTableEntries {
			return nil, ErrDictInvalid
		}
		if off+int(lzpSize)*2 > crcOff {
			return nil, ErrDictInvalid
		}
		d.LZP = make([]lzpEntry, lzpSize)
		for i := range d.LZP {
			d.LZP[i] = lzpEntry{Predicted: buf[off], Confidence: buf[off+1]}
			off += 2
		}
	}

	return d, nil
}

// Free releases the dictionary's cached tANS tables and LZP table. Go's
// garbage collector reclaims the rest once the Dictionary is unreferenced;
// Free exists for API parity with the language-neutral interface, like a
// Context's Destroy. Contexts must not outlive the dictionary they were
// bound to.
func (d *Dictionary) Free() {
	d.mu.Lock()
	d.tables = nil
	d.LZP = nil
	d.mu.Unlock()
}

// tansTableFor lazily builds (and caches) the tANS table for the given
// selection. Dictionaries are shared read-only across contexts, so the
// cache is built once per distinct (bucket, bigram-class, resolution)
// combination actually used rather than exhaustively at load time.
func (d *Dictionary) tansTableFor(b int, bigram bool, class int, tableLog uint) *tansTable {
	key := tansTableKey{bucket: b, bigram: bigram, class: class, tableLog: tableLog}
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tables[key]; ok {
		return t
	}
	var base [256]uint32
	if bigram {
		base = d.Bigram[b][class]
	} else {
		base = d.Unigram[b]
	}
	var freq [256]uint32
	if tableLog == 12 {
		freq = base
	} else {
		freq = rescaleFreqs(&base, 1<<tableLog)
	}
	t := buildTansTable(&freq, tableLog)
	d.tables[key] = t
	return t
}

// freqTableFor returns the raw (4096-sum) frequency table used for an
// applicability check, without paying for a full tANS table build.
func (d *Dictionary) freqTableFor(b int, bigram bool, class int) *[256]uint32 {
	if bigram {
		return &d.Bigram[b][class]
	}
	return &d.Unigram[b]
}
