package pcodec

import "encoding/binary"

// Competition engine and public compress entry points. The search shape:
//
//	best = passthrough(input)
//	for pre in {identity, delta-order-1, delta-order-2, lzp-xor, delta+lzp, delta2+delta1}:
//	  if pre is applicable:
//	    residual = apply(pre, input)
//	    for coder in {tans-12-unigram, tans-12-bigram, tans-10, lz77, lz77x, rle}:
//	      if coder is applicable:
//	        candidate = coder(residual)
//	        if size(candidate) + header(pre, coder) < best.total:
//	          best = candidate
//
// Ties are broken by enumeration order (first strictly-smaller candidate
// wins), which this file reproduces by only ever replacing best on a
// strict improvement; passthrough, tried first, therefore wins every tie.

const maxPayloadSize = 65535

type preKind int

const (
	preIdentity preKind = iota
	preDelta1
	preDelta2
	preLZP
	preDeltaLZP
	preDelta2Delta1 // order-2 then order-1 composed on its residual ("x2+delta")
)

// MaxCompressedSize bounds the output of Compress over all modes:
// src_size + 8, the legacy header being the worst case.
func MaxCompressedSize(srcSize int) int { return srcSize + 8 }

// Compress implements compress: encodes src into dst using ctx's bound
// dictionary and state, returning the number of bytes written.
func (c *Ctx) Compress(dst, src []byte) (n int, err error) {
	defer recoverErr(&err)
	best, algo, err := c.encodeBest(src)
	if err != nil {
		return 0, err
	}
	if len(dst) < len(best) {
		return 0, ErrBufferTooSmall
	}
	n = copy(dst, best)
	c.updateAfterEncode(src)
	if c.config.Flags&FlagStats != 0 {
		c.stats.recordEncode(len(src), n, algo)
	}
	return n, nil
}

// CompressStateless implements compress_stateless: a single encode against
// dict with no carried state (no delta, no LZP adaptation, no ring buffer
// history). Stateless packets always use the compact self-describing
// header.
func CompressStateless(dict *Dictionary, dst, src []byte) (int, error) {
	ctx, err := NewContext(dict, Config{Mode: ModeStateless, Flags: FlagCompactHeader})
	if err != nil {
		return 0, err
	}
	return ctx.Compress(dst, src)
}

func (c *Ctx) encodeBest(src []byte) ([]byte, algorithm, error) {
	if len(src) == 0 {
		return nil, algoPassthrough, ErrInvalidArg
	}
	if len(src) > maxPayloadSize {
		return nil, algoPassthrough, ErrTooBig
	}

	compact := c.config.Flags&FlagCompactHeader != 0
	var best []byte
	var bestAlgo algorithm

	tryCandidate := func(code byte, payload []byte, tansState uint32) error {
		info := packetTypeTable[code]
		var full []byte
		if compact {
			hdr := make([]byte, 5) // compact header max: 1 (code) + 2 (long size) + 2 (tANS state)
			hn, err := encodeCompactHeader(hdr, code, len(src), tansState)
			if err != nil {
				return err
			}
			total := hn + len(payload)
			if best != nil && total >= len(best) {
				return nil
			}
			full = make([]byte, total)
			copy(full, hdr[:hn])
			copy(full[hn:], payload)
		} else {
			stateBytes := 0
			if usesTANS(info.algorithm) {
				stateBytes = 2
			}
			total := legacyHeaderLen + stateBytes + len(payload)
			if best != nil && total >= len(best) {
				return nil
			}
			full = make([]byte, total)
			err := encodeLegacyHeader(full, len(src), stateBytes+len(payload),
				info.algorithm, info.flags, c.dict.ModelID, c.seq)
			if err != nil {
				return err
			}
			off := legacyHeaderLen
			if stateBytes != 0 {
				binary.LittleEndian.PutUint16(full[off:], uint16(tansState))
				off += 2
			}
			copy(full[off:], payload)
		}
		best = full
		bestAlgo = info.algorithm
		return nil
	}

	// Passthrough is always applicable and establishes the upper bound:
	// output never exceeds input plus the fixed header overhead.
	if err := tryCandidate(codePassthrough, src, 0); err != nil {
		return nil, algoPassthrough, err
	}

	for _, pre := range []preKind{preIdentity, preDelta1, preDelta2, preLZP, preDeltaLZP, preDelta2Delta1} {
		residual, ok := c.applyPre(pre, src)
		if !ok {
			continue
		}
		if err := c.tryCoders(pre, residual, len(src), tryCandidate); err != nil {
			return nil, algoPassthrough, err
		}
	}

	return best, bestAlgo, nil
}

// order1 runs the order-1 delta through the context's dispatch table, the
// one pre-filter step a vectorized dispatch can substitute.
func (c *Ctx) order1(input, prev []byte) []byte {
	out := make([]byte, len(input))
	c.dispatch.DeltaEncode(input, prev, out)
	return out
}

func (c *Ctx) applyPre(pre preKind, src []byte) ([]byte, bool) {
	deltaOK := c.config.Flags&FlagDelta != 0
	switch pre {
	case preIdentity:
		return src, true
	case preDelta1:
		if !deltaOK || c.prev == nil || len(c.prev) != len(src) {
			return nil, false
		}
		return c.order1(src, c.prev), true
	case preDelta2:
		if !deltaOK || c.prev == nil || c.prev2 == nil || len(c.prev) != len(src) || len(c.prev2) != len(src) {
			return nil, false
		}
		return deltaOrder2(src, c.prev, c.prev2), true
	case preLZP:
		if !c.dict.HasLZP {
			return nil, false
		}
		return lzpFilter(c.lzpTable(), src), true
	case preDeltaLZP:
		if !deltaOK || !c.dict.HasLZP || c.prev == nil || len(c.prev) != len(src) {
			return nil, false
		}
		return lzpFilter(c.lzpTable(), c.order1(src, c.prev)), true
	case preDelta2Delta1:
		if !deltaOK || c.prev == nil || c.prev2 == nil || len(c.prev) != len(src) || len(c.prev2) != len(src) {
			return nil, false
		}
		return c.order1(deltaOrder2(src, c.prev, c.prev2), c.prev), true
	}
	return nil, false
}

type candidateFn func(code byte, payload []byte, tansState uint32) error

// tryCoders runs every entropy-coder/mini-coder applicable to the given
// pre-filter's residual, dispatching to the packet-type family that
// matches (pre, coder) per the header.go packet-type table.
func (c *Ctx) tryCoders(pre preKind, residual []byte, originalSize int, try candidateFn) error {
	classFor := func(prevByte byte) int { return int(c.dict.BigramClassMap[prevByte]) }
	bucketFor := func(i int) int { return bucket(i) }

	// CompressionLevel and FlagFastCompress narrow which algorithms enter
	// the competition. The cut points are a fixed total order; the decoder
	// handles every family regardless of its own level.
	level := c.config.CompressionLevel
	fast := c.config.Flags&FlagFastCompress != 0 || level <= 2
	bigramOK := c.config.Flags&FlagBigramTable != 0 && !fast && level >= 4

	uniFreqFor := func(i int) *[256]uint32 { return c.freqFor(bucketFor(i), false, 0) }

	// tans-12-unigram
	if code, combo, ok := tansUnigramCodeFor(pre); ok {
		tableFor := func(i int) *tansTable { return c.tansTableFor(bucketFor(i), false, 0, 12) }
		if pctxApplicable(residual, uniFreqFor) {
			state, payload, err := pctxEncode(residual, 12, tableFor)
			if err != nil {
				return err
			}
			if err := try(codeFor(code, bucket(0), combo), payload, state); err != nil {
				return err
			}
		}
	}

	// tans-12-bigram
	if code, combo, ok := tans12BigramCodeFor(pre); ok && bigramOK {
		tableFor := func(i int) *tansTable {
			if i == 0 {
				return c.tansTableFor(bucketFor(0), true, 0, 12)
			}
			return c.tansTableFor(bucketFor(i), true, classFor(residual[i-1]), 12)
		}
		bigramFreqFor := func(i int) *[256]uint32 {
			if i == 0 {
				return c.freqFor(bucketFor(0), true, 0)
			}
			return c.freqFor(bucketFor(i), true, classFor(residual[i-1]))
		}
		if pctxApplicable(residual, bigramFreqFor) {
			state, payload, err := pctxEncode(residual, 12, tableFor)
			if err != nil {
				return err
			}
			if err := try(codeFor(code, bucket(0), combo), payload, state); err != nil {
				return err
			}
		}
	}

	// tans-10
	if combo, ok := tans10ComboFor(pre); ok && !fast {
		tableFor := func(i int) *tansTable { return c.tansTableFor(bucketFor(i), false, 0, 10) }
		if pctxApplicable(residual, uniFreqFor) {
			state, payload, err := pctxEncode(residual, 10, tableFor)
			if err != nil {
				return err
			}
			if err := try(tans10Code[bucket(0)][combo], payload, state); err != nil {
				return err
			}
		}
	}

	if pre != preIdentity {
		return nil // lz77/lz77x/rle/passthrough codes carry no pre-filter flag bits
	}

	// Plain mini-coder codes come in long and short size_mode variants;
	// the short form saves a header byte whenever original_size fits one.
	plainCode := func(i int) byte {
		if originalSize <= 0xFF {
			return codeAlgoPlainSh[i]
		}
		return codeAlgoPlain[i]
	}
	if !fast && level >= 3 {
		if p := lz77Encode(residual); len(p) < len(residual) {
			if err := try(plainCode(2), p, 0); err != nil {
				return err
			}
		}
	}
	if !fast && level >= 5 && c.config.Mode == ModeStateful && c.ring.len > 0 {
		hist := c.ring.Tail(len(c.ring.buf))
		if p := lz77xEncode(hist, residual); len(p) < len(residual) {
			if err := try(plainCode(3), p, 0); err != nil {
				return err
			}
		}
	}
	if p := rleEncode(residual); len(p) < len(residual) {
		if err := try(plainCode(1), p, 0); err != nil {
			return err
		}
	}
	return nil
}

// tansUnigramCodeFor maps a pre-filter kind to the tANS-12-unigram header
// family (algoTANS12 directly, or algoLZP when the pre-filter already
// applied the LZP XOR residual) and the flag combo within that family.
func tansUnigramCodeFor(pre preKind) (family int, combo int, ok bool) {
	switch pre {
	case preIdentity:
		return 0, 0, true // algoTANS12, combo 0 (plain)
	case preDelta1:
		return 0, 1, true // algoTANS12, combo 1 (delta)
	case preDelta2:
		return 0, 4, true // algoTANS12, combo 4 (x2)
	case preLZP:
		return 1, 0, true // algoLZP, combo 0 (plain)
	case preDeltaLZP:
		return 1, 1, true // algoLZP, combo 1 (delta)
	case preDelta2Delta1:
		return 0, 5, true // algoTANS12, combo 5 (x2+delta)
	}
	return 0, 0, false
}

func tans12BigramCodeFor(pre preKind) (family int, combo int, ok bool) {
	switch pre {
	case preIdentity:
		return 0, 2, true // algoTANS12, combo 2 (bigram)
	case preDelta1:
		return 0, 3, true // algoTANS12, combo 3 (bigram+delta)
	case preLZP:
		return 2, 0, true // algoLZPBigram, combo 0
	case preDeltaLZP:
		return 2, 1, true // algoLZPBigram, combo 1
	}
	return 0, 0, false
}

func tans10ComboFor(pre preKind) (combo int, ok bool) {
	switch pre {
	case preIdentity:
		return 0, true
	case preDelta1:
		return 1, true
	}
	return 0, false
}

// codeFor resolves (family, bucket, combo) to a concrete packet-type byte
// for the tans-12-unigram / LZP / LZP-bigram families.
func codeFor(family int, buck int, combo int) byte {
	switch family {
	case 0:
		return tans12Code[buck][combo]
	case 1:
		return lzpCode[buck][combo]
	case 2:
		return lzpBigramCode[buck][combo]
	}
	return 0xFF
}

// pctxApplicable reports whether every residual byte has a non-zero
// frequency entry in the table selected for its position (table selection
// is a pure function of position index and, for bigram, the preceding
// residual byte). It reads the raw
// frequency tables so an inapplicable candidate never pays for a tANS
// table build. Zero/non-zero structure is invariant under the 1024-total
// rescale, so one check covers both table resolutions.
func pctxApplicable(residual []byte, freqFor func(i int) *[256]uint32) bool {
	for i, b := range residual {
		if freqFor(i)[b] == 0 {
			return false
		}
	}
	return true
}

// pctxEncode runs the tANS encode hot loop with a
// per-position table selection instead of one fixed table, so PCTX
// (bucket, and optionally bigram-class) selection can vary across a single
// payload.
func pctxEncode(residual []byte, tableLog uint, tableFor func(i int) *tansTable) (finalState uint32, payload []byte, err error) {
	tableSize := uint32(1) << tableLog
	// A freq-1 symbol costs tableLog bits, so the stream can run to 1.5
	// bytes per symbol at tableLog 12; 2x input plus flush slack always
	// fits. Oversized candidates lose the competition to passthrough.
	dst := make([]byte, 2*len(residual)+8)
	w := newBitWriter(dst)
	state := tableSize
	for i := len(residual) - 1; i >= 0; i-- {
		t := tableFor(i)
		sym := residual[i]
		e := &t.enc[sym]
		if e.freq == 0 {
			return 0, nil, ErrCorrupt
		}
		nb, idx := t.findTransition(sym, state)
		low := state & bitMask32(nb)
		if err := w.WriteBits(low, nb); err != nil {
			return 0, nil, err
		}
		state = t.encState[idx]
	}
	n, err := w.Flush()
	if err != nil {
		return 0, nil, err
	}
	return state, dst[:n], nil
}

// updateAfterEncode advances context state from the raw input bytes the
// encoder just saw; the decoder applies the same mutation to its
// reconstruction, which is byte-identical.
func (c *Ctx) updateAfterEncode(src []byte) {
	c.updateContext(src)
}

// updateContext is the shared post-packet step run after every successful
// encode or decode: ring buffer, prev/prev2,
// LZP confidence-decay update, and adaptive accumulation all advance from
// the same byte sequence on both ends.
func (c *Ctx) updateContext(data []byte) {
	if c.config.Mode != ModeStateful {
		return
	}
	// The LZP confidence-decay update is an adaptive-mode behavior; a
	// non-adaptive context keeps reading the dictionary's own table, which
	// is shared and must never be written.
	if c.adaptive != nil && c.adaptive.lzp != nil {
		lzpUpdate(c.adaptive.lzp, data)
	}
	c.observe(data)
	c.ring.Write(data)

	cp := make([]byte, len(data))
	copy(cp, data)
	c.prev2 = c.prev
	c.prev = cp
	c.seq++
}
