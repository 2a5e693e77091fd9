package pcodec

import (
	"encoding/binary"

	"github.com/dsnet/golib/errs"
)

// Hardened decompressor dispatch. A decompress call walks a fixed state
// machine:
//
//	INIT -> READ_HEADER -> (on invalid) FAIL
//	     -> VALIDATE_SIZES -> (too big) FAIL_TooBig / FAIL_BufferTooSmall
//	     -> SELECT_PIPELINE
//	     -> ENTROPY_DECODE (incremental; may FAIL_Corrupt)
//	     -> POSTFILTER (LZP / delta; deterministic, cannot fail if sizes validated)
//	     -> UPDATE_CONTEXT (ring buffer, prev/prev2, adaptive)
//	     -> OK
//
// VALIDATE_SIZES here covers the declared original_size only; the dst
// capacity check (BufferTooSmall) is made by Decompress after POSTFILTER,
// on the reconstructed payload, before UPDATE_CONTEXT and before anything
// is copied into dst. Every step below validates untrusted input before
// trusting it; no path writes outside dst[:originalSize].

// Decompress implements decompress.
func (c *Ctx) Decompress(dst, src []byte) (n int, err error) {
	defer recoverErr(&err)
	out, err := c.decodeOne(src)
	if err != nil {
		if c.config.Flags&FlagStats != 0 {
			c.stats.recordError()
		}
		return 0, err
	}
	if len(dst) < len(out) {
		return 0, ErrBufferTooSmall
	}
	n = copy(dst, out)
	c.updateContext(out)
	if c.config.Flags&FlagStats != 0 {
		c.stats.recordDecode(len(src), n)
	}
	return n, nil
}

// DecompressStateless implements decompress_stateless.
func DecompressStateless(dict *Dictionary, dst, src []byte) (int, error) {
	ctx, err := NewContext(dict, Config{Mode: ModeStateless, Flags: FlagCompactHeader})
	if err != nil {
		return 0, err
	}
	return ctx.Decompress(dst, src)
}

// decodeOne is READ_HEADER through POSTFILTER: it returns the fully
// reconstructed payload or a Result-carrying error, without touching
// context state (UPDATE_CONTEXT is the caller's job, once dst capacity is
// confirmed).
func (c *Ctx) decodeOne(src []byte) ([]byte, error) {
	var (
		info         packetTypeInfo
		originalSize int
		tansState    uint32
		payload      []byte
	)
	if c.config.Flags&FlagCompactHeader != 0 {
		var headerLen int
		var err error
		info, _, originalSize, tansState, headerLen, err = decodeCompactHeader(src)
		if err != nil {
			return nil, err
		}
		payload = src[headerLen:]
	} else {
		var err error
		info, originalSize, tansState, payload, err = c.decodeLegacyPacket(src)
		if err != nil {
			return nil, err
		}
	}
	if originalSize > maxPayloadSize {
		return nil, ErrTooBig
	}
	if originalSize <= 0 {
		return nil, ErrCorrupt
	}

	var residual []byte
	var err error
	switch info.algorithm {
	case algoPassthrough:
		residual, err = passthroughDecode(payload, originalSize)
	case algoRLE:
		residual, err = rleDecode(payload, originalSize)
	case algoLZ77:
		residual, err = lz77Decode(payload, originalSize)
	case algoLZ77X:
		hist := c.ring.Tail(len(c.ring.buf))
		residual, err = lz77xDecode(payload, hist, originalSize)
	case algoTANS12:
		residual, err = c.decodeTANS(payload, tansState, originalSize, 12, info.flags&flagBigram != 0)
	case algoTANS10:
		residual, err = c.decodeTANS(payload, tansState, originalSize, 10, false)
	case algoLZP, algoLZPBigram:
		if !c.dict.HasLZP {
			return nil, ErrCorrupt
		}
		var filtered []byte
		filtered, err = c.decodeTANS(payload, tansState, originalSize, 12, info.algorithm == algoLZPBigram)
		if err == nil {
			residual = lzpUnfilter(c.lzpTable(), filtered)
		}
	case algoPCTXBigram:
		residual, err = c.decodeTANS(payload, tansState, originalSize, 12, true)
	default:
		return nil, ErrCorrupt
	}
	if err != nil {
		return nil, err
	}

	return c.invertPreFilter(info, residual)
}

// decodeLegacyPacket parses the fixed 8-byte legacy header and validates
// every field it carries before trusting it: the algorithm nibble must name
// a known coder, the flag nibble must stay within the defined bits, the
// model_id must match the bound dictionary (the one decode path that can
// yield ModelMismatch), and the declared compressed_size must account for
// the packet exactly. tANS-family packets carry their 2-byte final state at
// the front of the compressed payload, where the compact format puts it in
// the header.
func (c *Ctx) decodeLegacyPacket(src []byte) (info packetTypeInfo, originalSize int, tansState uint32, payload []byte, err error) {
	originalSize, compressedSize, algo, flags, modelID, _, err := decodeLegacyHeader(src)
	if err != nil {
		return info, 0, 0, nil, err
	}
	if algo >= algoReserved {
		return info, 0, 0, nil, ErrCorrupt
	}
	if flags&^(flagDelta1|flagDelta2|flagBigram) != 0 {
		return info, 0, 0, nil, ErrCorrupt
	}
	if modelID != c.dict.ModelID {
		return info, 0, 0, nil, ErrModelMismatch
	}
	if legacyHeaderLen+compressedSize != len(src) {
		return info, 0, 0, nil, ErrCorrupt
	}
	payload = src[legacyHeaderLen:]
	if usesTANS(algo) {
		if len(payload) < 2 {
			return info, 0, 0, nil, ErrCorrupt
		}
		tansState = uint32(binary.LittleEndian.Uint16(payload))
		payload = payload[2:]
	}
	info = packetTypeInfo{algorithm: algo, flags: flags}
	return info, originalSize, tansState, payload, nil
}

// decodeTANS runs the PCTX-aware tANS decode loop, selecting bucket (and,
// for bigram tables, class) per output position exactly as the encoder
// did.
func (c *Ctx) decodeTANS(payload []byte, finalState uint32, n int, tableLog uint, bigram bool) ([]byte, error) {
	tableFor := func(i int, out []byte) *tansTable {
		if !bigram || i == 0 {
			return c.tansTableFor(bucket(i), bigram, 0, tableLog)
		}
		return c.tansTableFor(bucket(i), true, int(c.dict.BigramClassMap[out[i-1]]), tableLog)
	}
	return pctxDecode(payload, finalState, n, tableLog, tableFor)
}

// pctxDecode inverts pctxEncode: positions are produced in forward order
// (0..n-1), each using the table selected for that position, with bigram
// class lookups depending on the just-decoded preceding byte. Hardening
// checks use errs.Assert/errs.Recover rather than a manual if-return per
// invariant.
func pctxDecode(src []byte, finalState uint32, n int, tableLog uint, tableFor func(i int, out []byte) *tansTable) (out []byte, err error) {
	defer errs.Recover(&err)
	tableSize := uint32(1) << tableLog
	errs.Assert(finalState >= tableSize && finalState < 2*tableSize, ErrCorrupt)
	r, rerr := newBitReader(src, 0, len(src))
	errs.Assert(rerr == nil, ErrCorrupt)

	out = make([]byte, n)
	state := finalState
	for i := 0; i < n; i++ {
		t := tableFor(i, out)
		slot := state - tableSize
		errs.Assert(slot < uint32(len(t.decode)), ErrCorrupt)
		entry := t.decode[slot]
		out[i] = entry.symbol
		bits, rerr := r.Read(uint(entry.numBits))
		errs.Assert(rerr == nil, ErrCorrupt)
		state = entry.nextState | bits
		errs.Assert(state >= tableSize && state < 2*tableSize, ErrCorrupt)
	}
	errs.Assert(state == tableSize, ErrCorrupt)
	return out, nil
}

// invertPreFilter undoes whichever delta combination the packet's flags
// declare, validating that the context actually has the previous packet(s)
// needed: a decoder must never trust that a delta-flagged packet is
// decodable without checking its prerequisites.
func (c *Ctx) invertPreFilter(info packetTypeInfo, residual []byte) ([]byte, error) {
	if info.flags&(flagDelta1|flagDelta2) != 0 {
		if c.prev == nil || len(c.prev) != len(residual) {
			return nil, ErrCorrupt
		}
	}
	if info.flags&flagDelta2 != 0 {
		if c.prev2 == nil || len(c.prev2) != len(residual) {
			return nil, ErrCorrupt
		}
	}

	switch {
	case info.flags&flagDelta2 != 0 && info.flags&flagDelta1 != 0:
		step1 := c.order1Decode(residual, c.prev)
		return undeltaOrder2(step1, c.prev, c.prev2), nil
	case info.flags&flagDelta2 != 0:
		return undeltaOrder2(residual, c.prev, c.prev2), nil
	case info.flags&flagDelta1 != 0:
		return c.order1Decode(residual, c.prev), nil
	default:
		return residual, nil
	}
}

// order1Decode inverts order1 through the context's dispatch table.
func (c *Ctx) order1Decode(residual, prev []byte) []byte {
	out := make([]byte, len(residual))
	c.dispatch.DeltaDecode(residual, prev, out)
	return out
}
