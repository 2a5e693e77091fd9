package pcodec

import (
	"encoding/binary"

	"github.com/dsnet/golib/bits"
)

// Compact wire header, the 256-entry packet-type decode table, and the
// legacy 8-byte header.

// algorithm identifies which entropy coder (if any) a packet type uses.
type algorithm uint8

const (
	algoPassthrough algorithm = iota
	algoRLE
	algoLZ77
	algoLZ77X
	algoTANS12
	algoLZP
	algoLZPBigram
	algoTANS10
	algoPCTXBigram
	algoReserved
)

// packetFlags are the pre/post-filter bits a tANS-family packet type selects.
type packetFlags uint8

const (
	flagDelta1 packetFlags = 1 << iota // order-1 field-class-aware delta
	flagDelta2                         // order-2 linear-extrapolation delta
	flagBigram                         // bigram (previous-byte-conditioned) table
)

type sizeMode uint8

const (
	sizeNone  sizeMode = iota // passthrough: size equals remaining framed length
	sizeShort                 // 1-byte original_size (payload < 256)
	sizeLong                  // 2-byte LE original_size
)

// packetTypeInfo is the decoded meaning of one packet-type byte.
type packetTypeInfo struct {
	algorithm algorithm
	flags     packetFlags
	bucket    int // position-bucket hint, meaningful for tANS-family algorithms
	size      sizeMode
	reserved  bool
}

func usesTANS(a algorithm) bool {
	switch a {
	case algoTANS12, algoLZP, algoLZPBigram, algoTANS10, algoPCTXBigram:
		return true
	default:
		return false
	}
}

var packetTypeTable [256]packetTypeInfo

// reverse lookup: code for a given (algorithm, bucket, combo) tuple, built
// alongside packetTypeTable by init.
var (
	tans12Code    [16][6]byte
	lzpCode       [16][2]byte
	lzpBigramCode [16][2]byte
	tans10Code    [16][2]byte
	pctxCode      [4]byte

	codeAlgoPlain   [4]byte // passthrough, RLE, LZ77, LZ77X, long size mode
	codeAlgoPlainSh [4]byte // same, short size mode (RLE/LZ77/LZ77X only)
	codePassthrough byte
)

// tans12Combos enumerates the six pre-filter combinations the tANS-12
// band carries: bigram pairs only with plain and order-1 delta, and the
// final slot composes order-2 with order-1 (a second-difference predictor)
// rather than with bigram. See DESIGN.md for why the order-2 axis does not
// cross with bigram.
var tans12Combos = [6]packetFlags{
	0,
	flagDelta1,
	flagBigram,
	flagBigram | flagDelta1,
	flagDelta2,
	flagDelta2 | flagDelta1,
}

var twoCombos = [2]packetFlags{0, flagDelta1}

func init() {
	for c := 0; c < 256; c++ {
		packetTypeTable[c] = packetTypeInfo{reserved: true}
	}

	packetTypeTable[0x00] = packetTypeInfo{algorithm: algoPassthrough, size: sizeNone}
	codePassthrough = 0x00
	plainAlgos := [4]algorithm{algoPassthrough, algoRLE, algoLZ77, algoLZ77X}
	for i, a := range plainAlgos {
		if a == algoPassthrough {
			continue
		}
		code := byte(0x00 + i)
		packetTypeTable[code] = packetTypeInfo{algorithm: a, size: sizeLong}
		codeAlgoPlain[i] = code
	}
	for i, a := range plainAlgos {
		if a == algoPassthrough {
			continue
		}
		code := byte(0x03 + i) // 0x04, 0x05, 0x06
		packetTypeTable[code] = packetTypeInfo{algorithm: a, size: sizeShort}
		codeAlgoPlainSh[i] = code
	}
	// 0x07-0x0F stay reserved.

	for idx := 0; idx < 96; idx++ {
		bucket := idx % 16
		combo := idx / 16
		code := byte(0x10 + idx)
		packetTypeTable[code] = packetTypeInfo{
			algorithm: algoTANS12,
			flags:     tans12Combos[combo],
			bucket:    bucket,
			size:      sizeLong,
		}
		tans12Code[bucket][combo] = code
	}

	for idx := 0; idx < 32; idx++ {
		bucket := idx % 16
		combo := idx / 16
		code := byte(0x70 + idx)
		packetTypeTable[code] = packetTypeInfo{
			algorithm: algoLZP,
			flags:     twoCombos[combo],
			bucket:    bucket,
			size:      sizeLong,
		}
		lzpCode[bucket][combo] = code
	}

	for idx := 0; idx < 32; idx++ {
		bucket := idx % 16
		combo := idx / 16
		code := byte(0x90 + idx)
		packetTypeTable[code] = packetTypeInfo{
			algorithm: algoLZPBigram,
			flags:     flagBigram | twoCombos[combo],
			bucket:    bucket,
			size:      sizeLong,
		}
		lzpBigramCode[bucket][combo] = code
	}

	for idx := 0; idx < 32; idx++ {
		bucket := idx % 16
		combo := idx / 16
		code := byte(0xB0 + idx)
		packetTypeTable[code] = packetTypeInfo{
			algorithm: algoTANS10,
			flags:     twoCombos[combo],
			bucket:    bucket,
			size:      sizeLong,
		}
		tans10Code[bucket][combo] = code
	}

	for sb := 0; sb < 4; sb++ {
		code := byte(0xD0 + sb)
		packetTypeTable[code] = packetTypeInfo{
			algorithm: algoPCTXBigram,
			flags:     flagBigram,
			bucket:    sb * 4,
			size:      sizeLong,
		}
		pctxCode[sb] = code
	}
	// 0xD4-0xFE stay reserved; 0xFF stays reserved (sentinel, never emitted).
}

// --- compact header ---------------------------------------------------------

// encodeCompactHeader writes the packet-type byte, the original_size field
// (per the code's size_mode), and, if the algorithm uses tANS, the 2-byte
// final state, returning the number of header bytes written.
func encodeCompactHeader(dst []byte, code byte, originalSize int, tansState uint32) (int, error) {
	info := packetTypeTable[code]
	need := 1
	switch info.size {
	case sizeShort:
		need++
	case sizeLong:
		need += 2
	}
	if usesTANS(info.algorithm) {
		need += 2
	}
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	dst[0] = code
	off := 1
	switch info.size {
	case sizeShort:
		if originalSize > 0xFF {
			return 0, ErrInvalidArg
		}
		dst[off] = byte(originalSize)
		off++
	case sizeLong:
		if originalSize > 0xFFFF {
			return 0, ErrInvalidArg
		}
		binary.LittleEndian.PutUint16(dst[off:], uint16(originalSize))
		off += 2
	}
	if usesTANS(info.algorithm) {
		binary.LittleEndian.PutUint16(dst[off:], uint16(tansState))
		off += 2
	}
	return off, nil
}

// decodeCompactHeader parses a compact header from the front of src. An
// unknown, reserved, or sentinel packet-type byte is Corrupt.
func decodeCompactHeader(src []byte) (info packetTypeInfo, code byte, originalSize int, tansState uint32, headerLen int, err error) {
	if len(src) < 1 {
		return info, 0, 0, 0, 0, ErrCorrupt
	}
	code = src[0]
	if code == 0xFF {
		return info, 0, 0, 0, 0, ErrCorrupt
	}
	info = packetTypeTable[code]
	if info.reserved {
		return info, 0, 0, 0, 0, ErrCorrupt
	}
	off := 1
	switch info.size {
	case sizeShort:
		if len(src) < off+1 {
			return info, 0, 0, 0, 0, ErrCorrupt
		}
		originalSize = int(src[off])
		off++
	case sizeLong:
		if len(src) < off+2 {
			return info, 0, 0, 0, 0, ErrCorrupt
		}
		originalSize = int(binary.LittleEndian.Uint16(src[off:]))
		off += 2
	case sizeNone:
		originalSize = len(src) - off
	}
	if usesTANS(info.algorithm) {
		if len(src) < off+2 {
			return info, 0, 0, 0, 0, ErrCorrupt
		}
		tansState = uint32(binary.LittleEndian.Uint16(src[off:]))
		off += 2
	}
	return info, code, originalSize, tansState, off, nil
}

// --- legacy 8-byte header ----------------------------------------------------

const legacyHeaderLen = 8

// encodeLegacyHeader packs (original_size, compressed_size, flags, algorithm,
// model_id, context_seq) into the fixed 8-byte legacy layout, using
// bits.SetN to pack algorithm and flags into a shared byte.
func encodeLegacyHeader(dst []byte, originalSize, compressedSize int, algo algorithm, flags packetFlags, modelID uint8, contextSeq uint16) error {
	if len(dst) < legacyHeaderLen {
		return ErrBufferTooSmall
	}
	if originalSize > 0xFFFF || compressedSize > 0xFFFF {
		return ErrInvalidArg
	}
	binary.LittleEndian.PutUint16(dst[0:], uint16(originalSize))
	binary.LittleEndian.PutUint16(dst[2:], uint16(compressedSize))
	dst[4] = 0
	bits.SetN(dst[4:5], uint(algo), 0, 4)
	bits.SetN(dst[4:5], uint(flags), 4, 4)
	dst[5] = modelID
	binary.LittleEndian.PutUint16(dst[6:], contextSeq)
	return nil
}

// decodeLegacyHeader inverts encodeLegacyHeader.
func decodeLegacyHeader(src []byte) (originalSize, compressedSize int, algo algorithm, flags packetFlags, modelID uint8, contextSeq uint16, err error) {
	if len(src) < legacyHeaderLen {
		return 0, 0, 0, 0, 0, 0, ErrCorrupt
	}
	originalSize = int(binary.LittleEndian.Uint16(src[0:]))
	compressedSize = int(binary.LittleEndian.Uint16(src[2:]))
	algo = algorithm(bits.GetN(src[4:5], 0, 4))
	flags = packetFlags(bits.GetN(src[4:5], 4, 4))
	modelID = src[5]
	contextSeq = binary.LittleEndian.Uint16(src[6:])
	return originalSize, compressedSize, algo, flags, modelID, contextSeq, nil
}
