package pcodec

// SIMD dispatch table: the boundary to an external CPU-feature-detection
// subsystem. Core code only ever calls through a DispatchTable; this file
// supplies the generic (non-vectorized) reference implementation and owns
// the scalar fallback. A caller may substitute a table whose functions are
// vectorized, provided they produce identical output to the reference
// implementation. Core never performs CPU-feature detection itself.
type DispatchTable struct {
	FreqCount   func(data []byte, counts *[256]uint32)
	DeltaEncode func(input, prev []byte, out []byte)
	DeltaDecode func(residual, prev []byte, out []byte)
	CRC32Update func(crc uint32, data []byte) uint32
}

// GenericDispatchTable is the reference implementation every other
// DispatchTable must match bit-for-bit. ctx_create uses it when the caller
// does not supply one (simd_level = auto/generic).
var GenericDispatchTable = DispatchTable{
	FreqCount:   genericFreqCount,
	DeltaEncode: genericDeltaEncode,
	DeltaDecode: genericDeltaDecode,
	CRC32Update: genericCRC32Update,
}

func genericFreqCount(data []byte, counts *[256]uint32) {
	for _, b := range data {
		counts[b]++
	}
}

// genericDeltaEncode applies the order-1 field-class-aware delta; it is
// the function every delta-enabled context calls (through Ctx.order1) on
// its encode path, kept distinct from deltaOrder1 so a vectorized dispatch
// table can replace just this call site.
func genericDeltaEncode(input, prev []byte, out []byte) {
	copy(out, deltaOrder1(input, prev))
}

func genericDeltaDecode(residual, prev []byte, out []byte) {
	copy(out, undeltaOrder1(residual, prev))
}

func genericCRC32Update(crc uint32, data []byte) uint32 {
	return crc32IEEEUpdate(crc, data)
}

// SIMDLevel mirrors ctx_create's config.simd_level enumeration. Since this
// build never performs its own CPU-feature detection, every non-auto,
// non-generic level still resolves to GenericDispatchTable unless the
// caller supplied its own DispatchTable.
type SIMDLevel uint8

const (
	SIMDAuto SIMDLevel = iota
	SIMDGeneric
	SIMDSSE42
	SIMDAVX2
	SIMDNEON
)

func (l SIMDLevel) String() string {
	switch l {
	case SIMDAuto:
		return "auto"
	case SIMDGeneric:
		return "generic"
	case SIMDSSE42:
		return "sse4.2"
	case SIMDAVX2:
		return "avx2"
	case SIMDNEON:
		return "neon"
	default:
		return "unknown"
	}
}
