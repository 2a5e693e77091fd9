package pcodec

// Per-connection Context. Shared-resource policy: a Dictionary is
// immutable and may be shared across any number of Contexts; a Context is
// exclusively owned by one caller and carries no internal locking.

// Mode selects whether a Context tracks cross-packet state.
type Mode uint8

const (
	ModeStateful Mode = iota
	ModeStateless
)

// ConfigFlags is the feature bitmask a Context is created with.
type ConfigFlags uint16

const (
	FlagDelta ConfigFlags = 1 << iota
	FlagBigramTable
	FlagStats
	FlagCompactHeader
	FlagFastCompress
	FlagAdaptive
)

const defaultRingBufferSize = 64 * 1024

// Config configures a Context at creation. The zero value selects a
// stateful context with the default level and ring size.
type Config struct {
	Mode             Mode
	CompressionLevel int // [1, 9]; higher levels widen the competition search
	RingBufferSize   int // 0 = defaultRingBufferSize
	Flags            ConfigFlags
	SIMDLevel        SIMDLevel
	Dispatch         *DispatchTable // nil = GenericDispatchTable
}

func (c *Config) validate() error {
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return ErrInvalidArg
	}
	return nil
}

const adaptiveRebuildInterval = 128

// adaptiveState holds the mutable per-connection model overlay.
// rawAccum counts raw byte observations since the
// last rebuild and is zeroed by it; model is the live, normalized (4096-sum)
// unigram table the tANS tables are actually built from, seeded from the
// dictionary baseline at creation so lookups before the first rebuild are
// identical to an unadapted context.
type adaptiveState struct {
	rawAccum    [numBuckets][256]uint32
	model       [numBuckets][256]uint32
	packetCount int
	lzp         []lzpEntry // cloned from dict.LZP, mutated in lockstep
	tables      map[tansTableKey]*tansTable
}

// Ctx is the per-connection handle: one bound dictionary, one mode, and
// the rolling cross-packet state.
type Ctx struct {
	dict   *Dictionary
	config Config

	ring        *ringBuffer
	prev, prev2 []byte // previous reconstructed/encoded packets, nil until seen
	seq         uint16 // legacy header context_seq, wraps

	adaptive *adaptiveState
	stats    Stats
	dispatch DispatchTable
}

// NewContext implements ctx_create: validates config and allocates the
// context's long-lived state (ring buffer, adaptive overlay, cloned LZP
// table) up front.
func NewContext(dict *Dictionary, config Config) (*Ctx, error) {
	if dict == nil {
		return nil, ErrNoDict
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.CompressionLevel == 0 {
		config.CompressionLevel = 6
	}
	ringSize := config.RingBufferSize
	if ringSize == 0 {
		ringSize = defaultRingBufferSize
	}

	c := &Ctx{
		dict:   dict,
		config: config,
		ring:   newRingBuffer(ringSize),
	}
	if config.Dispatch != nil {
		c.dispatch = *config.Dispatch
	} else {
		c.dispatch = GenericDispatchTable
	}

	if config.Flags&FlagAdaptive != 0 {
		c.adaptive = &adaptiveState{
			model:  dict.Unigram,
			tables: make(map[tansTableKey]*tansTable),
		}
		if dict.HasLZP {
			c.adaptive.lzp = make([]lzpEntry, len(dict.LZP))
			copy(c.adaptive.lzp, dict.LZP)
		}
	}

	return c, nil
}

// Reset clears rolling stateful-mode state (ring buffer, prev/prev2,
// adaptive accumulators and cloned LZP table) without discarding lifetime
// Stats. A stateful channel that has diverged (lost or reordered packets)
// is recovered by resetting both ends.
func (c *Ctx) Reset() {
	c.ring.Reset()
	c.prev = nil
	c.prev2 = nil
	c.seq = 0
	if c.adaptive != nil {
		c.adaptive.rawAccum = [numBuckets][256]uint32{}
		c.adaptive.model = c.dict.Unigram
		c.adaptive.packetCount = 0
		c.adaptive.tables = make(map[tansTableKey]*tansTable)
		if c.dict.HasLZP {
			copy(c.adaptive.lzp, c.dict.LZP)
		}
	}
}

// Destroy implements ctx_destroy. Go's garbage collector reclaims a Ctx's
// memory once unreferenced; Destroy exists for API parity with the
// language-neutral interface and to make double-use after destruction an
// explicit, checkable condition.
func (c *Ctx) Destroy() {
	c.dict = nil
	c.ring = nil
	c.adaptive = nil
}

// SIMDLevel implements ctx_simd_level.
func (c *Ctx) SIMDLevel() uint8 { return uint8(c.config.SIMDLevel) }

// StatsSnapshot implements ctx_stats.
func (c *Ctx) StatsSnapshot() Stats { return c.stats }

// lzpTable returns the table a packet should be filtered/updated against:
// the adaptive clone if adaptive mode is on, else the dictionary's own
// (read-only, but lzpFilter never mutates its argument).
func (c *Ctx) lzpTable() []lzpEntry {
	if c.adaptive != nil && c.adaptive.lzp != nil {
		return c.adaptive.lzp
	}
	return c.dict.LZP
}

// freqFor resolves the raw frequency table backing a (bucket, bigram,
// class) selection without forcing a tANS table build: the adaptive
// overlay's live model for unigram lookups on adaptive contexts, the
// dictionary's trained table otherwise. Used by the encoder's
// applicability checks.
func (c *Ctx) freqFor(bucket int, bigram bool, class int) *[256]uint32 {
	if c.adaptive != nil && !bigram {
		return &c.adaptive.model[bucket]
	}
	return c.dict.freqTableFor(bucket, bigram, class)
}

// tansTableFor resolves a (bucket, bigram, class, tableLog) selection
// against the adaptive overlay when present, falling back to the
// dictionary's shared cache otherwise.
func (c *Ctx) tansTableFor(bucket int, bigram bool, class int, tableLog uint) *tansTable {
	if c.adaptive == nil || bigram {
		// Bigram tables are never adaptive; route through the dictionary's
		// shared, read-only cache.
		return c.dict.tansTableFor(bucket, bigram, class, tableLog)
	}
	key := tansTableKey{bucket: bucket, bigram: false, class: class, tableLog: tableLog}
	if t, ok := c.adaptive.tables[key]; ok {
		return t
	}
	base := c.adaptive.model[bucket]
	var freq [256]uint32
	if tableLog == 12 {
		freq = base
	} else {
		freq = rescaleFreqs(&base, 1<<tableLog)
	}
	t := buildTansTable(&freq, tableLog)
	c.adaptive.tables[key] = t
	return t
}

// observe feeds one packet's bytes (raw on encode, reconstructed on decode)
// into the adaptive raw accumulators and, every adaptiveRebuildInterval
// packets, blends them with the dictionary baseline and drops the cached
// adaptive tANS tables so they are rebuilt from the blend on next use.
func (c *Ctx) observe(data []byte) {
	if c.adaptive == nil {
		return
	}
	// Per-bucket frequency counting goes through the dispatch table so a
	// vectorized histogram can replace the scalar loop; bucket boundaries
	// are narrow enough that counting per-byte is still simplest expressed
	// per-bucket rather than as one dispatch.FreqCount call over the whole
	// packet.
	for lo, hi := 0, 0; lo < len(data); lo = hi {
		b := bucket(lo)
		hi = lo + 1
		for hi < len(data) && bucket(hi) == b {
			hi++
		}
		var counts [256]uint32
		c.dispatch.FreqCount(data[lo:hi], &counts)
		for sym, n := range counts {
			c.adaptive.rawAccum[b][sym] += n
		}
	}
	c.adaptive.packetCount++
	if c.adaptive.packetCount >= adaptiveRebuildInterval {
		c.rebuildAdaptiveTables()
		c.adaptive.packetCount = 0
	}
}

// rebuildAdaptiveTables blends the counts accumulated since the last
// rebuild with the dictionary baseline at a fixed 3:1 ratio, renormalizes
// into the live model, resets the raw accumulators, and clears the
// adaptive table cache so the next lookup rebuilds from the blended
// frequencies. Bigram tables are never touched; they stay static.
func (c *Ctx) rebuildAdaptiveTables() {
	for b := 0; b < numBuckets; b++ {
		var blended [256]uint32
		for sym := 0; sym < 256; sym++ {
			dictWeight := 3 * c.dict.Unigram[b][sym]
			accWeight := c.adaptive.rawAccum[b][sym]
			blended[sym] = (dictWeight + accWeight) / 4
		}
		c.adaptive.model[b] = normalizeFreqs(&blended, freqTableSum)
		c.adaptive.rawAccum[b] = [256]uint32{}
	}
	c.adaptive.tables = make(map[tansTableKey]*tansTable)
}
