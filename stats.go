package pcodec

// Stats accumulates per-context counters, returned by a Context's
// StatsSnapshot method.
type Stats struct {
	PacketsEncoded uint64
	PacketsDecoded uint64
	BytesIn        uint64
	BytesOut       uint64
	Errors         uint64

	// AlgoCounts indexes by algorithm, counting how often the competition
	// engine selected each one, useful for judging whether a dictionary
	// still fits the traffic it sees.
	AlgoCounts [algoReserved + 1]uint64
}

func (s *Stats) recordEncode(in, out int, a algorithm) {
	s.PacketsEncoded++
	s.BytesIn += uint64(in)
	s.BytesOut += uint64(out)
	s.AlgoCounts[a]++
}

func (s *Stats) recordDecode(in, out int) {
	s.PacketsDecoded++
	s.BytesIn += uint64(in)
	s.BytesOut += uint64(out)
}

func (s *Stats) recordError() {
	s.Errors++
}
