package pcodec

// freqTableSum is the fixed total every normalized frequency table sums to,
// regardless of tANS table size: the dictionary blob always stores 4096-sum
// tables; the codec rescales to the active table_size (1024 or 4096) at
// table-build time.
const freqTableSum = 4096

// normalizeFreqs renormalizes raw per-symbol counts into a 256-entry table
// summing to exactly total: every symbol with a non-zero count keeps at
// least one slot, the remaining budget is distributed proportional to raw
// counts, and rounding error is corrected by repeatedly nudging the single
// largest entry by +/-1.
func normalizeFreqs(counts *[256]uint32, total uint32) (norm [256]uint32) {
	var sum uint64
	for _, c := range counts {
		sum += uint64(c)
	}
	if sum == 0 {
		// No observations at all: give symbol 0 the entire budget so the
		// table remains well-formed.
		norm[0] = total
		return norm
	}

	var seen uint32
	for i, c := range counts {
		if c > 0 {
			norm[i] = 1
			seen++
		}
	}
	remaining := int64(total) - int64(seen)
	if remaining < 0 {
		// More distinct symbols than budget: keep the floor of 1 per seen
		// symbol and distribute nothing further. Only possible if total <
		// 256, which the 4096/1024 totals this codec uses never hit.
		remaining = 0
	}
	for i, c := range counts {
		if c == 0 {
			continue
		}
		share := int64(uint64(c) * uint64(remaining) / sum)
		norm[i] += uint32(share)
	}

	// Correct rounding error by repeatedly nudging the largest entry.
	diff := int64(total) - int64(sumU32(&norm))
	for diff != 0 {
		maxIdx := 0
		for i := 1; i < 256; i++ {
			if norm[i] > norm[maxIdx] {
				maxIdx = i
			}
		}
		if diff > 0 {
			norm[maxIdx]++
			diff--
		} else {
			if norm[maxIdx] <= 1 {
				// Nothing left to take from the largest entry without
				// zeroing an observed symbol; stop rather than violate the
				// "every seen symbol keeps >=1" invariant.
				break
			}
			norm[maxIdx]--
			diff++
		}
	}
	return norm
}

func sumU32(a *[256]uint32) uint64 {
	var s uint64
	for _, v := range a {
		s += uint64(v)
	}
	return s
}

// rescaleFreqs proportionally rescales a 4096-sum table to a different total
// (1024, for the 10-bit tANS mode), preserving the same floor-and-proportional
// guarantee used when the table was first normalized.
func rescaleFreqs(norm *[256]uint32, newTotal uint32) [256]uint32 {
	var counts [256]uint32
	copy(counts[:], norm[:])
	return normalizeFreqs(&counts, newTotal)
}
