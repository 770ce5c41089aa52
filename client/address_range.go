package client

import "sort"

// AddressRange is a contiguous span of Count addresses of one register
// table starting at Address. Count is always >= 1.
type AddressRange struct {
	Address uint16
	Count   uint16
}

// MergeAddressRanges turns a set of registers of one table into the
// minimal ordered list of read ranges.
//
// Registers are scanned in ascending address order (wider spans first on
// ties, so overlapping placements resolve deterministically). Without
// holes a range only grows over gap-free extensions; with holes it also
// bridges runs of up to MaxHoleSize unrequested addresses, as long as
// the span stays within maxReadSize. Wider gaps always start a new
// range. A single register wider than maxReadSize still gets one
// dedicated range covering it: the limit is a batching hint, not a
// rejection.
func MergeAddressRanges(regs []Register, allowHoles bool, maxReadSize uint16) []AddressRange {
	if len(regs) == 0 {
		return nil
	}
	if maxReadSize == 0 {
		maxReadSize = DefaultMaxReadSize
	}

	sorted := make([]Register, len(regs))
	copy(sorted, regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartAddress() != sorted[j].StartAddress() {
			return sorted[i].StartAddress() < sorted[j].StartAddress()
		}
		return sorted[i].Size() > sorted[j].Size()
	})

	// Spans are tracked as uint32 half-open intervals so registers
	// ending at 0x10000 do not wrap.
	var out []AddressRange
	start := uint32(sorted[0].StartAddress())
	end := start + uint32(sorted[0].Size())

	for _, r := range sorted[1:] {
		a := uint32(r.StartAddress())
		e := a + uint32(r.Size())

		newEnd := end
		if e > newEnd {
			newEnd = e
		}

		switch {
		case e <= end:
			// Already covered by the current range.
		case (a <= end || (allowHoles && a-end <= uint32(MaxHoleSize))) && newEnd-start <= uint32(maxReadSize):
			end = newEnd
		default:
			out = append(out, AddressRange{Address: uint16(start), Count: uint16(end - start)})
			start, end = a, e
		}
	}

	return append(out, AddressRange{Address: uint16(start), Count: uint16(end - start)})
}
