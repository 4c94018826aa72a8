package jobstatus

// Range selects a slice of the chronological index by rank, most recent
// first. The zero Range selects everything.
type Range struct {
	start, end int64
	bounded    bool
}

// All selects the full index.
func All() Range { return Range{} }

// Between selects ranks start through end inclusive, where 0 is the most
// recent id. Signs are ignored.
func Between(start, end int64) Range {
	return Range{start: abs(start), end: abs(end), bounded: true}
}

// Page selects perPage ids starting at rank start.
func Page(start, perPage int64) Range {
	if perPage < 1 {
		perPage = 1
	}
	return Between(start, start+perPage-1)
}

// Bounds returns the rank offsets to query. An unbounded range returns 0, -1.
func (r Range) Bounds() (start, stop int64) {
	if !r.bounded {
		return 0, -1
	}
	return r.start, r.end
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
