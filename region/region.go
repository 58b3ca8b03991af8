package region

import (
	"sort"
)

// xInterval is a half-open x-range [Start, End) within one row.
type xInterval struct {
	start, end int
}

// row holds every x-interval sharing the same non-x coordinates (tail).
type row struct {
	tail      Coord
	intervals []xInterval
}

func (r *row) size() int {
	n := 0
	for _, iv := range r.intervals {
		n += iv.end - iv.start
	}
	return n
}

// Region is the canonical, ordered collection of non-overlapping,
// non-adjacent streaks representing an arbitrary set of lattice points.
// Two Regions representing the same point set always produce an identical
// streak sequence.
type Region struct {
	dim  int
	rows []*row
}

// NewRegion returns the empty region over the given dimensionality.
func NewRegion(dim int) *Region {
	return &Region{dim: dim}
}

// Dim returns the region's dimensionality. Zero for a freshly zero-valued
// Region that has never been told its dimension (Insert will adopt the
// dimensionality of the first streak it receives).
func (r *Region) Dim() int { return r.dim }

func (r *Region) rowIndex(tail Coord) (int, bool) {
	lo, hi := 0, len(r.rows)
	for lo < hi {
		mid := (lo + hi) / 2
		if r.rows[mid].tail.Less(tail) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(r.rows) && r.rows[lo].tail.Equal(tail) {
		return lo, true
	}
	return lo, false
}

func tailOf(c Coord) Coord {
	t := c.Clone()
	t[0] = 0
	return t
}

// Insert merges a streak into the region, restoring canonical form.
func (r *Region) Insert(s Streak) {
	if s.Length() <= 0 {
		return
	}
	if r.dim == 0 {
		r.dim = s.Origin.Dim()
	}
	tail := tailOf(s.Origin)
	pos, found := r.rowIndex(tail)
	if !found {
		newRow := &row{tail: tail, intervals: []xInterval{{s.Origin.X(), s.EndX}}}
		r.rows = append(r.rows, nil)
		copy(r.rows[pos+1:], r.rows[pos:])
		r.rows[pos] = newRow
		return
	}
	r.rows[pos].intervals = mergeInterval(r.rows[pos].intervals, xInterval{s.Origin.X(), s.EndX})
}

// InsertPoint inserts a single lattice point.
func (r *Region) InsertPoint(c Coord) {
	r.Insert(NewStreak(c, c.X()+1))
}

func mergeInterval(sorted []xInterval, iv xInterval) []xInterval {
	lo := sort.Search(len(sorted), func(i int) bool { return sorted[i].end >= iv.start })
	hi := lo
	for hi < len(sorted) && sorted[hi].start <= iv.end {
		if sorted[hi].start < iv.start {
			iv.start = sorted[hi].start
		}
		if sorted[hi].end > iv.end {
			iv.end = sorted[hi].end
		}
		hi++
	}
	out := make([]xInterval, 0, len(sorted)-(hi-lo)+1)
	out = append(out, sorted[:lo]...)
	out = append(out, iv)
	out = append(out, sorted[hi:]...)
	return out
}

// Empty reports whether the region contains no points.
func (r *Region) Empty() bool {
	return r == nil || len(r.rows) == 0
}

// Size returns the cardinality of the represented point set.
func (r *Region) Size() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, row := range r.rows {
		n += row.size()
	}
	return n
}

// BoundingBox returns the smallest CoordBox enclosing every point in the
// region. Returns the zero CoordBox for an empty region.
func (r *Region) BoundingBox() CoordBox {
	if r.Empty() {
		return CoordBox{}
	}
	min := r.rows[0].tail.Clone()
	min[0] = r.rows[0].intervals[0].start
	max := min.Clone()
	for _, row := range r.rows {
		for i := 1; i < r.dim; i++ {
			if row.tail[i] < min[i] {
				min[i] = row.tail[i]
			}
			if row.tail[i] > max[i] {
				max[i] = row.tail[i]
			}
		}
		first := row.intervals[0].start
		last := row.intervals[len(row.intervals)-1].end - 1
		if first < min.X() {
			min[0] = first
		}
		if last > max.X() {
			max[0] = last
		}
	}
	dims := max.Sub(min)
	for i := range dims {
		dims[i]++
	}
	return NewCoordBox(min, dims)
}

// Streaks returns the region's streaks in canonical (z, y, x) order.
func (r *Region) Streaks() []Streak {
	out := make([]Streak, 0, len(r.rows))
	for _, row := range r.rows {
		for _, iv := range row.intervals {
			origin := row.tail.Clone()
			origin[0] = iv.start
			out = append(out, Streak{Origin: origin, EndX: iv.end})
		}
	}
	return out
}

// Each calls fn for every streak in canonical order, stopping early if fn
// returns false.
func (r *Region) Each(fn func(Streak) bool) {
	for _, row := range r.rows {
		for _, iv := range row.intervals {
			origin := row.tail.Clone()
			origin[0] = iv.start
			if !fn(Streak{Origin: origin, EndX: iv.end}) {
				return
			}
		}
	}
}

// EachPoint calls fn for every lattice point in canonical order.
func (r *Region) EachPoint(fn func(Coord) bool) {
	r.Each(func(s Streak) bool {
		c := s.Origin.Clone()
		for x := s.Origin.X(); x < s.EndX; x++ {
			c[0] = x
			if !fn(c) {
				return false
			}
		}
		return true
	})
}

// Contains reports whether c is a member of the region.
func (r *Region) Contains(c Coord) bool {
	tail := tailOf(c)
	pos, found := r.rowIndex(tail)
	if !found {
		return false
	}
	x := c.X()
	ivs := r.rows[pos].intervals
	lo, hi := 0, len(ivs)
	for lo < hi {
		mid := (lo + hi) / 2
		if ivs[mid].end <= x {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(ivs) && ivs[lo].start <= x && x < ivs[lo].end
}

// Clone returns a deep, independent copy.
func (r *Region) Clone() *Region {
	out := &Region{dim: r.dim, rows: make([]*row, len(r.rows))}
	for i, rw := range r.rows {
		ivs := make([]xInterval, len(rw.intervals))
		copy(ivs, rw.intervals)
		out.rows[i] = &row{tail: rw.tail.Clone(), intervals: ivs}
	}
	return out
}

// Union returns a new Region containing every point in r or other.
func (r *Region) Union(other *Region) *Region {
	out := r.Clone()
	if other != nil {
		other.Each(func(s Streak) bool {
			out.Insert(s)
			return true
		})
	}
	return out
}

// Intersect returns a new Region containing every point in both r and
// other.
func (r *Region) Intersect(other *Region) *Region {
	out := NewRegion(r.dim)
	if other == nil {
		return out
	}
	i, j := 0, 0
	for i < len(r.rows) && j < len(other.rows) {
		a, b := r.rows[i], other.rows[j]
		switch {
		case a.tail.Less(b.tail):
			i++
		case b.tail.Less(a.tail):
			j++
		default:
			ivs := intersectIntervals(a.intervals, b.intervals)
			if len(ivs) > 0 {
				out.rows = append(out.rows, &row{tail: a.tail.Clone(), intervals: ivs})
			}
			i++
			j++
		}
	}
	return out
}

func intersectIntervals(a, b []xInterval) []xInterval {
	var out []xInterval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := max(a[i].start, b[j].start)
		end := min(a[i].end, b[j].end)
		if start < end {
			out = append(out, xInterval{start, end})
		}
		if a[i].end < b[j].end {
			i++
		} else {
			j++
		}
	}
	return out
}

// Difference returns a new Region containing every point in r but not in
// other.
func (r *Region) Difference(other *Region) *Region {
	out := NewRegion(r.dim)
	otherByTail := map[string][]xInterval{}
	if other != nil {
		for _, row := range other.rows {
			otherByTail[rowKeyOf(row.tail)] = row.intervals
		}
	}
	for _, rw := range r.rows {
		sub, ok := otherByTail[rowKeyOf(rw.tail)]
		ivs := rw.intervals
		if ok {
			ivs = subtractIntervals(rw.intervals, sub)
		}
		if len(ivs) > 0 {
			out.rows = append(out.rows, &row{tail: rw.tail.Clone(), intervals: ivs})
		}
	}
	return out
}

func rowKeyOf(tail Coord) string { return rowKey(tail) }

func subtractIntervals(a, b []xInterval) []xInterval {
	var out []xInterval
	for _, iv := range a {
		cur := []xInterval{iv}
		for _, sub := range b {
			var next []xInterval
			for _, c := range cur {
				if sub.end <= c.start || sub.start >= c.end {
					next = append(next, c)
					continue
				}
				if sub.start > c.start {
					next = append(next, xInterval{c.start, sub.start})
				}
				if sub.end < c.end {
					next = append(next, xInterval{sub.end, c.end})
				}
			}
			cur = next
		}
		out = append(out, cur...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}
