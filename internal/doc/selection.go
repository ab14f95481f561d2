package doc

import "strings"

// Point addresses a position inside a run, or the only position of an empty
// block (offset 0).
type Point struct {
	Node   NodeID
	Offset int
}

// Selection is the anchor (where selecting started) and focus (the live end).
type Selection struct {
	Anchor Point
	Focus  Point
}

// Caret returns a collapsed selection at p.
func Caret(p Point) Selection {
	return Selection{Anchor: p, Focus: p}
}

// Range returns a selection from anchor to focus.
func Range(anchor, focus Point) Selection {
	return Selection{Anchor: anchor, Focus: focus}
}

// Offset maps p onto the plain-text projection. Two points that straddle a run
// boundary (end of one run, start of the next) map to the same offset.
// It returns -1 when p does not address a live run or block.
func (d *Document) Offset(p Point) int {
	if !d.valid(p.Node) {
		return -1
	}
	target := d.BlockOf(p.Node)
	if target == NoNode {
		return -1
	}
	base := 0
	for i, b := range d.Blocks() {
		if i > 0 {
			base++
		}
		runs := d.BlockRuns(b)
		if b == target {
			if p.Node == b {
				return base
			}
			for _, r := range runs {
				if r == p.Node {
					return base + clamp(p.Offset, 0, d.RunLen(r))
				}
				base += d.RunLen(r)
			}
			return -1
		}
		for _, r := range runs {
			base += d.RunLen(r)
		}
	}
	return -1
}

// PointAt maps a plain-text offset back onto the document. When the offset
// falls on a run boundary, preferNext picks the start of the later run rather
// than the end of the earlier one.
func (d *Document) PointAt(offset int, preferNext bool) Point {
	base := 0
	var last Point
	for i, b := range d.Blocks() {
		if i > 0 {
			base++
		}
		runs := d.BlockRuns(b)
		if len(runs) == 0 {
			last = Point{Node: b}
			if offset <= base {
				return last
			}
			continue
		}
		for j, r := range runs {
			n := d.RunLen(r)
			if offset < base+n || (offset == base+n && !(preferNext && j < len(runs)-1)) {
				return Point{Node: r, Offset: clamp(offset-base, 0, n)}
			}
			base += n
			last = Point{Node: r, Offset: n}
		}
	}
	return last
}

// Compare orders two points by document position.
func (d *Document) Compare(a, b Point) int {
	ao, bo := d.Offset(a), d.Offset(b)
	switch {
	case ao < bo:
		return -1
	case ao > bo:
		return 1
	default:
		return 0
	}
}

// IsCollapsed reports whether anchor and focus denote the same position.
func (d *Document) IsCollapsed(s Selection) bool {
	return d.Compare(s.Anchor, s.Focus) == 0
}

// IsBackward reports whether focus precedes anchor.
func (d *Document) IsBackward(s Selection) bool {
	return d.Compare(s.Focus, s.Anchor) < 0
}

// Bounds returns the selection endpoints in document order.
func (d *Document) Bounds(s Selection) (start, end Point) {
	if d.IsBackward(s) {
		return s.Focus, s.Anchor
	}
	return s.Anchor, s.Focus
}

// SelectedText returns the plain text covered by s.
func (d *Document) SelectedText(s Selection) string {
	start, end := d.Bounds(s)
	from, to := d.Offset(start), d.Offset(end)
	if from < 0 || to < 0 {
		return ""
	}
	text := []rune(d.PlainText())
	return string(text[clamp(from, 0, len(text)):clamp(to, 0, len(text))])
}

// Valid reports whether both endpoints address live positions.
func (d *Document) Valid(s Selection) bool {
	return d.Offset(s.Anchor) >= 0 && d.Offset(s.Focus) >= 0
}

// AtRunStart reports whether p sits at offset 0 of a run.
func (d *Document) AtRunStart(p Point) bool {
	return d.Kind(p.Node) == KindRun && p.Offset == 0
}

// AtRunEnd reports whether p sits at the end offset of a run.
func (d *Document) AtRunEnd(p Point) bool {
	return d.Kind(p.Node) == KindRun && p.Offset == d.RunLen(p.Node)
}

// LineStart is the first position of the block holding p.
func (d *Document) LineStart(p Point) Point {
	block := d.BlockOf(p.Node)
	runs := d.BlockRuns(block)
	if len(runs) == 0 {
		return Point{Node: block}
	}
	return Point{Node: runs[0]}
}

// LineEnd is the last position of the block holding p.
func (d *Document) LineEnd(p Point) Point {
	block := d.BlockOf(p.Node)
	runs := d.BlockRuns(block)
	if len(runs) == 0 {
		return Point{Node: block}
	}
	last := runs[len(runs)-1]
	return Point{Node: last, Offset: d.RunLen(last)}
}

// Start returns the first position of the document.
func (d *Document) Start() Point {
	leaves := d.leaves()
	if len(leaves) == 0 {
		return Point{Node: Root}
	}
	return Point{Node: leaves[0]}
}

// End returns the last position of the document.
func (d *Document) End() Point {
	leaves := d.leaves()
	if len(leaves) == 0 {
		return Point{Node: Root}
	}
	last := leaves[len(leaves)-1]
	return Point{Node: last, Offset: d.RunLen(last)}
}

// FindText returns the selection covering the first occurrence of needle in
// the plain-text projection.
func (d *Document) FindText(needle string) (Selection, bool) {
	text := d.PlainText()
	idx := strings.Index(text, needle)
	if idx < 0 || needle == "" {
		return Selection{}, false
	}
	from := len([]rune(text[:idx]))
	to := from + len([]rune(needle))
	return Range(d.PointAt(from, true), d.PointAt(to, false)), true
}

// runsBetween returns the non-empty runs lying entirely within the plain-text
// interval [from, to].
func (d *Document) runsBetween(from, to int) []NodeID {
	var out []NodeID
	base := 0
	for i, b := range d.Blocks() {
		if i > 0 {
			base++
		}
		for _, r := range d.BlockRuns(b) {
			n := d.RunLen(r)
			if n > 0 && base >= from && base+n <= to {
				out = append(out, r)
			}
			base += n
		}
	}
	return out
}

// blocksBetween returns the blocks touched by the plain-text interval
// [from, to] in document order.
func (d *Document) blocksBetween(from, to int) []NodeID {
	var out []NodeID
	base := 0
	for i, b := range d.Blocks() {
		if i > 0 {
			base++
		}
		size := 0
		for _, r := range d.BlockRuns(b) {
			size += d.RunLen(r)
		}
		if base+size >= from && base <= to {
			out = append(out, b)
		}
		base += size
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
