package doc

// ToolbarState is the read-only view the toolbar renders from.
type ToolbarState struct {
	Bold        bool   `json:"bold"`
	Italic      bool   `json:"italic"`
	Underline   bool   `json:"underline"`
	InList      bool   `json:"inList"`
	ActiveColor string `json:"activeColor"`
}

// ToolbarState derives active-format flags for s without mutating the
// document. A format is active when every covered run carries it; the color is
// reported only when all covered runs share it. For a caret the run holding
// the caret decides.
func (d *Document) ToolbarState(s Selection) ToolbarState {
	if !d.Valid(s) {
		return ToolbarState{}
	}
	state := ToolbarState{InList: d.InList(s.Anchor)}

	var runs []NodeID
	if d.IsCollapsed(s) {
		if r := d.caretRun(s.Focus); r != NoNode {
			runs = []NodeID{r}
		}
	} else {
		start, end := d.Bounds(s)
		from, to := d.Offset(start), d.Offset(end)
		runs = d.runsTouching(from, to)
	}
	if len(runs) == 0 {
		return state
	}

	all := Bold | Italic | Underline
	color := d.Style(runs[0], StyleColor)
	for _, r := range runs {
		all &= d.nodes[r].format
		if d.Style(r, StyleColor) != color {
			color = ""
		}
	}
	state.Bold = all.Has(Bold)
	state.Italic = all.Has(Italic)
	state.Underline = all.Has(Underline)
	state.ActiveColor = color
	return state
}

// caretRun is the run whose attributes text typed at p would inherit.
func (d *Document) caretRun(p Point) NodeID {
	if d.Kind(p.Node) != KindRun {
		return NoNode
	}
	return p.Node
}

// runsTouching returns runs that overlap the open interval (from, to) by at
// least one character. Unlike runsBetween it needs no prior split.
func (d *Document) runsTouching(from, to int) []NodeID {
	var out []NodeID
	base := 0
	for i, b := range d.Blocks() {
		if i > 0 {
			base++
		}
		for _, r := range d.BlockRuns(b) {
			n := d.RunLen(r)
			if n > 0 && base < to && base+n > from {
				out = append(out, r)
			}
			base += n
		}
	}
	return out
}
