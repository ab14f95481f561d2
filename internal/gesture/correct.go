package gesture

import "cartograph/internal/doc"

// Correct removes the off-by-one boundaries a drag can leave when the native
// selection lands on the wrong side of a run boundary. It is applied once
// after a drag and is a no-op on its own output.
//
// Backward selections: an anchor at the start of its run pulls the focus to
// the start of its line; a focus at the end of its run pushes it to the end of
// its line. Forward selections: a focus at the start of its run pushes it to
// the end of its line; an anchor at the end of its run moves to the start of
// the next run, or the focus falls back to the start of its line when no run
// follows. A line is the block holding the point.
func Correct(d *doc.Document, s doc.Selection) doc.Selection {
	if !d.Valid(s) || d.IsCollapsed(s) {
		return s
	}
	out := s
	if d.IsBackward(s) {
		if d.AtRunStart(s.Anchor) {
			out.Focus = d.LineStart(s.Focus)
		}
		if d.AtRunEnd(s.Focus) {
			out.Focus = d.LineEnd(s.Focus)
		}
		return out
	}

	if d.AtRunStart(s.Focus) {
		out.Focus = d.LineEnd(s.Focus)
	}
	if d.AtRunEnd(s.Anchor) {
		if next := d.NextRun(s.Anchor.Node); next != doc.NoNode {
			out.Anchor = doc.Point{Node: next}
		} else {
			out.Focus = d.LineStart(out.Focus)
		}
	}
	return out
}
