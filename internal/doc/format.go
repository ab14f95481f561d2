package doc

// ToggleFormat applies a uniform toggle of f over the selection. When every
// covered run already carries f it is cleared from all of them; otherwise it
// is set on each run that lacks it. A collapsed selection is left untouched
// (changed is false) so the caller can record a cursor-only toggle instead.
func (d *Document) ToggleFormat(s Selection, f Format) (out Selection, changed bool) {
	if !d.Valid(s) || d.IsCollapsed(s) {
		return s, false
	}
	s, runs := d.selectedRuns(s)
	if len(runs) == 0 {
		return s, false
	}

	hasAll := true
	for _, r := range runs {
		if !d.nodes[r].format.Has(f) {
			hasAll = false
			break
		}
	}

	for _, r := range runs {
		if hasAll {
			d.nodes[r].format &^= f
		} else if !d.nodes[r].format.Has(f) {
			d.nodes[r].format |= f
		}
	}
	return s, true
}
