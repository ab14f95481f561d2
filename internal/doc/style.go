package doc

// SetStyle writes key=value on every run covered by s, splitting at the
// selection edges first. Values overwrite; there is no toggle.
func (d *Document) SetStyle(s Selection, key, value string) (out Selection, changed bool) {
	if !d.Valid(s) || d.IsCollapsed(s) {
		return s, false
	}
	s, runs := d.selectedRuns(s)
	for _, r := range runs {
		if d.nodes[r].style == nil {
			d.nodes[r].style = make(map[string]string, 1)
		}
		if d.nodes[r].style[key] != value {
			d.nodes[r].style[key] = value
			changed = true
		}
	}
	return s, changed
}

// ResetStyle sets key back to the theme default rather than deleting it, so
// reset text keeps a themed value.
func (d *Document) ResetStyle(s Selection, key, themeDefault string) (Selection, bool) {
	return d.SetStyle(s, key, themeDefault)
}
