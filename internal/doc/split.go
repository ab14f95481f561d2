package doc

// SplitRun splits the run at p into two sibling runs sharing its attributes.
// The left half keeps the original NodeID; the right half is returned. When
// p.Offset is 0 or the run length the position is already a run boundary and
// nothing changes: ok is false and right is NoNode.
func (d *Document) SplitRun(p Point) (right NodeID, ok bool) {
	if d.Kind(p.Node) != KindRun {
		return NoNode, false
	}
	n := d.RunLen(p.Node)
	if p.Offset <= 0 || p.Offset >= n {
		return NoNode, false
	}
	src := d.nodes[p.Node]
	text := []rune(src.text)
	right = d.alloc(node{
		kind:   KindRun,
		parent: src.parent,
		text:   string(text[p.Offset:]),
		format: src.format,
		style:  cloneStyle(src.style),
	})
	d.nodes[p.Node].text = string(text[:p.Offset])
	d.insertChild(src.parent, d.indexOf(src.parent, p.Node)+1, right)
	return right, true
}

// SplitSelection splits the runs at both edges of s so that the selected text
// is covered by whole runs, and returns s remapped onto the post-split runs.
// Anchor and focus keep their roles.
func (d *Document) SplitSelection(s Selection) Selection {
	backward := d.IsBackward(s)
	start, end := d.Bounds(s)

	if start.Node == end.Node {
		if right, ok := d.SplitRun(start); ok {
			end = Point{Node: right, Offset: end.Offset - start.Offset}
			start = Point{Node: right}
		}
		d.SplitRun(end)
	} else {
		if right, ok := d.SplitRun(start); ok {
			start = Point{Node: right}
		}
		d.SplitRun(end)
	}

	if backward {
		return Selection{Anchor: end, Focus: start}
	}
	return Selection{Anchor: start, Focus: end}
}

// selectedRuns splits s at its edges and returns the remapped selection with
// the runs it fully covers.
func (d *Document) selectedRuns(s Selection) (Selection, []NodeID) {
	s = d.SplitSelection(s)
	start, end := d.Bounds(s)
	return s, d.runsBetween(d.Offset(start), d.Offset(end))
}
