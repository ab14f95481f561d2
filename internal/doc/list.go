package doc

// InList reports whether the block holding p sits inside a list container.
func (d *Document) InList(p Point) bool {
	return d.Ancestor(d.BlockOf(p.Node), KindList) != NoNode
}

// ToggleList wraps the selected blocks in a list, or unwraps them when the
// anchor's block already sits inside one. A collapsed selection acts on the
// caret's block. Blocks and runs keep their NodeIDs, so s stays valid across
// the toggle.
func (d *Document) ToggleList(s Selection) (Selection, bool) {
	if !d.Valid(s) {
		return s, false
	}
	start, end := d.Bounds(s)
	blocks := d.blocksBetween(d.Offset(start), d.Offset(end))
	if len(blocks) == 0 {
		return s, false
	}
	if d.InList(s.Anchor) {
		return s, d.removeList(blocks)
	}
	return s, d.insertList(blocks)
}

// insertList wraps each contiguous group of selected top-level paragraphs in
// a new list container.
func (d *Document) insertList(blocks []NodeID) bool {
	var group []NodeID
	changed := false
	flush := func() {
		if len(group) == 0 {
			return
		}
		at := d.indexOf(Root, group[0])
		list := d.alloc(node{kind: KindList, parent: Root})
		for _, b := range group {
			d.removeChild(Root, b)
			d.nodes[b].kind = KindListItem
			d.insertChild(list, len(d.nodes[list].children), b)
		}
		d.insertChild(Root, at, list)
		group = nil
		changed = true
	}
	for _, b := range blocks {
		if d.nodes[b].kind != KindParagraph || d.nodes[b].parent != Root {
			flush()
			continue
		}
		if len(group) > 0 && d.indexOf(Root, b) != d.indexOf(Root, group[len(group)-1])+1 {
			flush()
		}
		group = append(group, b)
	}
	flush()
	return changed
}

// removeList unwraps the selected list items. Lists are handled in document
// order, so an outer list is unwrapped before the lists nested in it; by the
// time a nested list is visited it has been hoisted to the top level.
func (d *Document) removeList(blocks []NodeID) bool {
	byList := make(map[NodeID][]NodeID)
	var order []NodeID
	for _, b := range blocks {
		if d.nodes[b].kind != KindListItem {
			continue
		}
		list := d.nodes[b].parent
		if _, seen := byList[list]; !seen {
			order = append(order, list)
		}
		byList[list] = append(byList[list], b)
	}
	for _, list := range order {
		d.unwrapItems(list, byList[list])
	}
	return len(order) > 0
}

func (d *Document) unwrapItems(list NodeID, items []NodeID) {
	selected := make(map[NodeID]bool, len(items))
	for _, it := range items {
		selected[it] = true
	}
	var before, lifted, after []NodeID
	for _, c := range d.nodes[list].children {
		switch {
		case selected[c]:
			lifted = append(lifted, c)
		case len(lifted) == 0:
			before = append(before, c)
		default:
			after = append(after, c)
		}
	}

	parent := d.nodes[list].parent
	if d.nodes[parent].kind == KindListItem {
		d.outdentItems(list, parent, before, lifted, after)
		return
	}

	var seq []NodeID
	for _, it := range lifted {
		d.nodes[it].kind = KindParagraph
		seq = append(seq, it)
		// Paragraphs hold only runs: a nested list follows its former item.
		for _, nested := range d.BlockChildLists(it) {
			d.removeChild(it, nested)
			seq = append(seq, nested)
		}
	}
	if len(after) > 0 {
		tail := d.alloc(node{kind: KindList})
		for _, c := range after {
			d.insertChild(tail, len(d.nodes[tail].children), c)
		}
		seq = append(seq, tail)
	}

	at := d.indexOf(parent, list)
	if len(before) > 0 {
		d.nodes[list].children = before
		at++
	} else {
		d.removeChild(parent, list)
		d.nodes[list].children = nil
		d.nodes[list].detached = true
	}
	for i, c := range seq {
		d.insertChild(parent, at+i, c)
	}
}

// outdentItems moves items of a list nested under item one level up, into the
// list that holds item, right after it. Items that followed them in the nested
// list stay nested under the last moved item.
func (d *Document) outdentItems(list, item NodeID, before, lifted, after []NodeID) {
	outer := d.nodes[item].parent
	at := d.indexOf(outer, item) + 1
	if len(before) > 0 {
		d.nodes[list].children = before
	} else {
		d.removeChild(item, list)
		d.nodes[list].children = nil
		d.nodes[list].detached = true
	}
	for i, it := range lifted {
		d.insertChild(outer, at+i, it)
	}
	if len(after) > 0 && len(lifted) > 0 {
		last := lifted[len(lifted)-1]
		tail := d.alloc(node{kind: KindList})
		for _, c := range after {
			d.insertChild(tail, len(d.nodes[tail].children), c)
		}
		d.insertChild(last, len(d.nodes[last].children), tail)
	}
}

// BlockChildLists returns the nested lists carried by a list item.
func (d *Document) BlockChildLists(block NodeID) []NodeID {
	if !d.valid(block) {
		return nil
	}
	var out []NodeID
	for _, c := range d.nodes[block].children {
		if d.nodes[c].kind == KindList {
			out = append(out, c)
		}
	}
	return out
}
