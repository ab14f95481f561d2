package doc

import (
	"strings"
	"unicode/utf8"
)

// InsertText types text at the selection, replacing a range selection first.
// f and style are the attributes the new text carries; when they match the
// caret run the text joins that run, otherwise it becomes a run of its own.
// Line breaks in text split the block. The returned selection is a caret after
// the inserted text.
func (d *Document) InsertText(s Selection, text string, f Format, style map[string]string) (Selection, bool) {
	if text == "" || !d.Valid(s) {
		return s, false
	}
	if !d.IsCollapsed(s) {
		s, _ = d.DeleteSelection(s)
	}
	p := s.Focus
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p = d.SplitBlock(p)
		}
		if line != "" {
			p = d.insertLine(p, line, f, style)
		}
	}
	return Caret(p), true
}

func (d *Document) insertLine(p Point, text string, f Format, style map[string]string) Point {
	size := utf8.RuneCountInString(text)
	if d.Kind(p.Node) != KindRun {
		block := d.BlockOf(p.Node)
		r := d.AddRun(block, text, f, style)
		return Point{Node: r, Offset: size}
	}

	n := d.nodes[p.Node]
	if n.format == f && sameStyle(n.style, style) {
		runes := []rune(n.text)
		off := clamp(p.Offset, 0, len(runes))
		d.nodes[p.Node].text = string(runes[:off]) + text + string(runes[off:])
		return Point{Node: p.Node, Offset: off + size}
	}

	block := n.parent
	at := d.indexOf(block, p.Node)
	switch {
	case p.Offset <= 0:
	case p.Offset >= d.RunLen(p.Node):
		at++
	default:
		d.SplitRun(p)
		at++
	}
	r := d.alloc(node{kind: KindRun, parent: block, text: text, format: f, style: cloneStyle(style)})
	d.insertChild(block, at, r)
	return Point{Node: r, Offset: size}
}

// SplitBlock breaks the block holding p in two at p. The new block follows
// the original under the same parent and keeps its kind; nested lists stay
// with the original. The returned point is the start of the new block.
func (d *Document) SplitBlock(p Point) Point {
	block := d.BlockOf(p.Node)
	if block == NoNode {
		return p
	}
	runs := d.BlockRuns(block)
	from := len(runs)
	if d.Kind(p.Node) == KindRun {
		idx := d.indexOf(block, p.Node)
		switch {
		case p.Offset <= 0:
			from = idx
		case p.Offset >= d.RunLen(p.Node):
			from = idx + 1
		default:
			d.SplitRun(p)
			from = idx + 1
		}
		runs = d.BlockRuns(block)
	}

	parent := d.nodes[block].parent
	next := d.alloc(node{kind: d.nodes[block].kind, parent: parent})
	d.insertChild(parent, d.indexOf(parent, block)+1, next)
	for _, r := range runs[from:] {
		d.removeChild(block, r)
		d.insertChild(next, len(d.nodes[next].children), r)
	}
	if first := d.BlockRuns(next); len(first) > 0 {
		return Point{Node: first[0]}
	}
	return Point{Node: next}
}

// DeleteSelection removes the selected text. When the selection spans blocks
// the tail of the last block joins the first. It returns a caret at the start
// of the removed range.
func (d *Document) DeleteSelection(s Selection) (Selection, bool) {
	if !d.Valid(s) || d.IsCollapsed(s) {
		return s, false
	}
	s, runs := d.selectedRuns(s)
	start, end := d.Bounds(s)
	from, to := d.Offset(start), d.Offset(end)
	startBlock, endBlock := d.BlockOf(start.Node), d.BlockOf(end.Node)
	blocks := d.blocksBetween(from, to)

	for _, r := range runs {
		d.detach(r)
	}

	if startBlock != endBlock {
		for _, r := range d.BlockRuns(endBlock) {
			d.removeChild(endBlock, r)
			d.insertChild(startBlock, d.firstNonRunIndex(startBlock), r)
		}
		seenStart := false
		for _, b := range blocks {
			if b == startBlock {
				seenStart = true
				continue
			}
			if !seenStart || len(d.BlockChildLists(b)) > 0 {
				continue
			}
			d.removeBlock(b)
		}
	}
	if len(d.Blocks()) == 0 {
		d.AddBlock(Root, KindParagraph)
	}
	return Caret(d.PointAt(from, false)), true
}

// removeBlock detaches block and any list containers left empty by it.
func (d *Document) removeBlock(block NodeID) {
	parent := d.nodes[block].parent
	d.detach(block)
	for parent != Root && parent != NoNode && d.nodes[parent].kind == KindList && len(d.nodes[parent].children) == 0 {
		next := d.nodes[parent].parent
		d.detach(parent)
		parent = next
	}
}
