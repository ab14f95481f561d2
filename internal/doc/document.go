// Package doc implements the journal document model and the selection-aware
// editing engines that operate on it.
//
// A Document is an arena of nodes addressed by NodeID. Every node records its
// parent index, so ancestor walks are plain index lookups. Node 0 is the root.
// Blocks (paragraphs and list items) hold runs; runs hold text plus a format
// bitmask and a style map. Offsets are counted in runes.
package doc

import (
	"unicode/utf8"
)

type NodeID int

// NoNode is returned by lookups that find nothing.
const NoNode NodeID = -1

// Root is the NodeID of the document root.
const Root NodeID = 0

type Kind uint8

const (
	KindRoot Kind = iota
	KindList
	KindParagraph
	KindListItem
	KindRun
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindList:
		return "list"
	case KindParagraph:
		return "paragraph"
	case KindListItem:
		return "listItem"
	case KindRun:
		return "run"
	default:
		return "unknown"
	}
}

// IsBlock reports whether nodes of this kind hold runs.
func (k Kind) IsBlock() bool {
	return k == KindParagraph || k == KindListItem
}

// Format is a bitmask of character formats.
type Format uint8

const (
	Bold Format = 1 << iota
	Italic
	Underline
)

func (f Format) Has(flag Format) bool {
	return f&flag == flag
}

// StyleColor is the style key used for text color.
const StyleColor = "color"

type node struct {
	kind     Kind
	parent   NodeID
	children []NodeID
	text     string
	format   Format
	style    map[string]string
	detached bool
}

// Document is a journal document. It has a single writer; callers that share a
// Document between goroutines must serialize access themselves.
type Document struct {
	nodes []node
}

// New returns a document holding one empty paragraph.
func New() *Document {
	d := newBare()
	d.AddBlock(Root, KindParagraph)
	return d
}

func newBare() *Document {
	return &Document{nodes: []node{{kind: KindRoot, parent: NoNode}}}
}

func (d *Document) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(d.nodes) && !d.nodes[id].detached
}

func (d *Document) Kind(id NodeID) Kind {
	if !d.valid(id) {
		return KindRoot
	}
	return d.nodes[id].kind
}

func (d *Document) Parent(id NodeID) NodeID {
	if !d.valid(id) {
		return NoNode
	}
	return d.nodes[id].parent
}

// Children returns a copy of the child list of id.
func (d *Document) Children(id NodeID) []NodeID {
	if !d.valid(id) {
		return nil
	}
	out := make([]NodeID, len(d.nodes[id].children))
	copy(out, d.nodes[id].children)
	return out
}

// Text returns the text of a run; other nodes have none.
func (d *Document) Text(id NodeID) string {
	if !d.valid(id) {
		return ""
	}
	return d.nodes[id].text
}

// RunLen returns the rune length of a run, 0 for anything else.
func (d *Document) RunLen(id NodeID) int {
	if !d.valid(id) || d.nodes[id].kind != KindRun {
		return 0
	}
	return utf8.RuneCountInString(d.nodes[id].text)
}

func (d *Document) Format(id NodeID) Format {
	if !d.valid(id) {
		return 0
	}
	return d.nodes[id].format
}

// Style returns the style value stored under key on a run.
func (d *Document) Style(id NodeID, key string) string {
	if !d.valid(id) {
		return ""
	}
	return d.nodes[id].style[key]
}

// AddBlock appends a new block or list container under parent.
func (d *Document) AddBlock(parent NodeID, kind Kind) NodeID {
	id := d.alloc(node{kind: kind, parent: parent})
	d.nodes[parent].children = append(d.nodes[parent].children, id)
	return id
}

// AddRun appends a run to block. Empty text is accepted only transiently.
func (d *Document) AddRun(block NodeID, text string, f Format, style map[string]string) NodeID {
	id := d.alloc(node{kind: KindRun, parent: block, text: text, format: f, style: cloneStyle(style)})
	d.insertChild(block, d.firstNonRunIndex(block), id)
	return id
}

func (d *Document) alloc(n node) NodeID {
	d.nodes = append(d.nodes, n)
	return NodeID(len(d.nodes) - 1)
}

// firstNonRunIndex is where new runs go: list items may carry a nested list
// after their runs.
func (d *Document) firstNonRunIndex(block NodeID) int {
	children := d.nodes[block].children
	for i, c := range children {
		if d.nodes[c].kind != KindRun {
			return i
		}
	}
	return len(children)
}

func (d *Document) indexOf(parent, child NodeID) int {
	for i, c := range d.nodes[parent].children {
		if c == child {
			return i
		}
	}
	return -1
}

func (d *Document) insertChild(parent NodeID, at int, child NodeID) {
	children := d.nodes[parent].children
	if at < 0 || at > len(children) {
		at = len(children)
	}
	children = append(children, NoNode)
	copy(children[at+1:], children[at:])
	children[at] = child
	d.nodes[parent].children = children
	d.nodes[child].parent = parent
}

func (d *Document) removeChild(parent, child NodeID) int {
	idx := d.indexOf(parent, child)
	if idx < 0 {
		return -1
	}
	children := d.nodes[parent].children
	d.nodes[parent].children = append(children[:idx:idx], children[idx+1:]...)
	return idx
}

// detach removes id and its subtree from the tree. The arena slots stay
// allocated so stale NodeIDs never alias new nodes.
func (d *Document) detach(id NodeID) {
	if parent := d.nodes[id].parent; parent != NoNode {
		d.removeChild(parent, id)
	}
	var mark func(NodeID)
	mark = func(n NodeID) {
		d.nodes[n].detached = true
		for _, c := range d.nodes[n].children {
			mark(c)
		}
	}
	mark(id)
}

// Ancestor walks the parent chain of id (inclusive) and returns the first node
// of the given kind.
func (d *Document) Ancestor(id NodeID, kind Kind) NodeID {
	for cur := id; d.valid(cur); cur = d.nodes[cur].parent {
		if d.nodes[cur].kind == kind {
			return cur
		}
	}
	return NoNode
}

// BlockOf returns the block that owns id: the parent of a run or id itself.
func (d *Document) BlockOf(id NodeID) NodeID {
	if !d.valid(id) {
		return NoNode
	}
	if d.nodes[id].kind == KindRun {
		return d.nodes[id].parent
	}
	if d.nodes[id].kind.IsBlock() {
		return id
	}
	return NoNode
}

// Blocks returns every block in document order.
func (d *Document) Blocks() []NodeID {
	var out []NodeID
	var walk func(NodeID)
	walk = func(id NodeID) {
		if d.nodes[id].kind.IsBlock() {
			out = append(out, id)
		}
		for _, c := range d.nodes[id].children {
			if d.nodes[c].kind != KindRun {
				walk(c)
			}
		}
	}
	walk(Root)
	return out
}

// BlockRuns returns the runs of block in order.
func (d *Document) BlockRuns(block NodeID) []NodeID {
	if !d.valid(block) {
		return nil
	}
	var out []NodeID
	for _, c := range d.nodes[block].children {
		if d.nodes[c].kind == KindRun {
			out = append(out, c)
		}
	}
	return out
}

// Runs returns every run in document order.
func (d *Document) Runs() []NodeID {
	var out []NodeID
	for _, b := range d.Blocks() {
		out = append(out, d.BlockRuns(b)...)
	}
	return out
}

func (d *Document) RunCount() int {
	return len(d.Runs())
}

// NextRun returns the first run after id in document order. It walks forward
// through later siblings, ascending through parents as each level is
// exhausted, and stops at the root without wrapping.
func (d *Document) NextRun(id NodeID) NodeID {
	for cur := id; d.valid(cur) && cur != Root; cur = d.nodes[cur].parent {
		parent := d.nodes[cur].parent
		siblings := d.nodes[parent].children
		for i := d.indexOf(parent, cur) + 1; i < len(siblings); i++ {
			if run := d.firstRunWithin(siblings[i]); run != NoNode {
				return run
			}
		}
	}
	return NoNode
}

func (d *Document) firstRunWithin(id NodeID) NodeID {
	if d.nodes[id].kind == KindRun {
		return id
	}
	for _, c := range d.nodes[id].children {
		if run := d.firstRunWithin(c); run != NoNode {
			return run
		}
	}
	return NoNode
}

// leaves lists the position holders in document order: runs, and
// blocks that have no runs.
func (d *Document) leaves() []NodeID {
	var out []NodeID
	for _, b := range d.Blocks() {
		runs := d.BlockRuns(b)
		if len(runs) == 0 {
			out = append(out, b)
			continue
		}
		out = append(out, runs...)
	}
	return out
}

// PlainText is the projection of the document: run text in document order,
// blocks separated by line breaks.
func (d *Document) PlainText() string {
	var buf []byte
	for i, b := range d.Blocks() {
		if i > 0 {
			buf = append(buf, '\n')
		}
		for _, r := range d.BlockRuns(b) {
			buf = append(buf, d.nodes[r].text...)
		}
	}
	return string(buf)
}

// IsEmpty reports whether the document is a single empty paragraph.
func (d *Document) IsEmpty() bool {
	blocks := d.Blocks()
	if len(blocks) != 1 || d.nodes[blocks[0]].kind != KindParagraph {
		return false
	}
	return d.PlainText() == ""
}

// Reset replaces the content with a single empty paragraph.
func (d *Document) Reset() {
	*d = *New()
}

// Clone returns a deep copy. NodeIDs are preserved.
func (d *Document) Clone() *Document {
	out := &Document{nodes: make([]node, len(d.nodes))}
	for i, n := range d.nodes {
		n.children = append([]NodeID(nil), n.children...)
		n.style = cloneStyle(n.style)
		out.nodes[i] = n
	}
	return out
}

func cloneStyle(style map[string]string) map[string]string {
	if len(style) == 0 {
		return nil
	}
	out := make(map[string]string, len(style))
	for k, v := range style {
		out[k] = v
	}
	return out
}

func sameStyle(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
