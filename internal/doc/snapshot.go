package doc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Node types of the serialized snapshot. The shape follows the ProseMirror
// JSON the journal front-end stores.
const (
	typeDoc         = "doc"
	typeParagraph   = "paragraph"
	typeHeading     = "heading"
	typeBulletList  = "bulletList"
	typeOrderedList = "orderedList"
	typeListItem    = "listItem"
	typeText        = "text"

	markBold      = "bold"
	markItalic    = "italic"
	markUnderline = "underline"
	markTextStyle = "textStyle"
)

// ErrInvalidSnapshot reports a snapshot that is not a serialized document.
var ErrInvalidSnapshot = errors.New("invalid document snapshot")

// SnapshotNode is one node of the serialized document tree.
type SnapshotNode struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []SnapshotNode `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []SnapshotMark `json:"marks,omitempty"`
}

// SnapshotMark is a text mark of the serialized tree.
type SnapshotMark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Parse builds a document from a snapshot. Empty, null or malformed input
// yields an empty single-paragraph document; Parse never fails.
func Parse(snapshot string) *Document {
	d, err := ParseStrict(snapshot)
	if err != nil {
		return New()
	}
	return d
}

// ParseStrict is Parse that reports malformed input. Empty and "null"
// snapshots are not errors.
func ParseStrict(snapshot string) (*Document, error) {
	trimmed := strings.TrimSpace(snapshot)
	if trimmed == "" || trimmed == "null" {
		return New(), nil
	}
	var root SnapshotNode
	if err := json.Unmarshal([]byte(trimmed), &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if root.Type != typeDoc {
		return nil, fmt.Errorf("%w: root type %q", ErrInvalidSnapshot, root.Type)
	}
	d := newBare()
	for _, child := range root.Content {
		d.readBlock(Root, child)
	}
	if len(d.Blocks()) == 0 {
		d.AddBlock(Root, KindParagraph)
	}
	return d, nil
}

func (d *Document) readBlock(parent NodeID, n SnapshotNode) {
	switch n.Type {
	case typeParagraph, typeHeading:
		block := d.AddBlock(parent, KindParagraph)
		d.readInline(block, n.Content)
	case typeBulletList, typeOrderedList:
		list := d.AddBlock(parent, KindList)
		for _, item := range n.Content {
			d.readListItem(list, item)
		}
		if len(d.nodes[list].children) == 0 {
			d.detach(list)
		}
	default:
		// Unknown containers keep their paragraphs.
		for _, child := range n.Content {
			d.readBlock(parent, child)
		}
	}
}

func (d *Document) readListItem(list NodeID, n SnapshotNode) {
	if n.Type != typeListItem {
		return
	}
	item := d.AddBlock(list, KindListItem)
	for _, child := range n.Content {
		switch child.Type {
		case typeBulletList, typeOrderedList:
			nested := d.AddBlock(item, KindList)
			for _, sub := range child.Content {
				d.readListItem(nested, sub)
			}
			if len(d.nodes[nested].children) == 0 {
				d.detach(nested)
			}
		default:
			d.readInline(item, child.Content)
		}
	}
}

func (d *Document) readInline(block NodeID, content []SnapshotNode) {
	for _, n := range content {
		if n.Type != typeText || n.Text == "" {
			continue
		}
		var f Format
		var style map[string]string
		for _, m := range n.Marks {
			switch m.Type {
			case markBold:
				f |= Bold
			case markItalic:
				f |= Italic
			case markUnderline:
				f |= Underline
			case markTextStyle:
				for k, v := range m.Attrs {
					if s, ok := v.(string); ok && s != "" {
						if style == nil {
							style = make(map[string]string)
						}
						style[k] = s
					}
				}
			}
		}
		d.AddRun(block, n.Text, f, style)
	}
}

// Tree returns the serializable form of the document.
func (d *Document) Tree() SnapshotNode {
	root := SnapshotNode{Type: typeDoc}
	for _, c := range d.nodes[Root].children {
		root.Content = append(root.Content, d.writeNode(c))
	}
	return root
}

func (d *Document) writeNode(id NodeID) SnapshotNode {
	n := d.nodes[id]
	switch n.kind {
	case KindList:
		out := SnapshotNode{Type: typeBulletList}
		for _, c := range n.children {
			out.Content = append(out.Content, d.writeNode(c))
		}
		return out
	case KindListItem:
		out := SnapshotNode{Type: typeListItem}
		out.Content = append(out.Content, SnapshotNode{Type: typeParagraph, Content: d.writeRuns(id)})
		for _, nested := range d.BlockChildLists(id) {
			out.Content = append(out.Content, d.writeNode(nested))
		}
		return out
	default:
		return SnapshotNode{Type: typeParagraph, Content: d.writeRuns(id)}
	}
}

func (d *Document) writeRuns(block NodeID) []SnapshotNode {
	var out []SnapshotNode
	for _, r := range d.BlockRuns(block) {
		n := d.nodes[r]
		if n.text == "" {
			continue
		}
		text := SnapshotNode{Type: typeText, Text: n.text}
		if n.format.Has(Bold) {
			text.Marks = append(text.Marks, SnapshotMark{Type: markBold})
		}
		if n.format.Has(Italic) {
			text.Marks = append(text.Marks, SnapshotMark{Type: markItalic})
		}
		if n.format.Has(Underline) {
			text.Marks = append(text.Marks, SnapshotMark{Type: markUnderline})
		}
		if len(n.style) > 0 {
			attrs := make(map[string]any, len(n.style))
			for k, v := range n.style {
				attrs[k] = v
			}
			text.Marks = append(text.Marks, SnapshotMark{Type: markTextStyle, Attrs: attrs})
		}
		out = append(out, text)
	}
	return out
}

// Snapshot serializes the document.
func (d *Document) Snapshot() (string, error) {
	payload, err := json.Marshal(d.Tree())
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(payload), nil
}

// PlainTextOf returns the plain-text projection of a snapshot, or "" when the
// snapshot does not parse.
func PlainTextOf(snapshot string) string {
	return Parse(snapshot).PlainText()
}
