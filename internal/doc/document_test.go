package doc

import (
	"strings"
	"testing"
)

type runSpec struct {
	text   string
	format Format
	color  string
}

// paragraphs builds a document with one paragraph per entry.
func paragraphs(blocks ...[]runSpec) *Document {
	d := newBare()
	for _, runs := range blocks {
		b := d.AddBlock(Root, KindParagraph)
		for _, r := range runs {
			var style map[string]string
			if r.color != "" {
				style = map[string]string{StyleColor: r.color}
			}
			d.AddRun(b, r.text, r.format, style)
		}
	}
	return d
}

func plain(texts ...string) []runSpec {
	out := make([]runSpec, 0, len(texts))
	for _, t := range texts {
		out = append(out, runSpec{text: t})
	}
	return out
}

func runTexts(d *Document) []string {
	var out []string
	for _, r := range d.Runs() {
		out = append(out, d.Text(r))
	}
	return out
}

func TestNewDocumentIsSingleEmptyParagraph(t *testing.T) {
	d := New()
	blocks := d.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if d.Kind(blocks[0]) != KindParagraph {
		t.Fatalf("expected paragraph, got %s", d.Kind(blocks[0]))
	}
	if d.RunCount() != 0 {
		t.Fatalf("expected no runs, got %d", d.RunCount())
	}
	if !d.IsEmpty() {
		t.Fatal("expected IsEmpty")
	}
}

func TestPlainTextJoinsBlocksWithLineBreaks(t *testing.T) {
	d := paragraphs(plain("Hello", " world"), plain("second"), nil)
	if got := d.PlainText(); got != "Hello world\nsecond\n" {
		t.Fatalf("PlainText() = %q", got)
	}
}

func TestOffsetTreatsRunBoundaryAsOnePosition(t *testing.T) {
	d := paragraphs(plain("Hello", " world"))
	runs := d.Runs()
	endOfFirst := Point{Node: runs[0], Offset: 5}
	startOfSecond := Point{Node: runs[1], Offset: 0}
	if d.Offset(endOfFirst) != 5 || d.Offset(startOfSecond) != 5 {
		t.Fatalf("offsets = %d, %d", d.Offset(endOfFirst), d.Offset(startOfSecond))
	}
	if !d.IsCollapsed(Range(endOfFirst, startOfSecond)) {
		t.Fatal("expected straddling points to be collapsed")
	}
}

func TestIsBackward(t *testing.T) {
	d := paragraphs(plain("Hello world"))
	r := d.Runs()[0]
	forward := Range(Point{Node: r, Offset: 1}, Point{Node: r, Offset: 4})
	backward := Range(Point{Node: r, Offset: 4}, Point{Node: r, Offset: 1})
	if d.IsBackward(forward) {
		t.Fatal("forward selection reported backward")
	}
	if !d.IsBackward(backward) {
		t.Fatal("backward selection not reported backward")
	}
	if d.SelectedText(backward) != "ell" {
		t.Fatalf("SelectedText() = %q", d.SelectedText(backward))
	}
}

func TestPointAtPrefersNextRunOnBoundary(t *testing.T) {
	d := paragraphs(plain("ab", "cd"), plain("ef"))
	runs := d.Runs()
	tests := []struct {
		offset     int
		preferNext bool
		want       Point
	}{
		{offset: 2, preferNext: false, want: Point{Node: runs[0], Offset: 2}},
		{offset: 2, preferNext: true, want: Point{Node: runs[1], Offset: 0}},
		{offset: 4, preferNext: true, want: Point{Node: runs[1], Offset: 2}},
		{offset: 5, preferNext: false, want: Point{Node: runs[2], Offset: 0}},
		{offset: 7, preferNext: false, want: Point{Node: runs[2], Offset: 2}},
	}
	for _, tt := range tests {
		if got := d.PointAt(tt.offset, tt.preferNext); got != tt.want {
			t.Errorf("PointAt(%d, %v) = %+v, want %+v", tt.offset, tt.preferNext, got, tt.want)
		}
	}
}

func TestNextRunAscendsThroughArbitraryDepth(t *testing.T) {
	d := newBare()
	list := d.AddBlock(Root, KindList)
	item := d.AddBlock(list, KindListItem)
	d.AddRun(item, "outer", 0, nil)
	nested := d.AddBlock(item, KindList)
	inner := d.AddBlock(nested, KindListItem)
	deepest := d.AddRun(inner, "inner", 0, nil)
	after := d.AddBlock(Root, KindParagraph)
	target := d.AddRun(after, "after", 0, nil)

	if got := d.NextRun(deepest); got != target {
		t.Fatalf("NextRun(deepest) = %d, want %d", got, target)
	}
	if got := d.NextRun(target); got != NoNode {
		t.Fatalf("NextRun(last) = %d, want NoNode", got)
	}
}

func TestNextRunSkipsEmptyBlocks(t *testing.T) {
	d := paragraphs(plain("one"), nil, plain("three"))
	runs := d.Runs()
	if got := d.NextRun(runs[0]); got != runs[1] {
		t.Fatalf("NextRun() = %d, want %d", got, runs[1])
	}
}

func TestFindText(t *testing.T) {
	d := paragraphs(plain("Hello", " world"))
	sel, ok := d.FindText(" wor")
	if !ok {
		t.Fatal("expected match")
	}
	if got := d.SelectedText(sel); got != " wor" {
		t.Fatalf("SelectedText() = %q", got)
	}
	if sel.Anchor.Node != d.Runs()[1] || sel.Anchor.Offset != 0 {
		t.Fatalf("anchor = %+v, want start of second run", sel.Anchor)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	d := paragraphs([]runSpec{{text: "abc", color: "#fff"}})
	c := d.Clone()
	r := d.Runs()[0]
	d.SetStyle(Range(Point{Node: r}, Point{Node: r, Offset: 3}), StyleColor, "#000")
	if c.Style(r, StyleColor) != "#fff" {
		t.Fatalf("clone style changed to %q", c.Style(r, StyleColor))
	}
	if strings.Join(runTexts(c), "") != "abc" {
		t.Fatal("clone text changed")
	}
}
