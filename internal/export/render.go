package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"cartograph/internal/doc"
)

var cssColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|rgba?\([0-9.,%\s]+\))$`)

// SnapshotToHTML renders a journal snapshot. Malformed snapshots render as an
// empty paragraph.
func SnapshotToHTML(snapshot string) string {
	return renderNode(doc.Parse(snapshot).Tree())
}

func renderNode(n doc.SnapshotNode) string {
	switch n.Type {
	case "doc":
		return renderContent(n.Content)
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", renderContent(n.Content))
	case "bulletList":
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderContent(n.Content))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>\n", renderContent(n.Content))
	case "text":
		return renderTextWithMarks(n.Text, n.Marks)
	default:
		return renderContent(n.Content)
	}
}

func renderContent(content []doc.SnapshotNode) string {
	var result strings.Builder
	for _, c := range content {
		result.WriteString(renderNode(c))
	}
	return result.String()
}

// renderTextWithMarks wraps escaped text with its marks, first mark outermost.
func renderTextWithMarks(text string, marks []doc.SnapshotMark) string {
	if text == "" {
		return ""
	}
	out := html.EscapeString(text)
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case "bold":
			out = "<strong>" + out + "</strong>"
		case "italic":
			out = "<em>" + out + "</em>"
		case "underline":
			out = "<u>" + out + "</u>"
		case "textStyle":
			color, _ := marks[i].Attrs[doc.StyleColor].(string)
			if cssColor.MatchString(color) {
				out = fmt.Sprintf(`<span style="color: %s">%s</span>`, color, out)
			}
		}
	}
	return out
}
