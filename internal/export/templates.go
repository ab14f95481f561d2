package export

import (
	"bytes"
	"html/template"
	"time"
)

var journalTemplate = template.Must(template.New("journal").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	},
}).Parse(journalHTML))

// TemplateData holds data for journal template rendering
type TemplateData struct {
	Title       string
	Version     int
	ContentHTML template.HTML
	UpdatedAt   time.Time
}

// RenderJournalHTML renders the journal page with provided data
func RenderJournalHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := journalTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const journalHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 760px; margin: 2rem auto; color: #1f2328; }
    h1 { border-bottom: 1px solid #d0d7de; padding-bottom: 0.5rem; }
    .meta { color: #656d76; font-size: 0.9em; margin-bottom: 2rem; }
    p { margin: 0 0 0.5rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{if .Version}}Version {{.Version}}{{end}}{{with formatDate .UpdatedAt "Jan 2, 2006 15:04"}} | {{.}}{{end}}</div>
  <article>{{.ContentHTML}}</article>
</body>
</html>`
