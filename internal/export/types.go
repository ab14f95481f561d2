// Package export renders journal snapshots to HTML, PDF and DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	TargetID string
	EntryID  string // empty = latest version
	Format   Format
	Upload   bool
}

// Journal is the journal version being exported.
type Journal struct {
	TargetID  string
	EntryID   string
	Label     string
	Version   int
	Snapshot  string
	UpdatedAt time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	URL      string // set when the export was uploaded
}

var (
	// ErrContentUnavailable indicates journal content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrUnsupportedFormat indicates a format other than html, pdf or docx.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrUploadUnavailable indicates an upload was requested without object storage.
	ErrUploadUnavailable = errors.New("export upload unavailable")
)

// ParseFormat maps a query value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatHTML, FormatPDF, FormatDOCX:
		return f, nil
	case "":
		return FormatHTML, nil
	default:
		return "", ErrUnsupportedFormat
	}
}
