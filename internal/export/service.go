package export

import (
	"context"
	"fmt"
	"html/template"
	"path"
	"time"

	"github.com/rs/zerolog/log"
)

// Source loads journal versions for export.
type Source interface {
	LatestJournal(ctx context.Context, targetID string) (Journal, error)
	JournalByID(ctx context.Context, targetID, entryID string) (Journal, error)
}

// Uploader stores rendered exports and returns a download URL.
type Uploader interface {
	Upload(ctx context.Context, key string, res *Result) (string, error)
}

type renderFunc func(ctx context.Context, html, title string) (*Result, error)

// Service provides journal export functionality
type Service struct {
	source   Source
	uploader Uploader
	pdf      renderFunc
	docx     renderFunc
}

// NewService creates a new export service. uploader may be nil.
func NewService(source Source, uploader Uploader) *Service {
	return &Service{source: source, uploader: uploader, pdf: exportPDF, docx: exportDOCX}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Format == "" {
		req.Format = FormatHTML
	}
	if req.Upload && s.uploader == nil {
		return nil, ErrUploadUnavailable
	}

	var (
		j   Journal
		err error
	)
	if req.EntryID == "" {
		j, err = s.source.LatestJournal(ctx, req.TargetID)
	} else {
		j, err = s.source.JournalByID(ctx, req.TargetID, req.EntryID)
	}
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	title := j.Label
	if title == "" {
		title = j.TargetID
	}
	page, err := RenderJournalHTML(TemplateData{
		Title:       title,
		Version:     j.Version,
		ContentHTML: template.HTML(SnapshotToHTML(j.Snapshot)),
		UpdatedAt:   j.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var res *Result
	switch req.Format {
	case FormatHTML:
		res = &Result{Data: []byte(page), Filename: sanitizeFilename(title) + ".html", MimeType: "text/html; charset=utf-8"}
	case FormatPDF:
		res, err = s.pdf(ctx, page, title)
	case FormatDOCX:
		res, err = s.docx(ctx, page, title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}

	if req.Upload {
		key := objectKey(j, res.Filename, time.Now())
		url, err := s.uploader.Upload(ctx, key, res)
		if err != nil {
			return nil, fmt.Errorf("upload export: %w", err)
		}
		res.URL = url
		log.Info().Str("target_id", j.TargetID).Str("key", key).Msg("export: uploaded")
	}
	return res, nil
}

func objectKey(j Journal, filename string, now time.Time) string {
	return path.Join("journals", sanitizeFilename(j.TargetID), fmt.Sprintf("v%d-%d-%s", j.Version, now.Unix(), filename))
}
