package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// pandocArgs converts HTML on stdin to DOCX on stdout, with the journal label
// as the document title.
func pandocArgs(title string) []string {
	args := []string{"--from=html", "--to=docx", "--standalone", "--output=-"}
	if t := strings.TrimSpace(title); t != "" {
		args = append(args, "--metadata=title:"+t)
	}
	return args
}

// exportDOCX converts the journal HTML to DOCX with pandoc.
func exportDOCX(ctx context.Context, html string, title string) (*Result, error) {
	if _, err := exec.LookPath("pandoc"); err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	started := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pandoc", pandocArgs(title)...)
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pandoc failed: %s", msg)
		}
		return nil, fmt.Errorf("pandoc execution failed: %w", err)
	}
	log.Debug().Str("title", title).Int("bytes", stdout.Len()).Dur("took", time.Since(started)).Msg("docx rendered")

	return &Result{
		Data:     stdout.Bytes(),
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: docxMimeType,
	}, nil
}
