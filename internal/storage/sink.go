package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/kennygrant/sanitize"

	"github.com/rohmanhakim/docsmith/internal/content"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/pkg/failure"
	"github.com/rohmanhakim/docsmith/pkg/fileutil"
	"github.com/rohmanhakim/docsmith/pkg/hashutil"
)

/*
Responsibilities
- Persist markdown files
- Ensure deterministic filenames
- Emit a header block ahead of the document body

Output characteristics
- Stable directory layout
- Idempotent writes
- Overwrite-safe reruns

Filename layout: {library}_{section-slug}_{index:03d}.md. The slug is
the URL path below the crawl target, with only [A-Za-z0-9_-] retained
and "/" mapped to "_".

File layout: "# {title}", a blank line, a metadata block of
"**Key:** value" lines, a "---" rule, then the markdown body.
*/

type Sink interface {
	Write(
		outputDir string,
		library string,
		targetURL string,
		index int,
		pc content.ProcessedContent,
	) (WriteResult, failure.ClassifiedError)
}

// Compile-time interface check
var _ Sink = (*MarkdownSink)(nil)

type MarkdownSink struct {
	metadataSink metadata.MetadataSink
	now          func() time.Time
}

func NewMarkdownSink(metadataSink metadata.MetadataSink) *MarkdownSink {
	return &MarkdownSink{
		metadataSink: metadataSink,
		now:          time.Now,
	}
}

func (s *MarkdownSink) Write(
	outputDir string,
	library string,
	targetURL string,
	index int,
	pc content.ProcessedContent,
) (WriteResult, failure.ClassifiedError) {
	writeResult, err := s.write(outputDir, library, targetURL, index, pc)
	if err != nil {
		var storageError *StorageError
		errors.As(err, &storageError)
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"MarkdownSink.Write",
			mapStorageErrorToMetadataCause(storageError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, pc.SourceURL()),
				metadata.NewAttr(metadata.AttrWritePath, storageError.Path),
			},
		)
		return WriteResult{}, storageError
	}
	s.metadataSink.RecordArtifact(
		metadata.ArtifactMarkdown,
		writeResult.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, writeResult.Path()),
			metadata.NewAttr(metadata.AttrURL, pc.SourceURL()),
		},
	)
	return writeResult, nil
}

func (s *MarkdownSink) write(
	outputDir string,
	library string,
	targetURL string,
	index int,
	pc content.ProcessedContent,
) (WriteResult, *StorageError) {
	if err := fileutil.EnsureDir(outputDir); err != nil {
		var fileErr *fileutil.FileError
		if errors.As(err, &fileErr) && fileErr.Cause == fileutil.ErrCausePathError {
			return WriteResult{}, &StorageError{
				Message:   err.Error(),
				Retryable: true,
				Cause:     ErrCausePathError,
				Path:      outputDir,
			}
		}
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			Path:      outputDir,
		}
	}

	filename := Filename(library, targetURL, pc.SourceURL(), index)
	fullPath := filepath.Join(outputDir, filename)

	body := s.render(pc)
	if err := os.WriteFile(fullPath, []byte(body), 0644); err != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		if errors.Is(err, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      fullPath,
		}
	}

	contentHash, hashErr := hashutil.HashBytes([]byte(body), hashutil.HashAlgoBLAKE3)
	if hashErr != nil {
		contentHash = ""
	}
	return NewWriteResult(fullPath, filename, contentHash), nil
}

// render produces the on-disk layout: title heading, metadata block,
// rule, body.
func (s *MarkdownSink) render(pc content.ProcessedContent) string {
	var out strings.Builder
	fmt.Fprintf(&out, "# %s\n\n", pc.Title())
	fmt.Fprintf(&out, "**Source:** %s\n", pc.SourceURL())
	fmt.Fprintf(&out, "**Format:** %s\n", pc.Format())
	fmt.Fprintf(&out, "**Fetched:** %s\n", s.now().UTC().Format(time.RFC3339))
	if description, ok := pc.Metadata()["description"]; ok && description != "" {
		fmt.Fprintf(&out, "**Description:** %s\n", description)
	}
	for _, key := range sortedMetaKeys(pc.Metadata()) {
		fmt.Fprintf(&out, "**Meta %s:** %s\n", key, pc.Metadata()[key])
	}
	out.WriteString("\n---\n\n")
	out.WriteString(pc.Markdown())
	out.WriteString("\n")
	return out.String()
}

// sortedMetaKeys returns the OpenGraph keys in stable order; the rest
// of the metadata bag stays out of the header to keep files readable.
func sortedMetaKeys(meta map[string]string) []string {
	var keys []string
	for key := range meta {
		if strings.HasPrefix(key, "og:") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Filename derives the deterministic output filename for one document.
func Filename(library string, targetURL string, sourceURL string, index int) string {
	return fmt.Sprintf("%s_%s_%03d.md", sanitizeToken(library), sectionSlug(targetURL, sourceURL), index)
}

// sectionSlug reduces the source URL's path below the target URL to a
// filename-safe token.
func sectionSlug(targetURL string, sourceURL string) string {
	sourcePath := pathOf(sourceURL)
	targetPath := pathOf(targetURL)

	section := sourcePath
	if targetPath != "" && targetPath != "/" && strings.HasPrefix(sourcePath, targetPath) {
		section = sourcePath[len(targetPath):]
	}
	section = strings.Trim(section, "/")
	if section == "" {
		section = "index"
	}
	section = strings.ReplaceAll(section, "/", "_")
	return sanitizeToken(section)
}

func sanitizeToken(s string) string {
	cleaned := sanitize.BaseName(s)
	var out strings.Builder
	for _, c := range cleaned {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			out.WriteRune(c)
		}
	}
	if out.Len() == 0 {
		return "doc"
	}
	return out.String()
}

func pathOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Path
}
