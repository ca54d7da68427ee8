package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docsmith/internal/content"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/storage"
)

func processedDoc(t *testing.T, sourceURL string, body string) content.ProcessedContent {
	t.Helper()
	p := content.NewProcessor(content.Options{}, &metadata.NoopSink{})
	return p.Process([]byte(body), "text/html", sourceURL, "")
}

func TestFilename(t *testing.T) {
	cases := []struct {
		name      string
		library   string
		targetURL string
		sourceURL string
		index     int
		want      string
	}{
		{
			"path below target",
			"mylib",
			"https://docs.example.com/guide/",
			"https://docs.example.com/guide/install",
			3,
			"mylib_install_003.md",
		},
		{
			"source equals target",
			"mylib",
			"https://docs.example.com/guide/",
			"https://docs.example.com/guide/",
			1,
			"mylib_index_001.md",
		},
		{
			"root target keeps full path",
			"mylib",
			"https://docs.example.com/",
			"https://docs.example.com/api",
			12,
			"mylib_api_012.md",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := storage.Filename(tc.library, tc.targetURL, tc.sourceURL, tc.index)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFilename_NestedPathStaysFilenameSafe(t *testing.T) {
	got := storage.Filename(
		"mylib",
		"https://docs.example.com/guide/",
		"https://docs.example.com/guide/setup/install.html",
		7,
	)
	require.True(t, strings.HasPrefix(got, "mylib_"), "filename layout broken: %q", got)
	require.True(t, strings.HasSuffix(got, "_007.md"), "filename layout broken: %q", got)

	slug := strings.TrimSuffix(strings.TrimPrefix(got, "mylib_"), "_007.md")
	require.NotEmpty(t, slug)
	for _, c := range slug {
		safe := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
		assert.True(t, safe, "unsafe character %q in slug %q", c, slug)
	}
}

func TestMarkdownSink_Write(t *testing.T) {
	dir := t.TempDir()
	recorder := metadata.NewRecorder("storage-test")
	sink := storage.NewMarkdownSink(&recorder)

	source := "https://docs.example.com/guide/install"
	pc := processedDoc(t, source, `<html><head>
		<title>Install Guide</title>
		<meta name="description" content="How to install.">
		<meta property="og:title" content="Install">
	</head><body><h1>Install Guide</h1><p>Run the installer.</p></body></html>`)

	result, err := sink.Write(dir, "mylib", "https://docs.example.com/guide/", 1, pc)
	require.Nil(t, err)
	assert.Equal(t, "mylib_install_001.md", result.Filename())
	assert.Equal(t, filepath.Join(dir, result.Filename()), result.Path())
	assert.Len(t, result.ContentHash(), 64)

	raw, readErr := os.ReadFile(result.Path())
	require.NoError(t, readErr)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "# Install Guide\n\n"), "missing title heading")
	for _, want := range []string{
		"**Source:** " + source,
		"**Format:** html",
		"**Fetched:** ",
		"**Description:** How to install.",
		"**Meta og:title:** Install",
		"\n---\n\n",
		"Run the installer.",
	} {
		assert.Contains(t, text, want)
	}

	artifacts := recorder.Artifacts()
	require.Len(t, artifacts, 1)
	assert.Equal(t, metadata.ArtifactMarkdown, artifacts[0].Kind())
	assert.Equal(t, result.Path(), artifacts[0].Path())
}

func TestMarkdownSink_RewriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	sink := storage.NewMarkdownSink(&metadata.NoopSink{})
	pc := processedDoc(t, "https://docs.example.com/guide/install",
		"<html><head><title>Install Guide</title></head><body><p>Run the installer.</p></body></html>")

	first, err := sink.Write(dir, "mylib", "https://docs.example.com/guide/", 1, pc)
	require.Nil(t, err)
	second, err := sink.Write(dir, "mylib", "https://docs.example.com/guide/", 1, pc)
	require.Nil(t, err)
	assert.Equal(t, first.Path(), second.Path())

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "rerun must not grow the output directory")
}

func TestMarkdownSink_WriteFailure(t *testing.T) {
	occupied := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(occupied, []byte("x"), 0644))

	recorder := metadata.NewRecorder("storage-test")
	sink := storage.NewMarkdownSink(&recorder)
	pc := processedDoc(t, "https://docs.example.com/guide/install",
		"<html><head><title>Install Guide</title></head><body><p>Run the installer.</p></body></html>")

	_, err := sink.Write(occupied, "mylib", "https://docs.example.com/guide/", 1, pc)
	require.NotNil(t, err, "writing under a file path must fail")

	var storageErr *storage.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, storage.ErrCausePathError, storageErr.Cause)
	assert.Len(t, recorder.Errors(), 1, "failure must reach the sink")
}
