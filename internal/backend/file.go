package backend

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rohmanhakim/docsmith/internal/config"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

// FileBackend serves file:// URLs from the local filesystem. Directories
// resolve to their index.html when one exists. Filesystem failures map to
// the same synthetic statuses the HTTP backend uses so the engine treats
// both transports uniformly.
type FileBackend struct {
	metadataSink metadata.MetadataSink
}

func NewFileBackend(metadataSink metadata.MetadataSink) *FileBackend {
	return &FileBackend{metadataSink: metadataSink}
}

func (f *FileBackend) Name() string {
	return "file"
}

func (f *FileBackend) Crawl(ctx context.Context, info urlinfo.URLInfo, cfg config.Config) Result {
	startTime := time.Now()
	result := f.read(ctx, info)
	duration := time.Since(startTime)

	f.metadataSink.RecordFetch(
		info.Normalized(),
		result.Status(),
		duration,
		result.ContentType(),
		0,
		0,
	)
	if result.Error() != "" {
		f.metadataSink.RecordError(
			time.Now(),
			"backend",
			"FileBackend.Crawl",
			causeForStatus(result.Status()),
			result.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, info.Normalized()),
				metadata.NewAttr(metadata.AttrPath, info.Path()),
			},
		)
	}
	return result
}

func (f *FileBackend) read(ctx context.Context, info urlinfo.URLInfo) Result {
	if err := ctx.Err(); err != nil {
		return NewErrorResult(info.Normalized(), StatusConnectionError, "request canceled")
	}

	localPath := filepath.FromSlash(info.Path())
	if localPath == "" {
		return NewErrorResult(info.Normalized(), StatusBadRequest, "file url has no path")
	}

	stat, err := os.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(info.Normalized(), http.StatusNotFound,
				fmt.Sprintf("file does not exist: %s", localPath))
		}
		if os.IsPermission(err) {
			return NewErrorResult(info.Normalized(), StatusPolicyRefused,
				fmt.Sprintf("permission denied: %s", localPath))
		}
		return NewErrorResult(info.Normalized(), StatusServerError,
			fmt.Sprintf("failed to stat %s: %v", localPath, err))
	}

	if stat.IsDir() {
		indexPath := filepath.Join(localPath, "index.html")
		if _, err := os.Stat(indexPath); err != nil {
			return NewErrorResult(info.Normalized(), http.StatusNotFound,
				fmt.Sprintf("directory has no index.html: %s", localPath))
		}
		localPath = indexPath
	}

	body, err := os.ReadFile(localPath)
	if err != nil {
		if os.IsPermission(err) {
			return NewErrorResult(info.Normalized(), StatusPolicyRefused,
				fmt.Sprintf("permission denied: %s", localPath))
		}
		return NewErrorResult(info.Normalized(), StatusServerError,
			fmt.Sprintf("failed to read %s: %v", localPath, err))
	}

	headers := http.Header{}
	headers.Set("Content-Type", contentTypeForPath(localPath))
	return NewResult(info.Normalized(), StatusOK, headers, body)
}

func (f *FileBackend) Validate(result Result) bool {
	return result.IsSuccess() && len(result.Body()) > 0
}

func (f *FileBackend) Process(result Result) map[string]string {
	return baseProcess(f.Name(), result)
}

func contentTypeForPath(path string) string {
	switch filepath.Ext(path) {
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	case ".rst":
		return "text/x-rst; charset=utf-8"
	case ".adoc", ".asciidoc":
		return "text/asciidoc; charset=utf-8"
	case ".txt", "":
		return "text/plain; charset=utf-8"
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
