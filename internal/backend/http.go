package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rohmanhakim/docsmith/internal/config"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

/*
Responsibilities

- Perform HTTP requests over a reusable connection pool
- Apply headers and timeouts
- Follow redirects and report the final URL
- Classify transport failures into synthetic statuses

The HTTP backend never parses content; it only returns bytes and
metadata. It implements no rate limiting, retries, or caching.
*/

const maxRedirects = 10

type HTTPBackend struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
}

func NewHTTPBackend(metadataSink metadata.MetadataSink) *HTTPBackend {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     60 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &HTTPBackend{
		metadataSink: metadataSink,
		httpClient:   client,
	}
}

func (h *HTTPBackend) Name() string {
	return "http"
}

func (h *HTTPBackend) Crawl(ctx context.Context, info urlinfo.URLInfo, cfg config.Config) Result {
	startTime := time.Now()
	result := h.perform(ctx, info, cfg)
	duration := time.Since(startTime)

	h.metadataSink.RecordFetch(
		info.Normalized(),
		result.Status(),
		duration,
		result.ContentType(),
		0,
		0,
	)
	if result.Error() != "" {
		h.metadataSink.RecordError(
			time.Now(),
			"backend",
			"HTTPBackend.Crawl",
			causeForStatus(result.Status()),
			result.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, info.Normalized()),
				metadata.NewAttr(metadata.AttrHTTPStatus, fmt.Sprintf("%d", result.Status())),
			},
		)
	}
	return result
}

func (h *HTTPBackend) perform(ctx context.Context, info urlinfo.URLInfo, cfg config.Config) Result {
	requestCtx := ctx
	if cfg.Timeout() > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, cfg.Timeout())
		defer cancel()
	}

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, info.Normalized(), nil)
	if err != nil {
		return NewErrorResult(info.Normalized(), StatusBadRequest,
			fmt.Sprintf("failed to create request: %v", err))
	}

	for key, value := range requestHeaders(cfg.UserAgent()) {
		req.Header.Set(key, value)
	}
	for key, value := range cfg.DefaultHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(info.Normalized(), err)
	}
	defer resp.Body.Close()

	finalURL := info.Normalized()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewErrorResult(finalURL, StatusConnectionError,
			fmt.Sprintf("failed to read response body: %v", err))
	}

	result := NewResult(finalURL, resp.StatusCode, resp.Header, body)
	if !result.IsSuccess() {
		result.errMsg = fmt.Sprintf("http status %d", resp.StatusCode)
	}
	return result
}

func (h *HTTPBackend) Validate(result Result) bool {
	return result.IsSuccess() && len(result.Body()) > 0
}

func (h *HTTPBackend) Process(result Result) map[string]string {
	return baseProcess(h.Name(), result)
}

// Close releases pooled connections.
func (h *HTTPBackend) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

func classifyTransportError(url string, err error) Result {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewErrorResult(url, StatusTimeout, fmt.Sprintf("request timed out: %v", err))
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewErrorResult(url, StatusTimeout, fmt.Sprintf("request timed out: %v", err))
	case errors.Is(err, context.Canceled):
		return NewErrorResult(url, StatusConnectionError, "request canceled")
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewErrorResult(url, StatusConnectionError, fmt.Sprintf("connection error: %v", err))
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewErrorResult(url, StatusConnectionError, fmt.Sprintf("dns error: %v", err))
	}

	return NewErrorResult(url, StatusServerError, fmt.Sprintf("unexpected error: %v", err))
}

func causeForStatus(status int) metadata.ErrorCause {
	switch {
	case status == StatusTimeout, status == StatusConnectionError:
		return metadata.CauseNetworkFailure
	case status == StatusPolicyRefused, status == 401, status == 429:
		return metadata.CausePolicyDisallow
	case status >= 500:
		return metadata.CauseNetworkFailure
	case status >= 400:
		return metadata.CauseContentInvalid
	}
	return metadata.CauseUnknown
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}
