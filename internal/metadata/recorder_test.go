package metadata_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/docsmith/internal/metadata"
)

func TestRecorder_RecordFetch(t *testing.T) {
	recorder := metadata.NewRecorder("worker-1")
	recorder.RecordFetch("https://example.com/docs", 200, 120*time.Millisecond, "text/html", 0, 1)
	recorder.RecordFetch("https://example.com/api", 500, 80*time.Millisecond, "", 2, 2)

	fetches := recorder.Fetches()
	if len(fetches) != 2 {
		t.Fatalf("expected 2 fetch events, got %d", len(fetches))
	}
	first := fetches[0]
	if first.URL() != "https://example.com/docs" {
		t.Errorf("url: got %q", first.URL())
	}
	if first.HTTPStatus() != 200 {
		t.Errorf("status: got %d", first.HTTPStatus())
	}
	if first.ContentType() != "text/html" {
		t.Errorf("contentType: got %q", first.ContentType())
	}
	if fetches[1].RetryCount() != 2 || fetches[1].CrawlDepth() != 2 {
		t.Error("retry count or depth not recorded")
	}
}

func TestRecorder_RecordError(t *testing.T) {
	recorder := metadata.NewRecorder("worker-1")
	observed := time.Now()
	recorder.RecordError(observed, "backend", "fetch", metadata.CauseNetworkFailure, "connection refused",
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, "https://example.com")})

	errs := recorder.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error record, got %d", len(errs))
	}
	rec := errs[0]
	if rec.Package() != "backend" || rec.Action() != "fetch" {
		t.Errorf("package/action: got %q/%q", rec.Package(), rec.Action())
	}
	if rec.Cause() != metadata.CauseNetworkFailure {
		t.Errorf("cause: got %v", rec.Cause())
	}
	if !rec.ObservedAt().Equal(observed) {
		t.Error("observedAt not preserved")
	}
	if len(rec.Attrs()) != 1 || rec.Attrs()[0].Key != metadata.AttrURL {
		t.Error("attributes not preserved")
	}
}

func TestRecorder_RecordArtifact(t *testing.T) {
	recorder := metadata.NewRecorder("worker-1")
	recorder.RecordArtifact(metadata.ArtifactMarkdown, "/tmp/out/doc.md", nil)

	artifacts := recorder.Artifacts()
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	if artifacts[0].Kind() != metadata.ArtifactMarkdown {
		t.Errorf("kind: got %v", artifacts[0].Kind())
	}
	if artifacts[0].Path() != "/tmp/out/doc.md" {
		t.Errorf("path: got %q", artifacts[0].Path())
	}
}

func TestRecorder_FinalStats(t *testing.T) {
	recorder := metadata.NewRecorder("worker-1")
	if recorder.HasFinalStats() {
		t.Error("fresh recorder must not have final stats")
	}
	recorder.RecordFinalCrawlStats(10, 2, 3, 4*time.Second)
	if !recorder.HasFinalStats() {
		t.Error("final stats must be recorded")
	}
}

func TestRecorder_ConcurrentWrites(t *testing.T) {
	recorder := metadata.NewRecorder("worker-1")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.RecordFetch("https://example.com", 200, time.Millisecond, "text/html", 0, 0)
		}()
	}
	wg.Wait()
	if got := len(recorder.Fetches()); got != 50 {
		t.Errorf("expected 50 fetch events, got %d", got)
	}
}
