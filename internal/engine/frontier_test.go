package engine

import (
	"testing"
	"time"

	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

func entryURL(t *testing.T, raw string) urlinfo.URLInfo {
	t.Helper()
	info := urlinfo.Parse(raw)
	if !info.IsValid() {
		t.Fatalf("fixture url %q invalid: %s", raw, info.InvalidReason())
	}
	return info
}

func TestFrontier_FIFO(t *testing.T) {
	f := newFrontier()
	urls := []string{
		"https://docs.example.com/a",
		"https://docs.example.com/b",
		"https://docs.example.com/c",
	}
	for i, raw := range urls {
		f.push(entryURL(t, raw), i)
	}
	if f.queueLen() != 3 {
		t.Fatalf("queue length: expected 3, got %d", f.queueLen())
	}

	for i, raw := range urls {
		entry, ok := f.next()
		if !ok {
			t.Fatalf("next %d: expected an entry", i)
		}
		if entry.info.Normalized() != raw {
			t.Errorf("next %d: expected %s, got %s", i, raw, entry.info.Normalized())
		}
		if entry.depth != i {
			t.Errorf("next %d: depth %d", i, entry.depth)
		}
		f.taskDone()
	}

	if _, ok := f.next(); ok {
		t.Error("drained frontier must report no entry")
	}
}

func TestFrontier_VisitOnce(t *testing.T) {
	f := newFrontier()
	url := "https://docs.example.com/page"

	if !f.visit(url, 0) {
		t.Error("first visit must report true")
	}
	if f.visit(url, 0) {
		t.Error("second visit must report false")
	}
	if !f.isVisited(url) {
		t.Error("isVisited must report true after visit")
	}
	if f.visitedCount() != 1 {
		t.Errorf("visited count: got %d", f.visitedCount())
	}
	if got := f.visitedURLs(); len(got) != 1 || got[0] != url {
		t.Errorf("visited urls: got %v", got)
	}
}

func TestFrontier_NextWaitsForActiveWorker(t *testing.T) {
	f := newFrontier()
	f.push(entryURL(t, "https://docs.example.com/a"), 0)

	if _, ok := f.next(); !ok {
		t.Fatal("expected first entry")
	}

	// The in-flight worker discovers a link, so the blocked next call
	// must wake up with it rather than report a drained crawl.
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.push(entryURL(t, "https://docs.example.com/b"), 1)
		f.taskDone()
	}()

	entry, ok := f.next()
	if !ok {
		t.Fatal("next must return the entry produced by the active worker")
	}
	if entry.info.Normalized() != "https://docs.example.com/b" {
		t.Errorf("expected the discovered link, got %s", entry.info.Normalized())
	}
	f.taskDone()

	if _, ok := f.next(); ok {
		t.Error("frontier must drain once no worker is active")
	}
}

func TestFrontier_AdmissionBudget(t *testing.T) {
	f := newFrontier()

	if got := f.admissionBudget(0); got != -1 {
		t.Errorf("zero max pages means unlimited, got %d", got)
	}
	if got := f.admissionBudget(3); got != 3 {
		t.Errorf("empty frontier budget: expected 3, got %d", got)
	}

	f.push(entryURL(t, "https://docs.example.com/a"), 0)
	f.visit("https://docs.example.com/b", 0)
	if got := f.admissionBudget(3); got != 1 {
		t.Errorf("queued and visited both count: expected 1, got %d", got)
	}

	f.visit("https://docs.example.com/c", 0)
	f.visit("https://docs.example.com/d", 0)
	if got := f.admissionBudget(3); got != 0 {
		t.Errorf("exhausted budget clamps at zero, got %d", got)
	}
}

func TestFrontier_VisitHonorsPageCap(t *testing.T) {
	f := newFrontier()

	if !f.visit("https://docs.example.com/a", 2) {
		t.Fatal("first visit within the cap must succeed")
	}
	if !f.visit("https://docs.example.com/b", 2) {
		t.Fatal("second visit within the cap must succeed")
	}
	if f.visit("https://docs.example.com/c", 2) {
		t.Error("a full visited set must refuse new urls")
	}
	if f.visitedCount() != 2 {
		t.Errorf("visited count must stay at the cap, got %d", f.visitedCount())
	}
	if !f.visit("https://docs.example.com/d", 0) {
		t.Error("non-positive cap means unlimited")
	}
}
