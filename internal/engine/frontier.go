package engine

import (
	"sync"

	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

/*
Frontier responsibilities:
  - Maintain FIFO ordering of admitted URLs.
  - Track crawl depth per entry.
  - Deduplicate via the visited set; the check-and-add is atomic so two
    workers can never double-admit one URL.

It is a data structure, not a pipeline executor. It knows nothing
about fetching, processing, or storage.
*/

type frontierEntry struct {
	info  urlinfo.URLInfo
	depth int
}

type frontier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []frontierEntry
	visited map[string]bool
	// in-flight worker count, used by next to know when the crawl is done
	active int
}

func newFrontier() *frontier {
	f := &frontier{
		visited: map[string]bool{},
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *frontier) push(info urlinfo.URLInfo, depth int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, frontierEntry{info: info, depth: depth})
	f.cond.Broadcast()
}

// next blocks until an entry is available or no in-flight worker can
// produce one anymore. It returns false when the crawl is drained.
// The caller owes a taskDone for every true return.
func (f *frontier) next() (frontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.queue) == 0 && f.active > 0 {
		f.cond.Wait()
	}
	if len(f.queue) == 0 {
		return frontierEntry{}, false
	}
	entry := f.queue[0]
	f.queue = f.queue[1:]
	f.active++
	return entry, true
}

func (f *frontier) taskDone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	f.cond.Broadcast()
}

func (f *frontier) queueLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// visit marks a normalized URL visited. It reports true exactly once
// per URL, and refuses new URLs once the visited set has reached the
// page cap, so redirect targets cannot grow it past max pages.
// Non-positive maxPages means no cap.
func (f *frontier) visit(normalized string, maxPages int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visited[normalized] {
		return false
	}
	if maxPages > 0 && len(f.visited) >= maxPages {
		return false
	}
	f.visited[normalized] = true
	return true
}

func (f *frontier) isVisited(normalized string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited[normalized]
}

func (f *frontier) visitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

func (f *frontier) visitedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.visited))
	for url := range f.visited {
		out = append(out, url)
	}
	return out
}

// admissionBudget reports how many more URLs can enter the crawl,
// counting both visited and queued entries against the max-pages cap.
// Negative means unlimited.
func (f *frontier) admissionBudget(maxPages int) int {
	if maxPages <= 0 {
		return -1
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	budget := maxPages - len(f.visited) - len(f.queue)
	if budget < 0 {
		return 0
	}
	return budget
}
