package crawler

import (
	"context"
	"slices"
	"sync"
)

// CrawlTask is a unit of crawl work handed out by the Frontier.
type CrawlTask struct {
	// URL is the normalized URL to fetch.
	URL string
	// Depth is the number of links followed from the seed.
	Depth int
}

// FrontierStats is a snapshot of the frontier counters.
type FrontierStats struct {
	Visited  int
	Queued   int
	InFlight int
}

// Frontier is the deduplicating FIFO queue of a crawl.
//
// A URL is marked visited when it is taken, not when it is fetched, so two
// workers can never take the same URL. The sum of visited and queued URLs
// never exceeds maxPages, which bounds the number of records a crawl emits.
//
// Take blocks while the queue is empty but a task is still in flight, since
// that task may offer new links. Once the queue is empty and nothing is in
// flight the frontier is drained for good.
type Frontier struct {
	mu       sync.Mutex
	maxPages int
	queue    []CrawlTask
	queued   map[string]struct{}
	visited  map[string]struct{}
	// aliases are redirect targets of taken URLs. They are never offered
	// again but do not count against maxPages.
	aliases  map[string]struct{}
	inFlight int
	closed   bool
	// changed is closed and replaced on every state change.
	changed chan struct{}
}

// NewFrontier creates an empty frontier admitting at most maxPages URLs.
func NewFrontier(maxPages int) *Frontier {
	return &Frontier{
		maxPages: maxPages,
		queued:   make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		aliases:  make(map[string]struct{}),
		changed:  make(chan struct{}),
	}
}

// Offer normalizes rawURL and enqueues it unless it was already visited or
// queued, the page budget is used up, or the frontier is closed. It reports
// whether the URL was enqueued. Offering the same URL twice is a no-op.
func (f *Frontier) Offer(rawURL string, depth int) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if f.seenLocked(key) {
		return false
	}
	if _, ok := f.queued[key]; ok {
		return false
	}
	if len(f.visited)+len(f.queued) >= f.maxPages {
		return false
	}

	f.queued[key] = struct{}{}
	f.queue = append(f.queue, CrawlTask{URL: key, Depth: depth})
	f.broadcast()
	return true
}

// Take returns the next task. The task is marked visited and in flight; the
// caller must call Done when it has recorded the task. Take returns false
// when the frontier is drained or closed, or when ctx is done.
func (f *Frontier) Take(ctx context.Context) (CrawlTask, bool) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return CrawlTask{}, false
		}
		if len(f.queue) > 0 {
			task := f.queue[0]
			f.queue[0] = CrawlTask{}
			f.queue = f.queue[1:]
			delete(f.queued, task.URL)
			f.visited[task.URL] = struct{}{}
			f.inFlight++
			f.mu.Unlock()
			return task, true
		}
		if f.inFlight == 0 {
			f.mu.Unlock()
			return CrawlTask{}, false
		}
		wait := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return CrawlTask{}, false
		case <-wait:
		}
	}
}

// Done marks a taken task as finished.
func (f *Frontier) Done(CrawlTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
	f.broadcast()
}

// Close drains the frontier immediately. Blocked and future Take calls
// return false and Offer becomes a no-op.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.broadcast()
}

// Visited reports whether rawURL has been taken.
func (f *Frontier) Visited(rawURL string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenLocked(key)
}

// MarkVisited records rawURL as fetched under another URL, typically the
// target of a redirect. A queued copy is dropped.
func (f *Frontier) MarkVisited(rawURL string) {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenLocked(key) {
		return
	}
	f.aliases[key] = struct{}{}
	if _, ok := f.queued[key]; !ok {
		return
	}
	delete(f.queued, key)
	f.queue = slices.DeleteFunc(f.queue, func(t CrawlTask) bool { return t.URL == key })
	f.broadcast()
}

// seenLocked reports whether key was taken or aliased. f.mu must be held.
func (f *Frontier) seenLocked(key string) bool {
	if _, ok := f.visited[key]; ok {
		return true
	}
	_, ok := f.aliases[key]
	return ok
}

// Stats returns a snapshot of the frontier counters.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FrontierStats{
		Visited:  len(f.visited),
		Queued:   len(f.queue),
		InFlight: f.inFlight,
	}
}

// broadcast wakes every waiter. f.mu must be held.
func (f *Frontier) broadcast() {
	close(f.changed)
	f.changed = make(chan struct{})
}
