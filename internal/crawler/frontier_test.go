package crawler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://Example.com", want: "https://example.com/"},
		{in: "HTTPS://example.com/", want: "https://example.com/"},
		{in: "https://example.com/about/", want: "https://example.com/about"},
		{in: "https://example.com/about#team", want: "https://example.com/about"},
		{in: "https://example.com:443/a", want: "https://example.com/a"},
		{in: "http://example.com:80/a", want: "http://example.com/a"},
		{in: "http://example.com:8080/a", want: "http://example.com:8080/a"},
		{in: "https://example.com/a/./b/../c", want: "https://example.com/a/c"},
		{in: "https://example.com/list?b=2&a=1", want: "https://example.com/list?a=1&b=2"},
		{in: "https://example.com/list?", want: "https://example.com/list"},
		{in: "mailto:someone@example.com", wantErr: true},
		{in: "ftp://example.com/file", wantErr: true},
		{in: "/relative/path", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrontierOfferDeduplicates(t *testing.T) {
	t.Parallel()

	f := NewFrontier(10)
	assert.True(t, f.Offer("https://example.com/a", 0))
	assert.False(t, f.Offer("https://example.com/a", 0), "queued duplicate")
	assert.False(t, f.Offer("https://EXAMPLE.com/a/#top", 1), "normalized duplicate")

	task, ok := f.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", task.URL)

	assert.False(t, f.Offer("https://example.com/a", 2), "visited duplicate")
	assert.True(t, f.Visited("https://example.com/a/"))
	f.Done(task)
}

func TestFrontierRespectsMaxPages(t *testing.T) {
	t.Parallel()

	f := NewFrontier(3)
	for i := range 10 {
		f.Offer(fmt.Sprintf("https://example.com/p%d", i), 0)
	}
	assert.Equal(t, 3, f.Stats().Queued)

	// Taking does not free budget: visited + queued stays bounded.
	task, ok := f.Take(context.Background())
	require.True(t, ok)
	assert.False(t, f.Offer("https://example.com/new", 1))
	f.Done(task)
}

func TestFrontierMarkVisited(t *testing.T) {
	t.Parallel()

	f := NewFrontier(2)
	assert.True(t, f.Offer("https://example.com/", 0))
	assert.True(t, f.Offer("https://example.com/home", 1))

	task, ok := f.Take(context.Background())
	require.True(t, ok)
	f.MarkVisited("https://EXAMPLE.com/home/")
	assert.True(t, f.Visited("https://example.com/home"))
	assert.Equal(t, 0, f.Stats().Queued, "queued copy of the redirect target is dropped")
	assert.False(t, f.Offer("https://example.com/home", 1))

	assert.True(t, f.Offer("https://example.com/about", 1), "aliases do not use the page budget")
	f.Done(task)

	next, ok := f.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, "https://example.com/about", next.URL)
	f.Done(next)
}

func TestFrontierFIFO(t *testing.T) {
	t.Parallel()

	f := NewFrontier(10)
	urls := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}
	for _, u := range urls {
		f.Offer(u, 0)
	}

	for _, want := range urls {
		task, ok := f.Take(context.Background())
		require.True(t, ok)
		assert.Equal(t, want, task.URL)
		f.Done(task)
	}
}

func TestFrontierDrain(t *testing.T) {
	t.Parallel()

	t.Run("empty frontier is drained", func(t *testing.T) {
		t.Parallel()

		_, ok := NewFrontier(5).Take(context.Background())
		assert.False(t, ok)
	})

	t.Run("take blocks while a task is in flight", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(5)
		f.Offer("https://example.com/", 0)
		first, ok := f.Take(context.Background())
		require.True(t, ok)

		got := make(chan CrawlTask, 1)
		go func() {
			task, ok := f.Take(context.Background())
			if ok {
				got <- task
			}
			close(got)
		}()

		select {
		case <-got:
			t.Fatal("take returned while the queue was empty and a task was in flight")
		case <-time.After(50 * time.Millisecond):
		}

		f.Offer("https://example.com/next", 1)
		f.Done(first)

		task, ok := <-got
		require.True(t, ok)
		assert.Equal(t, "https://example.com/next", task.URL)
		assert.Equal(t, 1, task.Depth)
	})

	t.Run("done on last task drains waiters", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(5)
		f.Offer("https://example.com/", 0)
		task, ok := f.Take(context.Background())
		require.True(t, ok)

		done := make(chan bool, 1)
		go func() {
			_, ok := f.Take(context.Background())
			done <- ok
		}()

		time.Sleep(20 * time.Millisecond)
		f.Done(task)

		select {
		case ok := <-done:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("waiter was not released")
		}
	})

	t.Run("context cancellation releases waiters", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(5)
		f.Offer("https://example.com/", 0)
		_, ok := f.Take(context.Background())
		require.True(t, ok)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, ok = f.Take(ctx)
		assert.False(t, ok)
	})

	t.Run("close releases waiters and rejects offers", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(5)
		f.Offer("https://example.com/", 0)
		_, ok := f.Take(context.Background())
		require.True(t, ok)

		done := make(chan bool, 1)
		go func() {
			_, ok := f.Take(context.Background())
			done <- ok
		}()
		time.Sleep(20 * time.Millisecond)
		f.Close()

		assert.False(t, <-done)
		assert.False(t, f.Offer("https://example.com/other", 1))
	})
}

func TestFrontierNeverYieldsTheSameURLTwice(t *testing.T) {
	t.Parallel()

	const maxPages = 200
	f := NewFrontier(maxPages)
	f.Offer("https://example.com/0", 0)

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, ok := f.Take(context.Background())
				if !ok {
					return
				}
				mu.Lock()
				seen[task.URL]++
				mu.Unlock()
				// Every page links to a few others, with heavy overlap.
				for i := range 5 {
					f.Offer(fmt.Sprintf("https://example.com/%d", (len(task.URL)*7+i*13+w)%300), task.Depth+1)
				}
				f.Done(task)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, len(seen), maxPages)
	for u, n := range seen {
		assert.Equal(t, 1, n, "url %s taken %d times", u, n)
	}
}
