package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/harvest/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore records written batches.
type memoryStore struct {
	mu       sync.Mutex
	batches  [][]model.Record
	writeErr error
	closeErr error
	closed   int
}

func (m *memoryStore) Write(_ context.Context, records []model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.batches = append(m.batches, records)
	return nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return m.closeErr
}

func (m *memoryStore) records() []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Record
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func page(url string) model.PageRecord {
	return model.PageRecord{
		URL:        url,
		FetchedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		StatusCode: 200,
		Extracted:  &model.JSONLDPayload{RawBlocks: []json.RawMessage{json.RawMessage(`{"@type":"WebPage"}`)}},
	}
}

func unresolved(fqdn string) model.SubdomainResult {
	return model.SubdomainResult{FQDN: fqdn, ResolvedIPs: []netip.Addr{}, Error: "no such host"}
}

func TestAdapterFiltersUnresolved(t *testing.T) {
	t.Parallel()

	www := model.NewSubdomainResult("www.example.com", []netip.Addr{netip.MustParseAddr("93.184.216.34")})
	mail := unresolved("mail.example.com")
	missing := unresolved("doesnotexist123.example.com")

	t.Run("without showAll", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		a := NewAdapter(store)
		for _, r := range []model.SubdomainResult{www, mail, missing} {
			require.NoError(t, a.Append(context.Background(), r))
		}
		require.NoError(t, a.Close(context.Background()))

		got := store.records()
		require.Len(t, got, 1)
		assert.Equal(t, www, got[0])
		assert.Equal(t, Counts{Appended: 3, Filtered: 2, Written: 1}, a.Counts())
	})

	t.Run("with showAll", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		a := NewAdapter(store, WithShowAll(true))
		for _, r := range []model.SubdomainResult{www, mail, missing} {
			require.NoError(t, a.Append(context.Background(), r))
		}
		require.NoError(t, a.Close(context.Background()))
		assert.Len(t, store.records(), 3)
	})

	t.Run("failed pages are always kept", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		a := NewAdapter(store)
		require.NoError(t, a.Append(context.Background(), model.PageRecord{URL: "https://example.com/", Error: "boom"}))
		require.NoError(t, a.Close(context.Background()))
		assert.Len(t, store.records(), 1)
	})
}

func TestAdapterBatching(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	a := NewAdapter(store, WithBatchSize(3))
	ctx := context.Background()

	for i := range 7 {
		require.NoError(t, a.Append(ctx, page(fmt.Sprintf("https://example.com/%d", i))))
	}
	assert.Len(t, store.batches, 2, "two full batches written, one record buffered")

	require.NoError(t, a.Flush(ctx))
	assert.Len(t, store.batches, 3)

	require.NoError(t, a.Close(ctx))
	require.NoError(t, a.Close(ctx), "second close is a no-op")
	assert.Equal(t, 1, store.closed)

	var closedErr *SinkError
	require.ErrorAs(t, a.Append(ctx, page("https://example.com/late")), &closedErr)
	assert.ErrorIs(t, closedErr, ErrClosed)
}

func TestAdapterStickyError(t *testing.T) {
	t.Parallel()

	errDisk := errors.New("disk full")
	store := &memoryStore{writeErr: errDisk}
	a := NewAdapter(store, WithBatchSize(1))
	ctx := context.Background()

	err := a.Append(ctx, page("https://example.com/1"))
	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.ErrorIs(t, err, errDisk)
	assert.Equal(t, "write", sinkErr.Op)

	// Every later call reports the same failure, even after the store recovers.
	store.mu.Lock()
	store.writeErr = nil
	store.mu.Unlock()

	assert.Same(t, sinkErr, unwrapSinkError(t, a.Append(ctx, page("https://example.com/2"))))
	assert.Same(t, sinkErr, unwrapSinkError(t, a.Flush(ctx)))
	assert.Same(t, sinkErr, unwrapSinkError(t, a.Close(ctx)))
	assert.Empty(t, store.records())
}

func unwrapSinkError(t *testing.T, err error) *SinkError {
	t.Helper()

	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	return sinkErr
}

func TestAdapterCloseError(t *testing.T) {
	t.Parallel()

	errClose := errors.New("close failed")
	a := NewAdapter(&memoryStore{closeErr: errClose})
	err := a.Close(context.Background())
	assert.ErrorIs(t, err, errClose)
}

func TestAdapterNilErrorIsUntyped(t *testing.T) {
	t.Parallel()

	a := NewAdapter(&memoryStore{})
	require.NoError(t, a.Close(context.Background()))
	// A nil *SinkError must not leak as a non-nil error.
	assert.Nil(t, a.Close(context.Background()))
}

func TestAdapterConcurrentAppend(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	a := NewAdapter(store, WithBatchSize(4))
	ctx := context.Background()

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				assert.NoError(t, a.Append(ctx, page(fmt.Sprintf("https://example.com/%d/%d", w, i))))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, a.Close(ctx))

	got := store.records()
	assert.Len(t, got, workers*perWorker)
	for _, b := range store.batches[:len(store.batches)-1] {
		assert.Len(t, b, 4)
	}
}

func TestMultiStore(t *testing.T) {
	t.Parallel()

	first, second := &memoryStore{}, &memoryStore{}
	m := NewMultiStore(first, nil, second)

	require.NoError(t, m.Write(context.Background(), []model.Record{page("https://example.com/")}))
	assert.Len(t, first.records(), 1)
	assert.Len(t, second.records(), 1)

	errWrite := errors.New("write failed")
	first.writeErr = errWrite
	assert.ErrorIs(t, m.Write(context.Background(), []model.Record{page("https://example.com/a")}), errWrite)
	assert.Len(t, second.records(), 1, "later stores are skipped after a failure")

	errClose := errors.New("close failed")
	second.closeErr = errClose
	assert.ErrorIs(t, m.Close(), errClose)
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, second.closed)
}

func TestAdapterWithJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "subdomains.json")
	store, err := OpenJSONFile(path)
	require.NoError(t, err)

	a := NewAdapter(store)
	ctx := context.Background()
	require.NoError(t, a.Append(ctx, model.NewSubdomainResult("www.example.com", []netip.Addr{netip.MustParseAddr("10.0.0.1")})))
	require.NoError(t, a.Append(ctx, unresolved("mail.example.com")))
	require.NoError(t, a.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"fqdn":"www.example.com","resolvedIPs":["10.0.0.1"],"resolved":true}]`, string(data))
}

func TestAdapterSurvivesCancelledContext(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pages.json")
	store, err := OpenJSONFile(path)
	require.NoError(t, err)

	a := NewAdapter(store, WithBatchSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	for i := range 3 {
		require.NoError(t, a.Append(ctx, page(fmt.Sprintf("https://example.com/%d", i))))
	}
	cancel()
	require.NoError(t, a.Append(ctx, page("https://example.com/3")), "a full batch is written after cancellation")
	require.NoError(t, a.Append(ctx, page("https://example.com/4")))
	require.NoError(t, a.Close(ctx), "close flushes the remainder after cancellation")

	pages, _, err := ReadJSONFile(path)
	require.NoError(t, err)
	assert.Len(t, pages, 5)
	assert.Equal(t, Counts{Appended: 5, Written: 5}, a.Counts())
}
