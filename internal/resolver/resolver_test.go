package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/harvest/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver answers from a static table and tracks concurrency.
type fakeResolver struct {
	hosts map[string][]string
	delay time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeResolver) LookupNetIP(ctx context.Context, _, host string) ([]netip.Addr, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ips, ok := f.hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, netip.MustParseAddr(ip))
	}
	return addrs, nil
}

func TestResolveOneResultPerCandidate(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{hosts: map[string][]string{
		"www.example.com":  {"93.184.216.34", "93.184.216.34", "::ffff:93.184.216.34"},
		"mail.example.com": {"10.0.0.2", "10.0.0.1"},
	}}
	r := New(WithHostResolver(fake))

	var emitted []model.SubdomainResult
	results, err := r.Resolve(context.Background(), "example.com",
		[]string{"www", "mail", "doesnotexist123"},
		func(res model.SubdomainResult) error {
			emitted = append(emitted, res)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, emitted, 3)

	www := results[0]
	assert.Equal(t, "www.example.com", www.FQDN)
	assert.True(t, www.Resolved)
	assert.Equal(t, []string{"93.184.216.34"}, www.IPStrings())

	mail := results[1]
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, mail.IPStrings())

	missing := results[2]
	assert.Equal(t, "doesnotexist123.example.com", missing.FQDN)
	assert.False(t, missing.Resolved)
	assert.Empty(t, missing.ResolvedIPs)
	assert.NotNil(t, missing.ResolvedIPs)
	assert.Equal(t, "no such host", missing.Error)
}

func TestResolveRespectsConcurrency(t *testing.T) {
	t.Parallel()

	const (
		n     = 60
		limit = 5
	)
	fake := &fakeResolver{hosts: map[string][]string{}, delay: 5 * time.Millisecond}
	words := make([]string, n)
	for i := range n {
		words[i] = fmt.Sprintf("host%d", i)
		if i%3 == 0 {
			fake.hosts[words[i]+".example.com"] = []string{fmt.Sprintf("10.0.0.%d", i)}
		}
	}

	results, err := New(WithHostResolver(fake), WithConcurrency(limit)).
		Resolve(context.Background(), "example.com", words, nil)
	require.NoError(t, err)

	require.Len(t, results, n)
	unique := make(map[string]struct{}, n)
	for _, res := range results {
		unique[res.FQDN] = struct{}{}
	}
	assert.Len(t, unique, n)
	assert.Equal(t, int32(n), fake.calls.Load(), "no retries")
	assert.LessOrEqual(t, fake.peak.Load(), int32(limit))
}

func TestResolveLookupTimeout(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{hosts: map[string][]string{"slow.example.com": {"10.0.0.1"}}, delay: time.Second}
	results, err := New(WithHostResolver(fake), WithLookupTimeout(20*time.Millisecond)).
		Resolve(context.Background(), "example.com", []string{"slow"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Resolved)
	assert.Equal(t, "timeout", results[0].Error)
}

func TestResolveEmitErrorAborts(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{hosts: map[string][]string{}}
	words := make([]string, 50)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}

	errSink := errors.New("sink failed")
	var mu sync.Mutex
	var calls int
	results, err := New(WithHostResolver(fake), WithConcurrency(2)).
		Resolve(context.Background(), "example.com", words, func(model.SubdomainResult) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 3 {
				return errSink
			}
			return nil
		})

	assert.ErrorIs(t, err, errSink)
	assert.Less(t, len(results), len(words))
	assert.Less(t, int(fake.calls.Load()), len(words))
}

func TestResolveCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeResolver{hosts: map[string][]string{}}
	results, err := New(WithHostResolver(fake)).
		Resolve(ctx, "example.com", []string{"a", "b", "c"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestResolveQPS(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{hosts: map[string][]string{}}
	start := time.Now()
	results, err := New(WithHostResolver(fake), WithQPS(50)).
		Resolve(context.Background(), "example.com", []string{"a", "b", "c", "d", "e", "f"}, nil)
	require.NoError(t, err)
	assert.Len(t, results, 6)
	// Burst of one, then one token every 20ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestCheckBase(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{hosts: map[string][]string{"example.com": {"93.184.216.34"}}}
	r := New(WithHostResolver(fake))

	require.NoError(t, r.CheckBase(context.Background(), "example.com"))

	err := r.CheckBase(context.Background(), "nonexistent.invalid")
	assert.ErrorIs(t, err, ErrBaseUnresolved)
	assert.Contains(t, err.Error(), "no such host")
}

func TestNewNameserverResolver(t *testing.T) {
	t.Parallel()

	r := New(WithNameserver("127.0.0.1"))
	res, ok := r.lookup.(*net.Resolver)
	require.True(t, ok)
	assert.True(t, res.PreferGo)
	assert.NotNil(t, res.Dial)

	assert.Equal(t, net.DefaultResolver, New(WithNameserver("")).lookup)
}
