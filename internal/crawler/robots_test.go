package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRobotsAllowed(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n")) //nolint:errcheck
	}))
	defer server.Close()

	r := NewRobots(server.Client(), "test-agent", nil)
	ctx := context.Background()

	assert.True(t, r.Allowed(ctx, server.URL+"/"))
	assert.True(t, r.Allowed(ctx, server.URL+"/public/page"))
	assert.False(t, r.Allowed(ctx, server.URL+"/private"))
	assert.False(t, r.Allowed(ctx, server.URL+"/private/data?x=1"))
	assert.Equal(t, int32(1), fetches.Load(), "robots.txt is fetched once per host")
}

func TestRobotsMissingAllowsAll(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	r := NewRobots(server.Client(), "test-agent", nil)
	assert.True(t, r.Allowed(context.Background(), server.URL+"/anything"))
}

func TestRobotsUnreachableAllowsAll(t *testing.T) {
	t.Parallel()

	client := doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, refusedError()
	})
	r := NewRobots(client, "test-agent", nil)
	assert.True(t, r.Allowed(context.Background(), "https://example.com/page"))
}

func TestRobotsInvalidURL(t *testing.T) {
	t.Parallel()

	r := NewRobots(http.DefaultClient, "test-agent", nil)
	assert.False(t, r.Allowed(context.Background(), "/no-host"))
}
