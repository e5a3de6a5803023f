package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steward-lb/steward/internal/domain"
)

func testPolicy() domain.HealthCheckPolicy {
	return domain.HealthCheckPolicy{
		Path:               "/",
		ExpectStatus:       200,
		Interval:           15 * time.Second,
		Timeout:            time.Second,
		HealthyThreshold:   2,
		UnhealthyThreshold: 2,
	}
}

func memberFor(srv *httptest.Server) *domain.Member {
	return &domain.Member{
		ID:    "m1",
		Addr:  strings.TrimPrefix(srv.URL, "http://"),
		State: domain.StateUnknown,
	}
}

func TestProbeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := NewHTTPProber(testPolicy()).Probe(context.Background(), memberFor(srv))

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Greater(t, res.Latency, time.Duration(0))
}

func TestProbeWrongStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := NewHTTPProber(testPolicy()).Probe(context.Background(), memberFor(srv))

	require.NoError(t, res.Err, "an HTTP response is not a transport error")
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
}

func TestProbeDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/ok", http.StatusFound)
	}))
	defer srv.Close()

	res := NewHTTPProber(testPolicy()).Probe(context.Background(), memberFor(srv))

	assert.False(t, res.Success, "a redirect is not the expected status")
	assert.Equal(t, http.StatusFound, res.Status)
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	member := memberFor(srv)
	srv.Close()

	res := NewHTTPProber(testPolicy()).Probe(context.Background(), member)

	assert.False(t, res.Success)
	assert.Error(t, res.Err)
	assert.Equal(t, 0, res.Status)
}

func TestProbeTimeoutIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	policy := testPolicy()
	policy.Timeout = 20 * time.Millisecond

	res := NewHTTPProber(policy).Probe(context.Background(), memberFor(srv))

	assert.False(t, res.Success)
	assert.Error(t, res.Err)
}

func TestProbeUsesPolicyPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	policy := testPolicy()
	policy.Path = "/healthz"

	NewHTTPProber(policy).Probe(context.Background(), memberFor(srv))

	assert.Equal(t, "/healthz", gotPath)
}
