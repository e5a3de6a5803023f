package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/utils"
)

// Result is the outcome of a single probe attempt. A timeout is not
// distinguished from a connection refusal: both are plain failures with
// no partial credit.
type Result struct {
	Success bool
	Status  int           // HTTP status received, 0 if the request never completed
	Latency time.Duration // round-trip time of the attempt
	Err     error         // transport error, nil on an HTTP response
}

// Prober issues one probe against one member.
type Prober interface {
	Probe(ctx context.Context, member *domain.Member) Result
}

// HTTPProber probes members over plain HTTP GET. Each attempt uses a
// fresh connection so a wedged member cannot poison a keep-alive pool.
type HTTPProber struct {
	policy domain.HealthCheckPolicy
	client *http.Client
}

// NewHTTPProber builds a prober for the given policy.
func NewHTTPProber(policy domain.HealthCheckPolicy) *HTTPProber {
	return &HTTPProber{
		policy: policy,
		client: &http.Client{
			Timeout: policy.Timeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					return (&net.Dialer{
						Timeout:   policy.Timeout,
						KeepAlive: 0,
					}).DialContext(ctx, network, addr)
				},
				DisableKeepAlives: true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// A redirect is still a response; don't follow it.
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe issues one GET against the member's health path.
func (p *HTTPProber) Probe(ctx context.Context, member *domain.Member) Result {
	ctx, cancel := context.WithTimeout(ctx, p.policy.Timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", member.Addr, p.policy.Path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to create probe request: %w", err)}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Result{Latency: latency, Err: fmt.Errorf("probe failed: %w", err)}
	}
	defer utils.Close(resp.Body)

	return Result{
		Success: resp.StatusCode == p.policy.ExpectStatus,
		Status:  resp.StatusCode,
		Latency: latency,
	}
}
