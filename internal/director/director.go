package director

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/pool"
)

// NoHealthyBody is the fixed response when a rule matches but its pool
// has no traffic-eligible members.
const NoHealthyBody = "503: no healthy targets"

// Director is the traffic entry point: it matches request paths against
// the routing table and forwards winners to healthy pool members,
// round-robin. Routing is stateless per request; it only reads the
// current roster snapshot and never blocks the control loops.
type Director struct {
	http   *http.Server
	roster *pool.Roster
	logger logger.Logger

	table atomic.Pointer[domain.Table]

	mu       sync.Mutex
	counters map[int]*atomic.Uint64 // rule priority -> round-robin cursor
}

// New builds the Director listening on the table's listener port.
func New(roster *pool.Roster, table *domain.Table, log logger.Logger) *Director {
	d := &Director{
		roster:   roster,
		logger:   log,
		counters: make(map[int]*atomic.Uint64),
	}
	d.table.Store(table)

	d.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", table.Listener.Port),
		Handler:           d,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return d
}

// SetTable swaps the routing table. Called by the rules reloader; in-flight
// requests keep the table they started with.
func (d *Director) SetTable(table *domain.Table) {
	d.table.Store(table)
}

// Table returns the routing table currently in effect.
func (d *Director) Table() *domain.Table {
	return d.table.Load()
}

// ServeHTTP routes one request: first matching rule wins, healthy members
// only, listener default action when nothing matches.
func (d *Director) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table := d.table.Load()

	rule, ok := table.Match(r.URL.Path)
	if !ok {
		d.writeFixed(w, table.Listener.DefaultStatus, table.Listener.DefaultBody)
		return
	}

	member := d.pick(rule)
	if member == nil {
		// Matched rule, zero healthy targets: fail fast, never hang.
		d.writeFixed(w, http.StatusServiceUnavailable, NoHealthyBody)
		return
	}

	target := &url.URL{Scheme: "http", Host: member.Addr}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		d.logger.Warn("forwarding failed",
			logger.String("member_id", member.ID),
			logger.String("addr", member.Addr),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		d.writeFixed(w, http.StatusBadGateway, "502: bad gateway")
	}
	proxy.ServeHTTP(w, r)
}

// pick selects the rule's next healthy member round-robin. The healthy
// slice is ID-sorted in the snapshot, so the rotation is deterministic
// for a fixed roster version.
func (d *Director) pick(rule domain.Rule) *domain.Member {
	if rule.Pool != d.roster.Name() {
		return nil
	}

	healthy := d.roster.Snapshot().Healthy()
	if len(healthy) == 0 {
		return nil
	}

	n := d.counter(rule.Priority).Add(1)
	return healthy[int((n-1)%uint64(len(healthy)))]
}

func (d *Director) counter(priority int) *atomic.Uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.counters[priority]
	if !ok {
		c = &atomic.Uint64{}
		d.counters[priority] = c
	}
	return c
}

func (d *Director) writeFixed(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Start runs the listener (blocks until error or shutdown).
func (d *Director) Start() error {
	d.logger.Infof("traffic director listening on %s", d.http.Addr)
	err := d.http.ListenAndServe()
	// http.ErrServerClosed is expected on graceful shutdown.
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the listener down with the provided context deadline.
func (d *Director) Stop(ctx context.Context) error {
	d.logger.Info("traffic director shutting down...")
	return d.http.Shutdown(ctx)
}
