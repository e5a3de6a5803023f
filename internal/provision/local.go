package provision

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/logger"
)

// WorkerBody is the fixed content every pool member serves at its root.
const WorkerBody = "Hello, World"

const maxPortScan = 1024

// LocalProvisioner runs pool members as in-process HTTP servers on
// loopback. Each launch replays the worker startup procedure: bind a port
// at or above the configured base and serve the fixed content.
type LocalProvisioner struct {
	mu       sync.Mutex
	basePort int
	logger   logger.Logger
	workers  map[string]*worker // member ID -> running server
}

type worker struct {
	server   *http.Server
	listener net.Listener
}

// NewLocalProvisioner creates a provisioner binding ports from basePort up.
func NewLocalProvisioner(basePort int, log logger.Logger) *LocalProvisioner {
	return &LocalProvisioner{
		basePort: basePort,
		logger:   log,
		workers:  make(map[string]*worker),
	}
}

// Launch binds the first free port at or above the base port and starts a
// worker on it.
func (p *LocalProvisioner) Launch(ctx context.Context) (*domain.Member, error) {
	ln, port, err := p.bind()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	member := &domain.Member{
		ID:        uuid.NewString(),
		Addr:      fmt.Sprintf("127.0.0.1:%d", port),
		Port:      port,
		State:     domain.StateUnknown,
		CreatedAt: now,
		UpdatedAt: now,
	}

	srv := &http.Server{
		Handler:           WorkerHandler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	p.mu.Lock()
	p.workers[member.ID] = &worker{server: srv, listener: ln}
	p.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			p.logger.Error("worker stopped unexpectedly",
				logger.String("member_id", member.ID),
				logger.String("addr", member.Addr),
				logger.Error(err))
		}
	}()

	p.logger.Info("worker launched",
		logger.String("member_id", member.ID),
		logger.String("addr", member.Addr))

	return member, nil
}

// Terminate shuts the member's worker down. Unknown IDs are a no-op.
func (p *LocalProvisioner) Terminate(ctx context.Context, id string) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	delete(p.workers, id)
	p.mu.Unlock()

	if !ok {
		return nil
	}

	if err := w.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop worker %s: %w", id, err)
	}
	p.logger.Info("worker terminated", logger.String("member_id", id))
	return nil
}

// Close tears down every running worker, used on process shutdown.
func (p *LocalProvisioner) Close(ctx context.Context) {
	p.mu.Lock()
	workers := p.workers
	p.workers = make(map[string]*worker)
	p.mu.Unlock()

	for id, w := range workers {
		if err := w.server.Shutdown(ctx); err != nil {
			p.logger.Warn("failed to stop worker on close",
				logger.String("member_id", id),
				logger.Error(err))
		}
	}
}

// bind finds the first free loopback port at or above the base port.
// Ports already taken by earlier launches fail to bind and are skipped.
func (p *LocalProvisioner) bind() (net.Listener, int, error) {
	for port := p.basePort; port < p.basePort+maxPortScan && port <= 65535; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("no free port in range %d-%d", p.basePort, p.basePort+maxPortScan)
}

// WorkerHandler serves the member's fixed content: 200 "Hello, World" at
// the root, 404 anywhere else.
func WorkerHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(WorkerBody))
	})
}
