package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/steward-lb/steward/internal/domain"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/pool"
	"github.com/steward-lb/steward/internal/provision"
	redisstore "github.com/steward-lb/steward/internal/store/redis"
)

const (
	// Provisioning retry policy: bounded attempts with capped
	// exponential backoff, every attempt logged.
	maxLaunchAttempts   = 5
	launchRetryInterval = time.Second
	launchRetryMax      = 30 * time.Second
)

// Reconciler is the capacity manager: it keeps the pool inside
// [minSize, maxSize] and replaces members the health gate pulled out of
// service. It is the only writer of membership.
//
// Replacements run as guarded per-member workers: at most one in-flight
// replacement per member at a time.
type Reconciler struct {
	roster     *pool.Roster
	prov       provision.Provisioner
	store      *redisstore.Store // nil when persistence is disabled
	gate       *HealthGate       // nil in tests that drive probes directly
	logger     logger.Logger
	minSize    int
	maxSize    int
	interval   time.Duration
	stuckGrace time.Duration // age after which a never-healthy member is replaced
	trigger    <-chan struct{}
	stopCh     chan struct{}

	// Retry policy, overridable in tests.
	launchAttempts int
	retryInterval  time.Duration
	retryMax       time.Duration

	mu       sync.Mutex
	inFlight map[string]bool // member ID -> replacement running
	pending  int             // launches started but not yet in the roster
}

// NewReconciler creates a capacity reconciler. trigger may be nil; the
// health gate uses it to request an immediate pass after a member goes
// unhealthy.
func NewReconciler(
	roster *pool.Roster,
	prov provision.Provisioner,
	store *redisstore.Store,
	gate *HealthGate,
	log logger.Logger,
	minSize, maxSize int,
	interval time.Duration,
	policy domain.HealthCheckPolicy,
	trigger <-chan struct{},
) *Reconciler {
	return &Reconciler{
		roster:   roster,
		prov:     prov,
		store:    store,
		gate:     gate,
		logger:   log,
		minSize:  minSize,
		maxSize:  maxSize,
		interval: interval,
		// A member that has not reached healthy within five probe
		// intervals is treated as a failed provision.
		stuckGrace:     5 * policy.Interval,
		trigger:        trigger,
		stopCh:         make(chan struct{}),
		launchAttempts: maxLaunchAttempts,
		retryInterval:  launchRetryInterval,
		retryMax:       launchRetryMax,
		inFlight:       make(map[string]bool),
	}
}

// Start runs the reconcile loop: one pass immediately, then on every tick
// and on every health-gate nudge.
func (r *Reconciler) Start(ctx context.Context) error {
	if err := r.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile failed: %w", err)
	}

	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Reconcile(ctx); err != nil {
					r.logger.Error("reconcile failed", logger.Error(err))
				}
			case <-r.trigger:
				r.logger.Debug("reconcile triggered by health gate")
				if err := r.Reconcile(ctx); err != nil {
					r.logger.Error("reconcile failed", logger.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reconcile loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// Reconcile runs one capacity pass: replace out-of-service members, then
// bring the pool back inside [minSize, maxSize].
func (r *Reconciler) Reconcile(ctx context.Context) error {
	snapshot := r.roster.Snapshot()
	active := snapshot.Active()

	for _, m := range active {
		if !r.replaceable(m) {
			continue
		}
		if !r.acquire(m.ID) {
			continue
		}
		go r.replace(ctx, m.ID)
	}

	r.mu.Lock()
	reserved := r.pending + len(r.inFlight)
	missing := r.minSize - (len(active) + reserved)
	if missing > 0 {
		r.pending += missing
	}
	r.mu.Unlock()

	for i := 0; i < missing; i++ {
		go r.launchNew(ctx)
	}

	if surplus := len(active) - r.maxSize; surplus > 0 {
		r.scaleDown(ctx, active, surplus)
	}

	return nil
}

// replaceable reports whether a member should be torn down and rebuilt:
// unhealthy ones always, never-healthy ones once they exceed the stuck
// grace period (a failed provision, or a member re-seeded from the store
// whose worker no longer exists).
func (r *Reconciler) replaceable(m *domain.Member) bool {
	switch m.State {
	case domain.StateUnhealthy:
		return true
	case domain.StateUnknown:
		return r.stuckGrace > 0 && time.Since(m.CreatedAt) > r.stuckGrace
	default:
		return false
	}
}

// replace tears one member down and provisions its successor. Terminate
// first, launch second: the pool never exceeds maxSize, even transiently.
func (r *Reconciler) replace(ctx context.Context, id string) {
	defer r.release(id)

	m, ok := r.roster.Get(id)
	if !ok || m.State == domain.StateHealthy || m.State == domain.StateTerminated {
		// The member recovered or was already handled; nothing to do.
		return
	}

	terminated, err := r.roster.MarkTerminated(id, "")
	if err != nil {
		return
	}
	r.persist(ctx, terminated)
	r.syncGate(ctx)

	if err := r.prov.Terminate(ctx, id); err != nil {
		r.logger.Warn("failed to terminate member",
			logger.String("member_id", id),
			logger.Error(err))
	}

	r.logger.Info("replacing member",
		logger.String("member_id", id),
		logger.String("addr", m.Addr),
		logger.String("state", string(m.State)))

	replacement, err := r.launchWithRetry(ctx)
	if err != nil {
		// Capacity is short by one; the next pass's scale-up will retry.
		r.logger.Error("replacement launch failed, pool short one member",
			logger.String("replaced_id", id),
			logger.Error(err))
		return
	}

	r.roster.Add(replacement)
	r.roster.LinkReplacement(id, replacement.ID)
	r.persist(ctx, replacement)
	r.syncGate(ctx)

	r.logger.Info("member replaced",
		logger.String("old_id", id),
		logger.String("new_id", replacement.ID),
		logger.String("new_addr", replacement.Addr))
}

// launchNew adds one member for the scale-up path.
func (r *Reconciler) launchNew(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.pending--
		r.mu.Unlock()
	}()

	member, err := r.launchWithRetry(ctx)
	if err != nil {
		r.logger.Error("scale-up launch failed", logger.Error(err))
		return
	}

	// Re-check the upper bound: the pool may have filled up while the
	// launch was in flight.
	if total, _ := r.roster.Counts(); total >= r.maxSize {
		r.logger.Warn("discarding launched member, pool already at max",
			logger.String("member_id", member.ID),
			logger.Int("max_size", r.maxSize))
		if err := r.prov.Terminate(ctx, member.ID); err != nil {
			r.logger.Warn("failed to terminate surplus launch",
				logger.String("member_id", member.ID),
				logger.Error(err))
		}
		return
	}

	r.roster.Add(member)
	r.persist(ctx, member)
	r.syncGate(ctx)

	r.logger.Info("member launched",
		logger.String("member_id", member.ID),
		logger.String("addr", member.Addr))
}

// launchWithRetry provisions one member, retrying with capped exponential
// backoff. Every failed attempt is logged; after launchAttempts the
// failure is surfaced to the caller instead of retrying forever.
func (r *Reconciler) launchWithRetry(ctx context.Context) (*domain.Member, error) {
	wait := r.retryInterval
	var lastErr error

	for attempt := 1; attempt <= r.launchAttempts; attempt++ {
		member, err := r.prov.Launch(ctx)
		if err == nil {
			return member, nil
		}
		lastErr = err

		r.logger.Warn("provisioning failed",
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err))

		if attempt == r.launchAttempts {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("provisioning aborted: %w", ctx.Err())
		case <-timer.C:
		}

		// Exponential backoff with cap
		wait *= 2
		if wait > r.retryMax {
			wait = r.retryMax
		}
	}

	return nil, fmt.Errorf("provisioning failed after %d attempts: %w", r.launchAttempts, lastErr)
}

// scaleDown terminates surplus members, worst candidates first: unhealthy,
// then never-healthy, then the youngest healthy ones.
func (r *Reconciler) scaleDown(ctx context.Context, active []*domain.Member, surplus int) {
	victims := make([]*domain.Member, len(active))
	copy(victims, active)
	sort.Slice(victims, func(i, j int) bool {
		ri, rj := victimRank(victims[i]), victimRank(victims[j])
		if ri != rj {
			return ri < rj
		}
		return victims[i].CreatedAt.After(victims[j].CreatedAt)
	})

	for i := 0; i < surplus && i < len(victims); i++ {
		v := victims[i]
		terminated, err := r.roster.MarkTerminated(v.ID, "")
		if err != nil {
			continue
		}
		r.persist(ctx, terminated)
		if err := r.prov.Terminate(ctx, v.ID); err != nil {
			r.logger.Warn("failed to terminate surplus member",
				logger.String("member_id", v.ID),
				logger.Error(err))
		}
		r.logger.Info("scaled down member",
			logger.String("member_id", v.ID),
			logger.String("state", string(v.State)))
	}

	r.syncGate(ctx)
}

func victimRank(m *domain.Member) int {
	switch m.State {
	case domain.StateUnhealthy:
		return 0
	case domain.StateUnknown:
		return 1
	default:
		return 2
	}
}

func (r *Reconciler) acquire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight[id] {
		return false
	}
	r.inFlight[id] = true
	return true
}

func (r *Reconciler) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inFlight, id)
}

func (r *Reconciler) persist(ctx context.Context, m *domain.Member) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveMember(ctx, m); err != nil {
		r.logger.Warn("failed to persist member",
			logger.String("member_id", m.ID),
			logger.Error(err))
	}
}

func (r *Reconciler) syncGate(ctx context.Context) {
	if r.gate != nil {
		r.gate.Sync(ctx)
	}
}
