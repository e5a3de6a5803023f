package pool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/steward-lb/steward/internal/domain"
)

// Roster is the live pool membership. It is the single owned copy of
// member state: writers mutate under the lock and every mutation bumps
// the version; readers take immutable snapshots and never block writers
// for longer than a copy.
type Roster struct {
	mu      sync.RWMutex
	name    string
	members map[string]*domain.Member // ID -> Member
	version uint64
}

// Snapshot is an immutable view of the roster at one version. The members
// are clones sorted by ID so iteration order is deterministic.
type Snapshot struct {
	Pool    string
	Version uint64
	TakenAt time.Time
	Members []*domain.Member
}

// NewRoster creates an empty roster for the named pool.
func NewRoster(name string) *Roster {
	return &Roster{
		name:    name,
		members: make(map[string]*domain.Member),
	}
}

// Name returns the pool name rules refer to.
func (r *Roster) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the current membership.
func (r *Roster) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*domain.Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m.Clone())
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	return Snapshot{
		Pool:    r.name,
		Version: r.version,
		TakenAt: time.Now(),
		Members: members,
	}
}

// Add registers a freshly provisioned member. Reconciler only.
func (r *Roster) Add(m *domain.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[m.ID] = m.Clone()
	r.version++
}

// Seed replaces the whole membership, used when re-seeding from the
// store on startup.
func (r *Roster) Seed(members []*domain.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = make(map[string]*domain.Member, len(members))
	for _, m := range members {
		r.members[m.ID] = m.Clone()
	}
	r.version++
}

// Get retrieves a member copy by ID.
func (r *Roster) Get(id string) (*domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// MarkTerminated flips a member out of service. The record stays around
// for visibility until the reaper deletes it. Reconciler only.
func (r *Roster) MarkTerminated(id, replacedBy string) (*domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return nil, fmt.Errorf("member not found: %s", id)
	}
	now := time.Now()
	m.State = domain.StateTerminated
	m.TerminatedAt = now
	m.UpdatedAt = now
	m.ReplacedBy = replacedBy
	r.version++
	return m.Clone(), nil
}

// LinkReplacement records which member took over for a terminated one.
func (r *Roster) LinkReplacement(oldID, newID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.members[oldID]; ok {
		m.ReplacedBy = newID
		m.UpdatedAt = time.Now()
		r.version++
	}
}

// Delete removes a member record entirely. Reaper only.
func (r *Roster) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, id)
	r.version++
}

// Observe applies one probe outcome to a member under the roster lock and
// returns the member copy plus the transition, if one occurred. Health
// gate only; it never touches membership.
func (r *Roster) Observe(id string, success bool, latency time.Duration, policy domain.HealthCheckPolicy) (*domain.Member, domain.Transition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok || m.State == domain.StateTerminated {
		return nil, domain.Transition{}, false
	}

	now := time.Now()
	m.LastProbeAt = now
	m.UpdatedAt = now
	if success {
		m.LastLatency = latency
	}

	t, changed := m.Observe(success, policy.HealthyThreshold, policy.UnhealthyThreshold)
	if changed {
		r.version++
	}
	return m.Clone(), t, changed
}

// Counts returns (total active, healthy) in one pass.
func (r *Roster) Counts() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total, healthy := 0, 0
	for _, m := range r.members {
		if !m.Active() {
			continue
		}
		total++
		if m.EligibleForTraffic() {
			healthy++
		}
	}
	return total, healthy
}

// Version returns the current roster version.
func (r *Roster) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.version
}

// Healthy returns the snapshot's traffic-eligible members, ID-sorted.
func (s Snapshot) Healthy() []*domain.Member {
	healthy := make([]*domain.Member, 0, len(s.Members))
	for _, m := range s.Members {
		if m.EligibleForTraffic() {
			healthy = append(healthy, m)
		}
	}
	return healthy
}

// Active returns the snapshot's non-terminated members.
func (s Snapshot) Active() []*domain.Member {
	active := make([]*domain.Member, 0, len(s.Members))
	for _, m := range s.Members {
		if m.Active() {
			active = append(active, m)
		}
	}
	return active
}
