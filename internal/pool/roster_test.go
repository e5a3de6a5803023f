package pool

import (
	"testing"
	"time"

	"github.com/steward-lb/steward/internal/domain"
)

func testPolicy() domain.HealthCheckPolicy {
	return domain.DefaultHealthCheckPolicy()
}

func TestRosterAddGetAndVersion(t *testing.T) {
	r := NewRoster("web")

	if v := r.Version(); v != 0 {
		t.Fatalf("fresh roster version = %d, want 0", v)
	}

	r.Add(&domain.Member{ID: "m1", Addr: "127.0.0.1:8081", State: domain.StateUnknown})
	if v := r.Version(); v != 1 {
		t.Errorf("version after Add = %d, want 1", v)
	}

	m, ok := r.Get("m1")
	if !ok {
		t.Fatal("Get(m1) returned not found")
	}
	if m.Addr != "127.0.0.1:8081" {
		t.Errorf("got addr %s, want 127.0.0.1:8081", m.Addr)
	}

	if _, ok := r.Get("nope"); ok {
		t.Error("Get(nope) returned found, want not found")
	}
}

func TestRosterGetReturnsCopy(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "m1", State: domain.StateHealthy})

	m, _ := r.Get("m1")
	m.State = domain.StateUnhealthy

	again, _ := r.Get("m1")
	if again.State != domain.StateHealthy {
		t.Errorf("mutating a Get copy leaked into the roster: state = %s", again.State)
	}
}

func TestSnapshotSortedAndImmutable(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "m3", State: domain.StateHealthy})
	r.Add(&domain.Member{ID: "m1", State: domain.StateHealthy})
	r.Add(&domain.Member{ID: "m2", State: domain.StateHealthy})

	snap := r.Snapshot()
	if snap.Pool != "web" {
		t.Errorf("snapshot pool = %s, want web", snap.Pool)
	}
	if len(snap.Members) != 3 {
		t.Fatalf("snapshot has %d members, want 3", len(snap.Members))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if snap.Members[i].ID != want {
			t.Errorf("snapshot[%d].ID = %s, want %s", i, snap.Members[i].ID, want)
		}
	}

	// Mutating snapshot members must not touch the roster.
	snap.Members[0].State = domain.StateTerminated
	if m, _ := r.Get("m1"); m.State != domain.StateHealthy {
		t.Errorf("snapshot mutation leaked into the roster: state = %s", m.State)
	}
}

func TestMarkTerminated(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "m1", State: domain.StateUnhealthy})

	m, err := r.MarkTerminated("m1", "m2")
	if err != nil {
		t.Fatalf("MarkTerminated failed: %v", err)
	}
	if m.State != domain.StateTerminated {
		t.Errorf("state = %s, want terminated", m.State)
	}
	if m.TerminatedAt.IsZero() {
		t.Error("TerminatedAt not set")
	}
	if m.ReplacedBy != "m2" {
		t.Errorf("ReplacedBy = %s, want m2", m.ReplacedBy)
	}

	if _, err := r.MarkTerminated("ghost", ""); err == nil {
		t.Error("MarkTerminated(ghost) returned nil error, want not found")
	}
}

func TestLinkReplacement(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "old", State: domain.StateUnhealthy})

	if _, err := r.MarkTerminated("old", ""); err != nil {
		t.Fatalf("MarkTerminated failed: %v", err)
	}
	r.LinkReplacement("old", "new")

	m, _ := r.Get("old")
	if m.ReplacedBy != "new" {
		t.Errorf("ReplacedBy = %s, want new", m.ReplacedBy)
	}

	// Unknown old ID is a no-op.
	r.LinkReplacement("ghost", "new")
}

func TestObserveTransitions(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "m1", State: domain.StateUnknown})
	policy := testPolicy()

	_, _, changed := r.Observe("m1", true, 5*time.Millisecond, policy)
	if changed {
		t.Error("first success must not transition")
	}

	m, transition, changed := r.Observe("m1", true, 5*time.Millisecond, policy)
	if !changed {
		t.Fatal("second consecutive success must transition")
	}
	if transition.From != domain.StateUnknown || transition.To != domain.StateHealthy {
		t.Errorf("transition = %s -> %s, want unknown -> healthy", transition.From, transition.To)
	}
	if m.State != domain.StateHealthy {
		t.Errorf("state = %s, want healthy", m.State)
	}
	if m.LastProbeAt.IsZero() {
		t.Error("LastProbeAt not set")
	}
	if m.LastLatency != 5*time.Millisecond {
		t.Errorf("LastLatency = %v, want 5ms", m.LastLatency)
	}
}

func TestObserveIgnoresTerminated(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "m1", State: domain.StateUnhealthy})
	if _, err := r.MarkTerminated("m1", ""); err != nil {
		t.Fatalf("MarkTerminated failed: %v", err)
	}

	m, _, changed := r.Observe("m1", true, 0, testPolicy())
	if m != nil || changed {
		t.Error("Observe on a terminated member must be a no-op")
	}
}

func TestCounts(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "m1", State: domain.StateHealthy})
	r.Add(&domain.Member{ID: "m2", State: domain.StateUnknown})
	r.Add(&domain.Member{ID: "m3", State: domain.StateUnhealthy})
	r.Add(&domain.Member{ID: "m4", State: domain.StateUnhealthy})
	if _, err := r.MarkTerminated("m4", ""); err != nil {
		t.Fatalf("MarkTerminated failed: %v", err)
	}

	total, healthy := r.Counts()
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if healthy != 1 {
		t.Errorf("healthy = %d, want 1", healthy)
	}
}

func TestSeedReplacesMembership(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "stale", State: domain.StateHealthy})

	r.Seed([]*domain.Member{
		{ID: "a", State: domain.StateUnknown},
		{ID: "b", State: domain.StateUnknown},
	})

	if _, ok := r.Get("stale"); ok {
		t.Error("Seed must drop previous members")
	}
	total, _ := r.Counts()
	if total != 2 {
		t.Errorf("total after seed = %d, want 2", total)
	}
}

func TestDelete(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "m1", State: domain.StateHealthy})

	before := r.Version()
	r.Delete("m1")
	if _, ok := r.Get("m1"); ok {
		t.Error("member still present after Delete")
	}
	if r.Version() <= before {
		t.Error("Delete must bump the version")
	}
}

func TestSnapshotHealthyAndActive(t *testing.T) {
	r := NewRoster("web")
	r.Add(&domain.Member{ID: "m1", State: domain.StateHealthy})
	r.Add(&domain.Member{ID: "m2", State: domain.StateUnknown})
	r.Add(&domain.Member{ID: "m3", State: domain.StateUnhealthy})
	r.Add(&domain.Member{ID: "m4", State: domain.StateHealthy})
	if _, err := r.MarkTerminated("m3", ""); err != nil {
		t.Fatalf("MarkTerminated failed: %v", err)
	}

	snap := r.Snapshot()

	healthy := snap.Healthy()
	if len(healthy) != 2 {
		t.Fatalf("healthy = %d, want 2", len(healthy))
	}
	if healthy[0].ID != "m1" || healthy[1].ID != "m4" {
		t.Errorf("healthy order = [%s %s], want [m1 m4]", healthy[0].ID, healthy[1].ID)
	}

	active := snap.Active()
	if len(active) != 3 {
		t.Errorf("active = %d, want 3", len(active))
	}
}
