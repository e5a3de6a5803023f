package domain

import "time"

// HealthState is a member's eligibility for traffic as decided by the
// health gate.
type HealthState string

const (
	// StateUnknown is the initial state of a freshly provisioned member.
	// It has not yet accumulated enough probe history to take traffic.
	StateUnknown HealthState = "unknown"

	// StateHealthy means the member passed HealthyThreshold consecutive
	// probes and is eligible for traffic.
	StateHealthy HealthState = "healthy"

	// StateUnhealthy means a previously healthy member failed
	// UnhealthyThreshold consecutive probes. It stays in the pool until
	// the reconciler replaces it.
	StateUnhealthy HealthState = "unhealthy"

	// StateTerminated marks a member the reconciler has torn down. The
	// record is kept for visibility until the reaper deletes it.
	StateTerminated HealthState = "terminated"
)

// Member represents one unit of serving capacity behind the listener.
//
// Ownership is split: the reconciler is the only writer of membership
// (creation, termination); the health gate only mutates probe counters
// and State. All mutation goes through the pool roster.
type Member struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the canonical unique identifier, assigned at launch.
	ID string

	// Addr is the host:port the member serves on.
	// Example: 127.0.0.1:8081
	Addr string

	// Port is the member's listening port.
	Port int

	// ─────────────────────────────
	// Health observation
	// (owned by the health gate)
	// ─────────────────────────────

	// State is the current traffic eligibility.
	State HealthState

	// ConsecutiveSuccesses counts successful probes since the last failure.
	ConsecutiveSuccesses int

	// ConsecutiveFailures counts failed probes since the last success.
	ConsecutiveFailures int

	// LastProbeAt is updated on every probe attempt.
	LastProbeAt time.Time

	// LastLatency is the duration of the most recent successful probe.
	LastLatency time.Duration

	// ─────────────────────────────
	// Lifecycle
	// ─────────────────────────────

	// CreatedAt is when the member was provisioned.
	CreatedAt time.Time

	// UpdatedAt is updated on any mutation.
	UpdatedAt time.Time

	// TerminatedAt is set when the reconciler tears the member down.
	TerminatedAt time.Time

	// ReplacedBy holds the ID of the replacement member, if any.
	ReplacedBy string
}

// Transition describes a health state change produced by a probe outcome.
type Transition struct {
	From HealthState
	To   HealthState
}

// Observe applies one probe outcome to the member's counters and returns
// the resulting state transition, if any.
//
// Transition rules:
//   - unknown/unhealthy -> healthy after healthyThreshold consecutive successes
//   - healthy -> unhealthy after unhealthyThreshold consecutive failures
//
// There is no dampening beyond the two counters. An unknown member that
// keeps failing stays unknown: unhealthy is reachable only from healthy.
func (m *Member) Observe(success bool, healthyThreshold, unhealthyThreshold int) (Transition, bool) {
	if success {
		m.ConsecutiveSuccesses++
		m.ConsecutiveFailures = 0
		if m.State != StateHealthy && m.ConsecutiveSuccesses >= healthyThreshold {
			t := Transition{From: m.State, To: StateHealthy}
			m.State = StateHealthy
			return t, true
		}
		return Transition{}, false
	}

	m.ConsecutiveFailures++
	m.ConsecutiveSuccesses = 0
	if m.State == StateHealthy && m.ConsecutiveFailures >= unhealthyThreshold {
		t := Transition{From: m.State, To: StateUnhealthy}
		m.State = StateUnhealthy
		return t, true
	}
	return Transition{}, false
}

// Active reports whether the member counts toward pool size.
func (m *Member) Active() bool {
	return m.State != StateTerminated
}

// EligibleForTraffic reports whether the listener may forward requests
// to this member.
func (m *Member) EligibleForTraffic() bool {
	return m.State == StateHealthy
}

// Clone returns a copy so roster snapshots stay immutable for readers.
func (m *Member) Clone() *Member {
	c := *m
	return &c
}
