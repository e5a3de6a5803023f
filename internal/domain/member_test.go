package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePromotesAfterConsecutiveSuccesses(t *testing.T) {
	m := &Member{ID: "m1", State: StateUnknown}

	_, changed := m.Observe(true, 2, 2)
	assert.False(t, changed, "a single success must not promote")
	assert.Equal(t, StateUnknown, m.State)
	assert.Equal(t, 1, m.ConsecutiveSuccesses)

	transition, changed := m.Observe(true, 2, 2)
	require.True(t, changed, "second consecutive success must promote")
	assert.Equal(t, StateUnknown, transition.From)
	assert.Equal(t, StateHealthy, transition.To)
	assert.Equal(t, StateHealthy, m.State)
}

func TestObserveFailureResetsSuccessStreak(t *testing.T) {
	m := &Member{ID: "m1", State: StateUnknown}

	m.Observe(true, 2, 2)
	m.Observe(false, 2, 2)
	assert.Equal(t, 0, m.ConsecutiveSuccesses, "failure must reset the success streak")
	assert.Equal(t, 1, m.ConsecutiveFailures)

	// The streak starts over: two fresh successes are required.
	_, changed := m.Observe(true, 2, 2)
	assert.False(t, changed)
	_, changed = m.Observe(true, 2, 2)
	assert.True(t, changed)
	assert.Equal(t, StateHealthy, m.State)
}

func TestObserveDemotesAfterConsecutiveFailures(t *testing.T) {
	m := &Member{ID: "m1", State: StateHealthy}

	_, changed := m.Observe(false, 2, 2)
	assert.False(t, changed, "a single failure must not demote")
	assert.Equal(t, StateHealthy, m.State)

	transition, changed := m.Observe(false, 2, 2)
	require.True(t, changed, "second consecutive failure must demote")
	assert.Equal(t, StateHealthy, transition.From)
	assert.Equal(t, StateUnhealthy, transition.To)
	assert.Equal(t, StateUnhealthy, m.State)
}

func TestObserveSuccessResetsFailureStreak(t *testing.T) {
	m := &Member{ID: "m1", State: StateHealthy}

	m.Observe(false, 2, 2)
	m.Observe(true, 2, 2)
	assert.Equal(t, 0, m.ConsecutiveFailures, "success must reset the failure streak")
	assert.Equal(t, StateHealthy, m.State)

	// One more failure is not enough after the reset.
	_, changed := m.Observe(false, 2, 2)
	assert.False(t, changed)
	assert.Equal(t, StateHealthy, m.State)
}

func TestObserveUnknownNeverBecomesUnhealthy(t *testing.T) {
	m := &Member{ID: "m1", State: StateUnknown}

	for i := 0; i < 10; i++ {
		_, changed := m.Observe(false, 2, 2)
		assert.False(t, changed)
	}
	assert.Equal(t, StateUnknown, m.State,
		"a member that was never healthy must stay unknown, not become unhealthy")
	assert.Equal(t, 10, m.ConsecutiveFailures)
}

func TestObserveUnhealthyRecovers(t *testing.T) {
	m := &Member{ID: "m1", State: StateUnhealthy}

	m.Observe(true, 2, 2)
	transition, changed := m.Observe(true, 2, 2)
	require.True(t, changed)
	assert.Equal(t, StateUnhealthy, transition.From)
	assert.Equal(t, StateHealthy, transition.To)
}

func TestActiveAndEligibleForTraffic(t *testing.T) {
	tests := []struct {
		state    HealthState
		active   bool
		eligible bool
	}{
		{StateUnknown, true, false},
		{StateHealthy, true, true},
		{StateUnhealthy, true, false},
		{StateTerminated, false, false},
	}

	for _, tt := range tests {
		m := &Member{ID: "m1", State: tt.state}
		assert.Equal(t, tt.active, m.Active(), "Active() for %s", tt.state)
		assert.Equal(t, tt.eligible, m.EligibleForTraffic(), "EligibleForTraffic() for %s", tt.state)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := &Member{ID: "m1", Addr: "127.0.0.1:8081", State: StateHealthy}
	c := m.Clone()

	c.State = StateUnhealthy
	c.Addr = "changed"

	assert.Equal(t, StateHealthy, m.State)
	assert.Equal(t, "127.0.0.1:8081", m.Addr)
}
