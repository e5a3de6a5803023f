package domain

import "time"

// HealthCheckPolicy is the probe configuration. It is fixed at startup
// and evaluated continuously by the health gate.
type HealthCheckPolicy struct {
	Path               string        // path probed on each member
	ExpectStatus       int           // HTTP status counted as a success
	Interval           time.Duration // time between probes per member
	Timeout            time.Duration // per-attempt budget; exceeding it is a failure
	HealthyThreshold   int           // consecutive successes to become healthy
	UnhealthyThreshold int           // consecutive failures to become unhealthy
}

// DefaultHealthCheckPolicy is the stock probe configuration: 15s
// interval, 3s timeout, threshold 2 in both directions.
func DefaultHealthCheckPolicy() HealthCheckPolicy {
	return HealthCheckPolicy{
		Path:               "/",
		ExpectStatus:       200,
		Interval:           15 * time.Second,
		Timeout:            3 * time.Second,
		HealthyThreshold:   2,
		UnhealthyThreshold: 2,
	}
}
