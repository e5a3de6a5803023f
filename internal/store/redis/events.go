package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steward-lb/steward/internal/domain"
)

// MaxHealthEvents caps the health transition log.
const MaxHealthEvents = 1000

// HealthEvent is one recorded health state transition. The capped list in
// Redis is the visibility trail for members that never became healthy or
// flapped out of service.
type HealthEvent struct {
	MemberID string             `json:"member_id"`
	Addr     string             `json:"addr"`
	From     domain.HealthState `json:"from"`
	To       domain.HealthState `json:"to"`
	At       time.Time          `json:"at"`
}

// RecordHealthEvent prepends an event to the capped transition list.
func (s *Store) RecordHealthEvent(ctx context.Context, event HealthEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal health event: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, HealthEventsKey(), data)
	pipe.LTrim(ctx, HealthEventsKey(), 0, MaxHealthEvents-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record health event: %w", err)
	}

	return nil
}

// RecentHealthEvents returns up to n most recent transitions, newest first.
func (s *Store) RecentHealthEvents(ctx context.Context, n int) ([]HealthEvent, error) {
	if n <= 0 || n > MaxHealthEvents {
		n = MaxHealthEvents
	}

	raw, err := s.client.LRange(ctx, HealthEventsKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read health events: %w", err)
	}

	events := make([]HealthEvent, 0, len(raw))
	for _, item := range raw {
		var event HealthEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			// Skip malformed entries rather than failing the whole read
			continue
		}
		events = append(events, event)
	}

	return events, nil
}
