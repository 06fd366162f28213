package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

const recentViolationLimit = 100

// ViolationLister reads the violation audit log.
type ViolationLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.ViolationRecord, error)
}

// Subscriber streams raw event bus messages for a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// ActiveCounter reports how many attempts are live on this instance.
type ActiveCounter interface {
	Active() int
}

// MonitorService feeds the proctor dashboard.
type MonitorService struct {
	violations ViolationLister
	sub        Subscriber
	sessions   ActiveCounter
	log        zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(violations ViolationLister, sub Subscriber, sessions ActiveCounter, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		violations: violations,
		sub:        sub,
		sessions:   sessions,
		log:        log.With().Str("component", "monitor_service").Logger(),
	}
}

// MonitorSnapshot is the initial dashboard payload.
type MonitorSnapshot struct {
	ActiveSessions   int                     `json:"active_sessions"`
	RecentViolations []model.ViolationRecord `json:"recent_violations"`
	BySeverity       map[string]int          `json:"by_severity"`
}

// Snapshot returns the recent audit log with per-severity totals.
func (s *MonitorService) Snapshot(ctx context.Context, limit int) (*MonitorSnapshot, error) {
	if limit <= 0 || limit > recentViolationLimit {
		limit = recentViolationLimit
	}

	var (
		recent []model.ViolationRecord
		err    error
		active int
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		recent, err = s.violations.ListRecent(ctx, limit)
	}()
	if s.sessions != nil {
		active = s.sessions.Active()
	}
	wg.Wait()

	if err != nil {
		return nil, fmt.Errorf("list recent violations: %w", err)
	}

	snap := &MonitorSnapshot{
		ActiveSessions:   active,
		RecentViolations: recent,
		BySeverity:       make(map[string]int),
	}
	for _, v := range recent {
		snap.BySeverity[v.Severity]++
	}
	return snap, nil
}

// StreamViolations delivers violations as they are published until ctx ends.
func (s *MonitorService) StreamViolations(ctx context.Context) (<-chan model.ViolationRecord, error) {
	msgs, err := s.sub.Subscribe(ctx, config.TopicViolations)
	if err != nil {
		return nil, fmt.Errorf("subscribe violations: %w", err)
	}

	out := make(chan model.ViolationRecord, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec model.ViolationRecord
				if err := json.Unmarshal(msg.Payload, &rec); err != nil {
					s.log.Warn().Err(err).Msg("Skipping malformed violation event")
					msg.Ack()
					continue
				}
				msg.Ack()
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
