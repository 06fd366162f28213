package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/events"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

type fakeLister struct {
	recs  []model.ViolationRecord
	limit int
}

func (f *fakeLister) ListRecent(_ context.Context, limit int) ([]model.ViolationRecord, error) {
	f.limit = limit
	return f.recs, nil
}

type fixedCounter int

func (c fixedCounter) Active() int { return int(c) }

func TestMonitorSnapshot(t *testing.T) {
	lister := &fakeLister{recs: []model.ViolationRecord{
		{Type: "TAB_SWITCH", Severity: "high"},
		{Type: "WINDOW_BLUR", Severity: "medium"},
		{Type: "FULLSCREEN_EXIT", Severity: "high"},
	}}
	svc := NewMonitorService(lister, nil, fixedCounter(4), zerolog.Nop())

	snap, err := svc.Snapshot(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if lister.limit != recentViolationLimit {
		t.Errorf("limit = %d, want %d", lister.limit, recentViolationLimit)
	}
	if snap.ActiveSessions != 4 {
		t.Errorf("ActiveSessions = %d, want 4", snap.ActiveSessions)
	}
	if snap.BySeverity["high"] != 2 || snap.BySeverity["medium"] != 1 {
		t.Errorf("BySeverity = %v", snap.BySeverity)
	}
}

func TestMonitorStreamsPublishedViolations(t *testing.T) {
	bus := events.NewInProcessBus(zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	svc := NewMonitorService(&fakeLister{}, bus, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := svc.StreamViolations(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := model.ViolationRecord{SessionID: uuid.New(), UserID: "u1", Type: "COPY_PASTE", Severity: "high"}
	if err := bus.Publish(ctx, config.TopicViolations, want); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-stream:
		if got.SessionID != want.SessionID || got.Type != want.Type {
			t.Errorf("streamed %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no violation streamed")
	}

	cancel()
	select {
	case _, ok := <-stream:
		if ok {
			t.Error("stream delivered after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after cancel")
	}
}
