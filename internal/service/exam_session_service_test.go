package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/anticheat"
	"github.com/stemsi/jlpt-proctor/internal/clock"
	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/exam"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

type fakeQuestions struct {
	n    int
	err  error
	last model.ExamMode
}

func (f *fakeQuestions) ListForExam(_ context.Context, level model.Level, mode model.ExamMode, limit int) ([]model.Question, error) {
	f.last = mode
	if f.err != nil {
		return nil, f.err
	}
	n := f.n
	if limit < n {
		n = limit
	}
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{ID: i + 1, Level: level, Prompt: "q", CorrectAnswer: model.AnswerA}
	}
	return qs, nil
}

type fakeHistory struct {
	limit, offset int
}

func (f *fakeHistory) ListByUser(_ context.Context, _ string, limit, offset int) ([]model.PracticeRecord, int, error) {
	f.limit, f.offset = limit, offset
	return []model.PracticeRecord{}, 0, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs map[string][]any
}

func (f *fakeQueue) Enqueue(_ context.Context, queue string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobs == nil {
		f.jobs = make(map[string][]any)
	}
	f.jobs[queue] = append(f.jobs[queue], v)
	return nil
}

func (f *fakeQueue) count(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs[queue])
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) Publish(_ context.Context, topic string, _ any) error {
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type harness struct {
	svc     *ExamSessionService
	clk     *clock.Fake
	queue   *fakeQueue
	pub     *fakePublisher
	history *fakeHistory
	store   *exam.MemoryStore
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{SessionIdleTimeout: 30 * time.Minute}
	}
	h := &harness{
		clk:     clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		queue:   &fakeQueue{},
		pub:     &fakePublisher{},
		history: &fakeHistory{},
		store:   exam.NewMemoryStore(),
	}
	h.svc = NewExamSessionService(cfg, ExamSessionDeps{
		Questions: &fakeQuestions{n: 5},
		History:   h.history,
		Store:     h.store,
		Queue:     h.queue,
		Events:    h.pub,
		Clock:     h.clk,
		Policy:    anticheat.DefaultConfig(),
	}, zerolog.Nop())
	t.Cleanup(h.svc.Shutdown)
	return h
}

func startReq(mode model.ExamMode) model.StartExamRequest {
	return model.StartExamRequest{ExamTitle: "JLPT N5 Mock", Level: "n5", Mode: mode}
}

func TestStartReusesOpenAttempt(t *testing.T) {
	h := newHarness(t, nil)

	first, resumed, err := h.svc.Start(context.Background(), "u1", startReq(model.ExamModePractice))
	if err != nil || resumed {
		t.Fatalf("Start() = %v, resumed=%v", err, resumed)
	}
	second, resumed, err := h.svc.Start(context.Background(), "u1", startReq(model.ExamModePractice))
	if err != nil || !resumed || second.ID() != first.ID() {
		t.Fatalf("second Start() = %v, resumed=%v, same=%v", err, resumed, second.ID() == first.ID())
	}

	other, resumed, err := h.svc.Start(context.Background(), "u2", startReq(model.ExamModePractice))
	if err != nil || resumed || other.ID() == first.ID() {
		t.Fatalf("Start() for another user reused the attempt")
	}
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  *fakeQuestions
		req     model.StartExamRequest
		wantErr error
	}{
		{"empty bank", &fakeQuestions{}, startReq(model.ExamModePractice), exam.ErrNoQuestions},
		{"bank failure", &fakeQuestions{err: errors.New("db down")}, startReq(model.ExamModePractice), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.svc.deps.Questions = tt.source
			_, _, err := h.svc.Start(context.Background(), "u1", tt.req)
			if err == nil {
				t.Fatal("Start() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Start() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetChecksOwnership(t *testing.T) {
	h := newHarness(t, nil)
	sess, _, err := h.svc.Start(context.Background(), "u1", startReq(model.ExamModePractice))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.svc.Get("u2", sess.ID()); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Get() by another user error = %v, want ErrNotOwner", err)
	}
	if _, err := h.svc.Get("u1", uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() unknown id error = %v, want ErrSessionNotFound", err)
	}
}

func TestSubmitEnqueuesHistoryAndPublishes(t *testing.T) {
	h := newHarness(t, nil)
	sess, _, err := h.svc.Start(context.Background(), "u1", startReq(model.ExamModePractice))
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.SelectAnswer(1, model.AnswerA); err != nil {
		t.Fatal(err)
	}

	res, err := h.svc.Submit("u1", sess.ID())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Score.CorrectAnswers != 1 {
		t.Errorf("CorrectAnswers = %d, want 1", res.Score.CorrectAnswers)
	}
	if n := h.queue.count(config.WorkerKey.PersistHistoryQueue); n != 1 {
		t.Errorf("history jobs = %d, want 1", n)
	}
	if n := h.pub.count(config.TopicFinalized); n != 1 {
		t.Errorf("finalized events = %d, want 1", n)
	}
	if _, err := h.svc.Submit("u1", sess.ID()); !errors.Is(err, exam.ErrFinalized) {
		t.Errorf("second Submit() error = %v, want ErrFinalized", err)
	}

	next, resumed, err := h.svc.Start(context.Background(), "u1", startReq(model.ExamModePractice))
	if err != nil || resumed || next.ID() == sess.ID() {
		t.Errorf("Start() after submit reused the finished attempt")
	}
}

func TestAbandonSkipsHistory(t *testing.T) {
	h := newHarness(t, nil)
	sess, _, err := h.svc.Start(context.Background(), "u1", startReq(model.ExamModeChallenge))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.svc.Abandon("u1", sess.ID()); err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	if n := h.queue.count(config.WorkerKey.PersistHistoryQueue); n != 0 {
		t.Errorf("history jobs = %d, want 0", n)
	}
	if n := h.pub.count(config.TopicFinalized); n != 1 {
		t.Errorf("finalized events = %d, want 1", n)
	}
}

func TestViolationsAreRecordedInChallengeOnly(t *testing.T) {
	tests := []struct {
		name        string
		mode        model.ExamMode
		inPractice  bool
		wantRecords int
	}{
		{"challenge", model.ExamModeChallenge, false, 1},
		{"practice", model.ExamModePractice, false, 0},
		{"practice with monitoring enabled", model.ExamModePractice, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &config.Config{SessionIdleTimeout: time.Hour, AntiCheatInPractice: tt.inPractice})
			sess, _, err := h.svc.Start(context.Background(), "u1", startReq(tt.mode))
			if err != nil {
				t.Fatal(err)
			}
			sess.Dispatch(&anticheat.PlatformEvent{Name: anticheat.EventVisibilityChange, Hidden: true})

			if n := h.queue.count(config.WorkerKey.PersistViolationsQueue); n != tt.wantRecords {
				t.Errorf("violation jobs = %d, want %d", n, tt.wantRecords)
			}
			if n := h.pub.count(config.TopicViolations); n != tt.wantRecords {
				t.Errorf("violation events = %d, want %d", n, tt.wantRecords)
			}
		})
	}
}

func TestPausePolicyThroughService(t *testing.T) {
	h := newHarness(t, nil)
	challenge, _, _ := h.svc.Start(context.Background(), "u1", startReq(model.ExamModeChallenge))
	if _, err := h.svc.Pause("u1", challenge.ID()); !errors.Is(err, exam.ErrPauseNotAllowed) {
		t.Errorf("Pause() in challenge error = %v, want ErrPauseNotAllowed", err)
	}

	req := startReq(model.ExamModePractice)
	req.ExamTitle = "Other"
	practice, _, _ := h.svc.Start(context.Background(), "u1", req)
	sess, err := h.svc.Pause("u1", practice.ID())
	if err != nil || !sess.View().Timer.IsPaused {
		t.Errorf("Pause() in practice = %v", err)
	}
}

func TestReap(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	practice, _, _ := h.svc.Start(ctx, "u1", startReq(model.ExamModePractice))
	challenge, _, _ := h.svc.Start(ctx, "u2", startReq(model.ExamModeChallenge))
	connected, _, _ := h.svc.Start(ctx, "u3", startReq(model.ExamModePractice))

	_, release, err := h.svc.Connect("u3", connected.ID())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	h.clk.Advance(31 * time.Minute)
	h.svc.Reap()

	if _, err := h.svc.Get("u1", practice.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("idle practice attempt still registered: %v", err)
	}
	if done, reason := challenge.Finalized(); !done || reason != model.FinalizeAbandoned {
		t.Errorf("idle challenge attempt = %v/%s, want abandoned", done, reason)
	}
	if _, err := h.svc.Get("u3", connected.ID()); err != nil {
		t.Errorf("connected attempt reaped: %v", err)
	}

	h.clk.Advance(finishedRetention)
	h.svc.Reap()
	if _, err := h.svc.Get("u2", challenge.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("finished attempt kept past retention: %v", err)
	}
}

func TestReapKeepsAttemptActiveOverREST(t *testing.T) {
	h := newHarness(t, nil)

	sess, _, err := h.svc.Start(context.Background(), "u1", startReq(model.ExamModeChallenge))
	if err != nil {
		t.Fatal(err)
	}

	answers := []model.Answer{model.AnswerA, model.AnswerB}
	for i := 0; i < 5; i++ {
		h.clk.Advance(7 * time.Minute)
		got, err := h.svc.Get("u1", sess.ID())
		if err != nil {
			t.Fatalf("Get() after %d min: %v", (i+1)*7, err)
		}
		if err := got.SelectAnswer(1, answers[i%2]); err != nil {
			t.Fatalf("SelectAnswer() after %d min: %v", (i+1)*7, err)
		}
		h.svc.Reap()
	}

	// 35 minutes of a 90 minute limit, no websocket ever attached.
	if done, reason := sess.Finalized(); done {
		t.Fatalf("attempt finalized as %s while answers were still arriving", reason)
	}

	h.clk.Advance(31 * time.Minute)
	h.svc.Reap()
	if done, reason := sess.Finalized(); !done || reason != model.FinalizeAbandoned {
		t.Errorf("attempt after going quiet = %v/%s, want abandoned", done, reason)
	}
}

func TestHistoryPaging(t *testing.T) {
	tests := []struct {
		page, perPage         int
		wantLimit, wantOffset int
	}{
		{1, 20, 20, 0},
		{3, 10, 10, 20},
		{0, 0, 20, 0},
		{2, 500, 20, 20},
	}

	h := newHarness(t, nil)
	for _, tt := range tests {
		if _, _, err := h.svc.History(context.Background(), "u1", tt.page, tt.perPage); err != nil {
			t.Fatal(err)
		}
		if h.history.limit != tt.wantLimit || h.history.offset != tt.wantOffset {
			t.Errorf("History(%d, %d) limit/offset = %d/%d, want %d/%d",
				tt.page, tt.perPage, h.history.limit, h.history.offset, tt.wantLimit, tt.wantOffset)
		}
	}
}
