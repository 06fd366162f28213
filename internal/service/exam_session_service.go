package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/anticheat"
	"github.com/stemsi/jlpt-proctor/internal/clock"
	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/events"
	"github.com/stemsi/jlpt-proctor/internal/exam"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

var (
	ErrSessionNotFound = errors.New("exam session not found")
	ErrNotOwner        = errors.New("exam session belongs to another user")
)

const (
	sideEffectTimeout = 3 * time.Second
	// finishedRetention keeps finalized attempts around so a reconnecting
	// client can still read its result.
	finishedRetention = 5 * time.Minute
	reapInterval      = time.Minute
)

// QuestionSource draws the questions of an attempt.
type QuestionSource interface {
	ListForExam(ctx context.Context, level model.Level, mode model.ExamMode, limit int) ([]model.Question, error)
}

// HistoryReader pages through finished attempts.
type HistoryReader interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.PracticeRecord, int, error)
}

// Enqueuer hands records to the persistence workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, v any) error
}

// ExamSessionDeps are the collaborators of ExamSessionService.
type ExamSessionDeps struct {
	Questions QuestionSource
	History   HistoryReader
	Store     exam.Store
	Queue     Enqueuer
	Events    events.Publisher
	Clock     clock.Clock
	Policy    anticheat.Config
}

type liveSession struct {
	session    *exam.Session
	activeKey  string
	clients    int
	lastSeen   time.Time
	finishedAt time.Time
}

// ExamSessionService owns every live attempt on this instance.
type ExamSessionService struct {
	cfg  *config.Config
	deps ExamSessionDeps
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*liveSession
	active   map[string]uuid.UUID
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(cfg *config.Config, deps ExamSessionDeps, log zerolog.Logger) *ExamSessionService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Store == nil {
		deps.Store = exam.NewMemoryStore()
	}
	return &ExamSessionService{
		cfg:      cfg,
		deps:     deps,
		log:      log.With().Str("component", "exam_session_service").Logger(),
		sessions: make(map[uuid.UUID]*liveSession),
		active:   make(map[string]uuid.UUID),
	}
}

// Start begins an attempt, or returns the user's open attempt for the same
// exam title. The second return reports whether an existing attempt was reused.
func (s *ExamSessionService) Start(ctx context.Context, userID string, req model.StartExamRequest) (*exam.Session, bool, error) {
	level, err := model.ParseLevel(req.Level)
	if err != nil {
		return nil, false, err
	}
	activeKey := config.CacheKey.ActiveSessionKey(userID, req.ExamTitle)

	if sess := s.activeSession(activeKey); sess != nil {
		return sess, true, nil
	}

	minutes, unlimited := model.TimeLimitFor(level, req.Mode, req.TimeMode, req.CustomMinutes)
	questions, err := s.deps.Questions.ListForExam(ctx, level, req.Mode, model.QuestionCountFor(level, req.Mode))
	if err != nil {
		return nil, false, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, false, exam.ErrNoQuestions
	}

	sess, err := exam.NewSession(ctx, exam.Options{
		UserID:       userID,
		ExamTitle:    req.ExamTitle,
		Level:        level,
		Mode:         req.Mode,
		TimeLimit:    minutes,
		Unlimited:    unlimited,
		Questions:    questions,
		AntiCheat:    s.policyFor(req.Mode),
		StoreKey:     config.CacheKey.ExamStateKey(userID, req.ExamTitle),
		SaveDebounce: s.cfg.SaveDebounce,
	}, exam.Deps{
		Clock:       s.deps.Clock,
		Store:       s.deps.Store,
		Log:         s.log,
		OnFinalize:  s.onFinalize,
		OnViolation: s.onViolation,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	if id, ok := s.active[activeKey]; ok {
		if live, ok := s.sessions[id]; ok {
			// Lost a concurrent start; keep the winner.
			s.mu.Unlock()
			sess.Close()
			return live.session, true, nil
		}
	}
	s.sessions[sess.ID()] = &liveSession{
		session:   sess,
		activeKey: activeKey,
		lastSeen:  s.deps.Clock.Now(),
	}
	s.active[activeKey] = sess.ID()
	s.mu.Unlock()

	if err := sess.Start(); err != nil {
		return nil, false, fmt.Errorf("start session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID().String()).
		Str("user_id", userID).
		Str("level", string(level)).
		Str("mode", string(req.Mode)).
		Int("questions", len(questions)).
		Msg("Exam attempt started")

	return sess, false, nil
}

// Get returns the user's attempt by id. Every lookup counts as activity for
// the idle reaper.
func (s *ExamSessionService) Get(userID string, id uuid.UUID) (*exam.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if live.session.UserID() != userID {
		return nil, ErrNotOwner
	}
	live.lastSeen = s.deps.Clock.Now()
	return live.session, nil
}

// Connect marks a client as attached to the attempt. The returned function
// must be called when the client goes away.
func (s *ExamSessionService) Connect(userID string, id uuid.UUID) (*exam.Session, func(), error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	if live, ok := s.sessions[id]; ok {
		live.clients++
		live.lastSeen = s.deps.Clock.Now()
	}
	s.mu.Unlock()

	var once sync.Once
	return sess, func() {
		once.Do(func() {
			s.mu.Lock()
			if live, ok := s.sessions[id]; ok {
				live.clients--
				live.lastSeen = s.deps.Clock.Now()
			}
			s.mu.Unlock()
		})
	}, nil
}

func (s *ExamSessionService) Pause(userID string, id uuid.UUID) (*exam.Session, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	return sess, sess.Pause()
}

func (s *ExamSessionService) Resume(userID string, id uuid.UUID) (*exam.Session, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	return sess, sess.Resume()
}

// Submit finalizes the attempt manually and returns its result.
func (s *ExamSessionService) Submit(userID string, id uuid.UUID) (exam.Result, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return exam.Result{}, err
	}
	return sess.Submit()
}

// Abandon ends the attempt without a result.
func (s *ExamSessionService) Abandon(userID string, id uuid.UUID) error {
	sess, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	return sess.Abandon()
}

func (s *ExamSessionService) ResetViolations(userID string, id uuid.UUID) (*exam.Session, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}
	return sess, sess.ResetViolations()
}

// History returns a page of the user's finished attempts.
func (s *ExamSessionService) History(ctx context.Context, userID string, page, perPage int) ([]model.PracticeRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	records, total, err := s.deps.History.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	return records, total, nil
}

// Active returns how many unfinished attempts are registered.
func (s *ExamSessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, live := range s.sessions {
		if live.finishedAt.IsZero() {
			n++
		}
	}
	return n
}

// RunReaper periodically drops finished attempts and closes abandoned ones
// until ctx is cancelled.
func (s *ExamSessionService) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap()
		}
	}
}

// Reap runs one cleanup pass. Finished attempts are forgotten after a short
// retention. Idle practice attempts are closed with their progress saved;
// idle challenge attempts are abandoned.
func (s *ExamSessionService) Reap() {
	now := s.deps.Clock.Now()

	var closeList, abandonList []*exam.Session
	s.mu.Lock()
	for id, live := range s.sessions {
		if done, _ := live.session.Finalized(); done {
			if !live.finishedAt.IsZero() && now.Sub(live.finishedAt) >= finishedRetention {
				delete(s.sessions, id)
			}
			continue
		}
		if live.clients > 0 || now.Sub(live.lastSeen) < s.cfg.SessionIdleTimeout {
			continue
		}
		if live.session.Mode() == model.ExamModeChallenge {
			abandonList = append(abandonList, live.session)
			continue
		}
		s.dropLocked(id, live)
		closeList = append(closeList, live.session)
	}
	s.mu.Unlock()

	for _, sess := range closeList {
		sess.Close()
		s.log.Info().Str("session_id", sess.ID().String()).Msg("Idle practice attempt closed")
	}
	for _, sess := range abandonList {
		_ = sess.Abandon()
		s.log.Info().Str("session_id", sess.ID().String()).Msg("Idle challenge attempt abandoned")
	}
}

// Shutdown closes every open attempt, saving practice progress.
func (s *ExamSessionService) Shutdown() {
	s.mu.Lock()
	all := make([]*exam.Session, 0, len(s.sessions))
	for _, live := range s.sessions {
		all = append(all, live.session)
	}
	s.sessions = make(map[uuid.UUID]*liveSession)
	s.active = make(map[string]uuid.UUID)
	s.mu.Unlock()

	for _, sess := range all {
		sess.Close()
	}
	s.log.Info().Int("sessions", len(all)).Msg("Exam sessions closed")
}

func (s *ExamSessionService) activeSession(key string) *exam.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.active[key]
	if !ok {
		return nil
	}
	live, ok := s.sessions[id]
	if !ok {
		delete(s.active, key)
		return nil
	}
	if done, _ := live.session.Finalized(); done {
		return nil
	}
	return live.session
}

func (s *ExamSessionService) dropLocked(id uuid.UUID, live *liveSession) {
	delete(s.sessions, id)
	if s.active[live.activeKey] == id {
		delete(s.active, live.activeKey)
	}
}

// policyFor returns a private copy of the anti-cheat policy for one attempt.
func (s *ExamSessionService) policyFor(mode model.ExamMode) anticheat.Config {
	cfg := s.deps.Policy
	cfg.BlockedShortcuts = append([]anticheat.Shortcut(nil), s.deps.Policy.BlockedShortcuts...)
	cfg.IsActive = cfg.IsActive && (mode == model.ExamModeChallenge || s.cfg.AntiCheatInPractice)
	return cfg
}

func (s *ExamSessionService) onFinalize(res exam.Result) {
	s.mu.Lock()
	if live, ok := s.sessions[res.SessionID]; ok {
		live.finishedAt = s.deps.Clock.Now()
		if s.active[live.activeKey] == res.SessionID {
			delete(s.active, live.activeKey)
		}
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	log := s.log.With().Str("session_id", res.SessionID.String()).Logger()
	if res.Reason != model.FinalizeAbandoned && s.deps.Queue != nil {
		if err := s.deps.Queue.Enqueue(ctx, config.WorkerKey.PersistHistoryQueue, res.Record()); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue practice history")
		}
	}
	if s.deps.Events != nil {
		if err := s.deps.Events.Publish(ctx, config.TopicFinalized, res); err != nil {
			log.Warn().Err(err).Msg("Failed to publish finalized event")
		}
	}
}

func (s *ExamSessionService) onViolation(sess *exam.Session, v anticheat.Violation) {
	rec := model.ViolationRecord{
		SessionID:  sess.ID(),
		UserID:     sess.UserID(),
		ExamTitle:  sess.ExamTitle(),
		Mode:       sess.Mode(),
		Type:       string(v.Type),
		Severity:   string(v.Severity),
		Message:    v.Message,
		Details:    v.Details,
		OccurredAt: v.Timestamp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	log := s.log.With().Str("session_id", rec.SessionID.String()).Logger()
	if s.deps.Queue != nil {
		if err := s.deps.Queue.Enqueue(ctx, config.WorkerKey.PersistViolationsQueue, rec); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue violation")
		}
	}
	if s.deps.Events != nil {
		if err := s.deps.Events.Publish(ctx, config.TopicViolations, rec); err != nil {
			log.Warn().Err(err).Msg("Failed to publish violation event")
		}
	}
}
