package exam

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
	"github.com/stemsi/jlpt-proctor/internal/model"
	"github.com/stemsi/jlpt-proctor/internal/results"
	"github.com/stemsi/jlpt-proctor/internal/timer"
)

var (
	ErrNoQuestions       = errors.New("exam has no questions")
	ErrPauseNotAllowed   = errors.New("pausing is not allowed in challenge mode")
	ErrFinalized         = errors.New("exam attempt already finalized")
	ErrBlocked           = errors.New("exam attempt is blocked")
	ErrQuestionNotFound  = errors.New("question not found in this attempt")
	ErrInvalidAnswer     = errors.New("answer must be one of A, B, C, D")
	ErrResetNotAllowed   = errors.New("violations can only be reset before the first answer")
	ErrNoFlaggedQuestion = errors.New("no flagged question")
)

const storeTimeout = 3 * time.Second

// Options describe one attempt.
type Options struct {
	ID        uuid.UUID
	UserID    string
	ExamTitle string
	Level     model.Level
	Mode      model.ExamMode
	TimeLimit int // minutes, ignored when Unlimited
	Unlimited bool
	Questions []model.Question
	AntiCheat anticheat.Config
	// StoreKey is where practice progress is persisted.
	StoreKey     string
	SaveDebounce time.Duration
	SaveMaxWait  time.Duration
}

// Deps are the collaborators of a Session.
type Deps struct {
	Clock clock.Clock
	Store Store
	Log   zerolog.Logger
	// OnFinalize receives the result of the attempt exactly once.
	OnFinalize func(Result)
	// OnViolation observes every recorded violation.
	OnViolation func(*Session, anticheat.Violation)
}

// Result is the outcome of a finalized attempt.
type Result struct {
	SessionID        uuid.UUID             `json:"session_id"`
	UserID           string                `json:"user_id"`
	ExamTitle        string                `json:"exam_title"`
	Level            model.Level           `json:"level"`
	Mode             model.ExamMode        `json:"mode"`
	Reason           model.FinalizeReason  `json:"reason"`
	Score            results.Score         `json:"score"`
	Answers          map[int]model.Answer  `json:"answers"`
	TimeSpentSeconds int                   `json:"time_spent"`
	TimeLimitSeconds int                   `json:"time_limit"`
	Violations       []anticheat.Violation `json:"violations"`
	StartedAt        time.Time             `json:"started_at"`
	FinishedAt       time.Time             `json:"finished_at"`
}

// Record converts the result into a practice history row.
func (r Result) Record() model.PracticeRecord {
	return model.PracticeRecord{
		ID:                  r.SessionID,
		UserID:              r.UserID,
		ExamTitle:           r.ExamTitle,
		Level:               r.Level,
		Mode:                r.Mode,
		Reason:              r.Reason,
		TotalQuestions:      r.Score.TotalQuestions,
		CorrectAnswers:      r.Score.CorrectAnswers,
		IncorrectAnswers:    r.Score.IncorrectAnswers,
		UnansweredQuestions: r.Score.UnansweredQuestions,
		Percentage:          r.Score.Percentage,
		Status:              r.Score.Status,
		TimeSpentSeconds:    r.TimeSpentSeconds,
		TimeLimitSeconds:    r.TimeLimitSeconds,
		ViolationCount:      len(r.Violations),
		Answers:             r.Answers,
		FinishedAt:          r.FinishedAt,
	}
}

// View is a read-only snapshot of the attempt.
type View struct {
	SessionID       uuid.UUID            `json:"session_id"`
	ExamTitle       string               `json:"exam_title"`
	Level           model.Level          `json:"level"`
	Mode            model.ExamMode       `json:"mode"`
	Questions       []model.Question     `json:"questions"`
	CurrentQuestion int                  `json:"current_question"`
	Answers         map[int]model.Answer `json:"answers"`
	Flagged         []int                `json:"flagged"`
	Timer           timer.State          `json:"timer"`
	TimeDisplay     string               `json:"time_display"`
	AntiCheat       anticheat.State      `json:"anti_cheat"`
	Stats           Stats                `json:"stats"`
	Finalized       bool                 `json:"finalized"`
	Reason          model.FinalizeReason `json:"reason,omitempty"`
	Result          *Result              `json:"result,omitempty"`
}

// Session is one live exam attempt.
type Session struct {
	id        uuid.UUID
	userID    string
	examTitle string
	level     model.Level
	mode      model.ExamMode
	questions []model.Question
	storeKey  string
	startedAt time.Time

	clk      clock.Clock
	store    Store
	log      zerolog.Logger
	deps     Deps
	timer    *timer.ExamTimer
	monitor  *anticheat.Monitor
	bus      *anticheat.Bus
	platform *clientPlatform
	debounce *Debouncer
	final    Finalizer
	watchers watchers

	// saveMu orders in-flight progress writes against the removal at finalize.
	saveMu sync.Mutex

	mu     sync.Mutex
	state  State
	result *Result
}

// NewSession builds an attempt. Practice mode restores persisted progress;
// challenge mode discards it. The session is inert until Start.
func NewSession(ctx context.Context, opts Options, deps Deps) (*Session, error) {
	if len(opts.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Store == nil {
		deps.Store = NewMemoryStore()
	}
	if opts.ID == uuid.Nil {
		opts.ID = uuid.New()
	}
	if opts.SaveDebounce <= 0 {
		opts.SaveDebounce = DefaultSaveDebounce
	}
	if opts.SaveMaxWait <= 0 {
		opts.SaveMaxWait = DefaultSaveMaxWait
	}

	s := &Session{
		id:        opts.ID,
		userID:    opts.UserID,
		examTitle: opts.ExamTitle,
		level:     opts.Level,
		mode:      opts.Mode,
		questions: opts.Questions,
		storeKey:  opts.StoreKey,
		startedAt: deps.Clock.Now(),
		clk:       deps.Clock,
		store:     deps.Store,
		deps:      deps,
		log: deps.Log.With().
			Str("component", "exam_session").
			Str("session_id", opts.ID.String()).
			Str("mode", string(opts.Mode)).
			Logger(),
		platform: &clientPlatform{},
		debounce: NewDebouncer(deps.Clock, opts.SaveDebounce, opts.SaveMaxWait),
		state:    NewState(),
	}

	var initial *int
	if opts.Mode == model.ExamModePractice {
		initial = s.restore(ctx)
	} else if s.storeKey != "" {
		if err := s.store.Remove(ctx, s.storeKey); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear persisted state")
		}
	}

	t, err := timer.New(timer.Config{
		TimeLimit:            opts.TimeLimit,
		Mode:                 opts.Mode,
		InitialTimeRemaining: initial,
		Unlimited:            opts.Unlimited,
	}, deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("create exam timer: %w", err)
	}
	s.timer = t

	s.monitor = anticheat.New(opts.AntiCheat, deps.Clock, s.platform, anticheat.Hooks{
		OnViolation:     s.handleViolation,
		OnMaxViolations: func() { s.finalize(model.FinalizeMaxViolations) },
		OnChange:        s.handleAntiCheat,
	}, deps.Log)
	s.bus = anticheat.NewBus()
	if err := s.monitor.Attach(s.bus); err != nil {
		return nil, fmt.Errorf("attach anti-cheat monitor: %w", err)
	}

	if err := s.timer.AttachCallback(func() { s.finalize(model.FinalizeTimeUp) }); err != nil {
		return nil, fmt.Errorf("attach time-up callback: %w", err)
	}
	s.timer.OnChange(s.handleTick)

	return s, nil
}

func (s *Session) ID() uuid.UUID               { return s.id }
func (s *Session) UserID() string              { return s.userID }
func (s *Session) ExamTitle() string           { return s.examTitle }
func (s *Session) Mode() model.ExamMode        { return s.mode }
func (s *Session) Monitor() *anticheat.Monitor { return s.monitor }

// Start runs the exam clock.
func (s *Session) Start() error {
	if done, _ := s.final.Done(); done {
		return ErrFinalized
	}
	if err := s.timer.Start(); err != nil {
		return fmt.Errorf("start exam timer: %w", err)
	}
	return nil
}

// Pause freezes the clock. Challenge attempts cannot be paused.
func (s *Session) Pause() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.mode == model.ExamModeChallenge {
		return ErrPauseNotAllowed
	}
	s.timer.Pause()
	s.persist()
	s.notify(Notification{Kind: NotifyTick, Timer: ptr(s.timer.Snapshot())})
	return nil
}

// Resume unfreezes the clock.
func (s *Session) Resume() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.mode == model.ExamModeChallenge {
		return ErrPauseNotAllowed
	}
	s.timer.Resume()
	s.notify(Notification{Kind: NotifyTick, Timer: ptr(s.timer.Snapshot())})
	return nil
}

// SelectAnswer records or replaces the answer to a question.
func (s *Session) SelectAnswer(questionID int, a model.Answer) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if !s.validQuestion(questionID) {
		return ErrQuestionNotFound
	}
	if !a.Valid() {
		return ErrInvalidAnswer
	}
	s.mu.Lock()
	s.state.selectAnswer(questionID, a)
	s.mu.Unlock()
	s.changed()
	return nil
}

// ToggleFlag flags or unflags a question for review and reports the new flag.
func (s *Session) ToggleFlag(questionID int) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if !s.validQuestion(questionID) {
		return false, ErrQuestionNotFound
	}
	s.mu.Lock()
	flagged := s.state.toggleFlag(questionID)
	s.mu.Unlock()
	s.changed()
	return flagged, nil
}

// GoTo moves to question n.
func (s *Session) GoTo(n int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	ok := s.state.goTo(n, len(s.questions))
	s.mu.Unlock()
	if !ok {
		return ErrQuestionNotFound
	}
	s.changed()
	return nil
}

// Next moves forward one question. It stays put on the last question.
func (s *Session) Next() error {
	s.mu.Lock()
	n := s.state.CurrentQuestion + 1
	s.mu.Unlock()
	if n > len(s.questions) {
		return s.checkOpen()
	}
	return s.GoTo(n)
}

// Previous moves back one question. It stays put on the first question.
func (s *Session) Previous() error {
	s.mu.Lock()
	n := s.state.CurrentQuestion - 1
	s.mu.Unlock()
	if n < 1 {
		return s.checkOpen()
	}
	return s.GoTo(n)
}

// ShowFlagged moves to the earliest flagged question.
func (s *Session) ShowFlagged() (int, error) {
	s.mu.Lock()
	n, ok := s.state.firstFlagged()
	s.mu.Unlock()
	if !ok {
		return 0, ErrNoFlaggedQuestion
	}
	return n, s.GoTo(n)
}

// Stats summarizes the answer sheet.
func (s *Session) Stats() Stats {
	remaining := s.timer.Snapshot().TimeRemaining
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.stats(len(s.questions), remaining)
}

// Dispatch feeds a client platform event through the anti-cheat detectors and
// reports whether the client should block the event's default action.
func (s *Session) Dispatch(ev *anticheat.PlatformEvent) bool {
	if done, _ := s.final.Done(); done {
		return false
	}
	s.bus.Dispatch(ev)
	return ev.DefaultPrevented()
}

// AttachClient routes fullscreen commands to p until the returned function is called.
func (s *Session) AttachClient(p anticheat.Platform) func() {
	return s.platform.attach(p)
}

// RequestFullscreen asks the attached client to enter fullscreen.
func (s *Session) RequestFullscreen(ctx context.Context) bool {
	return s.monitor.RequestFullscreen(ctx)
}

// ExitFullscreen asks the attached client to leave fullscreen.
func (s *Session) ExitFullscreen(ctx context.Context) {
	s.monitor.ExitFullscreen(ctx)
}

// DismissWarning hides the current anti-cheat warning.
func (s *Session) DismissWarning() {
	s.monitor.DismissWarning()
}

// ResetViolations clears anti-cheat history. Only allowed before the first answer.
func (s *Session) ResetViolations() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	answered := len(s.state.Answers)
	s.mu.Unlock()
	if answered > 0 {
		return ErrResetNotAllowed
	}
	s.monitor.ResetViolations()
	return nil
}

// Submit finalizes the attempt manually.
func (s *Session) Submit() (Result, error) {
	if !s.finalize(model.FinalizeManual) {
		return Result{}, ErrFinalized
	}
	return *s.Result(), nil
}

// Abandon ends the attempt without grading and discards persisted progress.
func (s *Session) Abandon() error {
	if !s.finalize(model.FinalizeAbandoned) {
		return ErrFinalized
	}
	return nil
}

// Close tears the attempt down without finalizing it. Pending practice
// progress is written first so a later attempt can resume.
func (s *Session) Close() {
	s.timer.Stop()
	s.monitor.Close()
	s.debounce.Flush()
	s.debounce.Stop()
	s.watchers.closeAll()
}

// Result returns the finalized outcome, or nil while the attempt is open.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// Finalized reports whether the attempt has ended and why.
func (s *Session) Finalized() (bool, model.FinalizeReason) {
	return s.final.Done()
}

// View returns a snapshot for clients.
func (s *Session) View() View {
	ts := s.timer.Snapshot()
	ac := s.monitor.State()
	done, reason := s.final.Done()

	s.mu.Lock()
	st := s.state.clone()
	var res *Result
	if s.result != nil {
		r := *s.result
		res = &r
	}
	s.mu.Unlock()

	display := ts.TimeRemaining
	if ts.Unlimited {
		display = ts.Elapsed
	}
	return View{
		SessionID:       s.id,
		ExamTitle:       s.examTitle,
		Level:           s.level,
		Mode:            s.mode,
		Questions:       s.questions,
		CurrentQuestion: st.CurrentQuestion,
		Answers:         st.Answers,
		Flagged:         st.Flagged,
		Timer:           ts,
		TimeDisplay:     timer.FormatTime(display),
		AntiCheat:       ac,
		Stats:           st.stats(len(s.questions), ts.TimeRemaining),
		Finalized:       done,
		Reason:          reason,
		Result:          res,
	}
}

// Watch registers fn for session notifications until the returned function is called.
func (s *Session) Watch(fn func(Notification)) func() {
	return s.watchers.add(fn)
}

func (s *Session) finalize(reason model.FinalizeReason) bool {
	return s.final.Finalize(reason, func() {
		s.timer.Stop()
		s.monitor.Close()
		s.debounce.Stop()

		if s.mode == model.ExamModePractice && s.storeKey != "" {
			s.saveMu.Lock()
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			if err := s.store.Remove(ctx, s.storeKey); err != nil {
				s.log.Warn().Err(err).Msg("Failed to clear persisted state")
			}
			cancel()
			s.saveMu.Unlock()
		}

		res := s.buildResult(reason)
		s.mu.Lock()
		s.result = &res
		s.mu.Unlock()

		s.log.Info().
			Str("reason", string(reason)).
			Int("percentage", res.Score.Percentage).
			Int("violations", len(res.Violations)).
			Msg("Exam attempt finalized")

		s.notify(Notification{Kind: NotifyFinalized, Result: &res})
		if s.deps.OnFinalize != nil {
			s.deps.OnFinalize(res)
		}
	})
}

func (s *Session) buildResult(reason model.FinalizeReason) Result {
	ts := s.timer.Snapshot()
	ac := s.monitor.State()

	s.mu.Lock()
	answers := s.state.clone().Answers
	s.mu.Unlock()

	limit := s.timer.TimeLimitSeconds()
	spent := ts.Elapsed
	if !ts.Unlimited {
		spent = limit - ts.TimeRemaining
	}

	res := Result{
		SessionID:        s.id,
		UserID:           s.userID,
		ExamTitle:        s.examTitle,
		Level:            s.level,
		Mode:             s.mode,
		Reason:           reason,
		Answers:          answers,
		TimeSpentSeconds: spent,
		TimeLimitSeconds: limit,
		Violations:       ac.Violations,
		StartedAt:        s.startedAt,
		FinishedAt:       s.clk.Now(),
	}
	if reason != model.FinalizeAbandoned {
		res.Score = results.Grade(s.questions, answers)
	}
	return res
}

func (s *Session) restore(ctx context.Context) *int {
	if s.storeKey == "" {
		return nil
	}
	raw, err := s.store.Get(ctx, s.storeKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Persisted state unavailable, starting fresh")
		return nil
	}
	st, remaining, err := decodeSnapshot(raw, len(s.questions))
	if err != nil {
		s.log.Warn().Err(err).Msg("Ignoring malformed persisted state")
		return nil
	}
	s.state = st
	s.log.Debug().Int("answers", len(st.Answers)).Msg("Practice progress restored")
	return remaining
}

// persist schedules a debounced write of practice progress.
func (s *Session) persist() {
	if s.mode != model.ExamModePractice || s.storeKey == "" {
		return
	}
	if done, _ := s.final.Done(); done {
		return
	}
	s.debounce.Trigger(s.save)
}

func (s *Session) save() {
	ts := s.timer.Snapshot()
	s.mu.Lock()
	st := s.state.clone()
	s.mu.Unlock()

	var remaining *int
	if !ts.Unlimited {
		remaining = &ts.TimeRemaining
	}
	raw, err := encodeSnapshot(st, remaining)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode practice progress")
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	// A write that lost the race with finalize must not resurrect the sheet.
	if done, _ := s.final.Done(); done {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Set(ctx, s.storeKey, raw); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist practice progress")
	}
}

func (s *Session) changed() {
	s.persist()
	s.notify(Notification{Kind: NotifyState})
}

func (s *Session) handleTick(ts timer.State) {
	s.persist()
	s.notify(Notification{Kind: NotifyTick, Timer: &ts})
}

func (s *Session) handleViolation(v anticheat.Violation) {
	s.notify(Notification{Kind: NotifyViolation, Violation: &v})
	if s.deps.OnViolation != nil {
		s.deps.OnViolation(s, v)
	}
}

func (s *Session) handleAntiCheat(st anticheat.State) {
	s.notify(Notification{Kind: NotifyAntiCheat, AntiCheat: &st})
}

func (s *Session) notify(n Notification) {
	n.SessionID = s.id
	s.watchers.emit(n)
}

func (s *Session) checkOpen() error {
	if done, _ := s.final.Done(); done {
		return ErrFinalized
	}
	return nil
}

func (s *Session) checkWritable() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.monitor.State().IsBlocked {
		return ErrBlocked
	}
	return nil
}

func (s *Session) validQuestion(id int) bool {
	return id >= 1 && id <= len(s.questions)
}

func ptr[T any](v T) *T { return &v }
