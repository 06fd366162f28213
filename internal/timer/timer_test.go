package timer

import (
	"errors"
	"testing"
	"time"

	"github.com/stemsi/jlpt-proctor/internal/clock"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

func newStarted(t *testing.T, cfg Config) (*ExamTimer, *clock.Fake, *int) {
	t.Helper()
	fake := clock.NewFake(time.Unix(0, 0))
	tm, err := New(cfg, fake)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	calls := 0
	if err := tm.AttachCallback(func() { calls++ }); err != nil {
		t.Fatalf("AttachCallback() error = %v", err)
	}
	if err := tm.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return tm, fake, &calls
}

func intPtr(v int) *int { return &v }

func TestChallengeTimerExpiresAfterSixtyTicks(t *testing.T) {
	tm, fake, calls := newStarted(t, Config{TimeLimit: 1, Mode: model.ExamModeChallenge})

	fake.Advance(60 * time.Second)

	st := tm.Snapshot()
	if st.TimeRemaining != 0 {
		t.Errorf("TimeRemaining = %d, want 0", st.TimeRemaining)
	}
	if st.IsActive {
		t.Error("IsActive = true after expiry")
	}
	if *calls != 1 {
		t.Errorf("onTimeUp calls = %d, want 1", *calls)
	}
	if fake.Pending() != 0 {
		t.Errorf("Pending() = %d, want no scheduled ticks after expiry", fake.Pending())
	}
}

func TestTickNeverGoesNegativeAndFiresOnce(t *testing.T) {
	tm, _, calls := newStarted(t, Config{TimeLimit: 1, Mode: model.ExamModePractice, InitialTimeRemaining: intPtr(3)})

	prev := tm.Snapshot().TimeRemaining
	for i := 0; i < 10; i++ {
		tm.Tick()
		cur := tm.Snapshot().TimeRemaining
		if cur < 0 {
			t.Fatalf("TimeRemaining went negative: %d", cur)
		}
		if prev > 0 && cur != prev-1 {
			t.Fatalf("tick %d: TimeRemaining = %d, want %d", i, cur, prev-1)
		}
		if cur == 0 && prev == 1 && *calls != 1 {
			t.Fatalf("onTimeUp not called on 1 -> 0 transition")
		}
		if cur > 0 && *calls != 0 {
			t.Fatalf("onTimeUp called early at %d", cur)
		}
		prev = cur
	}
	if *calls != 1 {
		t.Errorf("onTimeUp calls = %d, want 1", *calls)
	}
}

func TestPracticeTimerResumesFromPersistedValue(t *testing.T) {
	tm, fake, _ := newStarted(t, Config{TimeLimit: 40, Mode: model.ExamModePractice, InitialTimeRemaining: intPtr(45)})

	fake.Advance(time.Second)

	if got := tm.Snapshot().TimeRemaining; got != 44 {
		t.Errorf("TimeRemaining = %d, want 44", got)
	}
}

func TestChallengeTimerIgnoresPersistedValue(t *testing.T) {
	tm, err := New(Config{TimeLimit: 2, Mode: model.ExamModeChallenge, InitialTimeRemaining: intPtr(45)}, clock.NewFake(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := tm.Snapshot().TimeRemaining; got != 120 {
		t.Errorf("TimeRemaining = %d, want 120", got)
	}
}

func TestPersistedValueClampedToLimit(t *testing.T) {
	tm, err := New(Config{TimeLimit: 1, Mode: model.ExamModePractice, InitialTimeRemaining: intPtr(999)}, clock.NewFake(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := tm.Snapshot().TimeRemaining; got != 60 {
		t.Errorf("TimeRemaining = %d, want 60", got)
	}
}

func TestPauseIsIdempotent(t *testing.T) {
	tm, fake, _ := newStarted(t, Config{TimeLimit: 1, Mode: model.ExamModePractice})

	tm.Pause()
	tm.Pause()
	if !tm.Snapshot().IsPaused {
		t.Fatal("IsPaused = false after two Pause() calls")
	}

	fake.Advance(10 * time.Second)
	if got := tm.Snapshot().TimeRemaining; got != 60 {
		t.Errorf("TimeRemaining = %d while paused, want 60", got)
	}

	tm.Resume()
	if tm.Snapshot().IsPaused {
		t.Fatal("IsPaused = true after Resume()")
	}
	tm.Resume()

	fake.Advance(5 * time.Second)
	if got := tm.Snapshot().TimeRemaining; got != 55 {
		t.Errorf("TimeRemaining = %d, want 55 (double Resume must not double tick)", got)
	}
}

func TestStartRequiresCallback(t *testing.T) {
	tm, err := New(Config{TimeLimit: 1, Mode: model.ExamModeChallenge}, clock.NewFake(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := tm.Start(); !errors.Is(err, ErrCallbackNotAttached) {
		t.Errorf("Start() error = %v, want ErrCallbackNotAttached", err)
	}
	if err := tm.AttachCallback(nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("AttachCallback(nil) error = %v, want ErrNilCallback", err)
	}
}

func TestAttachCallbackReplacesPrevious(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	tm, _ := New(Config{TimeLimit: 1, Mode: model.ExamModeChallenge}, fake)

	first, second := 0, 0
	_ = tm.AttachCallback(func() { first++ })
	_ = tm.AttachCallback(func() { second++ })
	_ = tm.Start()

	fake.Advance(time.Minute)
	if first != 0 || second != 1 {
		t.Errorf("first = %d, second = %d, want 0 and 1", first, second)
	}
}

func TestInvalidTimeLimit(t *testing.T) {
	for _, limit := range []int{0, -5} {
		if _, err := New(Config{TimeLimit: limit}, nil); !errors.Is(err, ErrInvalidTimeLimit) {
			t.Errorf("New(limit=%d) error = %v, want ErrInvalidTimeLimit", limit, err)
		}
	}
}

func TestStopCancelsTicks(t *testing.T) {
	tm, fake, calls := newStarted(t, Config{TimeLimit: 1, Mode: model.ExamModeChallenge})

	fake.Advance(10 * time.Second)
	tm.Stop()
	fake.Advance(time.Minute)

	if got := tm.Snapshot().TimeRemaining; got != 50 {
		t.Errorf("TimeRemaining = %d, want 50", got)
	}
	if *calls != 0 {
		t.Errorf("onTimeUp called after Stop")
	}
	if err := tm.Start(); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop error = %v, want ErrStopped", err)
	}
}

func TestUnlimitedTimerCountsUp(t *testing.T) {
	tm, fake, calls := newStarted(t, Config{Mode: model.ExamModePractice, Unlimited: true})

	fake.Advance(2 * time.Hour)

	st := tm.Snapshot()
	if st.Elapsed != 7200 {
		t.Errorf("Elapsed = %d, want 7200", st.Elapsed)
	}
	if !st.IsActive || *calls != 0 {
		t.Errorf("unlimited timer expired: active=%v calls=%d", st.IsActive, *calls)
	}
}

func TestRestoredZeroExpiresOnStart(t *testing.T) {
	_, _, calls := newStarted(t, Config{TimeLimit: 1, Mode: model.ExamModePractice, InitialTimeRemaining: intPtr(0)})
	if *calls != 1 {
		t.Errorf("onTimeUp calls = %d, want 1", *calls)
	}
}

func TestOnChangeObservesEveryTick(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	tm, _ := New(Config{TimeLimit: 1, Mode: model.ExamModePractice}, fake)
	_ = tm.AttachCallback(func() {})

	var seen []int
	tm.OnChange(func(s State) { seen = append(seen, s.TimeRemaining) })
	_ = tm.Start()

	fake.Advance(3 * time.Second)
	if len(seen) != 3 || seen[0] != 59 || seen[2] != 57 {
		t.Errorf("observed = %v, want [59 58 57]", seen)
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{61, "01:01"},
		{3600, "1:00:00"},
		{5405, "1:30:05"},
		{-3, "00:00"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.seconds); got != tt.want {
			t.Errorf("FormatTime(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
