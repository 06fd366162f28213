package exam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/jlpt-proctor/internal/clock"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on missing key error = %v, want ErrNotFound", err)
	}
	if err := store.Set(ctx, "k", `{"currentQuestion":1}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil || got != `{"currentQuestion":1}` {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}
	if err := store.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if mr.Exists("k") {
		t.Error("key still present after Remove")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	store := NewRedisStore(rdb, 0)
	_, err := store.Get(context.Background(), "k")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() with redis down error = %v, want a storage error", err)
	}
}

func TestFinalizerFirstCallWins(t *testing.T) {
	var f Finalizer
	runs := 0

	if !f.Finalize(model.FinalizeTimeUp, func() { runs++ }) {
		t.Fatal("first Finalize() did not run")
	}
	if f.Finalize(model.FinalizeManual, func() { runs++ }) {
		t.Error("second Finalize() ran")
	}
	done, reason := f.Done()
	if !done || reason != model.FinalizeTimeUp || runs != 1 {
		t.Errorf("Done() = %v, %s; runs = %d", done, reason, runs)
	}
}

func TestFinalizerReentrantCallIsRejected(t *testing.T) {
	var f Finalizer
	inner := true
	f.Finalize(model.FinalizeMaxViolations, func() {
		inner = f.Finalize(model.FinalizeTimeUp, nil)
	})
	if inner {
		t.Error("nested Finalize() ran")
	}
}

func TestDebouncer(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, time.Second, 0)
	var got []int

	d.Trigger(func() { got = append(got, 1) })
	clk.Advance(500 * time.Millisecond)
	d.Trigger(func() { got = append(got, 2) })
	clk.Advance(999 * time.Millisecond)
	if len(got) != 0 {
		t.Fatalf("ran early: %v", got)
	}
	clk.Advance(time.Millisecond)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("got %v, want only the latest function", got)
	}

	d.Trigger(func() { got = append(got, 3) })
	d.Flush()
	if len(got) != 2 || got[1] != 3 || d.Pending() {
		t.Fatalf("Flush() did not run pending function: %v", got)
	}
	clk.Advance(2 * time.Second)
	if len(got) != 2 {
		t.Errorf("flushed function ran again: %v", got)
	}

	d.Trigger(func() { got = append(got, 4) })
	d.Stop()
	d.Trigger(func() { got = append(got, 5) })
	clk.Advance(2 * time.Second)
	if len(got) != 2 {
		t.Errorf("stopped debouncer ran: %v", got)
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := NewDebouncer(clk, time.Second, 2*time.Second)
	runs := 0

	for i := 0; i < 4; i++ {
		d.Trigger(func() { runs++ })
		clk.Advance(600 * time.Millisecond)
	}
	// Triggers every 600ms never go quiet for a full second; max wait forces a run.
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}
