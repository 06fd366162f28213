package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/config"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(context.Background(), &config.Config{RedisURL: "redis://" + mr.Addr() + "/0"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	defer rdb.Close()

	if err := rdb.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatal(err)
	}
	if got := mr.Exists("k"); !got {
		t.Error("write did not reach redis")
	}
}

func TestNewRedisClientBadURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), &config.Config{RedisURL: "not-a-url"}, zerolog.Nop()); err == nil {
		t.Fatal("NewRedisClient() with a bad URL succeeded")
	}
}

func TestTraceLevel(t *testing.T) {
	tests := []struct {
		in   zerolog.Level
		want tracelog.LogLevel
	}{
		{zerolog.TraceLevel, tracelog.LogLevelTrace},
		{zerolog.DebugLevel, tracelog.LogLevelDebug},
		{zerolog.InfoLevel, tracelog.LogLevelWarn},
		{zerolog.ErrorLevel, tracelog.LogLevelWarn},
	}
	for _, tt := range tests {
		if got := traceLevel(tt.in); got != tt.want {
			t.Errorf("traceLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
