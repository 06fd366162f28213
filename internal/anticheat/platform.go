package anticheat

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by a Platform when the browser lacks an API.
// Detectors fail open on it.
var ErrUnsupported = errors.New("platform API unavailable")

// Platform drives fullscreen on the exam client.
type Platform interface {
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error
}
