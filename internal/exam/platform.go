package exam

import (
	"context"
	"sync"

	"github.com/stemsi/jlpt-proctor/internal/anticheat"
)

// clientPlatform forwards fullscreen commands to whichever client is
// currently connected. With no client the API is reported unsupported.
type clientPlatform struct {
	mu  sync.Mutex
	gen uint64
	p   anticheat.Platform
}

func (c *clientPlatform) attach(p anticheat.Platform) func() {
	c.mu.Lock()
	c.gen++
	g := c.gen
	c.p = p
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		if c.gen == g {
			c.p = nil
		}
		c.mu.Unlock()
	}
}

func (c *clientPlatform) current() anticheat.Platform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.p
}

func (c *clientPlatform) RequestFullscreen(ctx context.Context) error {
	p := c.current()
	if p == nil {
		return anticheat.ErrUnsupported
	}
	return p.RequestFullscreen(ctx)
}

func (c *clientPlatform) ExitFullscreen(ctx context.Context) error {
	p := c.current()
	if p == nil {
		return anticheat.ErrUnsupported
	}
	return p.ExitFullscreen(ctx)
}
