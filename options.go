package hxc

import (
	"go.uber.org/zap"

	"github.com/dreamware/hxc/internal/clock"
	"github.com/dreamware/hxc/internal/eventpoll"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger installs a structured logger. The default is a no-op
// sugared logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l.Sugar()
	}
}

// WithClock overrides the client's time source, primarily for
// deterministic timeout tests via internal/clock.Manual.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithPoller overrides the client's poll(2) surface, primarily for tests
// driven by a fake eventpoll.Poller.
func WithPoller(p eventpoll.Poller) Option {
	return func(c *Client) {
		c.poller = p
	}
}

// WithCoordinatorReconnects overrides the number of reconnect attempts
// flushOne makes when the coordinator link is down. The default is 7.
func WithCoordinatorReconnects(n int) Option {
	return func(c *Client) {
		c.reconnects = n
	}
}
