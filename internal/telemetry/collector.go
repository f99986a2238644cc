package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iml1s/xmrigminer/internal/log"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxInterval = 30 * time.Second
)

// Collector polls Source while Target has a running session and publishes
// every successful reading. It never holds the target's lock during a fetch:
// Session and Publish are the only calls into it.
type Collector struct {
	target      Target
	source      Source
	interval    time.Duration
	maxInterval time.Duration
	metrics     *Metrics
	notify      chan struct{}
}

type CollectorOption func(*Collector)

// WithIntervals sets the poll interval and the cap of the failure backoff.
func WithIntervals(interval, maxInterval time.Duration) CollectorOption {
	return func(c *Collector) {
		if interval > 0 {
			c.interval = interval
		}
		if maxInterval > 0 {
			c.maxInterval = maxInterval
		}
	}
}

func WithMetrics(m *Metrics) CollectorOption {
	return func(c *Collector) {
		c.metrics = m
	}
}

func NewCollector(target Target, source Source, opts ...CollectorOption) *Collector {
	c := &Collector{
		target:      target,
		source:      source,
		interval:    DefaultInterval,
		maxInterval: DefaultMaxInterval,
		notify:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.maxInterval = max(c.maxInterval, c.interval)
	return c
}

// Notify wakes the collector after a lifecycle transition. It never blocks.
func (c *Collector) Notify() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Do runs the poll loop until ctx is canceled.
func (c *Collector) Do(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()
	var lastSession string
	var failures int

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.notify:
			timer.Stop()
		case <-timer.C:
		}

		sess, ok := c.target.Session()
		if !ok {
			// idle until the next transition
			if lastSession != "" {
				slog.DebugContext(ctx, "telemetry halted", "session", lastSession)
			}
			lastSession = ""
			failures = 0
			b.Reset()
			c.metrics.reset()
			continue
		}
		if sess.ID != lastSession {
			lastSession = sess.ID
			failures = 0
			b.Reset()
			c.metrics.reset()
		}
		c.metrics.active()

		next := c.poll(ctx, sess, &failures, b)
		if ctx.Err() != nil {
			return nil
		}
		timer.Reset(next)
	}
}

func (c *Collector) poll(ctx context.Context, sess Session, failures *int, b *backoff.ExponentialBackOff) time.Duration {
	ctx = log.ContextAttrs(ctx, slog.String("session", sess.ID))
	pctx, cancel := context.WithTimeout(ctx, c.maxInterval)
	defer cancel()

	stats, err := c.source.Fetch(pctx, sess)
	if err != nil {
		*failures++
		c.metrics.failed()
		level := slog.LevelDebug
		// a worker needs a moment to open its API, keep the first misses quiet
		if *failures > 3 && !errors.Is(err, context.Canceled) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "telemetry poll failed", "failures", *failures, "err", err)
		return b.NextBackOff()
	}

	*failures = 0
	b.Reset()
	if published, ok := c.target.Publish(sess.ID, stats); ok {
		c.metrics.observe(published)
	}
	return c.interval
}
