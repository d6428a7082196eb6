package providers

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const backoffFactor = 1.5

// Timer is the handle of a scheduled reconnect
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Replaced in tests.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ReconnectPolicy reconnects a Connector with exponential backoff after it
// reports an error or close, up to maxAttempts consecutive tries.
type ReconnectPolicy struct {
	client      Connector
	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
	afterFunc   AfterFunc
	logger      *logrus.Logger

	mu          sync.Mutex
	url         string
	attempt     int
	timer       Timer
	closed      bool
	unsubscribe func()
}

type ReconnectOption func(p *ReconnectPolicy)

// WithAfterFunc overrides timer creation
func WithAfterFunc(fn AfterFunc) ReconnectOption {
	return func(p *ReconnectPolicy) { p.afterFunc = fn }
}

// WithConnectTimeout bounds each reconnect attempt
func WithConnectTimeout(d time.Duration) ReconnectOption {
	return func(p *ReconnectPolicy) { p.timeout = d }
}

// NewReconnectPolicy attaches a policy to client's state changes
func NewReconnectPolicy(client Connector, interval time.Duration, maxAttempts int, logger *logrus.Logger, opts ...ReconnectOption) *ReconnectPolicy {
	p := &ReconnectPolicy{
		client:      client,
		interval:    interval,
		maxAttempts: maxAttempts,
		timeout:     30 * time.Second,
		afterFunc:   realAfterFunc,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.unsubscribe = client.OnStateChange(p.handleStateChange)
	return p
}

// Connect sets the reconnect target and connects to it
func (p *ReconnectPolicy) Connect(ctx context.Context, url string) error {
	p.mu.Lock()
	p.url = ""
	p.stopTimerLocked()
	p.mu.Unlock()

	// tear down without a target so the resulting close is not retried
	p.client.Disconnect()

	p.mu.Lock()
	p.url = url
	p.attempt = 0
	p.closed = false
	p.mu.Unlock()

	return p.client.Connect(ctx, url)
}

// Disconnect clears the target, cancels any pending reconnect and disconnects
func (p *ReconnectPolicy) Disconnect() {
	p.mu.Lock()
	p.url = ""
	p.attempt = 0
	p.stopTimerLocked()
	p.mu.Unlock()

	p.client.Disconnect()
}

// Close disconnects and detaches the policy from the client
func (p *ReconnectPolicy) Close() {
	p.mu.Lock()
	p.closed = true
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	p.Disconnect()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Attempts returns the number of reconnects scheduled since the last open
func (p *ReconnectPolicy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt
}

// Pending reports whether a reconnect timer is scheduled
func (p *ReconnectPolicy) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// Backoff returns the delay before reconnect number attempt (zero based)
func (p *ReconnectPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(float64(p.interval) * math.Pow(backoffFactor, float64(attempt)))
}

func (p *ReconnectPolicy) handleStateChange(change StateChange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch change.State {
	case StateOpen:
		p.attempt = 0
		p.stopTimerLocked()
	case StateError, StateClosed:
		if p.url == "" || p.closed {
			return
		}
		if p.attempt >= p.maxAttempts {
			p.logger.WithFields(logrus.Fields{
				"url":      p.url,
				"attempts": p.attempt,
			}).Warn("Giving up reconnecting to realtime backend")
			return
		}

		p.stopTimerLocked()
		delay := p.Backoff(p.attempt)
		p.attempt++
		url := p.url
		p.timer = p.afterFunc(delay, func() { p.reconnect(url) })

		p.logger.WithFields(logrus.Fields{
			"url":     url,
			"attempt": p.attempt,
			"delay":   delay.String(),
		}).Info("Scheduled realtime reconnect")
	}
}

func (p *ReconnectPolicy) reconnect(url string) {
	p.mu.Lock()
	if p.closed || p.url != url {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Connect(ctx, url); err != nil {
		p.logger.WithError(err).WithField("url", url).Warn("Realtime reconnect failed")
	}
}

func (p *ReconnectPolicy) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
