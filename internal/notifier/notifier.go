// Package notifier delivers alert notifications over the configured
// channels. The alerting core only schedules NotificationLog rows; this
// package owns the transports and the delivery sweep.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/truthsource/syncwatch/internal/models"
)

// Notifier is one delivery channel.
type Notifier interface {
	// Name returns the channel name ("email", "slack", "webhook").
	Name() string
	// Send delivers one alert to the given recipient. Recipient may be
	// empty for channels with a fixed destination.
	Send(ctx context.Context, alert *models.Alert, recipient string) error
	// Close releases any resources.
	Close() error
}

// ErrRateLimited is returned when a notification is dropped by the
// outbound rate limit.
var ErrRateLimited = fmt.Errorf("notification rate limited")

// ErrUnknownChannel is returned when no notifier is registered for the
// requested channel.
var ErrUnknownChannel = fmt.Errorf("unknown notification channel")

// Dispatcher routes alerts to registered channels behind a shared
// outbound rate limit.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	rateLimiter *RateLimiter
}

// NewDispatcher creates a dispatcher with default rate limiting.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithRateLimit(DefaultRateLimitConfig())
}

// NewDispatcherWithRateLimit creates a dispatcher with a custom rate
// limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a channel to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Unregister removes a channel.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, name)
}

// Get returns a channel by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[name]
	return n, ok
}

// Dispatch delivers one alert over one named channel. A failed send
// refunds the consumed rate limit token so transient transport errors do
// not eat the window.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert, channel, recipient string) error {
	d.mu.RLock()
	n, ok := d.notifiers[channel]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		return ErrRateLimited
	}

	if err := n.Send(ctx, alert, recipient); err != nil {
		if d.rateLimiter != nil {
			d.rateLimiter.Release()
		}
		return fmt.Errorf("%s: %w", channel, err)
	}
	return nil
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered channels.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
