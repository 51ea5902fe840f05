package resilience

import (
	"context"
	"sync"
	"time"
)

// Default admission parameters.
const (
	DefaultAdmissionLimit  = 15
	DefaultAdmissionWindow = time.Minute
)

// Category classifies an inbound request for admission purposes.
type Category int

const (
	// CategoryWork is a request that may reach an upstream. It is counted.
	CategoryWork Category = iota
	// CategoryCommand is an explicit command such as /start. Exempt.
	CategoryCommand
	// CategoryMenu is a menu selection. Exempt.
	CategoryMenu
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryWork:
		return "work"
	case CategoryCommand:
		return "command"
	case CategoryMenu:
		return "menu"
	default:
		return "unknown"
	}
}

// Exempt reports whether the category bypasses admission control.
func (c Category) Exempt() bool {
	return c == CategoryCommand || c == CategoryMenu
}

// AdmissionConfig configures the admission controller.
type AdmissionConfig struct {
	// Limit is the maximum number of admissions per identity per window.
	// Default: 15
	Limit int

	// Window is the sliding window duration.
	// Default: 1 minute
	Window time.Duration
}

// DefaultAdmissionConfig returns the stock 15 requests per minute policy.
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		Limit:  DefaultAdmissionLimit,
		Window: DefaultAdmissionWindow,
	}
}

// AdmissionRequest is one admission query.
type AdmissionRequest struct {
	Identity string
	Category Category
}

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed is true when the request may proceed.
	Allowed bool

	// Exempt is true when the request bypassed the window entirely.
	Exempt bool

	// Count is the number of admissions recorded for the identity inside
	// the current window, including this one when allowed.
	Count int

	// Limit is the configured limit.
	Limit int

	// RetryAfter is how long until the oldest recorded admission leaves the
	// window. Zero when allowed.
	RetryAfter time.Duration
}

// AdmissionStats is a point-in-time view of controller state.
type AdmissionStats struct {
	// Identities is the number of identities with a record.
	Identities int

	// Saturated is the number of identities currently at the limit.
	Saturated int
}

// AdmissionOption configures an AdmissionController.
type AdmissionOption func(*AdmissionController)

// WithAdmissionClock overrides the time source.
func WithAdmissionClock(now func() time.Time) AdmissionOption {
	return func(a *AdmissionController) {
		if now != nil {
			a.now = now
		}
	}
}

// AdmissionController is a per-identity sliding-window log limiter.
//
// Each identity owns an ordered list of admission timestamps. A check purges
// timestamps that have left the window and admits when fewer than Limit
// remain. Denied requests are not recorded, so a flood of denied requests
// cools down exactly like an admitted burst.
type AdmissionController struct {
	config AdmissionConfig
	now    func() time.Time

	mu      sync.Mutex
	records map[string][]time.Time
}

// NewAdmissionController creates a controller. A non-positive limit or
// window is rejected.
func NewAdmissionController(config AdmissionConfig, opts ...AdmissionOption) (*AdmissionController, error) {
	if config.Limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if config.Window <= 0 {
		return nil, ErrInvalidWindow
	}

	a := &AdmissionController{
		config:  config,
		now:     time.Now,
		records: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Admit reports whether one counted request for identity is allowed.
func (a *AdmissionController) Admit(identity string) bool {
	return a.Check(AdmissionRequest{Identity: identity}).Allowed
}

// Check runs the full admission decision for req.
func (a *AdmissionController) Check(req AdmissionRequest) Decision {
	if req.Category.Exempt() {
		return Decision{Allowed: true, Exempt: true, Limit: a.config.Limit}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	times := a.purgeLocked(req.Identity, now)

	if len(times) >= a.config.Limit {
		return Decision{
			Allowed:    false,
			Count:      len(times),
			Limit:      a.config.Limit,
			RetryAfter: a.config.Window - now.Sub(times[0]),
		}
	}

	times = append(times, now)
	a.records[req.Identity] = times

	return Decision{
		Allowed: true,
		Count:   len(times),
		Limit:   a.config.Limit,
	}
}

// purgeLocked drops timestamps that are at least one window old and stores
// the trimmed slice back. Unknown identities yield an empty slice.
func (a *AdmissionController) purgeLocked(identity string, now time.Time) []time.Time {
	times := a.records[identity]

	cut := 0
	for cut < len(times) && now.Sub(times[cut]) >= a.config.Window {
		cut++
	}
	if cut > 0 {
		times = append(times[:0], times[cut:]...)
		a.records[identity] = times
	}
	return times
}

// Stats returns the number of tracked identities and how many are saturated.
func (a *AdmissionController) Stats() AdmissionStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	stats := AdmissionStats{Identities: len(a.records)}
	for identity := range a.records {
		if len(a.purgeLocked(identity, now)) >= a.config.Limit {
			stats.Saturated++
		}
	}
	return stats
}

// Config returns the admission configuration.
func (a *AdmissionController) Config() AdmissionConfig {
	return a.config
}

// Sweep removes identities whose records are entirely outside the window and
// returns how many were removed.
func (a *AdmissionController) Sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	removed := 0
	for identity := range a.records {
		if len(a.purgeLocked(identity, now)) == 0 {
			delete(a.records, identity)
			removed++
		}
	}
	return removed
}

// StartJanitor runs Sweep every interval until ctx is done or stop is
// called. stop blocks until the janitor goroutine has exited.
func (a *AdmissionController) StartJanitor(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = a.config.Window
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Sweep()
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
