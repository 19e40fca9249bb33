package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weathernotify.app/errors"
	"weathernotify.app/models"
)

// BreakerState represents the circuit breaker state machine position
type BreakerState int

const (
	// BreakerClosed passes calls through to the wrapped provider.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls immediately without invoking the provider.
	BreakerOpen
	// BreakerHalfOpen allows a single trial call to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerSettings tunes a CircuitBreaker. Zero values fall back to the
// defaults used for all weather providers.
type BreakerSettings struct {
	CallTimeout    time.Duration
	ErrorThreshold float64 // failure ratio over the window that opens the breaker
	MinRequests    int     // minimum calls in the window before the ratio is evaluated
	Window         time.Duration
	ResetTimeout   time.Duration
}

// DefaultBreakerSettings returns the settings applied to every provider:
// 5s hard call timeout, open at a 50% failure rate over a 10s window with
// at least 5 calls, retry the provider after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		CallTimeout:    5 * time.Second,
		ErrorThreshold: 0.5,
		MinRequests:    5,
		Window:         10 * time.Second,
		ResetTimeout:   30 * time.Second,
	}
}

type callOutcome struct {
	at      time.Time
	failure bool
}

// CircuitBreaker wraps a WeatherProvider with the closed/open/half-open
// state machine. It is an explicit interface decorator: no reflection,
// every call goes through Do. Breaker state is process-local.
type CircuitBreaker struct {
	provider WeatherProvider
	settings BreakerSettings
	now      func() time.Time

	mu            sync.Mutex
	state         BreakerState
	outcomes      []callOutcome
	openedAt      time.Time
	trialInFlight bool
}

// NewCircuitBreaker wraps the given provider with breaker protection
func NewCircuitBreaker(provider WeatherProvider, settings BreakerSettings) *CircuitBreaker {
	if settings.CallTimeout <= 0 {
		settings = DefaultBreakerSettings()
	}
	return &CircuitBreaker{
		provider: provider,
		settings: settings,
		now:      time.Now,
		state:    BreakerClosed,
	}
}

// Name returns the wrapped provider's name
func (cb *CircuitBreaker) Name() string {
	return cb.provider.Name()
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetWeatherData routes the call through the breaker. Open state fails
// fast without touching the provider; a call exceeding CallTimeout counts
// as a failure.
func (cb *CircuitBreaker) GetWeatherData(ctx context.Context, city string) (*models.WeatherResponse, error) {
	if err := cb.beforeCall(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.settings.CallTimeout)
	defer cancel()

	type result struct {
		weather *models.WeatherResponse
		err     error
	}

	resultCh := make(chan result, 1)
	go func() {
		weather, err := cb.provider.GetWeatherData(callCtx, city)
		resultCh <- result{weather, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			cb.afterCall(false)
			return nil, res.err
		}
		cb.afterCall(true)
		return res.weather, nil
	case <-callCtx.Done():
		cb.afterCall(false)
		return nil, errors.NewExternalAPIError(
			fmt.Sprintf("%s: call exceeded %v timeout", cb.provider.Name(), cb.settings.CallTimeout),
			callCtx.Err(),
		)
	}
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.settings.ResetTimeout {
			return errors.NewCircuitOpenError(fmt.Sprintf("%s is currently unavailable", cb.provider.Name()))
		}
		cb.transitionTo(BreakerHalfOpen)
		cb.trialInFlight = true
		return nil
	default: // BreakerHalfOpen
		if cb.trialInFlight {
			return errors.NewCircuitOpenError(fmt.Sprintf("%s is currently unavailable", cb.provider.Name()))
		}
		cb.trialInFlight = true
		return nil
	}
}

func (cb *CircuitBreaker) afterCall(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerHalfOpen {
		cb.trialInFlight = false
		if success {
			cb.outcomes = nil
			cb.transitionTo(BreakerClosed)
		} else {
			cb.openedAt = cb.now()
			cb.transitionTo(BreakerOpen)
		}
		return
	}

	cb.outcomes = append(cb.outcomes, callOutcome{at: cb.now(), failure: !success})
	cb.pruneWindow()

	if !success && cb.state == BreakerClosed && cb.failureRateExceeded() {
		cb.openedAt = cb.now()
		cb.transitionTo(BreakerOpen)
	}
}

func (cb *CircuitBreaker) pruneWindow() {
	cutoff := cb.now().Add(-cb.settings.Window)
	kept := cb.outcomes[:0]
	for _, o := range cb.outcomes {
		if o.at.After(cutoff) {
			kept = append(kept, o)
		}
	}
	cb.outcomes = kept
}

func (cb *CircuitBreaker) failureRateExceeded() bool {
	if len(cb.outcomes) < cb.settings.MinRequests {
		return false
	}

	failures := 0
	for _, o := range cb.outcomes {
		if o.failure {
			failures++
		}
	}

	return float64(failures)/float64(len(cb.outcomes)) >= cb.settings.ErrorThreshold
}

func (cb *CircuitBreaker) transitionTo(state BreakerState) {
	if cb.state == state {
		return
	}
	slog.Warn("circuit breaker state change",
		"provider", cb.provider.Name(),
		"from", cb.state.String(),
		"to", state.String(),
	)
	cb.state = state
}
