// Buddybridge - Baby Buddy Polling Bridge
// Copyright 2026 Buddybridge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/buddybridge/buddybridge

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/buddybridge/buddybridge/internal/logging"
	"github.com/buddybridge/buddybridge/internal/metrics"
	"github.com/buddybridge/buddybridge/internal/models"
)

// BreakerClient wraps an API client with a circuit breaker so that a
// dead or hanging upstream fails fast instead of stacking up blocked
// poll cycles and action requests.
//
// The breaker uses real time for its interval and timeout windows.
// Tests that need determinism should exercise the wrapped client
// directly.
type BreakerClient struct {
	client API
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// Ensure BreakerClient implements API
var _ API = (*BreakerClient)(nil)

// NewBreakerClient wraps client with circuit breaker protection.
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewBreakerClient(client API) *BreakerClient {
	cbName := "babybuddy-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps an API call with circuit breaker protection.
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()

			counts := bc.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(0)

	return result, nil
}

// castResult safely type-casts a circuit breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// Connect probes the upstream through the breaker.
func (bc *BreakerClient) Connect(ctx context.Context) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.Connect(ctx)
	})
	return err
}

// Children retrieves the child roster through the breaker.
func (bc *BreakerClient) Children(ctx context.Context) (*models.ChildrenPage, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.Children(ctx)
	})
	return castResult[*models.ChildrenPage](result, err)
}

// First retrieves the latest category entry through the breaker.
func (bc *BreakerClient) First(ctx context.Context, endpoint string, childID int) (models.Record, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.First(ctx, endpoint, childID)
	})
	return castResult[models.Record](result, err)
}

// Create posts a new entry through the breaker.
func (bc *BreakerClient) Create(ctx context.Context, endpoint string, data map[string]any) (models.Record, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.Create(ctx, endpoint, data)
	})
	return castResult[models.Record](result, err)
}

// Update patches an entry through the breaker.
func (bc *BreakerClient) Update(ctx context.Context, endpoint string, id int, data map[string]any) (models.Record, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.Update(ctx, endpoint, id, data)
	})
	return castResult[models.Record](result, err)
}

// Delete removes an entry through the breaker.
func (bc *BreakerClient) Delete(ctx context.Context, endpoint string, id int) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.Delete(ctx, endpoint, id)
	})
	return err
}

// State returns the breaker's current state for health reporting.
func (bc *BreakerClient) State() gobreaker.State {
	return bc.cb.State()
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
