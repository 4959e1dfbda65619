// Package fallback drives ordered chains of alternative strategies: each step
// is tried in turn, failures are logged and skipped, and the first success wins.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrExhausted is returned when every step of a chain failed.
	ErrExhausted = errors.New("all fallback steps failed")

	// ErrSkip lets a step decline without being logged as a failure.
	ErrSkip = errors.New("step not applicable")
)

// Step is one entry of a fallback chain.
type Step[T any] struct {
	Name string
	// Timeout bounds the step. Zero means the step only observes the parent context.
	Timeout time.Duration
	Run     func(ctx context.Context) (T, error)
}

// Run executes steps in order and returns the first successful value with the
// name of the step that produced it. When every step fails the returned error
// wraps ErrExhausted and each step error.
func Run[T any](ctx context.Context, logger *logrus.Logger, stage string, steps []Step[T]) (T, string, error) {
	var zero T
	errs := []error{ErrExhausted}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return zero, "", errors.Join(errs...)
		}

		value, err := runStep(ctx, step)
		if err == nil {
			if i > 0 {
				logger.WithFields(logrus.Fields{
					"stage":    stage,
					"step":     step.Name,
					"position": i,
				}).Debug("Fallback step succeeded")
			}
			return value, step.Name, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		if errors.Is(err, ErrSkip) {
			continue
		}

		logger.WithFields(logrus.Fields{
			"stage": stage,
			"step":  step.Name,
		}).WithError(err).Warn("Fallback step failed, advancing")
	}

	return zero, "", errors.Join(errs...)
}

func runStep[T any](ctx context.Context, step Step[T]) (T, error) {
	if step.Timeout <= 0 {
		return step.Run(ctx)
	}

	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := step.Run(stepCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-stepCtx.Done():
		var zero T
		return zero, stepCtx.Err()
	}
}
