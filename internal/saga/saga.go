package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dimitrije/teamforge/internal/logging"
)

// ErrDegraded marks a failure after which at least one compensation could
// not be applied. The world may hold a partial state that needs repair.
var ErrDegraded = errors.New("saga compensation incomplete")

const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeDegraded   = "degraded"
)

// Step is one side effect of a saga and the action that undoes it.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error

	// CompensateOnFailure also runs Compensate when Do itself fails, for
	// steps whose Do can half-succeed and whose Compensate is idempotent.
	CompensateOnFailure bool
}

type CompensationResult struct {
	Step string
	Err  error
}

// DegradedError reports the original failure together with every
// compensation that failed. errors.Is matches both the cause and ErrDegraded.
type DegradedError struct {
	Saga     string
	Step     string
	Cause    error
	Failures []CompensationResult
}

func (e *DegradedError) Error() string {
	steps := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		steps[i] = f.Step
	}
	return fmt.Sprintf("%s failed at %s: %v (uncompensated: %s)", e.Saga, e.Step, e.Cause, strings.Join(steps, ", "))
}

func (e *DegradedError) Unwrap() []error {
	return []error{e.Cause, ErrDegraded}
}

// Observer receives saga outcomes. *metrics.Metrics satisfies it.
type Observer interface {
	SagaFinished(saga, outcome string, seconds float64)
	CompensationFailed(saga, step string)
}

type Coordinator struct {
	logger              *slog.Logger
	observer            Observer
	stepTimeout         time.Duration
	compensationRetries uint64
}

func NewCoordinator(logger *slog.Logger, observer Observer, stepTimeout time.Duration) *Coordinator {
	return &Coordinator{
		logger:              logging.OrDefault(logger),
		observer:            observer,
		stepTimeout:         stepTimeout,
		compensationRetries: 2,
	}
}

// Run executes steps in order. When a step fails, compensations of the
// steps already completed run in reverse order and the step's error is
// returned unchanged. If a compensation fails too, the result is a
// *DegradedError wrapping the step's error.
func (c *Coordinator) Run(ctx context.Context, name string, steps ...Step) error {
	start := time.Now()

	for i, step := range steps {
		err := c.do(ctx, step)
		if err == nil {
			continue
		}

		c.logger.Warn("saga step failed", "saga", name, "step", step.Name, "error", err)

		done := steps[:i]
		if step.CompensateOnFailure {
			done = steps[:i+1]
		}
		failures := c.compensate(ctx, name, done)

		if len(failures) > 0 {
			c.finish(name, OutcomeDegraded, start)
			return &DegradedError{Saga: name, Step: step.Name, Cause: err, Failures: failures}
		}
		c.finish(name, OutcomeRolledBack, start)
		return err
	}

	c.finish(name, OutcomeCommitted, start)
	return nil
}

func (c *Coordinator) do(ctx context.Context, step Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stepCtx := ctx
	if c.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, c.stepTimeout)
		defer cancel()
	}
	return step.Do(stepCtx)
}

// compensate undoes done in reverse. Compensations run even when the
// caller's context is cancelled, and each one gets a few bounded retries.
func (c *Coordinator) compensate(ctx context.Context, name string, done []Step) []CompensationResult {
	base := context.WithoutCancel(ctx)

	var failures []CompensationResult
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}

		op := func() error {
			stepCtx := base
			if c.stepTimeout > 0 {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(base, c.stepTimeout)
				defer cancel()
			}
			return step.Compensate(stepCtx)
		}

		b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(50*time.Millisecond),
			backoff.WithMaxInterval(time.Second),
		), c.compensationRetries)

		if err := backoff.Retry(op, b); err != nil {
			c.logger.Error("saga compensation failed", "saga", name, "step", step.Name, "error", err)
			if c.observer != nil {
				c.observer.CompensationFailed(name, step.Name)
			}
			failures = append(failures, CompensationResult{Step: step.Name, Err: err})
			continue
		}
		c.logger.Info("saga step compensated", "saga", name, "step", step.Name)
	}
	return failures
}

func (c *Coordinator) finish(name, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.SagaFinished(name, outcome, time.Since(start).Seconds())
	}
}
