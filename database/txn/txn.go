// Package txn centralizes the transaction-with-retry protocol used by every
// multi-document mutation path. Callers hand it a unit of work that re-reads
// everything it depends on; on a write conflict the whole unit is re-run
// against the latest committed state, never replayed partially.
package txn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts bounds how many times a conflicting transaction is
	// re-run before giving up.
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is the first backoff step.
	DefaultBaseDelay = 120 * time.Millisecond

	backoffFactor = 2.0

	writeConflictCode = 112
)

// ConflictExhaustedError is returned after the retry budget is spent on a
// transaction that keeps conflicting.
type ConflictExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ConflictExhaustedError) Error() string {
	return fmt.Sprintf("transaction failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ConflictExhaustedError) Unwrap() error { return e.Last }

// IsConflictExhausted reports whether err is a terminal retry-exhaustion error.
func IsConflictExhausted(err error) bool {
	var ce *ConflictExhaustedError
	return errors.As(err, &ce)
}

// IsTransient reports whether err signals a write conflict that another
// attempt may resolve. Anything else (validation, not-found, network setup)
// must propagate immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.HasErrorLabel("TransientTransactionError") ||
			cmdErr.HasErrorLabel("UnknownTransactionCommitResult") {
			return true
		}
		return cmdErr.Code == writeConflictCode
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		if we.HasErrorLabel("TransientTransactionError") {
			return true
		}
		for _, w := range we.WriteErrors {
			if w.Code == writeConflictCode {
				return true
			}
		}
	}
	return false
}

// Runner executes a unit of work inside one database transaction.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoRunner struct {
	client *mongo.Client
}

func (r *mongoRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
}

// Coordinator wraps transactional units of work with bounded, jittered
// retries on write-conflict errors.
type Coordinator struct {
	Runner      Runner
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *zap.Logger
}

// NewCoordinator builds a coordinator backed by real MongoDB transactions.
func NewCoordinator(client *mongo.Client, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *Coordinator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Coordinator{
		Runner:      &mongoRunner{client: client},
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Logger:      logger,
	}
}

// WithRetry runs fn inside a transaction, retrying the whole unit on write
// conflicts. fn must reload every entity it depends on at the start of each
// attempt; side effects outside the transaction are forbidden. The backoff
// sleep happens after the failed transaction is aborted, so no locks are
// held while waiting.
func (c *Coordinator) WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt); err != nil {
				return err
			}
		}
		err := c.Runner.Run(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		last = err
		if c.Logger != nil {
			c.Logger.Warn("transaction conflict, retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.MaxAttempts),
				zap.Error(err))
		}
	}
	return &ConflictExhaustedError{Attempts: c.MaxAttempts, Last: last}
}

func (c *Coordinator) sleep(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(backoffFactor, float64(attempt-1)))
	jitter := time.Duration(rand.Int63n(int64(c.BaseDelay)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay + jitter):
		return nil
	}
}
