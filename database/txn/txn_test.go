package txn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// scriptedRunner returns the queued errors in order, then nil.
type scriptedRunner struct {
	errs []error
	runs int
}

func (r *scriptedRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	r.runs++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return err
	}
	return fn(ctx)
}

func conflictErr() error {
	return mongo.CommandError{Code: writeConflictCode, Message: "WriteConflict", Labels: []string{"TransientTransactionError"}}
}

func testCoordinator(r Runner) *Coordinator {
	return &Coordinator{
		Runner:      r,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Logger:      zap.NewNop(),
	}
}

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	runner := &scriptedRunner{}
	c := testCoordinator(runner)

	calls := 0
	err := c.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, runner.runs)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RecoversAfterConflicts(t *testing.T) {
	runner := &scriptedRunner{errs: []error{conflictErr(), conflictErr()}}
	c := testCoordinator(runner)

	err := c.WithRetry(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, runner.runs)
}

func TestWithRetry_ExhaustsOnPerpetualConflict(t *testing.T) {
	runner := &scriptedRunner{errs: []error{conflictErr(), conflictErr(), conflictErr(), conflictErr()}}
	c := testCoordinator(runner)

	err := c.WithRetry(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, IsConflictExhausted(err))
	// The retry budget is a hard bound.
	assert.Equal(t, c.MaxAttempts, runner.runs)

	var ce *ConflictExhaustedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, c.MaxAttempts, ce.Attempts)
	assert.True(t, IsTransient(ce.Last))
}

func TestWithRetry_NonTransientFailsImmediately(t *testing.T) {
	fatal := errors.New("validation: amount must be positive")
	runner := &scriptedRunner{errs: []error{fatal}}
	c := testCoordinator(runner)

	err := c.WithRetry(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, runner.runs)
	assert.False(t, IsConflictExhausted(err))
}

func TestWithRetry_ContextCancellationStopsBackoff(t *testing.T) {
	runner := &scriptedRunner{errs: []error{conflictErr(), conflictErr(), conflictErr()}}
	c := testCoordinator(runner)
	c.BaseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.WithRetry(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	// First attempt runs before any backoff; cancellation stops the second.
	assert.Equal(t, 1, runner.runs)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"write conflict code", mongo.CommandError{Code: writeConflictCode}, true},
		{"transient label", mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}, true},
		{"unknown commit result", mongo.CommandError{Code: 0, Labels: []string{"UnknownTransactionCommitResult"}}, true},
		{"other command error", mongo.CommandError{Code: 11000, Message: "duplicate key"}, false},
		{"plain error", errors.New("boom"), false},
		{"write exception conflict", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: writeConflictCode}}}, true},
		{"write exception other", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}, false},
		{"wrapped conflict", &ConflictExhaustedError{Attempts: 3, Last: mongo.CommandError{Code: writeConflictCode}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestConflictExhaustedError_Unwrap(t *testing.T) {
	inner := mongo.CommandError{Code: writeConflictCode}
	err := &ConflictExhaustedError{Attempts: 5, Last: inner}
	var cmd mongo.CommandError
	assert.True(t, errors.As(err, &cmd))
	assert.Contains(t, err.Error(), "5 attempts")
}
