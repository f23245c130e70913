// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRevisionMismatch = errors.New("wrong last sequence")

func TestRetryWithExponentialBackoff(t *testing.T) {
	tests := []struct {
		name          string
		config        RetryConfig
		failures      int
		failWith      error
		wantCalls     int
		wantErr       bool
		wantErrSubstr string
	}{
		{
			name:      "succeeds first time",
			config:    NewRetryConfig(3, time.Millisecond, 10*time.Millisecond),
			wantCalls: 1,
		},
		{
			name:      "succeeds after two conflicts",
			config:    NewRetryConfig(3, time.Millisecond, 10*time.Millisecond),
			failures:  2,
			failWith:  errRevisionMismatch,
			wantCalls: 3,
		},
		{
			name:          "gives up after max attempts",
			config:        NewRetryConfig(3, time.Millisecond, 10*time.Millisecond),
			failures:      10,
			failWith:      errRevisionMismatch,
			wantCalls:     3,
			wantErr:       true,
			wantErrSubstr: "failed after 3 attempts",
		},
		{
			name: "stops on non-retryable error",
			config: NewRetryConfig(5, time.Millisecond, 10*time.Millisecond).
				WithRetryable(func(err error) bool { return errors.Is(err, errRevisionMismatch) }),
			failures:      10,
			failWith:      errors.New("bucket not found"),
			wantCalls:     1,
			wantErr:       true,
			wantErrSubstr: "bucket not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithExponentialBackoff(context.Background(), tt.config, func() error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrSubstr)
				assert.ErrorIs(t, err, tt.failWith)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRetryWithExponentialBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := NewRetryConfig(5, 50*time.Millisecond, time.Second)

	calls := 0
	err := RetryWithExponentialBackoff(ctx, config, func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errRevisionMismatch
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestRetryWithExponentialBackoff_DelayIsCapped(t *testing.T) {
	config := NewRetryConfig(5, 5*time.Millisecond, 12*time.Millisecond)

	var attempts []time.Time
	_ = RetryWithExponentialBackoff(context.Background(), config, func() error {
		attempts = append(attempts, time.Now())
		return errRevisionMismatch
	})

	require.Len(t, attempts, 5)
	assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), 5*time.Millisecond)
	assert.GreaterOrEqual(t, attempts[2].Sub(attempts[1]), 10*time.Millisecond)
	// 5ms * 2^3 = 40ms would exceed the cap
	assert.GreaterOrEqual(t, attempts[4].Sub(attempts[3]), 12*time.Millisecond)
	assert.Less(t, attempts[4].Sub(attempts[3]), 40*time.Millisecond)
}
