// Package store provides storage backends for welcomebot.
//
// This file implements a reusable retry policy applied uniformly to every
// persistence call through a decorating Store.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// RetryPolicy retries an operation a fixed number of times with
// exponential backoff. The zero value is not usable; use DefaultRetryPolicy
// or construct one explicitly.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the persistence retry behavior: three
// attempts with 1s, 2s backoff between them.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

// Do runs op, retrying on error until the attempt budget is spent or the
// context is done. The delay doubles after each failed attempt.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	var err error
	delay := p.BaseDelay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		slog.Warn("store operation failed", "attempt", attempt, "max_attempts", p.MaxAttempts, "error", err)
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		delay *= 2
	}
	return fmt.Errorf("store operation failed after %d attempts: %w", p.MaxAttempts, err)
}

// Retrying wraps a Store so every call goes through the same retry policy.
// Callers that exhaust the policy degrade (fallback reward serial,
// re-prompt) instead of crashing the handler.
type Retrying struct {
	inner  Store
	policy RetryPolicy
}

// NewRetrying wraps inner with the given retry policy.
func NewRetrying(inner Store, policy RetryPolicy) *Retrying {
	return &Retrying{inner: inner, policy: policy}
}

func (r *Retrying) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	var profile *models.UserProfile
	err := r.policy.Do(ctx, func() error {
		var opErr error
		profile, opErr = r.inner.GetProfile(ctx, id)
		return opErr
	})
	return profile, err
}

func (r *Retrying) InsertProfileIfAbsent(ctx context.Context, profile models.UserProfile) (bool, error) {
	var inserted bool
	err := r.policy.Do(ctx, func() error {
		var opErr error
		inserted, opErr = r.inner.InsertProfileIfAbsent(ctx, profile)
		return opErr
	})
	return inserted, err
}

func (r *Retrying) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	return r.policy.Do(ctx, func() error {
		return r.inner.UpdateProfile(ctx, id, upd)
	})
}

func (r *Retrying) IncrementCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.policy.Do(ctx, func() error {
		var opErr error
		value, opErr = r.inner.IncrementCounter(ctx, name)
		return opErr
	})
	return value, err
}

func (r *Retrying) ListAnswerVectors(ctx context.Context) ([]models.AnswerVector, error) {
	var vectors []models.AnswerVector
	err := r.policy.Do(ctx, func() error {
		var opErr error
		vectors, opErr = r.inner.ListAnswerVectors(ctx)
		return opErr
	})
	return vectors, err
}

func (r *Retrying) Close() error {
	return r.inner.Close()
}
