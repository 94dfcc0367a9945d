// Package ratelimit enforces per-client request budgets over a fixed window.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidQuota = errors.New("rate limit quota must be positive")

// Quota allows Limit requests per Window.
type Quota struct {
	Limit  int
	Window time.Duration
}

func (q Quota) valid() bool {
	return q.Limit > 0 && q.Window > 0
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Store keeps request budgets by key.
type Store interface {
	// Peek reports whether one more request fits without consuming it.
	Peek(ctx context.Context, key string, q Quota) (Result, error)
	// Take consumes one request from the budget.
	Take(ctx context.Context, key string, q Quota) (Result, error)
	Name() string
}

// Limiter binds a store to one named quota.
type Limiter struct {
	name  string
	quota Quota
	store Store
	// SkipSuccessful only charges requests that end with status >= 400.
	SkipSuccessful bool
}

func NewLimiter(name string, store Store, quota Quota) *Limiter {
	return &Limiter{name: name, quota: quota, store: store}
}

func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) Quota() Quota {
	return l.quota
}

func (l *Limiter) key(client string) string {
	return "rl:" + l.name + ":" + client
}

func (l *Limiter) Allow(ctx context.Context, client string) (Result, error) {
	if !l.quota.valid() {
		return Result{}, ErrInvalidQuota
	}
	return l.store.Take(ctx, l.key(client), l.quota)
}

func (l *Limiter) Peek(ctx context.Context, client string) (Result, error) {
	if !l.quota.valid() {
		return Result{}, ErrInvalidQuota
	}
	return l.store.Peek(ctx, l.key(client), l.quota)
}
