// Package query is the data-access layer: per-entity query and
// mutation surfaces that register remote reads under structured cache
// keys and write through to the remote store, invalidating dependent
// keys afterwards.
package query

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/storage"
)

const (
	defaultListTTL   = 30 * time.Second
	defaultDetailTTL = time.Minute
	defaultViewTTL   = 30 * time.Second

	retryDelay    = 250 * time.Millisecond
	retryMaxDelay = 2 * time.Second
)

// ValidationError marks input rejected before any remote call. It is
// never retried.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// withRetry runs fn and retries it exactly once after a backoff when it
// fails with a remote error. Not-found is a result, not a fault, and is
// returned immediately.
func withRetry(ctx context.Context, logger *log.Logger, op string, fn func() error) error {
	err := fn()
	if err == nil || errors.Is(err, storage.ErrNotFound) || ctx.Err() != nil {
		return err
	}

	delay := retryDelay * 2
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	if logger != nil {
		logger.WithFields(log.Fields{"op": op, "error": err.Error()}).Warn("remote call failed; retrying once")
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn()
}
