package store

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = time.Second
)

// RetryConfig controls the retry decorator.
type RetryConfig struct {
	Attempts int           // total attempts, including the first
	Backoff  time.Duration // fixed delay between attempts
	Clock    clockwork.Clock
}

// DefaultRetryConfig returns 3 attempts with a fixed 1s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: DefaultRetryAttempts,
		Backoff:  DefaultRetryBackoff,
		Clock:    clockwork.NewRealClock(),
	}
}

// Retrying wraps a Store and retries each operation independently on
// transient failure. Every operation is retried as a whole, so UpsertKV and
// UpdateRowByID are safe to repeat; AppendRow may duplicate a row if the
// backend applied a write and then failed to acknowledge it.
type Retrying struct {
	inner Store
	cfg   RetryConfig
}

// NewRetrying wraps inner. Attempts <= 0 uses the default; a zero Backoff
// retries immediately.
func NewRetrying(inner Store, cfg RetryConfig) *Retrying {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultRetryAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Retrying{inner: inner, cfg: cfg}
}

func (r *Retrying) ReadTable(ctx context.Context, table string) ([]Record, error) {
	var rows []Record
	err := r.do(ctx, OpReadTable, table, func() error {
		var err error
		rows, err = r.inner.ReadTable(ctx, table)
		return err
	})
	return rows, err
}

func (r *Retrying) UpsertKV(ctx context.Context, table, key, value string) error {
	return r.do(ctx, OpUpsertKV, table, func() error {
		return r.inner.UpsertKV(ctx, table, key, value)
	})
}

func (r *Retrying) UpdateRowByID(ctx context.Context, table, idColumn, idValue string, fields map[string]string) error {
	return r.do(ctx, OpUpdateRowByID, table, func() error {
		return r.inner.UpdateRowByID(ctx, table, idColumn, idValue, fields)
	})
}

func (r *Retrying) AppendRow(ctx context.Context, table string, fields map[string]string) error {
	return r.do(ctx, OpAppendRow, table, func() error {
		return r.inner.AppendRow(ctx, table, fields)
	})
}

// EnsureSchema forwards to the wrapped store when it supports it.
func (r *Retrying) EnsureSchema(ctx context.Context, schema Schema) error {
	init, ok := r.inner.(Initializer)
	if !ok {
		return nil
	}
	return init.EnsureSchema(ctx, schema)
}

func (r *Retrying) do(ctx context.Context, op Op, table string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("op", string(op)).
					Str("table", table).
					Int("attempt", attempt).
					Msg("store operation succeeded after retry")
			}
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt == r.cfg.Attempts {
			break
		}

		log.Warn().
			Err(err).
			Str("op", string(op)).
			Str("table", table).
			Int("attempt", attempt).
			Int("max_attempts", r.cfg.Attempts).
			Msg("store operation failed, retrying")

		if r.cfg.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.cfg.Clock.After(r.cfg.Backoff):
			}
		}
	}

	log.Error().
		Err(lastErr).
		Str("op", string(op)).
		Str("table", table).
		Int("attempts", r.cfg.Attempts).
		Msg("store unavailable")

	// Unwrap to the cause so the result no longer reads as retryable.
	cause := lastErr
	var transient *TransientError
	if errors.As(lastErr, &transient) {
		cause = transient.Err
	}
	return &UnavailableError{Op: op, Table: table, Attempts: r.cfg.Attempts, Err: cause}
}
