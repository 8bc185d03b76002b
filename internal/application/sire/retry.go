package sire

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jhoicas/tributa-api/internal/domain"
)

// RetryPolicy reintentos con backoff exponencial para llamadas a la SUNAT.
// Solo se reintenta domain.ErrExternalTransient; credenciales rechazadas y demás errores cortan de inmediato.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy 4 intentos: 500ms, 1s, 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
	}
}

// Retryable indica si el error amerita otro intento.
func Retryable(err error) bool {
	return errors.Is(err, domain.ErrExternalTransient)
}

// Do ejecuta op hasta MaxAttempts veces. Devuelve el último error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		exp.Multiplier = p.Multiplier
	}
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil || Retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}
