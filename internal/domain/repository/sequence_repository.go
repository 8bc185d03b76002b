package repository

import (
	"context"
	"time"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// SequenceRepository contadores de correlativos. Next es la única vía para modificar LastIssuedNumber.
type SequenceRepository interface {
	// Next incrementa y lee en una sola operación atómica; la primera llamada devuelve 1.
	Next(ctx context.Context, ownerID, documentType, series string, now time.Time) (int64, error)
	Get(ctx context.Context, ownerID, documentType, series string) (*entity.SequenceCounter, error)
}
