package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var _ repository.SequenceRepository = (*SequenceRepo)(nil)

// SequenceRepo contadores de correlativos (usable con pool o tx).
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Next incrementa y lee en un único UPSERT. La fila queda bloqueada hasta el fin de la transacción.
func (r *SequenceRepo) Next(ctx context.Context, ownerID, documentType, series string, now time.Time) (int64, error) {
	const query = `
		INSERT INTO sequence_counters (owner_id, document_type, series, last_issued_number, updated_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (owner_id, document_type, series)
		DO UPDATE SET last_issued_number = sequence_counters.last_issued_number + 1,
		              updated_at         = EXCLUDED.updated_at
		RETURNING last_issued_number`
	var n int64
	if err := r.q.QueryRow(ctx, query, ownerID, documentType, series, now).Scan(&n); err != nil {
		if isSequencingConflict(err) {
			return 0, fmt.Errorf("%w: next sequence: %v", domain.ErrSequencing, err)
		}
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return n, nil
}

// Get contador actual o nil.
func (r *SequenceRepo) Get(ctx context.Context, ownerID, documentType, series string) (*entity.SequenceCounter, error) {
	const query = `
		SELECT owner_id, document_type, series, last_issued_number, updated_at
		FROM sequence_counters WHERE owner_id = $1 AND document_type = $2 AND series = $3`
	var c entity.SequenceCounter
	err := r.q.QueryRow(ctx, query, ownerID, documentType, series).Scan(
		&c.OwnerID, &c.DocumentType, &c.Series, &c.LastIssuedNumber, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	return &c, nil
}
