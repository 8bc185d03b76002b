package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
	"github.com/jhoicas/tributa-api/pkg/sunat"
)

// DefaultAllocationAttempts intentos ante carrera perdida antes de fallar.
const DefaultAllocationAttempts = 3

// PersistFunc guarda el documento numerado usando el repositorio de la misma transacción.
type PersistFunc func(ctx context.Context, series, number string, invoiceRepo repository.InvoiceRepository) error

// SequenceAllocator emite correlativos de 8 dígitos por (owner, tipo, serie) sin huecos ni duplicados.
// El incremento del contador y el alta del comprobante viajan en la misma transacción.
type SequenceAllocator struct {
	tx          BillingTxRunner
	maxAttempts int
	log         zerolog.Logger
}

// NewSequenceAllocator construye el asignador.
func NewSequenceAllocator(tx BillingTxRunner, log zerolog.Logger) *SequenceAllocator {
	return &SequenceAllocator{tx: tx, maxAttempts: DefaultAllocationAttempts, log: log}
}

// Allocate reserva el siguiente número y ejecuta persist en la misma transacción.
// Si persist falla, el contador no avanza. Reintenta solo ante domain.ErrSequencing.
func (a *SequenceAllocator) Allocate(ctx context.Context, ownerID, documentType string, persist PersistFunc) (series, number string, err error) {
	series, err = sunat.SeriesFor(documentType)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		err = a.tx.RunBilling(ctx, func(seqRepo repository.SequenceRepository, invRepo repository.InvoiceRepository) error {
			n, err := seqRepo.Next(ctx, ownerID, documentType, series, time.Now())
			if err != nil {
				return err
			}
			number = sunat.FormatNumber(n)
			if persist == nil {
				return nil
			}
			return persist(ctx, series, number, invRepo)
		})
		if err == nil {
			return series, number, nil
		}
		if !errors.Is(err, domain.ErrSequencing) {
			return "", "", err
		}
		a.log.Warn().Err(err).Str("owner_id", ownerID).Str("series", series).Int("attempt", attempt).
			Msg("carrera perdida asignando correlativo; reintentando")
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
	}
	return "", "", fmt.Errorf("%w: %d intentos agotados (%v)", domain.ErrSequencing, a.maxAttempts, err)
}

// NextNumber reserva y confirma el siguiente correlativo sin documento asociado.
func (a *SequenceAllocator) NextNumber(ctx context.Context, ownerID, documentType string) (series, number string, err error) {
	return a.Allocate(ctx, ownerID, documentType, nil)
}
