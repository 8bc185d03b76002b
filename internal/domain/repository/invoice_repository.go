package repository

import (
	"context"
	"time"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para comprobantes y sus líneas.
type InvoiceRepository interface {
	// Create persiste cabecera y líneas. Un (owner, serie, número) repetido devuelve domain.ErrSequencing.
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// SumSales agrega las ventas del owner emitidas en [from, to).
	SumSales(ctx context.Context, ownerID string, from, to time.Time) (entity.Sales, error)
}
