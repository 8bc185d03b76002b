package billing

import (
	"context"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

// BillingTxRunner ejecuta fn en una transacción que incluye contadores y comprobantes,
// de modo que el correlativo y el comprobante se confirman o se descartan juntos.
type BillingTxRunner interface {
	RunBilling(ctx context.Context, fn func(
		sequenceRepo repository.SequenceRepository,
		invoiceRepo repository.InvoiceRepository,
	) error) error
}

// PeriodRollup vuelca el agregado de ventas del período en su declaración.
type PeriodRollup interface {
	ApplySales(ctx context.Context, ownerID string, year, month int, regime entity.Regime, sales entity.Sales) error
}

// ProfileProvider perfil tributario del emisor; nil si no está configurado.
type ProfileProvider interface {
	Profile(ctx context.Context, ownerID string) (*entity.TaxpayerProfile, error)
}

// XMLRenderer representación UBL 2.1 del comprobante.
type XMLRenderer interface {
	Render(invoice *entity.Invoice, issuer *entity.TaxpayerProfile) ([]byte, error)
}
