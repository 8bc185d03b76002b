package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodType periodicidad de la declaración.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodAnnual    PeriodType = "annual"
)

// Period ventana tributaria (mes, año) que cubre una declaración.
type Period struct {
	Month int
	Year  int
	Type  PeriodType
}

// RegimeType régimen tributario del contribuyente.
type RegimeType string

const (
	RegimeRUS RegimeType = "RUS" // Nuevo Régimen Único Simplificado
	RegimeRER RegimeType = "RER" // Régimen Especial de Renta
	RegimeRG  RegimeType = "RG"  // Régimen General
)

// Regime régimen más categoría opcional (tramo RUS o subtipo RG).
type Regime struct {
	Type     RegimeType
	Category string
}

// Sales agregados de ventas del período.
type Sales struct {
	Taxable decimal.Decimal
	Exempt  decimal.Decimal
	Total   decimal.Decimal
}

// Purchases agregados de compras del período.
type Purchases struct {
	Taxable decimal.Decimal
	Exempt  decimal.Decimal
	Total   decimal.Decimal
	IGVPaid decimal.Decimal // IGV pagado en compras (crédito fiscal)
}

// IGVBlock resultado del IGV. Balance puede ser negativo (saldo a favor).
type IGVBlock struct {
	Collected decimal.Decimal
	Paid      decimal.Decimal
	Balance   decimal.Decimal
}

// RentBlock resultado del pago a cuenta de renta.
type RentBlock struct {
	Base     decimal.Decimal
	Rate     decimal.Decimal
	Amount   decimal.Decimal
	Withheld decimal.Decimal
	Balance  decimal.Decimal
}

// TaxBlock impuestos calculados; nunca se editan a mano.
type TaxBlock struct {
	IGV          IGVBlock
	Rent         RentBlock
	FixedPayment decimal.Decimal // cuota fija del Nuevo RUS
	TotalToPay   decimal.Decimal
}

// Payment datos de pago. TotalToPay es derivado y nunca negativo.
type Payment struct {
	TotalToPay decimal.Decimal
	PaidAt     *time.Time
	Reference  string
}

// DeclarationStatus ciclo de vida visible de la declaración.
type DeclarationStatus string

const (
	DeclarationDraft      DeclarationStatus = "draft"
	DeclarationCalculated DeclarationStatus = "calculated"
	DeclarationSubmitted  DeclarationStatus = "submitted"
	DeclarationPaid       DeclarationStatus = "paid"
	DeclarationCompleted  DeclarationStatus = "completed"
)

// SunatStatus estado de la declaración del lado de la SUNAT.
type SunatStatus string

const (
	SunatDraft     SunatStatus = "draft"
	SunatSubmitted SunatStatus = "submitted"
	SunatAccepted  SunatStatus = "accepted"
	SunatRejected  SunatStatus = "rejected"
	SunatRectified SunatStatus = "rectified"
)

// SunatInfo estado frente a la SUNAT. DueDate se fija una sola vez al crear.
type SunatInfo struct {
	Status      SunatStatus
	Form        string
	DueDate     time.Time
	SubmittedAt *time.Time
	Message     string
}

// Acciones del historial de auditoría.
const (
	ActionCreated    = "created"
	ActionCalculated = "calculated"
	ActionUpdated    = "updated"
	ActionSubmitted  = "submitted"
	ActionAccepted   = "accepted"
	ActionRejected   = "rejected"
	ActionPaid       = "paid"
	ActionCompleted  = "completed"
	ActionRectified  = "rectified"
	ActionRectifying = "rectifying"
)

// Actores que no son el usuario.
const (
	ActorSystem = "system"
	ActorSIRE   = "sire"
)

// HistoryEntry entrada del historial append-only de la declaración.
type HistoryEntry struct {
	Action      string
	Description string
	At          time.Time
	Actor       string
}

// Declaration una declaración tributaria para (owner, período, régimen).
type Declaration struct {
	ID            string
	OwnerID       string
	Period        Period
	Regime        Regime
	Sales         Sales
	Purchases     Purchases
	RentWithheld  decimal.Decimal // retenciones / pagos a cuenta que reducen la renta
	Taxes         TaxBlock
	Payment       Payment
	Sunat         SunatInfo
	Status        DeclarationStatus
	Notes         string
	RectifiesID   string // declaración original cuando esta es una rectificatoria
	RectifiedByID string
	History       []HistoryEntry
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsOpen indica si la declaración aún admite cambios en ventas/compras.
func (d *Declaration) IsOpen() bool {
	return d.Status == DeclarationDraft || d.Status == DeclarationCalculated
}
