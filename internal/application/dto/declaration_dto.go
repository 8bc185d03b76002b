package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// RegimeDTO régimen y categoría.
type RegimeDTO struct {
	Type     string `json:"type" validate:"required,max=5"`
	Category string `json:"category,omitempty" validate:"max=20"`
}

// SalesDTO agregados de ventas. Si Total va en cero se toma gravadas + exoneradas.
type SalesDTO struct {
	Taxable decimal.Decimal `json:"taxable" validate:"gte=0"`
	Exempt  decimal.Decimal `json:"exempt" validate:"gte=0"`
	Total   decimal.Decimal `json:"total" validate:"gte=0"`
}

// PurchasesDTO agregados de compras.
type PurchasesDTO struct {
	Taxable decimal.Decimal `json:"taxable" validate:"gte=0"`
	Exempt  decimal.Decimal `json:"exempt" validate:"gte=0"`
	Total   decimal.Decimal `json:"total" validate:"gte=0"`
	IGVPaid decimal.Decimal `json:"igv_paid" validate:"gte=0"`
}

// UpsertPeriodRequest body para PUT /api/declarations/periods/:year/:month.
// RentWithheld nil conserva la retención guardada.
type UpsertPeriodRequest struct {
	Type         string           `json:"type,omitempty" validate:"omitempty,oneof=monthly quarterly annual"`
	Regime       RegimeDTO        `json:"regime"`
	Sales        SalesDTO         `json:"sales"`
	Purchases    PurchasesDTO     `json:"purchases"`
	RentWithheld *decimal.Decimal `json:"rent_withheld,omitempty" validate:"omitempty,gte=0"`
}

// CreateDeclarationRequest alta explícita de la declaración de un período.
type CreateDeclarationRequest struct {
	Year  int `json:"year" validate:"required"`
	Month int `json:"month" validate:"required,min=1,max=12"`
	UpsertPeriodRequest
}

// UpdateDeclarationRequest body para PATCH /api/declarations/:id. Version es la leída por el cliente.
type UpdateDeclarationRequest struct {
	Version      int              `json:"version" validate:"required,gte=1"`
	Notes        *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
	RentWithheld *decimal.Decimal `json:"rent_withheld,omitempty" validate:"omitempty,gte=0"`
}

// PaymentRequest body para POST /api/declarations/:id/payment.
type PaymentRequest struct {
	Reference string `json:"reference" validate:"required,max=100"`
}

// VerdictRequest body para POST /api/declarations/:id/verdict.
type VerdictRequest struct {
	Accepted *bool  `json:"accepted" validate:"required"`
	Message  string `json:"message,omitempty" validate:"max=500"`
}

// TaxesDTO bloque de impuestos calculado.
type TaxesDTO struct {
	IGV struct {
		Collected decimal.Decimal `json:"collected"`
		Paid      decimal.Decimal `json:"paid"`
		Balance   decimal.Decimal `json:"balance"`
	} `json:"igv"`
	Rent struct {
		Base     decimal.Decimal `json:"base"`
		Rate     decimal.Decimal `json:"rate"`
		Amount   decimal.Decimal `json:"amount"`
		Withheld decimal.Decimal `json:"withheld"`
		Balance  decimal.Decimal `json:"balance"`
	} `json:"rent"`
	FixedPayment decimal.Decimal `json:"fixed_payment"`
	TotalToPay   decimal.Decimal `json:"total_to_pay"`
}

// HistoryDTO entrada del historial.
type HistoryDTO struct {
	Action      string    `json:"action"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
	Actor       string    `json:"actor"`
}

// DeclarationResponse declaración con impuestos e historial.
type DeclarationResponse struct {
	ID           string          `json:"id"`
	Period       PeriodDTO       `json:"period"`
	Regime       RegimeDTO       `json:"regime"`
	Sales        SalesDTO        `json:"sales"`
	Purchases    PurchasesDTO    `json:"purchases"`
	RentWithheld decimal.Decimal `json:"rent_withheld"`
	Taxes        TaxesDTO        `json:"taxes"`
	Payment      struct {
		TotalToPay decimal.Decimal `json:"total_to_pay"`
		PaidAt     *time.Time      `json:"paid_at,omitempty"`
		Reference  string          `json:"reference,omitempty"`
	} `json:"payment"`
	Sunat struct {
		Status      string     `json:"status"`
		Form        string     `json:"form"`
		DueDate     string     `json:"due_date"`
		SubmittedAt *time.Time `json:"submitted_at,omitempty"`
		Message     string     `json:"message,omitempty"`
	} `json:"sunat"`
	Status        string       `json:"status"`
	Notes         string       `json:"notes,omitempty"`
	RectifiesID   string       `json:"rectifies_id,omitempty"`
	RectifiedByID string       `json:"rectified_by_id,omitempty"`
	History       []HistoryDTO `json:"history"`
	Version       int          `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// PeriodDTO período tributario.
type PeriodDTO struct {
	Month int    `json:"month"`
	Year  int    `json:"year"`
	Type  string `json:"type"`
	Key   string `json:"key"`
}

// NewDeclarationResponse arma la respuesta a partir de la entidad.
func NewDeclarationResponse(d *entity.Declaration) *DeclarationResponse {
	out := &DeclarationResponse{
		ID: d.ID,
		Period: PeriodDTO{
			Month: d.Period.Month,
			Year:  d.Period.Year,
			Type:  string(d.Period.Type),
			Key:   fmt.Sprintf("%04d%02d", d.Period.Year, d.Period.Month),
		},
		Regime:        RegimeDTO{Type: string(d.Regime.Type), Category: d.Regime.Category},
		Sales:         SalesDTO{Taxable: d.Sales.Taxable, Exempt: d.Sales.Exempt, Total: d.Sales.Total},
		Purchases:     PurchasesDTO{Taxable: d.Purchases.Taxable, Exempt: d.Purchases.Exempt, Total: d.Purchases.Total, IGVPaid: d.Purchases.IGVPaid},
		RentWithheld:  d.RentWithheld,
		Status:        string(d.Status),
		Notes:         d.Notes,
		RectifiesID:   d.RectifiesID,
		RectifiedByID: d.RectifiedByID,
		History:       make([]HistoryDTO, 0, len(d.History)),
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	out.Taxes.IGV.Collected = d.Taxes.IGV.Collected
	out.Taxes.IGV.Paid = d.Taxes.IGV.Paid
	out.Taxes.IGV.Balance = d.Taxes.IGV.Balance
	out.Taxes.Rent.Base = d.Taxes.Rent.Base
	out.Taxes.Rent.Rate = d.Taxes.Rent.Rate
	out.Taxes.Rent.Amount = d.Taxes.Rent.Amount
	out.Taxes.Rent.Withheld = d.Taxes.Rent.Withheld
	out.Taxes.Rent.Balance = d.Taxes.Rent.Balance
	out.Taxes.FixedPayment = d.Taxes.FixedPayment
	out.Taxes.TotalToPay = d.Taxes.TotalToPay

	out.Payment.TotalToPay = d.Payment.TotalToPay
	out.Payment.PaidAt = d.Payment.PaidAt
	out.Payment.Reference = d.Payment.Reference

	out.Sunat.Status = string(d.Sunat.Status)
	out.Sunat.Form = d.Sunat.Form
	out.Sunat.DueDate = d.Sunat.DueDate.Format("2006-01-02")
	out.Sunat.SubmittedAt = d.Sunat.SubmittedAt
	out.Sunat.Message = d.Sunat.Message

	for _, h := range d.History {
		out.History = append(out.History, HistoryDTO{Action: h.Action, Description: h.Description, At: h.At, Actor: h.Actor})
	}
	return out
}
