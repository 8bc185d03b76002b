package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// CreateInvoiceRequest body para POST /api/invoices.
// IssueDate opcional (AAAA-MM-DD); vacío es la fecha actual en Lima.
type CreateInvoiceRequest struct {
	DocumentType string               `json:"document_type" validate:"required,oneof=factura boleta"`
	IssueDate    string               `json:"issue_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Client       ClientRequest        `json:"client"`
	Items        []InvoiceItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

// ClientRequest receptor del comprobante.
type ClientRequest struct {
	IdentityType   string `json:"identity_type" validate:"omitempty,oneof=0 1 6"`
	DocumentNumber string `json:"document_number" validate:"omitempty,numeric,max=15"`
	Name           string `json:"name" validate:"required,max=200"`
	Address        string `json:"address,omitempty" validate:"max=300"`
}

// InvoiceItemRequest línea del comprobante. UnitPrice sin IGV.
type InvoiceItemRequest struct {
	Description string          `json:"description" validate:"required,max=250"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Affectation string          `json:"affectation,omitempty" validate:"omitempty,oneof=gravado exonerado inafecto"`
}

// InvoiceResponse comprobante con sus líneas.
type InvoiceResponse struct {
	ID           string                `json:"id"`
	DocumentType string                `json:"document_type"`
	Series       string                `json:"series"`
	Number       string                `json:"number"`
	FullNumber   string                `json:"full_number"`
	IssueDate    string                `json:"issue_date"`
	Client       ClientRequest         `json:"client"`
	Currency     string                `json:"currency"`
	Taxable      decimal.Decimal       `json:"taxable"`
	Exempt       decimal.Decimal       `json:"exempt"`
	IGV          decimal.Decimal       `json:"igv"`
	Total        decimal.Decimal       `json:"total"`
	Items        []InvoiceItemResponse `json:"items"`
	CreatedAt    time.Time             `json:"created_at"`
}

// InvoiceItemResponse línea en la respuesta.
type InvoiceItemResponse struct {
	Line        int             `json:"line"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Affectation string          `json:"affectation"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	IGV         decimal.Decimal `json:"igv"`
	Total       decimal.Decimal `json:"total"`
}

// NewInvoiceResponse arma la respuesta a partir de la entidad.
func NewInvoiceResponse(inv *entity.Invoice) *InvoiceResponse {
	out := &InvoiceResponse{
		ID:           inv.ID,
		DocumentType: inv.DocumentType,
		Series:       inv.Series,
		Number:       inv.Number,
		FullNumber:   inv.FullNumber(),
		IssueDate:    inv.IssueDate.Format("2006-01-02"),
		Client: ClientRequest{
			IdentityType:   inv.Client.IdentityType,
			DocumentNumber: inv.Client.DocumentNumber,
			Name:           inv.Client.Name,
			Address:        inv.Client.Address,
		},
		Currency:  inv.Currency,
		Taxable:   inv.Taxable,
		Exempt:    inv.Exempt,
		IGV:       inv.IGV,
		Total:     inv.Total,
		Items:     make([]InvoiceItemResponse, 0, len(inv.Items)),
		CreatedAt: inv.CreatedAt,
	}
	for _, it := range inv.Items {
		out.Items = append(out.Items, InvoiceItemResponse{
			Line:        it.Line,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Affectation: it.Affectation,
			Subtotal:    it.Subtotal,
			IGV:         it.IGV,
			Total:       it.Total,
		})
	}
	return out
}
