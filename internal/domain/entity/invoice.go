package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client receptor del comprobante.
type Client struct {
	IdentityType   string // catálogo 06: 0 sin documento, 1 DNI, 6 RUC
	DocumentNumber string
	Name           string
	Address        string
}

// Invoice cabecera de una factura o boleta.
type Invoice struct {
	ID           string
	OwnerID      string
	DocumentType string // factura | boleta
	Series       string // F001 | B001
	Number       string // correlativo de 8 dígitos
	IssueDate    time.Time
	Client       Client
	Currency     string
	Taxable      decimal.Decimal // operaciones gravadas (sin IGV)
	Exempt       decimal.Decimal // exoneradas + inafectas
	IGV          decimal.Decimal
	Total        decimal.Decimal
	Items        []*InvoiceItem
	CreatedAt    time.Time
}

// FullNumber serie-correlativo, p. ej. "F001-00000001".
func (i *Invoice) FullNumber() string {
	return i.Series + "-" + i.Number
}
