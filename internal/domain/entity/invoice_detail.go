package entity

import "github.com/shopspring/decimal"

// InvoiceItem línea del comprobante. UnitPrice no incluye IGV.
type InvoiceItem struct {
	ID          string
	InvoiceID   string
	Line        int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Affectation string // gravado | exonerado | inafecto
	Subtotal    decimal.Decimal
	IGV         decimal.Decimal
	Total       decimal.Decimal
}
