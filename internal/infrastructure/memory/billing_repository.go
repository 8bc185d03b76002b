package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var (
	_ repository.SequenceRepository = (*SequenceRepo)(nil)
	_ repository.InvoiceRepository  = (*InvoiceRepo)(nil)
)

// SequenceRepo contadores de correlativos.
type SequenceRepo struct{ view }

func sequenceKey(ownerID, documentType, series string) string {
	return ownerID + "|" + documentType + "|" + series
}

// Next incrementa y devuelve el correlativo.
func (r *SequenceRepo) Next(ctx context.Context, ownerID, documentType, series string, now time.Time) (int64, error) {
	var n int64
	err := r.write(func(st *state) error {
		key := sequenceKey(ownerID, documentType, series)
		c := entity.SequenceCounter{OwnerID: ownerID, DocumentType: documentType, Series: series}
		if cur, ok := st.sequences[key]; ok {
			c = *cur
		}
		c.LastIssuedNumber++
		c.UpdatedAt = now
		st.sequences[key] = &c
		n = c.LastIssuedNumber
		return nil
	})
	return n, err
}

// Get contador actual o nil si aún no se emitió nada.
func (r *SequenceRepo) Get(ctx context.Context, ownerID, documentType, series string) (*entity.SequenceCounter, error) {
	var out *entity.SequenceCounter
	err := r.read(func(st *state) error {
		if c, ok := st.sequences[sequenceKey(ownerID, documentType, series)]; ok {
			cp := *c
			out = &cp
		}
		return nil
	})
	return out, err
}

// InvoiceRepo comprobantes.
type InvoiceRepo struct{ view }

func invoiceKey(ownerID, series, number string) string {
	return ownerID + "|" + series + "|" + number
}

// Create guarda el comprobante; un número repetido es domain.ErrSequencing.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	return r.write(func(st *state) error {
		key := invoiceKey(invoice.OwnerID, invoice.Series, invoice.Number)
		if _, dup := st.invoiceKeys[key]; dup {
			return fmt.Errorf("%w: %s ya existe", domain.ErrSequencing, invoice.FullNumber())
		}
		st.invoices[invoice.ID] = cloneInvoice(invoice)
		st.invoiceKeys[key] = invoice.ID
		return nil
	})
}

// GetByID comprobante o nil.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	var out *entity.Invoice
	err := r.read(func(st *state) error {
		if inv, ok := st.invoices[id]; ok {
			out = cloneInvoice(inv)
		}
		return nil
	})
	return out, err
}

// SumSales agrega ventas del owner en [from, to).
func (r *InvoiceRepo) SumSales(ctx context.Context, ownerID string, from, to time.Time) (entity.Sales, error) {
	sales := entity.Sales{Taxable: decimal.Zero, Exempt: decimal.Zero, Total: decimal.Zero}
	err := r.read(func(st *state) error {
		for _, inv := range st.invoices {
			if inv.OwnerID != ownerID || inv.IssueDate.Before(from) || !inv.IssueDate.Before(to) {
				continue
			}
			sales.Taxable = sales.Taxable.Add(inv.Taxable)
			sales.Exempt = sales.Exempt.Add(inv.Exempt)
		}
		return nil
	})
	sales.Total = sales.Taxable.Add(sales.Exempt)
	return sales, err
}

func cloneInvoice(in *entity.Invoice) *entity.Invoice {
	out := *in
	out.Items = make([]*entity.InvoiceItem, len(in.Items))
	for i, it := range in.Items {
		cp := *it
		out.Items[i] = &cp
	}
	return &out
}
