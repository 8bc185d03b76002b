package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/tributa-api/internal/domain"
	lifecycle "github.com/jhoicas/tributa-api/internal/domain/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Create persiste cabecera y líneas. Un número repetido para (owner, serie) es domain.ErrSequencing.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	return inTx(ctx, r.q, func(tx pgx.Tx) error {
		const header = `
			INSERT INTO invoices (id, owner_id, document_type, series, number, issue_date,
			                      client_identity_type, client_document_number, client_name, client_address,
			                      currency, taxable, exempt, igv, total, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
		_, err := tx.Exec(ctx, header,
			invoice.ID, invoice.OwnerID, invoice.DocumentType, invoice.Series, invoice.Number, invoice.IssueDate,
			invoice.Client.IdentityType, invoice.Client.DocumentNumber, invoice.Client.Name, invoice.Client.Address,
			invoice.Currency, invoice.Taxable, invoice.Exempt, invoice.IGV, invoice.Total, invoice.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s ya existe", domain.ErrSequencing, invoice.FullNumber())
			}
			if isSequencingConflict(err) {
				return fmt.Errorf("%w: insert invoice: %v", domain.ErrSequencing, err)
			}
			return fmt.Errorf("insert invoice: %w", err)
		}

		batch := &pgx.Batch{}
		for _, it := range invoice.Items {
			if it.ID == "" {
				it.ID = uuid.New().String()
			}
			it.InvoiceID = invoice.ID
			batch.Queue(`
				INSERT INTO invoice_items (id, invoice_id, line, description, quantity, unit_price, affectation, subtotal, igv, total)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				it.ID, it.InvoiceID, it.Line, it.Description, it.Quantity, it.UnitPrice, it.Affectation, it.Subtotal, it.IGV, it.Total,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert invoice items: %w", err)
		}
		return nil
	})
}

// GetByID obtiene el comprobante con sus líneas.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	const query = `
		SELECT id, owner_id, document_type, series, number, issue_date,
		       client_identity_type, client_document_number, client_name, client_address,
		       currency, taxable, exempt, igv, total, created_at
		FROM invoices WHERE id = $1`
	var inv entity.Invoice
	var issue time.Time
	err := r.q.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.OwnerID, &inv.DocumentType, &inv.Series, &inv.Number, &issue,
		&inv.Client.IdentityType, &inv.Client.DocumentNumber, &inv.Client.Name, &inv.Client.Address,
		&inv.Currency, &inv.Taxable, &inv.Exempt, &inv.IGV, &inv.Total, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv.IssueDate = limaDate(issue)

	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, line, description, quantity, unit_price, affectation, subtotal, igv, total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY line`, id)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Line, &it.Description, &it.Quantity, &it.UnitPrice,
			&it.Affectation, &it.Subtotal, &it.IGV, &it.Total); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, &it)
	}
	return &inv, rows.Err()
}

// SumSales agrega gravadas y exoneradas/inafectas del owner en [from, to).
func (r *InvoiceRepo) SumSales(ctx context.Context, ownerID string, from, to time.Time) (entity.Sales, error) {
	const query = `
		SELECT COALESCE(SUM(taxable), 0), COALESCE(SUM(exempt), 0)
		FROM invoices
		WHERE owner_id = $1 AND issue_date >= $2 AND issue_date < $3`
	var s entity.Sales
	if err := r.q.QueryRow(ctx, query, ownerID, from, to).Scan(&s.Taxable, &s.Exempt); err != nil {
		return entity.Sales{}, fmt.Errorf("sum sales: %w", err)
	}
	s.Total = s.Taxable.Add(s.Exempt)
	return s, nil
}

// limaDate reinterpreta una columna DATE (leída en UTC) como fecha calendario en Lima.
func limaDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, lifecycle.Lima)
}
