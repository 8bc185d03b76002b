package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/tributa-api/internal/application/billing"
	"github.com/jhoicas/tributa-api/internal/application/declaration"
	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

// Ensure TxRunner implements billing.BillingTxRunner and declaration.TxRunner.
var (
	_ billing.BillingTxRunner = (*TxRunner)(nil)
	_ declaration.TxRunner    = (*TxRunner)(nil)
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunBilling transacción con contadores y comprobantes: el UPSERT del contador deja la fila
// bloqueada hasta el commit, así dos emisiones concurrentes no obtienen el mismo número.
func (r *TxRunner) RunBilling(ctx context.Context, fn func(
	sequenceRepo repository.SequenceRepository,
	invoiceRepo repository.InvoiceRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewSequenceRepository(tx), NewInvoiceRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isSequencingConflict(err) {
			return fmt.Errorf("%w: commit transaction: %v", domain.ErrSequencing, err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunDeclarations transacción sobre declaraciones (rectificación: original + nueva).
func (r *TxRunner) RunDeclarations(ctx context.Context, fn func(repo repository.DeclarationRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewDeclarationRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
