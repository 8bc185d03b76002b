package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var _ repository.DeclarationRepository = (*DeclarationRepo)(nil)

// DeclarationRepo declaraciones con historial en tabla aparte y control optimista por versión.
type DeclarationRepo struct {
	q Querier
}

// NewDeclarationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDeclarationRepository(q Querier) *DeclarationRepo {
	return &DeclarationRepo{q: q}
}

const declarationColumns = `
	id, owner_id, period_year, period_month, period_type, regime_type, regime_category,
	sales_taxable, sales_exempt, sales_total,
	purchases_taxable, purchases_exempt, purchases_total, purchases_igv_paid, rent_withheld,
	igv_collected, igv_paid, igv_balance,
	rent_base, rent_rate, rent_amount, rent_withheld_applied, rent_balance,
	fixed_payment, taxes_total,
	payment_total, paid_at, payment_reference,
	sunat_status, sunat_form, due_date, submitted_at, sunat_message,
	status, notes, rectifies_id, rectified_by_id, version, created_at, updated_at`

// Create inserta la declaración (versión 1) y su historial inicial.
func (r *DeclarationRepo) Create(ctx context.Context, d *entity.Declaration) error {
	d.Version = 1
	return inTx(ctx, r.q, func(tx pgx.Tx) error {
		query := `INSERT INTO declarations (` + declarationColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			        $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40)`
		if _, err := tx.Exec(ctx, query, declarationArgs(d)...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: ya existe una declaración vigente para %02d/%d", domain.ErrConflict, d.Period.Month, d.Period.Year)
			}
			return fmt.Errorf("insert declaration: %w", err)
		}
		return insertHistory(ctx, tx, d.ID, d.History)
	})
}

// Update guarda si la versión coincide y agrega las entradas nuevas del historial.
func (r *DeclarationRepo) Update(ctx context.Context, d *entity.Declaration, added []entity.HistoryEntry) error {
	return inTx(ctx, r.q, func(tx pgx.Tx) error {
		const query = `
			UPDATE declarations SET
				regime_category = $3,
				sales_taxable = $4, sales_exempt = $5, sales_total = $6,
				purchases_taxable = $7, purchases_exempt = $8, purchases_total = $9, purchases_igv_paid = $10,
				rent_withheld = $11,
				igv_collected = $12, igv_paid = $13, igv_balance = $14,
				rent_base = $15, rent_rate = $16, rent_amount = $17, rent_withheld_applied = $18, rent_balance = $19,
				fixed_payment = $20, taxes_total = $21,
				payment_total = $22, paid_at = $23, payment_reference = $24,
				sunat_status = $25, submitted_at = $26, sunat_message = $27,
				status = $28, notes = $29, rectified_by_id = $30,
				updated_at = $31, version = version + 1
			WHERE id = $1 AND version = $2`
		tag, err := tx.Exec(ctx, query,
			d.ID, d.Version,
			d.Regime.Category,
			d.Sales.Taxable, d.Sales.Exempt, d.Sales.Total,
			d.Purchases.Taxable, d.Purchases.Exempt, d.Purchases.Total, d.Purchases.IGVPaid,
			d.RentWithheld,
			d.Taxes.IGV.Collected, d.Taxes.IGV.Paid, d.Taxes.IGV.Balance,
			d.Taxes.Rent.Base, d.Taxes.Rent.Rate, d.Taxes.Rent.Amount, d.Taxes.Rent.Withheld, d.Taxes.Rent.Balance,
			d.Taxes.FixedPayment, d.Taxes.TotalToPay,
			d.Payment.TotalToPay, d.Payment.PaidAt, d.Payment.Reference,
			string(d.Sunat.Status), d.Sunat.SubmittedAt, d.Sunat.Message,
			string(d.Status), d.Notes, nullIfEmpty(d.RectifiedByID),
			d.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update declaration: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: la declaración %s cambió (versión %d vencida)", domain.ErrConflict, d.ID, d.Version)
		}
		if err := insertHistory(ctx, tx, d.ID, added); err != nil {
			return err
		}
		d.Version++
		return nil
	})
}

// GetByID declaración con historial o nil.
func (r *DeclarationRepo) GetByID(ctx context.Context, id string) (*entity.Declaration, error) {
	return r.getOne(ctx, `SELECT `+declarationColumns+` FROM declarations WHERE id = $1`, id)
}

// GetByPeriod declaración vigente del período o nil.
func (r *DeclarationRepo) GetByPeriod(ctx context.Context, ownerID string, year, month int, regime entity.RegimeType) (*entity.Declaration, error) {
	return r.getOne(ctx, `SELECT `+declarationColumns+` FROM declarations
		WHERE owner_id = $1 AND period_year = $2 AND period_month = $3 AND regime_type = $4
		  AND sunat_status <> 'rectified'`,
		ownerID, year, month, string(regime))
}

// ListOpen declaraciones draft/calculated del owner ordenadas por vencimiento.
func (r *DeclarationRepo) ListOpen(ctx context.Context, ownerID string) ([]*entity.Declaration, error) {
	rows, err := r.q.Query(ctx, `SELECT `+declarationColumns+` FROM declarations
		WHERE owner_id = $1 AND status IN ('draft', 'calculated')
		ORDER BY due_date, period_year, period_month`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list open declarations: %w", err)
	}
	defer rows.Close()
	var list []*entity.Declaration
	byID := make(map[string]*entity.Declaration)
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, 0, len(list))
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	hrows, err := r.q.Query(ctx, `
		SELECT declaration_id, action, description, actor, at
		FROM declaration_history WHERE declaration_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list declaration history: %w", err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var declID string
		var h entity.HistoryEntry
		if err := hrows.Scan(&declID, &h.Action, &h.Description, &h.Actor, &h.At); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if d := byID[declID]; d != nil {
			d.History = append(d.History, h)
		}
	}
	return list, hrows.Err()
}

func (r *DeclarationRepo) getOne(ctx context.Context, query string, args ...any) (*entity.Declaration, error) {
	d, err := scanDeclaration(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT action, description, actor, at
		FROM declaration_history WHERE declaration_id = $1 ORDER BY id`, d.ID)
	if err != nil {
		return nil, fmt.Errorf("get declaration history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h entity.HistoryEntry
		if err := rows.Scan(&h.Action, &h.Description, &h.Actor, &h.At); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		d.History = append(d.History, h)
	}
	return d, rows.Err()
}

func scanDeclaration(row pgx.Row) (*entity.Declaration, error) {
	var (
		d                      entity.Declaration
		periodType, regimeType string
		sunatStatus, status    string
		due                    time.Time
		rectifies, rectifiedBy *string
	)
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.Period.Year, &d.Period.Month, &periodType, &regimeType, &d.Regime.Category,
		&d.Sales.Taxable, &d.Sales.Exempt, &d.Sales.Total,
		&d.Purchases.Taxable, &d.Purchases.Exempt, &d.Purchases.Total, &d.Purchases.IGVPaid, &d.RentWithheld,
		&d.Taxes.IGV.Collected, &d.Taxes.IGV.Paid, &d.Taxes.IGV.Balance,
		&d.Taxes.Rent.Base, &d.Taxes.Rent.Rate, &d.Taxes.Rent.Amount, &d.Taxes.Rent.Withheld, &d.Taxes.Rent.Balance,
		&d.Taxes.FixedPayment, &d.Taxes.TotalToPay,
		&d.Payment.TotalToPay, &d.Payment.PaidAt, &d.Payment.Reference,
		&sunatStatus, &d.Sunat.Form, &due, &d.Sunat.SubmittedAt, &d.Sunat.Message,
		&status, &d.Notes, &rectifies, &rectifiedBy, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan declaration: %w", err)
	}
	d.Period.Type = entity.PeriodType(periodType)
	d.Regime.Type = entity.RegimeType(regimeType)
	d.Sunat.Status = entity.SunatStatus(sunatStatus)
	d.Sunat.DueDate = limaDate(due)
	d.Status = entity.DeclarationStatus(status)
	d.RectifiesID = derefStr(rectifies)
	d.RectifiedByID = derefStr(rectifiedBy)
	return &d, nil
}

func declarationArgs(d *entity.Declaration) []any {
	return []any{
		d.ID, d.OwnerID, d.Period.Year, d.Period.Month, string(d.Period.Type), string(d.Regime.Type), d.Regime.Category,
		d.Sales.Taxable, d.Sales.Exempt, d.Sales.Total,
		d.Purchases.Taxable, d.Purchases.Exempt, d.Purchases.Total, d.Purchases.IGVPaid, d.RentWithheld,
		d.Taxes.IGV.Collected, d.Taxes.IGV.Paid, d.Taxes.IGV.Balance,
		d.Taxes.Rent.Base, d.Taxes.Rent.Rate, d.Taxes.Rent.Amount, d.Taxes.Rent.Withheld, d.Taxes.Rent.Balance,
		d.Taxes.FixedPayment, d.Taxes.TotalToPay,
		d.Payment.TotalToPay, d.Payment.PaidAt, d.Payment.Reference,
		string(d.Sunat.Status), d.Sunat.Form, d.Sunat.DueDate, d.Sunat.SubmittedAt, d.Sunat.Message,
		string(d.Status), d.Notes, nullIfEmpty(d.RectifiesID), nullIfEmpty(d.RectifiedByID), d.Version, d.CreatedAt, d.UpdatedAt,
	}
}

func insertHistory(ctx context.Context, tx pgx.Tx, declarationID string, entries []entity.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, h := range entries {
		batch.Queue(`INSERT INTO declaration_history (declaration_id, action, description, actor, at) VALUES ($1, $2, $3, $4, $5)`,
			declarationID, h.Action, h.Description, h.Actor, h.At)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert declaration history: %w", err)
	}
	return nil
}
