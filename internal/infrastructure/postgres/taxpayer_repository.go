package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var _ repository.TaxpayerRepository = (*TaxpayerRepo)(nil)

// TaxpayerRepo perfil tributario. Las credenciales llegan ya cifradas.
type TaxpayerRepo struct {
	q Querier
}

func NewTaxpayerRepository(q Querier) *TaxpayerRepo {
	return &TaxpayerRepo{q: q}
}

func (r *TaxpayerRepo) Get(ctx context.Context, ownerID string) (*entity.TaxpayerProfile, error) {
	var (
		p          entity.TaxpayerProfile
		regimeType string
	)
	err := r.q.QueryRow(ctx, `
		SELECT owner_id, ruc, business_name, regime_type, regime_category,
		       sol_user, sol_password_enc, client_id, client_secret_enc, created_at, updated_at
		FROM taxpayer_profiles WHERE owner_id = $1`, ownerID).Scan(
		&p.OwnerID, &p.RUC, &p.BusinessName, &regimeType, &p.Regime.Category,
		&p.SolUser, &p.SolPasswordEnc, &p.ClientID, &p.ClientSecretEnc, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get taxpayer profile: %w", err)
	}
	p.Regime.Type = entity.RegimeType(regimeType)
	return &p, nil
}

// Upsert crea o reemplaza el perfil; created_at se conserva y se devuelve.
func (r *TaxpayerRepo) Upsert(ctx context.Context, p *entity.TaxpayerProfile) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO taxpayer_profiles (owner_id, ruc, business_name, regime_type, regime_category,
			sol_user, sol_password_enc, client_id, client_secret_enc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (owner_id) DO UPDATE SET
			ruc = EXCLUDED.ruc,
			business_name = EXCLUDED.business_name,
			regime_type = EXCLUDED.regime_type,
			regime_category = EXCLUDED.regime_category,
			sol_user = EXCLUDED.sol_user,
			sol_password_enc = EXCLUDED.sol_password_enc,
			client_id = EXCLUDED.client_id,
			client_secret_enc = EXCLUDED.client_secret_enc,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at`,
		p.OwnerID, p.RUC, p.BusinessName, string(p.Regime.Type), p.Regime.Category,
		p.SolUser, p.SolPasswordEnc, p.ClientID, p.ClientSecretEnc, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert taxpayer profile: %w", err)
	}
	return nil
}
