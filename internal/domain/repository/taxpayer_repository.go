package repository

import (
	"context"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// TaxpayerRepository perfil tributario por owner.
type TaxpayerRepository interface {
	Get(ctx context.Context, ownerID string) (*entity.TaxpayerProfile, error)
	Upsert(ctx context.Context, p *entity.TaxpayerProfile) error
}
