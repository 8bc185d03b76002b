package repository

import (
	"context"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// SireProcessRepository define el puerto de persistencia para procesos SIRE.
type SireProcessRepository interface {
	Create(ctx context.Context, p *entity.SireProcess) error
	GetByID(ctx context.Context, id string) (*entity.SireProcess, error)
	// LatestByStage último proceso (por fecha de inicio) de cada paso para (owner, período).
	LatestByStage(ctx context.Context, ownerID, periodKey string) (map[entity.Stage]*entity.SireProcess, error)
	// Update guarda el proceso solo si su estado persistido es expected; si no, domain.ErrConflict.
	Update(ctx context.Context, p *entity.SireProcess, expected entity.ProcessState) error
	// ListActive procesos iniciado/procesando de todos los owners (reanudación al arrancar).
	ListActive(ctx context.Context) ([]*entity.SireProcess, error)
}
