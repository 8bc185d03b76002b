package repository

import (
	"context"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// DeclarationRepository define el puerto de persistencia para declaraciones e historial.
type DeclarationRepository interface {
	// Create devuelve domain.ErrConflict si ya existe una declaración vigente para
	// (owner, año, mes, régimen).
	Create(ctx context.Context, d *entity.Declaration) error
	GetByID(ctx context.Context, id string) (*entity.Declaration, error)
	// GetByPeriod devuelve la declaración vigente (no rectificada) del período o nil.
	GetByPeriod(ctx context.Context, ownerID string, year, month int, regime entity.RegimeType) (*entity.Declaration, error)
	// Update guarda con control optimista: si d.Version no coincide devuelve domain.ErrConflict.
	// Las entradas de historial nuevas se agregan en la misma escritura. Incrementa d.Version.
	Update(ctx context.Context, d *entity.Declaration, added []entity.HistoryEntry) error
	// ListOpen declaraciones draft/calculated del owner.
	ListOpen(ctx context.Context, ownerID string) ([]*entity.Declaration, error)
}
