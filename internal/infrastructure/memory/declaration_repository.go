package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var _ repository.DeclarationRepository = (*DeclarationRepo)(nil)

// DeclarationRepo declaraciones con control optimista por versión.
type DeclarationRepo struct{ view }

// Create guarda la declaración con versión 1.
func (r *DeclarationRepo) Create(ctx context.Context, d *entity.Declaration) error {
	return r.write(func(st *state) error {
		if _, ok := st.declarations[d.ID]; ok {
			return fmt.Errorf("%w: declaración %s ya existe", domain.ErrConflict, d.ID)
		}
		if active(st, d.OwnerID, d.Period.Year, d.Period.Month, d.Regime.Type) != nil {
			return fmt.Errorf("%w: ya existe una declaración vigente para %02d/%d", domain.ErrConflict, d.Period.Month, d.Period.Year)
		}
		d.Version = 1
		st.declarations[d.ID] = cloneDeclaration(d)
		return nil
	})
}

// GetByID declaración o nil.
func (r *DeclarationRepo) GetByID(ctx context.Context, id string) (*entity.Declaration, error) {
	var out *entity.Declaration
	err := r.read(func(st *state) error {
		if d, ok := st.declarations[id]; ok {
			out = cloneDeclaration(d)
		}
		return nil
	})
	return out, err
}

// GetByPeriod declaración vigente del período o nil.
func (r *DeclarationRepo) GetByPeriod(ctx context.Context, ownerID string, year, month int, regime entity.RegimeType) (*entity.Declaration, error) {
	var out *entity.Declaration
	err := r.read(func(st *state) error {
		if d := active(st, ownerID, year, month, regime); d != nil {
			out = cloneDeclaration(d)
		}
		return nil
	})
	return out, err
}

// Update guarda si la versión coincide; el historial ya viaja en d.History.
func (r *DeclarationRepo) Update(ctx context.Context, d *entity.Declaration, added []entity.HistoryEntry) error {
	return r.write(func(st *state) error {
		cur, ok := st.declarations[d.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if cur.Version != d.Version {
			return fmt.Errorf("%w: versión %d vencida (actual %d)", domain.ErrConflict, d.Version, cur.Version)
		}
		if len(d.History) < len(cur.History) {
			return fmt.Errorf("%w: el historial es solo de agregado", domain.ErrConflict)
		}
		d.Version++
		st.declarations[d.ID] = cloneDeclaration(d)
		return nil
	})
}

// ListOpen declaraciones draft/calculated del owner ordenadas por vencimiento.
func (r *DeclarationRepo) ListOpen(ctx context.Context, ownerID string) ([]*entity.Declaration, error) {
	var out []*entity.Declaration
	err := r.read(func(st *state) error {
		for _, d := range st.declarations {
			if d.OwnerID == ownerID && d.IsOpen() {
				out = append(out, cloneDeclaration(d))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Sunat.DueDate.Before(out[j].Sunat.DueDate) })
	return out, err
}

func active(st *state, ownerID string, year, month int, regime entity.RegimeType) *entity.Declaration {
	for _, d := range st.declarations {
		if d.OwnerID == ownerID && d.Period.Year == year && d.Period.Month == month &&
			d.Regime.Type == regime && d.Sunat.Status != entity.SunatRectified {
			return d
		}
	}
	return nil
}

func cloneDeclaration(in *entity.Declaration) *entity.Declaration {
	out := *in
	out.History = append([]entity.HistoryEntry(nil), in.History...)
	if in.Sunat.SubmittedAt != nil {
		t := *in.Sunat.SubmittedAt
		out.Sunat.SubmittedAt = &t
	}
	if in.Payment.PaidAt != nil {
		t := *in.Payment.PaidAt
		out.Payment.PaidAt = &t
	}
	return &out
}
