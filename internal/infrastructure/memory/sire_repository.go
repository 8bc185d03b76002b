package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var (
	_ repository.SireProcessRepository = (*SireProcessRepo)(nil)
	_ repository.TaxpayerRepository    = (*TaxpayerRepo)(nil)
)

// SireProcessRepo procesos SIRE.
type SireProcessRepo struct{ view }

// Create guarda el proceso.
func (r *SireProcessRepo) Create(ctx context.Context, p *entity.SireProcess) error {
	return r.write(func(st *state) error {
		if _, ok := st.processes[p.ID]; ok {
			return fmt.Errorf("%w: proceso %s ya existe", domain.ErrConflict, p.ID)
		}
		st.processes[p.ID] = cloneProcess(p)
		st.processOrder = append(st.processOrder, p.ID)
		return nil
	})
}

// GetByID proceso o nil.
func (r *SireProcessRepo) GetByID(ctx context.Context, id string) (*entity.SireProcess, error) {
	var out *entity.SireProcess
	err := r.read(func(st *state) error {
		if p, ok := st.processes[id]; ok {
			out = cloneProcess(p)
		}
		return nil
	})
	return out, err
}

// LatestByStage último proceso por paso; ante igual fecha gana el creado después.
func (r *SireProcessRepo) LatestByStage(ctx context.Context, ownerID, periodKey string) (map[entity.Stage]*entity.SireProcess, error) {
	out := make(map[entity.Stage]*entity.SireProcess)
	err := r.read(func(st *state) error {
		for _, id := range st.processOrder {
			p := st.processes[id]
			if p.OwnerID != ownerID || p.PeriodKey != periodKey {
				continue
			}
			if cur, ok := out[p.Stage]; ok && p.FechaInicio.Before(cur.FechaInicio) {
				continue
			}
			out[p.Stage] = cloneProcess(p)
		}
		return nil
	})
	return out, err
}

// Update guarda solo si el estado persistido es expected.
func (r *SireProcessRepo) Update(ctx context.Context, p *entity.SireProcess, expected entity.ProcessState) error {
	return r.write(func(st *state) error {
		cur, ok := st.processes[p.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if cur.Estado != expected {
			return fmt.Errorf("%w: proceso %s en estado %s, se esperaba %s", domain.ErrConflict, p.ID, cur.Estado, expected)
		}
		st.processes[p.ID] = cloneProcess(p)
		return nil
	})
}

// ListActive procesos iniciado/procesando.
func (r *SireProcessRepo) ListActive(ctx context.Context) ([]*entity.SireProcess, error) {
	var out []*entity.SireProcess
	err := r.read(func(st *state) error {
		for _, id := range st.processOrder {
			if p := st.processes[id]; !p.IsFinal() {
				out = append(out, cloneProcess(p))
			}
		}
		return nil
	})
	return out, err
}

func cloneProcess(in *entity.SireProcess) *entity.SireProcess {
	out := *in
	if in.FechaFin != nil {
		t := *in.FechaFin
		out.FechaFin = &t
	}
	return &out
}

// TaxpayerRepo perfiles tributarios.
type TaxpayerRepo struct{ view }

// Get perfil o nil.
func (r *TaxpayerRepo) Get(ctx context.Context, ownerID string) (*entity.TaxpayerProfile, error) {
	var out *entity.TaxpayerProfile
	err := r.read(func(st *state) error {
		if p, ok := st.taxpayers[ownerID]; ok {
			cp := *p
			out = &cp
		}
		return nil
	})
	return out, err
}

// Upsert crea o reemplaza el perfil conservando CreatedAt.
func (r *TaxpayerRepo) Upsert(ctx context.Context, p *entity.TaxpayerProfile) error {
	return r.write(func(st *state) error {
		if cur, ok := st.taxpayers[p.OwnerID]; ok {
			p.CreatedAt = cur.CreatedAt
		} else if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		cp := *p
		st.taxpayers[p.OwnerID] = &cp
		return nil
	})
}
