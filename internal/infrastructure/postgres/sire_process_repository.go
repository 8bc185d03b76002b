package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

var _ repository.SireProcessRepository = (*SireProcessRepo)(nil)

// SireProcessRepo procesos SIRE. Las transiciones se protegen con el estado esperado en el WHERE.
type SireProcessRepo struct {
	q Querier
}

func NewSireProcessRepository(q Querier) *SireProcessRepo {
	return &SireProcessRepo{q: q}
}

const processColumns = `id, owner_id, declaration_id, period_key, stage, estado, ticket, nombre_archivo,
	fecha_inicio, fecha_fin, error, poll_attempts, updated_at`

func (r *SireProcessRepo) Create(ctx context.Context, p *entity.SireProcess) error {
	query := `INSERT INTO sire_processes (` + processColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.OwnerID, nullIfEmpty(p.DeclarationID), p.PeriodKey, string(p.Stage), string(p.Estado),
		p.Ticket, p.NombreArchivo, p.FechaInicio, p.FechaFin, p.Error, p.PollAttempts, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: proceso %s ya existe", domain.ErrConflict, p.ID)
		}
		return fmt.Errorf("insert sire process: %w", err)
	}
	return nil
}

func (r *SireProcessRepo) GetByID(ctx context.Context, id string) (*entity.SireProcess, error) {
	p, err := scanProcess(r.q.QueryRow(ctx, `SELECT `+processColumns+` FROM sire_processes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// LatestByStage un registro por paso: el de fecha de inicio mayor y, ante empate, el insertado después.
func (r *SireProcessRepo) LatestByStage(ctx context.Context, ownerID, periodKey string) (map[entity.Stage]*entity.SireProcess, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT ON (stage) `+processColumns+`
		FROM sire_processes
		WHERE owner_id = $1 AND period_key = $2
		ORDER BY stage, fecha_inicio DESC, seq DESC`, ownerID, periodKey)
	if err != nil {
		return nil, fmt.Errorf("latest sire processes: %w", err)
	}
	defer rows.Close()
	out := make(map[entity.Stage]*entity.SireProcess)
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		out[p.Stage] = p
	}
	return out, rows.Err()
}

func (r *SireProcessRepo) Update(ctx context.Context, p *entity.SireProcess, expected entity.ProcessState) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sire_processes SET
			declaration_id = $3, estado = $4, ticket = $5, nombre_archivo = $6,
			fecha_fin = $7, error = $8, poll_attempts = $9, updated_at = $10
		WHERE id = $1 AND estado = $2`,
		p.ID, string(expected),
		nullIfEmpty(p.DeclarationID), string(p.Estado), p.Ticket, p.NombreArchivo,
		p.FechaFin, p.Error, p.PollAttempts, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update sire process: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: proceso %s ya no está en estado %s", domain.ErrConflict, p.ID, expected)
	}
	return nil
}

func (r *SireProcessRepo) ListActive(ctx context.Context) ([]*entity.SireProcess, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+processColumns+` FROM sire_processes
		WHERE estado IN ('iniciado', 'procesando')
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list active sire processes: %w", err)
	}
	defer rows.Close()
	var out []*entity.SireProcess
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProcess(row pgx.Row) (*entity.SireProcess, error) {
	var (
		p             entity.SireProcess
		declID        *string
		stage, estado string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &declID, &p.PeriodKey, &stage, &estado, &p.Ticket, &p.NombreArchivo,
		&p.FechaInicio, &p.FechaFin, &p.Error, &p.PollAttempts, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan sire process: %w", err)
	}
	p.DeclarationID = derefStr(declID)
	p.Stage = entity.Stage(stage)
	p.Estado = entity.ProcessState(estado)
	return &p, nil
}
