// Package declaration expone los casos de uso de declaraciones: alta/actualización por período,
// ediciones, pago, pronunciamiento SUNAT y rectificación.
package declaration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/application/ports"
	"github.com/jhoicas/tributa-api/internal/domain"
	lifecycle "github.com/jhoicas/tributa-api/internal/domain/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
	"github.com/jhoicas/tributa-api/internal/domain/tax"
)

// maxStaleRetries reintentos ante escritura con versión vencida en operaciones del sistema.
const maxStaleRetries = 3

// TxRunner ejecuta fn con un repositorio de declaraciones atado a una transacción.
type TxRunner interface {
	RunDeclarations(ctx context.Context, fn func(repo repository.DeclarationRepository) error) error
}

// UseCase casos de uso de declaraciones.
type UseCase struct {
	repo   repository.DeclarationRepository
	tx     TxRunner
	events ports.EventPublisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewUseCase construye el caso de uso. events puede ser nil.
func NewUseCase(repo repository.DeclarationRepository, tx TxRunner, events ports.EventPublisher, log zerolog.Logger) *UseCase {
	return &UseCase{repo: repo, tx: tx, events: events, log: log, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	uc.now = now
	return uc
}

// Create crea la declaración del período; si ya existe una vigente devuelve domain.ErrConflict.
func (uc *UseCase) Create(ctx context.Context, ownerID string, year, month int, in dto.UpsertPeriodRequest) (*dto.DeclarationResponse, error) {
	period, regime, inputs, err := parseUpsert(year, month, in)
	if err != nil {
		return nil, err
	}
	if in.RentWithheld != nil {
		inputs.RentWithheld = *in.RentWithheld
	}
	d, err := uc.create(ctx, ownerID, period, regime, inputs)
	if err != nil {
		return nil, err
	}
	return dto.NewDeclarationResponse(d), nil
}

// UpsertSalesIntoPeriod crea o actualiza la declaración del período y recalcula impuestos solo si
// cambiaron ventas, compras, retenciones o categoría.
func (uc *UseCase) UpsertSalesIntoPeriod(ctx context.Context, ownerID string, year, month int, in dto.UpsertPeriodRequest) (*dto.DeclarationResponse, error) {
	period, regime, inputs, err := parseUpsert(year, month, in)
	if err != nil {
		return nil, err
	}
	d, err := uc.upsert(ctx, ownerID, period, regime, func(current lifecycle.Inputs) lifecycle.Inputs {
		next := inputs
		if in.RentWithheld == nil {
			next.RentWithheld = current.RentWithheld
		} else {
			next.RentWithheld = *in.RentWithheld
		}
		return next
	})
	if err != nil {
		return nil, err
	}
	return dto.NewDeclarationResponse(d), nil
}

// ApplySales vuelca el agregado de ventas de los comprobantes en la declaración del período.
// Conserva compras y retenciones. Una declaración ya presentada no se toca.
func (uc *UseCase) ApplySales(ctx context.Context, ownerID string, year, month int, regime entity.Regime, sales entity.Sales) error {
	period := entity.Period{Month: month, Year: year, Type: entity.PeriodMonthly}
	_, err := uc.upsert(ctx, ownerID, period, regime, func(current lifecycle.Inputs) lifecycle.Inputs {
		current.Sales = sales
		if current.Category == "" {
			current.Category = regime.Category
		}
		return current
	})
	if errors.Is(err, domain.ErrPrecondition) {
		uc.log.Warn().Str("owner_id", ownerID).Int("year", year).Int("month", month).
			Msg("declaración cerrada; ventas del período no actualizadas")
		return nil
	}
	return err
}

// upsert carga o crea la declaración y aplica mutate sobre sus entradas. Reintenta ante
// versión vencida o alta concurrente del mismo período.
func (uc *UseCase) upsert(ctx context.Context, ownerID string, period entity.Period, regime entity.Regime, mutate func(lifecycle.Inputs) lifecycle.Inputs) (*entity.Declaration, error) {
	var lastErr error
	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		existing, err := uc.repo.GetByPeriod(ctx, ownerID, period.Year, period.Month, regime.Type)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			inputs := mutate(lifecycle.Inputs{Category: regime.Category, RentWithheld: decimal.Zero})
			d, err := uc.create(ctx, ownerID, period, regime, inputs)
			if errors.Is(err, domain.ErrConflict) {
				lastErr = err
				continue
			}
			return d, err
		}
		changed, added, err := lifecycle.Recalculate(existing, mutate(lifecycle.CurrentInputs(existing)), uc.now(), ownerID)
		if err != nil {
			return nil, err
		}
		if !changed {
			return existing, nil
		}
		if err := uc.repo.Update(ctx, existing, added); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		uc.publish(ctx, existing, entity.ActionCalculated)
		return existing, nil
	}
	return nil, lastErr
}

func (uc *UseCase) create(ctx context.Context, ownerID string, period entity.Period, regime entity.Regime, inputs lifecycle.Inputs) (*entity.Declaration, error) {
	now := uc.now()
	d, err := lifecycle.New(uuid.New().String(), ownerID, period, regime, now, ownerID)
	if err != nil {
		return nil, err
	}
	if _, _, err := lifecycle.Recalculate(d, inputs, now, ownerID); err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	uc.log.Info().Str("declaration_id", d.ID).Str("owner_id", ownerID).
		Int("year", period.Year).Int("month", period.Month).Str("regime", string(regime.Type)).
		Msg("declaración creada")
	uc.publish(ctx, d, entity.ActionCreated)
	return d, nil
}

// Get devuelve la declaración con su historial.
func (uc *UseCase) Get(ctx context.Context, ownerID, id string) (*dto.DeclarationResponse, error) {
	d, err := uc.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return dto.NewDeclarationResponse(d), nil
}

// Update edita notas y/o retenciones. La versión enviada debe coincidir con la guardada.
// Las notas nunca disparan recálculo.
func (uc *UseCase) Update(ctx context.Context, ownerID, id string, in dto.UpdateDeclarationRequest) (*dto.DeclarationResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	d, err := uc.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if d.Version != in.Version {
		return nil, fmt.Errorf("%w: la declaración cambió (versión %d, enviada %d)", domain.ErrConflict, d.Version, in.Version)
	}
	now := uc.now()
	var added []entity.HistoryEntry
	if in.RentWithheld != nil && !in.RentWithheld.Equal(d.RentWithheld) {
		inputs := lifecycle.CurrentInputs(d)
		inputs.RentWithheld = *in.RentWithheld
		_, calc, err := lifecycle.Recalculate(d, inputs, now, ownerID)
		if err != nil {
			return nil, err
		}
		added = append(added, calc...)
	}
	if in.Notes != nil {
		added = append(added, lifecycle.UpdateNotes(d, *in.Notes, now, ownerID)...)
	}
	if len(added) == 0 {
		return dto.NewDeclarationResponse(d), nil
	}
	if err := uc.repo.Update(ctx, d, added); err != nil {
		return nil, err
	}
	return dto.NewDeclarationResponse(d), nil
}

// ConfirmPayment registra el pago de una declaración presentada.
func (uc *UseCase) ConfirmPayment(ctx context.Context, ownerID, id string, in dto.PaymentRequest) (*dto.DeclarationResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	d, err := uc.mutate(ctx, ownerID, id, func(d *entity.Declaration, now time.Time) ([]entity.HistoryEntry, error) {
		return lifecycle.ConfirmPayment(d, in.Reference, now, ownerID)
	})
	if err != nil {
		return nil, err
	}
	return dto.NewDeclarationResponse(d), nil
}

// RecordVerdict registra la aceptación o el rechazo de la SUNAT.
func (uc *UseCase) RecordVerdict(ctx context.Context, ownerID, id string, in dto.VerdictRequest) (*dto.DeclarationResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	d, err := uc.mutate(ctx, ownerID, id, func(d *entity.Declaration, now time.Time) ([]entity.HistoryEntry, error) {
		return lifecycle.RecordVerdict(d, *in.Accepted, in.Message, now, entity.ActorSIRE)
	})
	if err != nil {
		return nil, err
	}
	return dto.NewDeclarationResponse(d), nil
}

// MarkSubmitted pasa la declaración a presentada tras registrar el preliminar en el SIRE.
func (uc *UseCase) MarkSubmitted(ctx context.Context, id string) error {
	_, err := uc.mutate(ctx, "", id, func(d *entity.Declaration, now time.Time) ([]entity.HistoryEntry, error) {
		return lifecycle.MarkSubmitted(d, now, entity.ActorSIRE)
	})
	return err
}

// Rectify crea la rectificatoria de una declaración rechazada en una sola transacción.
func (uc *UseCase) Rectify(ctx context.Context, ownerID, id string) (*dto.DeclarationResponse, error) {
	var rect *entity.Declaration
	err := uc.tx.RunDeclarations(ctx, func(repo repository.DeclarationRepository) error {
		original, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if original == nil {
			return domain.ErrNotFound
		}
		if original.OwnerID != ownerID {
			return domain.ErrForbidden
		}
		r, origAdded, _, err := lifecycle.Rectify(original, uuid.New().String(), uc.now(), ownerID)
		if err != nil {
			return err
		}
		// primero la original: el índice único ignora las rectificadas
		if err := repo.Update(ctx, original, origAdded); err != nil {
			return err
		}
		if err := repo.Create(ctx, r); err != nil {
			return err
		}
		rect = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("declaration_id", rect.ID).Str("rectifies_id", id).Msg("rectificatoria creada")
	uc.publish(ctx, rect, entity.ActionRectifying)
	return dto.NewDeclarationResponse(rect), nil
}

// mutate carga, aplica fn y guarda. Ante versión vencida recarga y reintenta: fn vuelve a
// evaluar sus precondiciones sobre el estado fresco.
func (uc *UseCase) mutate(ctx context.Context, ownerID, id string, fn func(*entity.Declaration, time.Time) ([]entity.HistoryEntry, error)) (*entity.Declaration, error) {
	var lastErr error
	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		d, err := uc.load(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		added, err := fn(d, uc.now())
		if err != nil {
			return nil, err
		}
		if len(added) == 0 {
			return d, nil
		}
		if err := uc.repo.Update(ctx, d, added); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		uc.publish(ctx, d, added[len(added)-1].Action)
		return d, nil
	}
	return nil, lastErr
}

// load obtiene la declaración; ownerID vacío omite el chequeo de propiedad (llamadas del sistema).
func (uc *UseCase) load(ctx context.Context, ownerID, id string) (*entity.Declaration, error) {
	d, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrNotFound
	}
	if ownerID != "" && d.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return d, nil
}

func (uc *UseCase) publish(ctx context.Context, d *entity.Declaration, action string) {
	if uc.events == nil {
		return
	}
	err := uc.events.Publish(ctx, ports.SubjectDeclarationChanged, ports.DeclarationChangedEvent{
		DeclarationID: d.ID,
		OwnerID:       d.OwnerID,
		Status:        string(d.Status),
		SunatStatus:   string(d.Sunat.Status),
		Action:        action,
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("declaration_id", d.ID).Msg("no se pudo publicar evento de declaración")
	}
}

func parseUpsert(year, month int, in dto.UpsertPeriodRequest) (entity.Period, entity.Regime, lifecycle.Inputs, error) {
	if err := dto.Validate(in); err != nil {
		return entity.Period{}, entity.Regime{}, lifecycle.Inputs{}, err
	}
	rt, err := tax.ParseRegimeType(in.Regime.Type)
	if err != nil {
		return entity.Period{}, entity.Regime{}, lifecycle.Inputs{}, err
	}
	period := entity.Period{Month: month, Year: year, Type: entity.PeriodType(in.Type)}
	if err := lifecycle.ValidatePeriod(&period); err != nil {
		return entity.Period{}, entity.Regime{}, lifecycle.Inputs{}, err
	}
	regime := entity.Regime{Type: rt, Category: in.Regime.Category}
	inputs := lifecycle.Inputs{
		Category: in.Regime.Category,
		Sales: entity.Sales{
			Taxable: in.Sales.Taxable,
			Exempt:  in.Sales.Exempt,
			Total:   totalOr(in.Sales.Total, in.Sales.Taxable, in.Sales.Exempt),
		},
		Purchases: entity.Purchases{
			Taxable: in.Purchases.Taxable,
			Exempt:  in.Purchases.Exempt,
			Total:   totalOr(in.Purchases.Total, in.Purchases.Taxable, in.Purchases.Exempt),
			IGVPaid: in.Purchases.IGVPaid,
		},
		RentWithheld: decimal.Zero,
	}
	return period, regime, inputs, nil
}

func totalOr(total, taxable, exempt decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return taxable.Add(exempt)
	}
	return total
}
