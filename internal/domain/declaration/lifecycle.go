// Package declaration contiene las reglas del ciclo de vida de una declaración:
// vencimiento, transiciones de estado e historial de auditoría.
//
// Cada operación que cambia el estado devuelve las entradas de historial que agregó,
// para que el repositorio las persista en la misma escritura.
package declaration

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/tax"
	"github.com/jhoicas/tributa-api/pkg/sunat"
)

// Lima hora oficial del Perú (UTC-5, sin horario de verano).
var Lima = time.FixedZone("PET", -5*60*60)

const minYear = 2020

// DueDate vencimiento: día 12 del mes siguiente al período. Diciembre pasa a enero del año siguiente.
func DueDate(p entity.Period) time.Time {
	// time.Date normaliza el mes 13 a enero del año siguiente.
	return time.Date(p.Year, time.Month(p.Month)+1, sunat.DueDayOfMonth, 0, 0, 0, 0, Lima)
}

// ValidatePeriod valida mes, año y tipo. Un tipo vacío se interpreta como mensual.
func ValidatePeriod(p *entity.Period) error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: mes %d fuera de rango (1-12)", domain.ErrValidation, p.Month)
	}
	if p.Year < minYear {
		return fmt.Errorf("%w: año %d anterior a %d", domain.ErrValidation, p.Year, minYear)
	}
	switch p.Type {
	case "":
		p.Type = entity.PeriodMonthly
	case entity.PeriodMonthly, entity.PeriodQuarterly, entity.PeriodAnnual:
	default:
		return fmt.Errorf("%w: tipo de período desconocido %q", domain.ErrValidation, p.Type)
	}
	return nil
}

// New crea una declaración en borrador con el vencimiento fijado.
func New(id, ownerID string, p entity.Period, r entity.Regime, now time.Time, actor string) (*entity.Declaration, error) {
	if err := ValidatePeriod(&p); err != nil {
		return nil, err
	}
	if _, err := tax.ParseRegimeType(string(r.Type)); err != nil {
		return nil, err
	}
	d := &entity.Declaration{
		ID:           id,
		OwnerID:      ownerID,
		Period:       p,
		Regime:       r,
		RentWithheld: decimal.Zero,
		Payment:      entity.Payment{TotalToPay: decimal.Zero},
		Sunat: entity.SunatInfo{
			Status:  entity.SunatDraft,
			Form:    tax.FormFor(r.Type),
			DueDate: DueDate(p),
		},
		Status:    entity.DeclarationDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	appendEntry(d, entity.ActionCreated,
		fmt.Sprintf("declaración %s %02d/%d creada (vence %s)", d.Sunat.Form, p.Month, p.Year, d.Sunat.DueDate.Format("2006-01-02")),
		now, actor)
	return d, nil
}

// Inputs entradas de cálculo que, al cambiar, obligan a recalcular.
// Category es la categoría del régimen (tramo RUS o subtipo RG).
type Inputs struct {
	Category     string
	Sales        entity.Sales
	Purchases    entity.Purchases
	RentWithheld decimal.Decimal
}

// CurrentInputs entradas vigentes de la declaración.
func CurrentInputs(d *entity.Declaration) Inputs {
	return Inputs{Category: d.Regime.Category, Sales: d.Sales, Purchases: d.Purchases, RentWithheld: d.RentWithheld}
}

// Equal compara montos por valor (100 == 100.00).
func (in Inputs) Equal(o Inputs) bool {
	return in.Category == o.Category &&
		in.Sales.Taxable.Equal(o.Sales.Taxable) &&
		in.Sales.Exempt.Equal(o.Sales.Exempt) &&
		in.Sales.Total.Equal(o.Sales.Total) &&
		in.Purchases.Taxable.Equal(o.Purchases.Taxable) &&
		in.Purchases.Exempt.Equal(o.Purchases.Exempt) &&
		in.Purchases.Total.Equal(o.Purchases.Total) &&
		in.Purchases.IGVPaid.Equal(o.Purchases.IGVPaid) &&
		in.RentWithheld.Equal(o.RentWithheld)
}

// Recalculate aplica nuevas entradas y recalcula impuestos. Si la declaración ya estaba
// calculada con las mismas entradas no hace nada (changed = false).
// Solo se permite mientras la declaración esté abierta (draft/calculated).
func Recalculate(d *entity.Declaration, in Inputs, now time.Time, actor string) (changed bool, added []entity.HistoryEntry, err error) {
	if !d.IsOpen() {
		return false, nil, fmt.Errorf("%w: la declaración está en estado %s y no admite cambios", domain.ErrPrecondition, d.Status)
	}
	if d.Status == entity.DeclarationCalculated && CurrentInputs(d).Equal(in) {
		return false, nil, nil
	}
	regime := entity.Regime{Type: d.Regime.Type, Category: in.Category}
	taxes, err := tax.Compute(tax.Input{
		Regime:       regime,
		Sales:        in.Sales,
		Purchases:    in.Purchases,
		RentWithheld: in.RentWithheld,
	})
	if err != nil {
		return false, nil, err
	}
	d.Regime = regime
	d.Sales = in.Sales
	d.Purchases = in.Purchases
	d.RentWithheld = in.RentWithheld
	d.Taxes = taxes
	d.Payment.TotalToPay = tax.PaymentDue(taxes)
	d.Status = entity.DeclarationCalculated
	d.UpdatedAt = now
	e := appendEntry(d, entity.ActionCalculated,
		fmt.Sprintf("impuestos recalculados: total a pagar %s", d.Payment.TotalToPay.StringFixed(2)),
		now, actor)
	return true, []entity.HistoryEntry{e}, nil
}

// UpdateNotes cambia las notas sin recalcular impuestos.
func UpdateNotes(d *entity.Declaration, notes string, now time.Time, actor string) []entity.HistoryEntry {
	if d.Notes == notes {
		return nil
	}
	d.Notes = notes
	d.UpdatedAt = now
	return []entity.HistoryEntry{appendEntry(d, entity.ActionUpdated, "notas actualizadas", now, actor)}
}

// MarkSubmitted registra la presentación (paso final del flujo SIRE).
func MarkSubmitted(d *entity.Declaration, now time.Time, actor string) ([]entity.HistoryEntry, error) {
	if d.Status == entity.DeclarationSubmitted && d.Sunat.Status == entity.SunatSubmitted {
		return nil, nil
	}
	if d.Status != entity.DeclarationCalculated {
		return nil, fmt.Errorf("%w: solo una declaración calculada puede presentarse (estado %s)", domain.ErrPrecondition, d.Status)
	}
	d.Status = entity.DeclarationSubmitted
	d.Sunat.Status = entity.SunatSubmitted
	d.Sunat.SubmittedAt = &now
	d.UpdatedAt = now
	e := appendEntry(d, entity.ActionSubmitted, "preliminar registrado en el SIRE; pendiente de conformidad SUNAT", now, actor)
	return []entity.HistoryEntry{e}, nil
}

// ConfirmPayment registra el pago. Si la SUNAT ya aceptó, la declaración queda completada.
func ConfirmPayment(d *entity.Declaration, reference string, now time.Time, actor string) ([]entity.HistoryEntry, error) {
	if d.Status != entity.DeclarationSubmitted {
		return nil, fmt.Errorf("%w: solo una declaración presentada puede marcarse como pagada (estado %s)", domain.ErrPrecondition, d.Status)
	}
	if d.Sunat.Status == entity.SunatRejected {
		return nil, fmt.Errorf("%w: la SUNAT rechazó la declaración; corresponde rectificar", domain.ErrPrecondition)
	}
	d.Status = entity.DeclarationPaid
	d.Payment.PaidAt = &now
	d.Payment.Reference = reference
	d.UpdatedAt = now
	added := []entity.HistoryEntry{
		appendEntry(d, entity.ActionPaid, fmt.Sprintf("pago confirmado por %s (ref. %s)", d.Payment.TotalToPay.StringFixed(2), reference), now, actor),
	}
	return append(added, completeIfReady(d, now)...), nil
}

// RecordVerdict registra la conformidad (accepted) o el rechazo de la SUNAT.
func RecordVerdict(d *entity.Declaration, accepted bool, message string, now time.Time, actor string) ([]entity.HistoryEntry, error) {
	if d.Sunat.Status != entity.SunatSubmitted {
		return nil, fmt.Errorf("%w: la SUNAT solo se pronuncia sobre declaraciones presentadas (estado SUNAT %s)", domain.ErrPrecondition, d.Sunat.Status)
	}
	d.Sunat.Message = message
	d.UpdatedAt = now
	if !accepted {
		d.Sunat.Status = entity.SunatRejected
		return []entity.HistoryEntry{appendEntry(d, entity.ActionRejected, "rechazada por SUNAT: "+message, now, actor)}, nil
	}
	d.Sunat.Status = entity.SunatAccepted
	added := []entity.HistoryEntry{appendEntry(d, entity.ActionAccepted, "aceptada por SUNAT", now, actor)}
	return append(added, completeIfReady(d, now)...), nil
}

func completeIfReady(d *entity.Declaration, now time.Time) []entity.HistoryEntry {
	if d.Status != entity.DeclarationPaid || d.Sunat.Status != entity.SunatAccepted {
		return nil
	}
	d.Status = entity.DeclarationCompleted
	return []entity.HistoryEntry{appendEntry(d, entity.ActionCompleted, "declaración pagada y aceptada", now, entity.ActorSystem)}
}

// Rectify crea la rectificatoria de una declaración rechazada y marca la original como rectificada.
// La nueva parte de las mismas entradas y queda calculada.
func Rectify(original *entity.Declaration, newID string, now time.Time, actor string) (rect *entity.Declaration, originalAdded, rectAdded []entity.HistoryEntry, err error) {
	if original.Sunat.Status != entity.SunatRejected {
		return nil, nil, nil, fmt.Errorf("%w: solo se rectifica una declaración rechazada (estado SUNAT %s)", domain.ErrPrecondition, original.Sunat.Status)
	}
	rect, err = New(newID, original.OwnerID, original.Period, original.Regime, now, actor)
	if err != nil {
		return nil, nil, nil, err
	}
	// el vencimiento es el del período, no se recalcula por rectificar
	rect.Sunat.DueDate = original.Sunat.DueDate
	rect.RectifiesID = original.ID
	rect.Notes = original.Notes
	rectAdded = append(rectAdded, appendEntry(rect, entity.ActionRectifying, "rectificatoria de la declaración "+original.ID, now, actor))
	_, calc, err := Recalculate(rect, CurrentInputs(original), now, actor)
	if err != nil {
		return nil, nil, nil, err
	}
	rectAdded = append(rectAdded, calc...)

	original.Sunat.Status = entity.SunatRectified
	original.RectifiedByID = rect.ID
	original.UpdatedAt = now
	originalAdded = []entity.HistoryEntry{appendEntry(original, entity.ActionRectified, "rectificada por la declaración "+rect.ID, now, actor)}
	return rect, originalAdded, rectAdded, nil
}

func appendEntry(d *entity.Declaration, action, description string, at time.Time, actor string) entity.HistoryEntry {
	if actor == "" {
		actor = entity.ActorSystem
	}
	e := entity.HistoryEntry{Action: action, Description: description, At: at, Actor: actor}
	d.History = append(d.History, e)
	return e
}
