// Package alerts deriva recordatorios de vencimiento a partir de declaraciones abiertas.
package alerts

import (
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// HighPriorityDays umbral (inclusive) para prioridad alta.
const HighPriorityDays = 3

const day = 24 * time.Hour

// lima los vencimientos se cuentan por día calendario peruano.
var lima = time.FixedZone("PET", -5*60*60)

var printer = message.NewPrinter(language.LatinAmericanSpanish)

// Derive genera alertas para declaraciones draft/calculated cuyo día de vencimiento (hora de
// Lima) no ha pasado, ordenadas por vencimiento ascendente. El mismo día del vencimiento la
// alerta sigue con 0 días.
func Derive(decls []*entity.Declaration, now time.Time) []entity.Alert {
	out := make([]entity.Alert, 0, len(decls))
	for _, d := range decls {
		if d == nil || !d.IsOpen() {
			continue
		}
		due := d.Sunat.DueDate
		if pastDueDay(due, now) {
			continue
		}
		days := DaysUntil(due, now)
		priority := entity.PriorityMedium
		if days <= HighPriorityDays {
			priority = entity.PriorityHigh
		}
		out = append(out, entity.Alert{
			DeclarationID: d.ID,
			OwnerID:       d.OwnerID,
			Period:        d.Period,
			Form:          d.Sunat.Form,
			DueDate:       due,
			DaysUntilDue:  days,
			Priority:      priority,
			Amount:        d.Payment.TotalToPay,
			Message:       describe(d, days),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.Period.Year != b.Period.Year {
			return a.Period.Year < b.Period.Year
		}
		if a.Period.Month != b.Period.Month {
			return a.Period.Month < b.Period.Month
		}
		return a.DeclarationID < b.DeclarationID
	})
	return out
}

// DaysUntil días hasta el vencimiento, redondeando hacia arriba.
func DaysUntil(due, now time.Time) int {
	diff := due.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int((diff + day - 1) / day)
}

// pastDueDay indica si el día calendario del vencimiento ya terminó en Lima.
func pastDueDay(due, now time.Time) bool {
	dy, dm, dd := due.In(lima).Date()
	ny, nm, nd := now.In(lima).Date()
	return time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC).Before(time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC))
}

func describe(d *entity.Declaration, days int) string {
	amount := d.Payment.TotalToPay.Round(2).InexactFloat64()
	switch days {
	case 0:
		return printer.Sprintf("El %s de %02d/%d vence hoy. Monto a pagar: S/ %.2f", d.Sunat.Form, d.Period.Month, d.Period.Year, amount)
	case 1:
		return printer.Sprintf("El %s de %02d/%d vence mañana. Monto a pagar: S/ %.2f", d.Sunat.Form, d.Period.Month, d.Period.Year, amount)
	default:
		return printer.Sprintf("El %s de %02d/%d vence en %d días. Monto a pagar: S/ %.2f", d.Sunat.Form, d.Period.Month, d.Period.Year, days, amount)
	}
}
