package alerts_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/internal/domain/alerts"
	lifecycle "github.com/jhoicas/tributa-api/internal/domain/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

var now = time.Date(2024, 7, 8, 12, 0, 0, 0, time.UTC)

func decl(id string, status entity.DeclarationStatus, due time.Time) *entity.Declaration {
	return &entity.Declaration{
		ID:      id,
		OwnerID: "owner-1",
		Period:  entity.Period{Month: 6, Year: 2024},
		Status:  status,
		Sunat:   entity.SunatInfo{Form: "PDT621", DueDate: due},
		Payment: entity.Payment{TotalToPay: decimal.RequireFromString("1234.5")},
	}
}

func TestDerive_ExcluyeDeclaracionesPresentadas(t *testing.T) {
	due := now.Add(48 * time.Hour)
	got := alerts.Derive([]*entity.Declaration{
		decl("a", entity.DeclarationSubmitted, due),
		decl("b", entity.DeclarationPaid, due),
		decl("c", entity.DeclarationCompleted, due),
		decl("d", entity.DeclarationCalculated, due),
	}, now)
	require.Len(t, got, 1)
	assert.Equal(t, "d", got[0].DeclarationID)
}

func TestDerive_OrdenaPorVencimientoAscendente(t *testing.T) {
	got := alerts.Derive([]*entity.Declaration{
		decl("tarde", entity.DeclarationDraft, now.Add(20*24*time.Hour)),
		decl("pronto", entity.DeclarationCalculated, now.Add(time.Hour)),
		decl("medio", entity.DeclarationDraft, now.Add(5*24*time.Hour)),
	}, now)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"pronto", "medio", "tarde"},
		[]string{got[0].DeclarationID, got[1].DeclarationID, got[2].DeclarationID})
}

func TestDerive_PrioridadYDiasRedondeadosHaciaArriba(t *testing.T) {
	got := alerts.Derive([]*entity.Declaration{
		decl("tres", entity.DeclarationDraft, now.Add(2*24*time.Hour+time.Minute)),
		decl("cuatro", entity.DeclarationDraft, now.Add(3*24*time.Hour+time.Minute)),
	}, now)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].DaysUntilDue)
	assert.Equal(t, entity.PriorityHigh, got[0].Priority)
	assert.Equal(t, 4, got[1].DaysUntilDue)
	assert.Equal(t, entity.PriorityMedium, got[1].Priority)
}

func TestDerive_VencidasNoGeneranAlerta(t *testing.T) {
	got := alerts.Derive([]*entity.Declaration{decl("x", entity.DeclarationDraft, now.Add(-24*time.Hour))}, now)
	assert.Empty(t, got)
}

func TestDerive_DiaDelVencimientoSigueAlertando(t *testing.T) {
	due := time.Date(2024, 7, 12, 0, 0, 0, 0, lifecycle.Lima)

	got := alerts.Derive([]*entity.Declaration{decl("x", entity.DeclarationCalculated, due)}, time.Date(2024, 7, 12, 10, 0, 0, 0, lifecycle.Lima))
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].DaysUntilDue)
	assert.Equal(t, entity.PriorityHigh, got[0].Priority)
	assert.Contains(t, got[0].Message, "vence hoy")

	got = alerts.Derive([]*entity.Declaration{decl("x", entity.DeclarationCalculated, due)}, time.Date(2024, 7, 11, 10, 0, 0, 0, lifecycle.Lima))
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].DaysUntilDue)
	assert.Contains(t, got[0].Message, "vence mañana")

	got = alerts.Derive([]*entity.Declaration{decl("x", entity.DeclarationCalculated, due)}, time.Date(2024, 7, 13, 0, 0, 1, 0, lifecycle.Lima))
	assert.Empty(t, got)
}

func TestDerive_VenceAhoraEsHoy(t *testing.T) {
	got := alerts.Derive([]*entity.Declaration{decl("x", entity.DeclarationDraft, now)}, now)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].DaysUntilDue)
	assert.Contains(t, got[0].Message, "vence hoy")
	assert.Contains(t, got[0].Message, "S/ 1")
}
