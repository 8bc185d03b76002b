package declaration_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

var now = time.Date(2024, 7, 1, 10, 0, 0, 0, declaration.Lima)

func newRER(t *testing.T) *entity.Declaration {
	t.Helper()
	d, err := declaration.New("d-1", "owner-1",
		entity.Period{Month: 6, Year: 2024},
		entity.Regime{Type: entity.RegimeRER}, now, "owner-1")
	require.NoError(t, err)
	return d
}

func salesOf(total string) declaration.Inputs {
	v := decimal.RequireFromString(total)
	return declaration.Inputs{Sales: entity.Sales{Total: v, Taxable: v}}
}

func TestDueDate_JunioVenceEl12DeJulio(t *testing.T) {
	due := declaration.DueDate(entity.Period{Month: 6, Year: 2024})
	assert.Equal(t, "2024-07-12", due.Format("2006-01-02"))
}

func TestDueDate_DiciembrePasaAEneroDelAnioSiguiente(t *testing.T) {
	due := declaration.DueDate(entity.Period{Month: 12, Year: 2024})
	assert.Equal(t, "2025-01-12", due.Format("2006-01-02"))
}

func TestNew_ValidaPeriodo(t *testing.T) {
	cases := []entity.Period{
		{Month: 0, Year: 2024},
		{Month: 13, Year: 2024},
		{Month: 5, Year: 2019},
		{Month: 5, Year: 2024, Type: "weekly"},
	}
	for _, p := range cases {
		_, err := declaration.New("x", "o", p, entity.Regime{Type: entity.RegimeRER}, now, "o")
		assert.ErrorIs(t, err, domain.ErrValidation, "%+v", p)
	}
}

func TestNew_RegimenDesconocidoSeRechaza(t *testing.T) {
	_, err := declaration.New("x", "o", entity.Period{Month: 5, Year: 2024}, entity.Regime{Type: "MYPE"}, now, "o")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNew_BorradorConVencimientoEHistorial(t *testing.T) {
	d := newRER(t)
	assert.Equal(t, entity.DeclarationDraft, d.Status)
	assert.Equal(t, entity.SunatDraft, d.Sunat.Status)
	assert.Equal(t, "PDT621", d.Sunat.Form)
	assert.Equal(t, entity.PeriodMonthly, d.Period.Type)
	require.Len(t, d.History, 1)
	assert.Equal(t, entity.ActionCreated, d.History[0].Action)
}

func TestRecalculate_PasaACalculada(t *testing.T) {
	d := newRER(t)
	changed, added, err := declaration.Recalculate(d, salesOf("5000"), now, "owner-1")
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, added, 1)
	assert.Equal(t, entity.DeclarationCalculated, d.Status)
	assert.True(t, decimal.RequireFromString("75").Equal(d.Payment.TotalToPay))
}

func TestRecalculate_MismasEntradasNoRecalcula(t *testing.T) {
	d := newRER(t)
	_, _, err := declaration.Recalculate(d, salesOf("5000"), now, "o")
	require.NoError(t, err)

	changed, added, err := declaration.Recalculate(d, salesOf("5000.00"), now, "o")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, added)
	assert.Len(t, d.History, 2)
}

func TestRecalculate_CerradaEsPrecondicion(t *testing.T) {
	d := newRER(t)
	_, _, err := declaration.Recalculate(d, salesOf("100"), now, "o")
	require.NoError(t, err)
	_, err = declaration.MarkSubmitted(d, now, entity.ActorSIRE)
	require.NoError(t, err)

	_, _, err = declaration.Recalculate(d, salesOf("200"), now, "o")
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}

func TestRecalculate_ErrorNoModificaLaDeclaracion(t *testing.T) {
	d := newRER(t)
	_, _, err := declaration.Recalculate(d, salesOf("-5"), now, "o")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, entity.DeclarationDraft, d.Status)
	assert.True(t, d.Sales.Total.IsZero())
}

func TestUpdateNotes_NoTocaImpuestos(t *testing.T) {
	d := newRER(t)
	_, _, err := declaration.Recalculate(d, declaration.Inputs{
		Sales:        entity.Sales{Total: decimal.RequireFromString("5000")},
		RentWithheld: decimal.RequireFromString("25"),
	}, now, "o")
	require.NoError(t, err)

	added := declaration.UpdateNotes(d, "revisar retención", now, "o")
	require.Len(t, added, 1)
	assert.True(t, decimal.RequireFromString("25").Equal(d.RentWithheld))
	assert.True(t, decimal.RequireFromString("50").Equal(d.Taxes.TotalToPay))
	assert.Empty(t, declaration.UpdateNotes(d, "revisar retención", now, "o"))
}

func TestFlujoCompleto_PagadaYAceptadaQuedaCompletada(t *testing.T) {
	d := newRER(t)
	_, _, err := declaration.Recalculate(d, salesOf("5000"), now, "o")
	require.NoError(t, err)

	_, err = declaration.ConfirmPayment(d, "OP-1", now, "o")
	assert.ErrorIs(t, err, domain.ErrPrecondition, "no se paga antes de presentar")

	_, err = declaration.MarkSubmitted(d, now, entity.ActorSIRE)
	require.NoError(t, err)
	assert.Equal(t, entity.SunatSubmitted, d.Sunat.Status)
	require.NotNil(t, d.Sunat.SubmittedAt)

	_, err = declaration.ConfirmPayment(d, "OP-1", now, "o")
	require.NoError(t, err)
	assert.Equal(t, entity.DeclarationPaid, d.Status)

	added, err := declaration.RecordVerdict(d, true, "", now, entity.ActorSIRE)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, entity.ActionCompleted, added[1].Action)
	assert.Equal(t, entity.DeclarationCompleted, d.Status)
	assert.Equal(t, entity.SunatAccepted, d.Sunat.Status)
}

func TestMarkSubmitted_EsIdempotente(t *testing.T) {
	d := newRER(t)
	_, _, err := declaration.Recalculate(d, salesOf("10"), now, "o")
	require.NoError(t, err)
	_, err = declaration.MarkSubmitted(d, now, entity.ActorSIRE)
	require.NoError(t, err)
	added, err := declaration.MarkSubmitted(d, now, entity.ActorSIRE)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestRectify_SoloDesdeRechazada(t *testing.T) {
	d := newRER(t)
	_, _, _, err := declaration.Rectify(d, "d-2", now, "o")
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	_, _, err = declaration.Recalculate(d, salesOf("5000"), now, "o")
	require.NoError(t, err)
	_, err = declaration.MarkSubmitted(d, now, entity.ActorSIRE)
	require.NoError(t, err)
	_, err = declaration.RecordVerdict(d, false, "inconsistencia en ventas", now, entity.ActorSIRE)
	require.NoError(t, err)

	rect, origAdded, rectAdded, err := declaration.Rectify(d, "d-2", now.Add(time.Hour), "o")
	require.NoError(t, err)
	assert.Equal(t, entity.SunatRectified, d.Sunat.Status)
	assert.Equal(t, "d-2", d.RectifiedByID)
	assert.Len(t, origAdded, 1)

	assert.Equal(t, "d-1", rect.RectifiesID)
	assert.Equal(t, entity.DeclarationCalculated, rect.Status)
	assert.Equal(t, d.Sunat.DueDate, rect.Sunat.DueDate)
	assert.True(t, decimal.RequireFromString("75").Equal(rect.Payment.TotalToPay))
	assert.Len(t, rectAdded, 2)
	assert.Len(t, rect.History, 3)
}

func TestHistorial_EsSoloAgregado(t *testing.T) {
	d := newRER(t)
	first := d.History[0]
	_, _, err := declaration.Recalculate(d, salesOf("1"), now, "")
	require.NoError(t, err)
	_, _, err = declaration.Recalculate(d, salesOf("2"), now, "")
	require.NoError(t, err)
	require.Len(t, d.History, 3)
	assert.Equal(t, first, d.History[0])
	assert.Equal(t, entity.ActorSystem, d.History[2].Actor)
}

func TestRecalculate_CambioDeCategoriaRecalcula(t *testing.T) {
	d, err := declaration.New("d-9", "o", entity.Period{Month: 3, Year: 2025},
		entity.Regime{Type: entity.RegimeRUS, Category: "A"}, now, "o")
	require.NoError(t, err)
	in := declaration.CurrentInputs(d)
	_, _, err = declaration.Recalculate(d, in, now, "o")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(d.Taxes.TotalToPay))

	in.Category = "C"
	changed, _, err := declaration.Recalculate(d, in, now, "o")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "C", d.Regime.Category)
	assert.True(t, decimal.NewFromInt(200).Equal(d.Taxes.TotalToPay))
}
