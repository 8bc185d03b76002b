package memory_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/internal/application/billing"
	"github.com/jhoicas/tributa-api/internal/domain"
	lifecycle "github.com/jhoicas/tributa-api/internal/domain/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
	"github.com/jhoicas/tributa-api/internal/infrastructure/memory"
	"github.com/jhoicas/tributa-api/pkg/sunat"
)

func TestAllocate_ConcurrenteSinHuecosNiDuplicados(t *testing.T) {
	store := memory.NewStore()
	alloc := billing.NewSequenceAllocator(store, zerolog.Nop())

	const n = 50
	var wg sync.WaitGroup
	numbers := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, num, err := alloc.NextNumber(context.Background(), "owner-1", sunat.DocumentTypeFactura)
			if assert.NoError(t, err) {
				numbers[i] = num
			}
		}(i)
	}
	wg.Wait()

	sort.Strings(numbers)
	for i, num := range numbers {
		assert.Equal(t, sunat.FormatNumber(int64(i+1)), num)
	}
	c, err := store.Sequences().Get(context.Background(), "owner-1", sunat.DocumentTypeFactura, sunat.SeriesFactura)
	require.NoError(t, err)
	assert.EqualValues(t, n, c.LastIssuedNumber)
}

func TestAllocate_FalloAlPersistirNoConsumeNumero(t *testing.T) {
	store := memory.NewStore()
	alloc := billing.NewSequenceAllocator(store, zerolog.Nop())
	boom := errors.New("fallo al guardar")

	_, _, err := alloc.Allocate(context.Background(), "owner-1", sunat.DocumentTypeBoleta,
		func(ctx context.Context, series, number string, repo repository.InvoiceRepository) error {
			return boom
		})
	assert.ErrorIs(t, err, boom)

	_, num, err := alloc.NextNumber(context.Background(), "owner-1", sunat.DocumentTypeBoleta)
	require.NoError(t, err)
	assert.Equal(t, "00000001", num)
}

func TestAllocate_SeriesIndependientesPorOwnerYTipo(t *testing.T) {
	store := memory.NewStore()
	alloc := billing.NewSequenceAllocator(store, zerolog.Nop())
	ctx := context.Background()

	_, f1, _ := alloc.NextNumber(ctx, "a", sunat.DocumentTypeFactura)
	_, b1, _ := alloc.NextNumber(ctx, "a", sunat.DocumentTypeBoleta)
	_, f2, _ := alloc.NextNumber(ctx, "b", sunat.DocumentTypeFactura)
	assert.Equal(t, "00000001", f1)
	assert.Equal(t, "00000001", b1)
	assert.Equal(t, "00000001", f2)
}

func TestInvoiceRepo_NumeroRepetidoEsErrorDeCorrelativo(t *testing.T) {
	repo := memory.NewStore().Invoices()
	ctx := context.Background()
	inv := &entity.Invoice{OwnerID: "o", Series: "F001", Number: "00000001"}
	require.NoError(t, repo.Create(ctx, inv))

	err := repo.Create(ctx, &entity.Invoice{OwnerID: "o", Series: "F001", Number: "00000001"})
	assert.ErrorIs(t, err, domain.ErrSequencing)
}

func TestDeclarationRepo_VersionVencidaEsConflicto(t *testing.T) {
	repo := memory.NewStore().Declarations()
	ctx := context.Background()
	d, err := lifecycle.New("d-1", "o", entity.Period{Month: 6, Year: 2024}, entity.Regime{Type: entity.RegimeRER}, time.Now(), "o")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, d))
	assert.Equal(t, 1, d.Version)

	a, _ := repo.GetByID(ctx, "d-1")
	b, _ := repo.GetByID(ctx, "d-1")
	added := lifecycle.UpdateNotes(a, "uno", time.Now(), "o")
	require.NoError(t, repo.Update(ctx, a, added))
	assert.Equal(t, 2, a.Version)

	added = lifecycle.UpdateNotes(b, "dos", time.Now(), "o")
	assert.ErrorIs(t, repo.Update(ctx, b, added), domain.ErrConflict)
}

func TestDeclarationRepo_UnaVigentePorPeriodo(t *testing.T) {
	repo := memory.NewStore().Declarations()
	ctx := context.Background()
	p := entity.Period{Month: 6, Year: 2024}
	d1, _ := lifecycle.New("d-1", "o", p, entity.Regime{Type: entity.RegimeRER}, time.Now(), "o")
	d2, _ := lifecycle.New("d-2", "o", p, entity.Regime{Type: entity.RegimeRER}, time.Now(), "o")
	require.NoError(t, repo.Create(ctx, d1))
	assert.ErrorIs(t, repo.Create(ctx, d2), domain.ErrConflict)

	found, err := repo.GetByPeriod(ctx, "o", 2024, 6, entity.RegimeRER)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "d-1", found.ID)
}

func TestRunDeclarations_ErrorDescartaTodo(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	boom := errors.New("abortar")

	err := store.RunDeclarations(ctx, func(repo repository.DeclarationRepository) error {
		d, _ := lifecycle.New("d-1", "o", entity.Period{Month: 6, Year: 2024}, entity.Regime{Type: entity.RegimeRER}, time.Now(), "o")
		if err := repo.Create(ctx, d); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Declarations().GetByID(ctx, "d-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSireProcessRepo_UpdateExigeEstadoEsperado(t *testing.T) {
	repo := memory.NewStore().Processes()
	ctx := context.Background()
	p := &entity.SireProcess{ID: "p-1", OwnerID: "o", PeriodKey: "202406", Stage: entity.StagePropuesta, Estado: entity.ProcessIniciado, FechaInicio: time.Now()}
	require.NoError(t, repo.Create(ctx, p))

	p.Estado = entity.ProcessProcesando
	require.NoError(t, repo.Update(ctx, p, entity.ProcessIniciado))

	p.Estado = entity.ProcessError
	assert.ErrorIs(t, repo.Update(ctx, p, entity.ProcessIniciado), domain.ErrConflict)
}

func TestSireProcessRepo_LatestByStageTomaElMasReciente(t *testing.T) {
	repo := memory.NewStore().Processes()
	ctx := context.Background()
	t0 := time.Now()
	require.NoError(t, repo.Create(ctx, &entity.SireProcess{ID: "a", OwnerID: "o", PeriodKey: "202406", Stage: entity.StagePropuesta, Estado: entity.ProcessError, FechaInicio: t0}))
	require.NoError(t, repo.Create(ctx, &entity.SireProcess{ID: "b", OwnerID: "o", PeriodKey: "202406", Stage: entity.StagePropuesta, Estado: entity.ProcessIniciado, FechaInicio: t0.Add(time.Second)}))
	require.NoError(t, repo.Create(ctx, &entity.SireProcess{ID: "c", OwnerID: "o", PeriodKey: "202405", Stage: entity.StagePropuesta, Estado: entity.ProcessIniciado, FechaInicio: t0}))

	latest, err := repo.LatestByStage(ctx, "o", "202406")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "b", latest[entity.StagePropuesta].ID)
}
