package sire_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/sire"
)

var now = time.Date(2024, 7, 3, 9, 0, 0, 0, time.UTC)

func proc(estado entity.ProcessState) *entity.SireProcess {
	return &entity.SireProcess{ID: "p-1", Stage: entity.StagePropuesta, Estado: estado}
}

func TestTransition_FlujoNormal(t *testing.T) {
	p := proc(entity.ProcessIniciado)
	require.NoError(t, sire.MarkProcessing(p, "T-1", now))
	assert.Equal(t, "T-1", p.Ticket)
	assert.Nil(t, p.FechaFin)

	require.NoError(t, sire.Complete(p, "propuesta.zip", now))
	assert.Equal(t, entity.ProcessCompletado, p.Estado)
	require.NotNil(t, p.FechaFin)
	assert.Equal(t, "propuesta.zip", p.NombreArchivo)
}

func TestTransition_RechazoInmediato(t *testing.T) {
	p := proc(entity.ProcessIniciado)
	require.NoError(t, sire.Fail(p, "credenciales inválidas", now))
	assert.Equal(t, entity.ProcessError, p.Estado)
	assert.Equal(t, "credenciales inválidas", p.Error)
}

func TestTransition_EstadosFinalesNoCambian(t *testing.T) {
	targets := []entity.ProcessState{entity.ProcessIniciado, entity.ProcessProcesando, entity.ProcessCompletado, entity.ProcessError}
	for _, from := range []entity.ProcessState{entity.ProcessCompletado, entity.ProcessError} {
		for _, to := range targets {
			p := proc(from)
			err := sire.Transition(p, to, now)
			assert.ErrorIs(t, err, domain.ErrPrecondition, "%s -> %s", from, to)
			assert.Equal(t, from, p.Estado)
		}
	}
}

func TestTransition_NoRetrocedeAIniciado(t *testing.T) {
	p := proc(entity.ProcessProcesando)
	assert.ErrorIs(t, sire.Transition(p, entity.ProcessIniciado, now), domain.ErrPrecondition)
	assert.False(t, sire.CanTransition(entity.ProcessIniciado, entity.ProcessCompletado))
}

func TestCheckOrder_AceptacionRequierePropuestaCompletada(t *testing.T) {
	latest := sire.Latest{}
	assert.NoError(t, sire.CheckOrder(entity.StagePropuesta, latest))
	assert.ErrorIs(t, sire.CheckOrder(entity.StageAceptacion, latest), domain.ErrPrecondition)

	latest[entity.StagePropuesta] = proc(entity.ProcessProcesando)
	assert.ErrorIs(t, sire.CheckOrder(entity.StageAceptacion, latest), domain.ErrPrecondition)

	latest[entity.StagePropuesta] = proc(entity.ProcessCompletado)
	assert.NoError(t, sire.CheckOrder(entity.StageAceptacion, latest))
	assert.ErrorIs(t, sire.CheckOrder(entity.StagePreliminar, latest), domain.ErrPrecondition)
}

func TestNextPending(t *testing.T) {
	latest := sire.Latest{}
	s, ok := sire.NextPending(latest)
	require.True(t, ok)
	assert.Equal(t, entity.StagePropuesta, s)

	latest[entity.StagePropuesta] = proc(entity.ProcessCompletado)
	latest[entity.StageAceptacion] = proc(entity.ProcessError)
	s, ok = sire.NextPending(latest)
	require.True(t, ok)
	assert.Equal(t, entity.StageAceptacion, s)

	latest[entity.StageAceptacion] = proc(entity.ProcessCompletado)
	latest[entity.StagePreliminar] = proc(entity.ProcessCompletado)
	_, ok = sire.NextPending(latest)
	assert.False(t, ok)
}

func TestDecide(t *testing.T) {
	assert.Equal(t, sire.DecisionStart, sire.Decide(nil))
	assert.Equal(t, sire.DecisionStart, sire.Decide(proc(entity.ProcessError)))
	assert.Equal(t, sire.DecisionAttach, sire.Decide(proc(entity.ProcessIniciado)))
	assert.Equal(t, sire.DecisionAttach, sire.Decide(proc(entity.ProcessProcesando)))
	assert.Equal(t, sire.DecisionReuse, sire.Decide(proc(entity.ProcessCompletado)))
}

func TestParseStage(t *testing.T) {
	s, err := sire.ParseStage("aceptar-propuesta")
	require.NoError(t, err)
	assert.Equal(t, entity.StageAceptacion, s)
	_, err = sire.ParseStage("firmar")
	assert.ErrorIs(t, err, domain.ErrValidation)

	next, ok := sire.Next(entity.StagePropuesta)
	require.True(t, ok)
	assert.Equal(t, entity.StageAceptacion, next)
	_, ok = sire.Next(entity.StagePreliminar)
	assert.False(t, ok)
}

func TestForDeclaration_IgnoraPasosDeOtraDeclaracion(t *testing.T) {
	created := now.Add(time.Hour)
	latest := sire.Latest{
		entity.StagePropuesta:  {ID: "a", DeclarationID: "d-2", Estado: entity.ProcessProcesando, FechaInicio: created.Add(time.Minute)},
		entity.StageAceptacion: {ID: "b", DeclarationID: "d-1", Estado: entity.ProcessCompletado, FechaInicio: now},
		entity.StagePreliminar: {ID: "c", Estado: entity.ProcessCompletado, FechaInicio: now},
	}

	out := sire.ForDeclaration(latest, "d-2", created)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[entity.StagePropuesta].ID)

	stage, pending := sire.NextPending(out)
	assert.True(t, pending)
	assert.Equal(t, entity.StagePropuesta, stage)

	all := sire.ForDeclaration(latest, "d-1", time.Time{})
	assert.Len(t, all, 2, "sin rectificación cuentan los pasos explícitos del período")
	assert.Equal(t, "c", all[entity.StagePreliminar].ID)
}
