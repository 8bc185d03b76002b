// Package sire define la máquina de estados de los procesos SIRE y el orden de sus pasos.
package sire

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// transiciones permitidas; solo hacia adelante.
var allowed = map[entity.ProcessState][]entity.ProcessState{
	entity.ProcessIniciado:   {entity.ProcessProcesando, entity.ProcessError},
	entity.ProcessProcesando: {entity.ProcessCompletado, entity.ProcessError},
}

// CanTransition indica si from -> to está permitido.
func CanTransition(from, to entity.ProcessState) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition aplica el cambio de estado. Los estados finales fijan FechaFin.
func Transition(p *entity.SireProcess, to entity.ProcessState, now time.Time) error {
	if !CanTransition(p.Estado, to) {
		return fmt.Errorf("%w: el proceso %s no puede pasar de %s a %s", domain.ErrPrecondition, p.ID, p.Estado, to)
	}
	p.Estado = to
	p.UpdatedAt = now
	if p.IsFinal() {
		fin := now
		p.FechaFin = &fin
	}
	return nil
}

// MarkProcessing registra el ticket devuelto por la SUNAT.
func MarkProcessing(p *entity.SireProcess, ticket string, now time.Time) error {
	if err := Transition(p, entity.ProcessProcesando, now); err != nil {
		return err
	}
	p.Ticket = ticket
	return nil
}

// Complete cierra el proceso con éxito.
func Complete(p *entity.SireProcess, nombreArchivo string, now time.Time) error {
	if err := Transition(p, entity.ProcessCompletado, now); err != nil {
		return err
	}
	p.NombreArchivo = nombreArchivo
	return nil
}

// Fail cierra el proceso con error conservando el último mensaje.
func Fail(p *entity.SireProcess, msg string, now time.Time) error {
	if err := Transition(p, entity.ProcessError, now); err != nil {
		return err
	}
	p.Error = msg
	return nil
}

// Stages orden obligatorio de los pasos para un período.
var Stages = []entity.Stage{entity.StagePropuesta, entity.StageAceptacion, entity.StagePreliminar}

// ParseStage acepta el nombre del paso o su alias en la API.
func ParseStage(s string) (entity.Stage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "propuesta", "descargar-propuesta":
		return entity.StagePropuesta, nil
	case "aceptacion", "aceptar-propuesta":
		return entity.StageAceptacion, nil
	case "preliminar", "registrar-preliminar":
		return entity.StagePreliminar, nil
	default:
		return "", fmt.Errorf("%w: paso SIRE desconocido %q", domain.ErrValidation, s)
	}
}

func index(s entity.Stage) int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Previous paso que debe estar completado antes de s.
func Previous(s entity.Stage) (entity.Stage, bool) {
	i := index(s)
	if i <= 0 {
		return "", false
	}
	return Stages[i-1], true
}

// Next paso siguiente a s.
func Next(s entity.Stage) (entity.Stage, bool) {
	i := index(s)
	if i < 0 || i == len(Stages)-1 {
		return "", false
	}
	return Stages[i+1], true
}

// Latest último proceso de cada paso para un (owner, período).
type Latest map[entity.Stage]*entity.SireProcess

// CheckOrder exige que el paso anterior esté completado. Nunca reordena.
func CheckOrder(s entity.Stage, latest Latest) error {
	if index(s) < 0 {
		return fmt.Errorf("%w: paso SIRE desconocido %q", domain.ErrValidation, s)
	}
	prev, ok := Previous(s)
	if !ok {
		return nil
	}
	p := latest[prev]
	if p == nil || p.Estado != entity.ProcessCompletado {
		state := "sin iniciar"
		if p != nil {
			state = string(p.Estado)
		}
		return fmt.Errorf("%w: el paso %s requiere %s completado (estado actual: %s)", domain.ErrPrecondition, s, prev, state)
	}
	return nil
}

// ForDeclaration deja los procesos de la declaración. Los que no tienen declaración (pasos
// explícitos por período) cuentan solo si empezaron desde since; since cero los acepta todos.
func ForDeclaration(latest Latest, declarationID string, since time.Time) Latest {
	out := make(Latest, len(latest))
	for s, p := range latest {
		if p == nil {
			continue
		}
		switch {
		case p.DeclarationID == declarationID:
			out[s] = p
		case p.DeclarationID == "" && !p.FechaInicio.Before(since):
			out[s] = p
		}
	}
	return out
}

// NextPending primer paso cuyo último proceso no está completado.
func NextPending(latest Latest) (entity.Stage, bool) {
	for _, s := range Stages {
		p := latest[s]
		if p == nil || p.Estado != entity.ProcessCompletado {
			return s, true
		}
	}
	return "", false
}

// Decision qué hacer al invocar un paso según su último proceso.
type Decision int

const (
	// DecisionStart no hay proceso o el último terminó en error: se crea uno nuevo.
	DecisionStart Decision = iota
	// DecisionAttach hay un proceso en curso: se reutiliza su ticket.
	DecisionAttach
	// DecisionReuse el paso ya está completado: se devuelve el resultado guardado.
	DecisionReuse
)

// Decide aplica la regla de idempotencia.
func Decide(latest *entity.SireProcess) Decision {
	if latest == nil {
		return DecisionStart
	}
	switch latest.Estado {
	case entity.ProcessCompletado:
		return DecisionReuse
	case entity.ProcessIniciado, entity.ProcessProcesando:
		return DecisionAttach
	default:
		return DecisionStart
	}
}
