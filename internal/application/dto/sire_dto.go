package dto

import (
	"time"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// ProcessResponse estado de un proceso SIRE, consultado por la UI para mostrar avance.
type ProcessResponse struct {
	ID            string     `json:"id"`
	DeclarationID string     `json:"declaration_id,omitempty"`
	Period        string     `json:"period"`
	Stage         string     `json:"stage"`
	Estado        string     `json:"estado"`
	Ticket        string     `json:"ticket,omitempty"`
	NombreArchivo string     `json:"nombre_archivo,omitempty"`
	FechaInicio   time.Time  `json:"fecha_inicio"`
	FechaFin      *time.Time `json:"fecha_fin,omitempty"`
	Error         string     `json:"error,omitempty"`
	PollAttempts  int        `json:"poll_attempts"`
}

// NewProcessResponse arma la respuesta a partir de la entidad.
func NewProcessResponse(p *entity.SireProcess) *ProcessResponse {
	return &ProcessResponse{
		ID:            p.ID,
		DeclarationID: p.DeclarationID,
		Period:        p.PeriodKey,
		Stage:         string(p.Stage),
		Estado:        string(p.Estado),
		Ticket:        p.Ticket,
		NombreArchivo: p.NombreArchivo,
		FechaInicio:   p.FechaInicio,
		FechaFin:      p.FechaFin,
		Error:         p.Error,
		PollAttempts:  p.PollAttempts,
	}
}

// AuthorityPeriodResponse período habilitado por la SUNAT.
type AuthorityPeriodResponse struct {
	Year        int    `json:"year"`
	Period      string `json:"period"`
	Code        string `json:"code"`
	Description string `json:"description"`
}
