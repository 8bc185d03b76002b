package entity

import "time"

// ProcessState estado de un paso del flujo SIRE.
type ProcessState string

const (
	ProcessIniciado   ProcessState = "iniciado"
	ProcessProcesando ProcessState = "procesando"
	ProcessCompletado ProcessState = "completado"
	ProcessError      ProcessState = "error"
)

// Stage paso del flujo de presentación ante el SIRE.
type Stage string

const (
	StagePropuesta  Stage = "propuesta"  // descargar propuesta
	StageAceptacion Stage = "aceptacion" // aceptar propuesta
	StagePreliminar Stage = "preliminar" // registrar preliminar
)

// SireProcess un intento de ejecución de un paso para (owner, período).
// Una vez fijada FechaFin es inmutable; un nuevo intento crea otro registro.
type SireProcess struct {
	ID            string
	OwnerID       string
	DeclarationID string
	PeriodKey     string // AAAAMM
	Stage         Stage
	Estado        ProcessState
	Ticket        string
	NombreArchivo string
	FechaInicio   time.Time
	FechaFin      *time.Time
	Error         string
	PollAttempts  int
	UpdatedAt     time.Time
}

// IsFinal indica si el proceso ya no admite transiciones.
func (p *SireProcess) IsFinal() bool {
	return p.Estado == ProcessCompletado || p.Estado == ProcessError
}

// TicketStatus estado de un ticket del lado de la SUNAT.
type TicketStatus string

const (
	TicketEnProceso TicketStatus = "En Proceso"
	TicketTerminado TicketStatus = "Terminado"
	TicketError     TicketStatus = "Error"
)

// Ticket handle asíncrono devuelto por la SUNAT; no se persiste fuera del proceso.
type Ticket struct {
	ID            string
	Estado        TicketStatus
	FechaCreacion time.Time
	FechaTermino  *time.Time
	NombreArchivo string
	MensajeError  string
}

// AuthorityPeriod período habilitado por la SUNAT para un ejercicio.
type AuthorityPeriod struct {
	Year        int
	PeriodKey   string
	StatusCode  string
	Description string
}
