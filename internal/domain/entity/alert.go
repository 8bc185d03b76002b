package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertPriority prioridad de un recordatorio.
type AlertPriority string

const (
	PriorityHigh   AlertPriority = "high"
	PriorityMedium AlertPriority = "medium"
)

// Alert recordatorio de vencimiento de una declaración abierta.
type Alert struct {
	DeclarationID string
	OwnerID       string
	Period        Period
	Form          string
	DueDate       time.Time
	DaysUntilDue  int
	Priority      AlertPriority
	Amount        decimal.Decimal
	Message       string
}
