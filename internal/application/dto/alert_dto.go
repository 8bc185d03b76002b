package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// AlertResponse recordatorio de vencimiento.
type AlertResponse struct {
	DeclarationID string          `json:"declaration_id"`
	Period        string          `json:"period"`
	Form          string          `json:"form"`
	DueDate       string          `json:"due_date"`
	DaysUntilDue  int             `json:"days_until_due"`
	Priority      string          `json:"priority"`
	Amount        decimal.Decimal `json:"amount"`
	Message       string          `json:"message"`
}

// NewAlertResponses arma las respuestas conservando el orden recibido.
func NewAlertResponses(alerts []entity.Alert) []AlertResponse {
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertResponse{
			DeclarationID: a.DeclarationID,
			Period:        fmt.Sprintf("%04d-%02d", a.Period.Year, a.Period.Month),
			Form:          a.Form,
			DueDate:       a.DueDate.Format("2006-01-02"),
			DaysUntilDue:  a.DaysUntilDue,
			Priority:      string(a.Priority),
			Amount:        a.Amount,
			Message:       a.Message,
		})
	}
	return out
}
