package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/alerts"
)

// AlertHandler alertas de vencimiento.
type AlertHandler struct {
	uc  *alerts.UseCase
	log zerolog.Logger
}

func NewAlertHandler(uc *alerts.UseCase, log zerolog.Logger) *AlertHandler {
	return &AlertHandler{uc: uc, log: log}
}

// Deadlines godoc
// @Summary      Vencimientos próximos
// @Description  Declaraciones en borrador o calculadas cuyo día de vencimiento no ha pasado, la más próxima primero.
// @Tags         alerts
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.AlertResponse
// @Router       /api/alerts/deadlines [get]
func (h *AlertHandler) Deadlines(c *fiber.Ctx) error {
	out, err := h.uc.ListUpcomingDeadlines(c.UserContext(), GetOwnerID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
