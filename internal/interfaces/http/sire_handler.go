package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/sire"
)

// SireHandler procesos y tickets del SIRE.
type SireHandler struct {
	o   *sire.Orchestrator
	log zerolog.Logger
}

func NewSireHandler(o *sire.Orchestrator, log zerolog.Logger) *SireHandler {
	return &SireHandler{o: o, log: log}
}

// ListPeriods GET /api/sire/periods
func (h *SireHandler) ListPeriods(c *fiber.Ctx) error {
	out, err := h.o.ListPeriods(c.UserContext(), GetOwnerID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// RunStage godoc
// @Summary      Ejecutar un paso del flujo SIRE
// @Tags         sire
// @Security     Bearer
// @Produce      json
// @Param        period  path  string  true  "Período AAAAMM"
// @Param        stage   path  string  true  "propuesta | aceptacion | preliminar"
// @Success      202     {object}  dto.ProcessResponse
// @Failure      412     {object}  dto.ErrorResponse
// @Router       /api/sire/periods/{period}/{stage} [post]
func (h *SireHandler) RunStage(c *fiber.Ctx) error {
	out, err := h.o.RunStageForOwner(c.UserContext(), GetOwnerID(c), c.Params("period"), c.Params("stage"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}

// GetProcess GET /api/sire/processes/:id
func (h *SireHandler) GetProcess(c *fiber.Ctx) error {
	out, err := h.o.GetProcessStatus(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// CancelPolling DELETE /api/sire/processes/:id/polling
func (h *SireHandler) CancelPolling(c *fiber.Ctx) error {
	out, err := h.o.CancelPolling(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// DownloadFile GET /api/sire/tickets/:ticket/file
func (h *SireHandler) DownloadFile(c *fiber.Ctx) error {
	name, content, err := h.o.DownloadFile(c.UserContext(), GetOwnerID(c), c.Params("ticket"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(content)
}
