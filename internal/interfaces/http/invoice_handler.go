package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/billing"
	"github.com/jhoicas/tributa-api/internal/application/dto"
)

// InvoiceHandler emisión y consulta de comprobantes (protegido).
type InvoiceHandler struct {
	uc  *billing.CreateInvoiceUseCase
	log zerolog.Logger
}

func NewInvoiceHandler(uc *billing.CreateInvoiceUseCase, log zerolog.Logger) *InvoiceHandler {
	return &InvoiceHandler{uc: uc, log: log}
}

// Create godoc
// @Summary      Emitir factura o boleta
// @Tags         invoices
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateInvoiceRequest  true  "Comprobante"
// @Success      201   {object}  dto.InvoiceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/invoices [post]
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.CreateInvoice(c.UserContext(), GetOwnerID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Detalle del comprobante
// @Tags         invoices
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetInvoice(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// XML devuelve el UBL 2.1 del comprobante como adjunto.
// GET /api/invoices/:id/xml
func (h *InvoiceHandler) XML(c *fiber.Ctx) error {
	content, name, err := h.uc.InvoiceXML(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.Send(content)
}
