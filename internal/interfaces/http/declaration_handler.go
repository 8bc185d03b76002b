package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/declaration"
	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/application/sire"
)

// DeclarationHandler declaraciones mensuales y su presentación.
type DeclarationHandler struct {
	uc   *declaration.UseCase
	sire *sire.Orchestrator
	log  zerolog.Logger
}

func NewDeclarationHandler(uc *declaration.UseCase, orchestrator *sire.Orchestrator, log zerolog.Logger) *DeclarationHandler {
	return &DeclarationHandler{uc: uc, sire: orchestrator, log: log}
}

// Create godoc
// @Summary      Crear la declaración de un período
// @Tags         declarations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateDeclarationRequest  true  "Período y montos"
// @Success      201   {object}  dto.DeclarationResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/declarations [post]
func (h *DeclarationHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateDeclarationRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	out, err := h.uc.Create(c.UserContext(), GetOwnerID(c), in.Year, in.Month, in.UpsertPeriodRequest)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpsertPeriod godoc
// @Summary      Crear o recalcular la declaración del período
// @Tags         declarations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        year   path  int  true  "Año"
// @Param        month  path  int  true  "Mes"
// @Param        body   body  dto.UpsertPeriodRequest  true  "Montos del período"
// @Success      200    {object}  dto.DeclarationResponse
// @Failure      412    {object}  dto.ErrorResponse
// @Router       /api/declarations/periods/{year}/{month} [put]
func (h *DeclarationHandler) UpsertPeriod(c *fiber.Ctx) error {
	year, err1 := strconv.Atoi(c.Params("year"))
	month, err2 := strconv.Atoi(c.Params("month"))
	if err1 != nil || err2 != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "año y mes deben ser numéricos"})
	}
	var in dto.UpsertPeriodRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.UpsertSalesIntoPeriod(c.UserContext(), GetOwnerID(c), year, month, in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// GetByID GET /api/declarations/:id
func (h *DeclarationHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Update PATCH /api/declarations/:id; 409 si la versión enviada está vencida.
func (h *DeclarationHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateDeclarationRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Update(c.UserContext(), GetOwnerID(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// ConfirmPayment POST /api/declarations/:id/payment
func (h *DeclarationHandler) ConfirmPayment(c *fiber.Ctx) error {
	var in dto.PaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.ConfirmPayment(c.UserContext(), GetOwnerID(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// RecordVerdict POST /api/declarations/:id/verdict
func (h *DeclarationHandler) RecordVerdict(c *fiber.Ctx) error {
	var in dto.VerdictRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.RecordVerdict(c.UserContext(), GetOwnerID(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Rectify POST /api/declarations/:id/rectify
func (h *DeclarationHandler) Rectify(c *fiber.Ctx) error {
	out, err := h.uc.Rectify(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Submit godoc
// @Summary      Presentar la declaración ante el SIRE
// @Description  Inicia (o reutiliza) el siguiente paso pendiente y devuelve el proceso; el avance se consulta por id.
// @Tags         declarations
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la declaración"
// @Success      202  {object}  dto.ProcessResponse
// @Failure      412  {object}  dto.ErrorResponse
// @Router       /api/declarations/{id}/submit [post]
func (h *DeclarationHandler) Submit(c *fiber.Ctx) error {
	out, err := h.sire.SubmitDeclaration(c.UserContext(), GetOwnerID(c), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}
