package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/application/taxpayer"
)

// TaxpayerHandler perfil tributario y credenciales SUNAT del usuario.
type TaxpayerHandler struct {
	uc  *taxpayer.UseCase
	log zerolog.Logger
}

func NewTaxpayerHandler(uc *taxpayer.UseCase, log zerolog.Logger) *TaxpayerHandler {
	return &TaxpayerHandler{uc: uc, log: log}
}

// Get godoc
// @Summary      Perfil tributario (sin secretos)
// @Tags         taxpayer
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.TaxpayerResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/taxpayer [get]
func (h *TaxpayerHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetOwnerID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Upsert godoc
// @Summary      Crear o actualizar perfil y credenciales
// @Tags         taxpayer
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.UpsertTaxpayerRequest  true  "Perfil"
// @Success      200   {object}  dto.TaxpayerResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/taxpayer [put]
func (h *TaxpayerHandler) Upsert(c *fiber.Ctx) error {
	var in dto.UpsertTaxpayerRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Upsert(c.UserContext(), GetOwnerID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
