package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/domain"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// orden relevante: ErrCredentialsMissing antes que los errores SUNAT genéricos
var errorMappings = []errorMapping{
	{domain.ErrValidation, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrDuplicate, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrCredentialsMissing, fiber.StatusPreconditionFailed, "CREDENTIALS_MISSING"},
	{domain.ErrPrecondition, fiber.StatusPreconditionFailed, "PRECONDITION_FAILED"},
	{domain.ErrExternalAuth, fiber.StatusUnprocessableEntity, "SUNAT_AUTH"},
	{domain.ErrExternalRejected, fiber.StatusBadGateway, "SUNAT_REJECTED"},
	{domain.ErrExternalTransient, fiber.StatusServiceUnavailable, "SUNAT_UNAVAILABLE"},
	{domain.ErrSequencing, fiber.StatusInternalServerError, "SEQUENCE_EXHAUSTED"},
}

// writeError traduce un error de aplicación a dto.ErrorResponse. Los 500 no exponen el detalle.
func writeError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		resp := dto.ErrorResponse{Code: m.code, Message: err.Error()}
		var fields dto.FieldErrors
		if errors.As(err, &fields) {
			resp.Message = domain.ErrValidation.Error()
			resp.Fields = fields
		}
		if m.status >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg(m.code)
			resp.Message = m.target.Error()
		}
		return c.Status(m.status).JSON(resp)
	}
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("error no controlado")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
