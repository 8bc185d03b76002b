package domain

import "errors"

// Errores de dominio (sin dependencias externas).
//
// La capa HTTP los distingue para que el cliente sepa si debe corregir la entrada,
// reconfigurar sus credenciales SUNAT o reintentar más tarde.
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrValidation   = errors.New("entrada inválida")
	ErrInvalidInput = ErrValidation
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// ErrSequencing: se perdió la carrera al asignar un correlativo y se agotaron los reintentos.
	ErrSequencing = errors.New("no se pudo asignar el correlativo del comprobante")
	// ErrPrecondition: operación fuera de orden (p. ej. aceptar propuesta antes de descargarla).
	ErrPrecondition = errors.New("precondición no cumplida")

	ErrCredentialsMissing = errors.New("credenciales SUNAT no configuradas")
	ErrExternalAuth       = errors.New("SUNAT rechazó las credenciales")
	ErrExternalTransient  = errors.New("SUNAT no disponible temporalmente")
	ErrExternalRejected   = errors.New("SUNAT rechazó la solicitud")
)
