package entity

import "time"

// SequenceCounter último correlativo emitido por (owner, tipo de documento, serie).
// Solo el asignador de correlativos lo modifica.
type SequenceCounter struct {
	OwnerID          string
	DocumentType     string
	Series           string
	LastIssuedNumber int64
	UpdatedAt        time.Time
}
