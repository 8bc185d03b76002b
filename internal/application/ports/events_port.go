package ports

import "context"

// Subjects de los eventos de dominio. El adaptador antepone su prefijo configurado.
const (
	SubjectInvoiceCreated     = "invoices.created"
	SubjectProcessUpdated     = "sire.process.updated"
	SubjectDeclarationChanged = "declarations.status"
)

// EventPublisher define el puerto de salida para eventos de dominio consumidos por
// métricas e historial. Publicar es best-effort: un fallo se registra y no revierte la operación.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

// InvoiceCreatedEvent payload de SubjectInvoiceCreated.
type InvoiceCreatedEvent struct {
	InvoiceID    string `json:"invoice_id"`
	OwnerID      string `json:"owner_id"`
	DocumentType string `json:"document_type"`
	FullNumber   string `json:"full_number"`
	Total        string `json:"total"`
	IssueDate    string `json:"issue_date"`
}

// ProcessUpdatedEvent payload de SubjectProcessUpdated.
type ProcessUpdatedEvent struct {
	ProcessID string `json:"process_id"`
	OwnerID   string `json:"owner_id"`
	Period    string `json:"period"`
	Stage     string `json:"stage"`
	Estado    string `json:"estado"`
	Ticket    string `json:"ticket,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DeclarationChangedEvent payload de SubjectDeclarationChanged.
type DeclarationChangedEvent struct {
	DeclarationID string `json:"declaration_id"`
	OwnerID       string `json:"owner_id"`
	Status        string `json:"status"`
	SunatStatus   string `json:"sunat_status"`
	Action        string `json:"action"`
}
