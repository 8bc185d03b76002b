package sire

import (
	"context"

	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

// AuthorityClient cliente del SIRE. La implementación real y la simulada exponen el mismo contrato.
// Los errores envuelven domain.ErrExternalAuth, domain.ErrExternalTransient o domain.ErrExternalRejected.
type AuthorityClient interface {
	ListPeriods(ctx context.Context, creds entity.SunatCredentials) ([]entity.AuthorityPeriod, error)
	DownloadProposal(ctx context.Context, creds entity.SunatCredentials, periodKey string) (ticketID string, err error)
	AcceptProposal(ctx context.Context, creds entity.SunatCredentials, periodKey string) (ticketID string, err error)
	// RegisterPreliminary devuelve ticket vacío cuando la SUNAT responde éxito de forma síncrona.
	RegisterPreliminary(ctx context.Context, creds entity.SunatCredentials, periodKey string) (ticketID string, err error)
	TicketStatus(ctx context.Context, creds entity.SunatCredentials, ticketID string) (*entity.Ticket, error)
	DownloadFile(ctx context.Context, creds entity.SunatCredentials, ticketID string) (filename string, content []byte, err error)
}

// CredentialsProvider credenciales SUNAT descifradas del owner.
type CredentialsProvider interface {
	Credentials(ctx context.Context, ownerID string) (entity.SunatCredentials, error)
}

// DeclarationSubmitter marca la declaración como presentada al completar el preliminar.
type DeclarationSubmitter interface {
	MarkSubmitted(ctx context.Context, declarationID string) error
}
