package sunat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/infrastructure/sunat"
)

func TestMockAuthority_TicketTerminaTrasNConsultas(t *testing.T) {
	m := sunat.NewMockAuthority(3)
	ctx := context.Background()

	id, err := m.DownloadProposal(ctx, creds, "202406")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	for i := 0; i < 2; i++ {
		tk, err := m.TicketStatus(ctx, creds, id)
		require.NoError(t, err)
		assert.Equal(t, entity.TicketEnProceso, tk.Estado)
	}
	_, _, err = m.DownloadFile(ctx, creds, id)
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	tk, err := m.TicketStatus(ctx, creds, id)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketTerminado, tk.Estado)
	assert.NotEmpty(t, tk.NombreArchivo)

	name, content, err := m.DownloadFile(ctx, creds, id)
	require.NoError(t, err)
	assert.Equal(t, tk.NombreArchivo, name)
	assert.Contains(t, string(content), "202406")
}

func TestMockAuthority_TicketDeOtroOwner(t *testing.T) {
	m := sunat.NewMockAuthority(1)
	ctx := context.Background()
	id, err := m.AcceptProposal(ctx, creds, "202406")
	require.NoError(t, err)

	other := creds
	other.OwnerID = "owner-2"
	_, err = m.TicketStatus(ctx, other, id)
	assert.ErrorIs(t, err, domain.ErrExternalRejected)
}

func TestMockAuthority_PreliminarSincronoYCredenciales(t *testing.T) {
	m := sunat.NewMockAuthority(1)
	ctx := context.Background()

	ticket, err := m.RegisterPreliminary(ctx, creds, "202406")
	require.NoError(t, err)
	assert.Empty(t, ticket)

	_, err = m.ListPeriods(ctx, entity.SunatCredentials{OwnerID: "x"})
	assert.ErrorIs(t, err, domain.ErrExternalAuth)

	periods, err := m.ListPeriods(ctx, creds)
	require.NoError(t, err)
	assert.Len(t, periods, 12)
}
