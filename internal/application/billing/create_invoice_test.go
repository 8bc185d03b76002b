package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/internal/application/billing"
	"github.com/jhoicas/tributa-api/internal/application/declaration"
	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/infrastructure/memory"
)

const owner = "owner-1"

type profileStub struct{ profile *entity.TaxpayerProfile }

func (p profileStub) Profile(ctx context.Context, ownerID string) (*entity.TaxpayerProfile, error) {
	return p.profile, nil
}

type xmlStub struct{}

func (xmlStub) Render(inv *entity.Invoice, issuer *entity.TaxpayerProfile) ([]byte, error) {
	return []byte("<Invoice/>"), nil
}

func newInvoiceUseCase(t *testing.T, profile *entity.TaxpayerProfile) (*billing.CreateInvoiceUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	decls := declaration.NewUseCase(store.Declarations(), store, nil, zerolog.Nop())
	alloc := billing.NewSequenceAllocator(store, zerolog.Nop())
	uc := billing.NewCreateInvoiceUseCase(alloc, store.Invoices(), profileStub{profile}, decls, xmlStub{}, nil, zerolog.Nop())
	return uc, store
}

func rerProfile() *entity.TaxpayerProfile {
	return &entity.TaxpayerProfile{OwnerID: owner, RUC: "20100123453", BusinessName: "ACME SAC", Regime: entity.Regime{Type: entity.RegimeRER}}
}

func facturaRequest() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		DocumentType: "factura",
		IssueDate:    "2024-06-15",
		Client:       dto.ClientRequest{IdentityType: "6", DocumentNumber: "20100123453", Name: "Cliente SAC"},
		Items: []dto.InvoiceItemRequest{
			{Description: "Servicio", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(500)},
			{Description: "Libro", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), Affectation: "exonerado"},
		},
	}
}

func TestCreateInvoice_NumeraYCalculaTotales(t *testing.T) {
	uc, _ := newInvoiceUseCase(t, rerProfile())
	ctx := context.Background()

	first, err := uc.CreateInvoice(ctx, owner, facturaRequest())
	require.NoError(t, err)
	assert.Equal(t, "F001-00000001", first.FullNumber)
	assert.True(t, decimal.NewFromInt(1000).Equal(first.Taxable))
	assert.True(t, decimal.NewFromInt(100).Equal(first.Exempt))
	assert.True(t, decimal.NewFromInt(180).Equal(first.IGV))
	assert.True(t, decimal.NewFromInt(1280).Equal(first.Total))

	second, err := uc.CreateInvoice(ctx, owner, facturaRequest())
	require.NoError(t, err)
	assert.Equal(t, "F001-00000002", second.FullNumber)
}

func TestCreateInvoice_ActualizaVentasDelPeriodo(t *testing.T) {
	uc, store := newInvoiceUseCase(t, rerProfile())
	ctx := context.Background()

	_, err := uc.CreateInvoice(ctx, owner, facturaRequest())
	require.NoError(t, err)
	_, err = uc.CreateInvoice(ctx, owner, facturaRequest())
	require.NoError(t, err)

	d, err := store.Declarations().GetByPeriod(ctx, owner, 2024, 6, entity.RegimeRER)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, decimal.NewFromInt(2200).Equal(d.Sales.Total))
	assert.True(t, decimal.NewFromInt(33).Equal(d.Payment.TotalToPay), "1.5% de 2200")
}

func TestCreateInvoice_SinPerfilNoConsolidaPeriodo(t *testing.T) {
	uc, store := newInvoiceUseCase(t, nil)
	ctx := context.Background()

	_, err := uc.CreateInvoice(ctx, owner, facturaRequest())
	require.NoError(t, err)

	open, err := store.Declarations().ListOpen(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCreateInvoice_FacturaExigeRUC(t *testing.T) {
	uc, _ := newInvoiceUseCase(t, rerProfile())
	req := facturaRequest()
	req.Client = dto.ClientRequest{IdentityType: "1", DocumentNumber: "12345678", Name: "Juan"}

	_, err := uc.CreateInvoice(context.Background(), owner, req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateInvoice_BoletaSinDocumento(t *testing.T) {
	uc, _ := newInvoiceUseCase(t, rerProfile())
	req := facturaRequest()
	req.DocumentType = "boleta"
	req.Client = dto.ClientRequest{Name: "Clientes varios"}

	resp, err := uc.CreateInvoice(context.Background(), owner, req)
	require.NoError(t, err)
	assert.Equal(t, "B001-00000001", resp.FullNumber)
	assert.Equal(t, "0", resp.Client.IdentityType)
}

func TestCreateInvoice_SinLineasEsInvalido(t *testing.T) {
	uc, _ := newInvoiceUseCase(t, rerProfile())
	req := facturaRequest()
	req.Items = nil

	_, err := uc.CreateInvoice(context.Background(), owner, req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInvoiceXML_NombreSegunSunat(t *testing.T) {
	uc, _ := newInvoiceUseCase(t, rerProfile())
	ctx := context.Background()
	inv, err := uc.CreateInvoice(ctx, owner, facturaRequest())
	require.NoError(t, err)

	content, name, err := uc.InvoiceXML(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "20100123453-01-F001-00000001.xml", name)
	assert.NotEmpty(t, content)

	_, _, err = uc.InvoiceXML(ctx, "otro", inv.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGetInvoice_Inexistente(t *testing.T) {
	uc, _ := newInvoiceUseCase(t, rerProfile())
	_, err := uc.GetInvoice(context.Background(), owner, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssueDate_VaciaUsaHoyEnLima(t *testing.T) {
	uc, _ := newInvoiceUseCase(t, nil)
	req := facturaRequest()
	req.IssueDate = ""
	resp, err := uc.CreateInvoice(context.Background(), owner, req)
	require.NoError(t, err)
	assert.Len(t, resp.IssueDate, len("2006-01-02"))
	_, err = time.Parse("2006-01-02", resp.IssueDate)
	assert.NoError(t, err)
}
