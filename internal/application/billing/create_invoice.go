package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/application/ports"
	"github.com/jhoicas/tributa-api/internal/domain"
	lifecycle "github.com/jhoicas/tributa-api/internal/domain/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
	"github.com/jhoicas/tributa-api/internal/domain/tax"
	"github.com/jhoicas/tributa-api/pkg/sunat"
)

// CreateInvoiceUseCase emite comprobantes numerados y actualiza las ventas del período.
type CreateInvoiceUseCase struct {
	allocator   *SequenceAllocator
	invoiceRepo repository.InvoiceRepository
	profiles    ProfileProvider
	rollup      PeriodRollup
	xml         XMLRenderer
	events      ports.EventPublisher
	log         zerolog.Logger
	now         func() time.Time
}

// NewCreateInvoiceUseCase construye el caso de uso. rollup, xml y events pueden ser nil.
func NewCreateInvoiceUseCase(
	allocator *SequenceAllocator,
	invoiceRepo repository.InvoiceRepository,
	profiles ProfileProvider,
	rollup PeriodRollup,
	xml XMLRenderer,
	events ports.EventPublisher,
	log zerolog.Logger,
) *CreateInvoiceUseCase {
	return &CreateInvoiceUseCase{
		allocator:   allocator,
		invoiceRepo: invoiceRepo,
		profiles:    profiles,
		rollup:      rollup,
		xml:         xml,
		events:      events,
		log:         log,
		now:         time.Now,
	}
}

// CreateInvoice valida, calcula totales, asigna correlativo y persiste en una sola transacción.
// Luego publica el evento y recalcula las ventas del período (best-effort).
func (uc *CreateInvoiceUseCase) CreateInvoice(ctx context.Context, ownerID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	client, err := validateClient(in.DocumentType, in.Client)
	if err != nil {
		return nil, err
	}
	issueDate, err := uc.issueDate(in.IssueDate)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	inv := &entity.Invoice{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		DocumentType: in.DocumentType,
		IssueDate:    issueDate,
		Client:       client,
		Currency:     sunat.CurrencyPEN,
		CreatedAt:    now,
	}
	buildItems(inv, in.Items)

	_, _, err = uc.allocator.Allocate(ctx, ownerID, in.DocumentType, func(ctx context.Context, series, number string, invoiceRepo repository.InvoiceRepository) error {
		inv.Series = series
		inv.Number = number
		return invoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("invoice_id", inv.ID).Str("owner_id", ownerID).Str("number", inv.FullNumber()).
		Str("total", inv.Total.StringFixed(2)).Msg("comprobante emitido")

	uc.publish(ctx, inv)
	uc.rollupPeriod(ctx, ownerID, inv.IssueDate)
	return dto.NewInvoiceResponse(inv), nil
}

// GetInvoice devuelve el comprobante con sus líneas.
func (uc *CreateInvoiceUseCase) GetInvoice(ctx context.Context, ownerID, id string) (*dto.InvoiceResponse, error) {
	inv, err := uc.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

// InvoiceXML representación UBL 2.1 del comprobante. Requiere el perfil del emisor.
func (uc *CreateInvoiceUseCase) InvoiceXML(ctx context.Context, ownerID, id string) ([]byte, string, error) {
	if uc.xml == nil {
		return nil, "", fmt.Errorf("%w: representación XML no disponible", domain.ErrPrecondition)
	}
	inv, err := uc.load(ctx, ownerID, id)
	if err != nil {
		return nil, "", err
	}
	issuer, err := uc.profiles.Profile(ctx, ownerID)
	if err != nil {
		return nil, "", err
	}
	if issuer == nil {
		return nil, "", fmt.Errorf("%w: configure el perfil tributario antes de generar el XML", domain.ErrPrecondition)
	}
	out, err := uc.xml.Render(inv, issuer)
	if err != nil {
		return nil, "", err
	}
	// nombre SUNAT: RUC-TIPO-SERIE-NUMERO.xml
	name := fmt.Sprintf("%s-%s-%s.xml", issuer.RUC, sunat.DocumentCode(inv.DocumentType), inv.FullNumber())
	return out, name, nil
}

func (uc *CreateInvoiceUseCase) load(ctx context.Context, ownerID, id string) (*entity.Invoice, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return inv, nil
}

func (uc *CreateInvoiceUseCase) issueDate(s string) (time.Time, error) {
	if s == "" {
		n := uc.now().In(lifecycle.Lima)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, lifecycle.Lima), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, lifecycle.Lima)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: issue_date debe ser AAAA-MM-DD", domain.ErrValidation)
	}
	return t, nil
}

// rollupPeriod recalcula las ventas del mes de emisión a partir de los comprobantes guardados.
func (uc *CreateInvoiceUseCase) rollupPeriod(ctx context.Context, ownerID string, issued time.Time) {
	if uc.rollup == nil || uc.profiles == nil {
		return
	}
	log := uc.log.With().Str("owner_id", ownerID).Logger()
	profile, err := uc.profiles.Profile(ctx, ownerID)
	if err != nil {
		log.Warn().Err(err).Msg("no se pudo leer el perfil para actualizar el período")
		return
	}
	if profile == nil {
		log.Debug().Msg("sin perfil tributario; ventas del período no consolidadas")
		return
	}
	from := time.Date(issued.Year(), issued.Month(), 1, 0, 0, 0, 0, lifecycle.Lima)
	to := from.AddDate(0, 1, 0)
	sales, err := uc.invoiceRepo.SumSales(ctx, ownerID, from, to)
	if err != nil {
		log.Warn().Err(err).Msg("no se pudo agregar las ventas del período")
		return
	}
	if err := uc.rollup.ApplySales(ctx, ownerID, from.Year(), int(from.Month()), profile.Regime, sales); err != nil {
		log.Warn().Err(err).Msg("no se pudo actualizar la declaración del período")
	}
}

func (uc *CreateInvoiceUseCase) publish(ctx context.Context, inv *entity.Invoice) {
	if uc.events == nil {
		return
	}
	err := uc.events.Publish(ctx, ports.SubjectInvoiceCreated, ports.InvoiceCreatedEvent{
		InvoiceID:    inv.ID,
		OwnerID:      inv.OwnerID,
		DocumentType: inv.DocumentType,
		FullNumber:   inv.FullNumber(),
		Total:        inv.Total.StringFixed(2),
		IssueDate:    inv.IssueDate.Format("2006-01-02"),
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo publicar evento de comprobante")
	}
}

// validateClient factura exige RUC válido; boleta admite DNI o ningún documento.
func validateClient(documentType string, in dto.ClientRequest) (entity.Client, error) {
	c := entity.Client{
		IdentityType:   in.IdentityType,
		DocumentNumber: in.DocumentNumber,
		Name:           in.Name,
		Address:        in.Address,
	}
	switch documentType {
	case sunat.DocumentTypeFactura:
		if c.IdentityType == "" {
			c.IdentityType = sunat.IdentityTypeRUC
		}
		if c.IdentityType != sunat.IdentityTypeRUC {
			return c, fmt.Errorf("%w: la factura requiere un cliente con RUC", domain.ErrValidation)
		}
		if err := sunat.ValidateRUC(c.DocumentNumber); err != nil {
			return c, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	case sunat.DocumentTypeBoleta:
		if c.IdentityType == "" {
			c.IdentityType = sunat.IdentityTypeNone
			if c.DocumentNumber != "" {
				c.IdentityType = sunat.IdentityTypeDNI
			}
		}
		switch c.IdentityType {
		case sunat.IdentityTypeDNI:
			if err := sunat.ValidateDNI(c.DocumentNumber); err != nil {
				return c, fmt.Errorf("%w: %v", domain.ErrValidation, err)
			}
		case sunat.IdentityTypeRUC:
			if err := sunat.ValidateRUC(c.DocumentNumber); err != nil {
				return c, fmt.Errorf("%w: %v", domain.ErrValidation, err)
			}
		default:
			c.DocumentNumber = ""
		}
	default:
		return c, fmt.Errorf("%w: tipo de comprobante desconocido %q", domain.ErrValidation, documentType)
	}
	return c, nil
}

// buildItems calcula subtotal, IGV y total por línea y los agregados de la cabecera.
func buildItems(inv *entity.Invoice, items []dto.InvoiceItemRequest) {
	inv.Taxable, inv.Exempt, inv.IGV = decimal.Zero, decimal.Zero, decimal.Zero
	inv.Items = make([]*entity.InvoiceItem, 0, len(items))
	for i, it := range items {
		affectation := it.Affectation
		if affectation == "" {
			affectation = sunat.AffectationGravado
		}
		subtotal := it.Quantity.Mul(it.UnitPrice).Round(2)
		igv := decimal.Zero
		if affectation == sunat.AffectationGravado {
			igv = subtotal.Mul(tax.IGVRate).Round(2)
			inv.Taxable = inv.Taxable.Add(subtotal)
		} else {
			inv.Exempt = inv.Exempt.Add(subtotal)
		}
		inv.IGV = inv.IGV.Add(igv)
		inv.Items = append(inv.Items, &entity.InvoiceItem{
			ID:          uuid.New().String(),
			InvoiceID:   inv.ID,
			Line:        i + 1,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Affectation: affectation,
			Subtotal:    subtotal,
			IGV:         igv,
			Total:       subtotal.Add(igv),
		})
	}
	inv.Total = inv.Taxable.Add(inv.Exempt).Add(inv.IGV)
}
