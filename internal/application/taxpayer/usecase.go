// Package taxpayer gestiona el perfil tributario del usuario y sus credenciales SUNAT cifradas.
package taxpayer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
	"github.com/jhoicas/tributa-api/internal/domain/tax"
	"github.com/jhoicas/tributa-api/pkg/sunat"
)

// Cipher cifra secretos en reposo.
type Cipher interface {
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(sealed []byte) ([]byte, error)
}

// TokenInvalidator descarta tokens SUNAT en caché cuando cambian las credenciales.
type TokenInvalidator interface {
	Invalidate(ctx context.Context, ownerID string) error
}

// UseCase casos de uso del perfil tributario.
type UseCase struct {
	repo   repository.TaxpayerRepository
	cipher Cipher
	tokens TokenInvalidator
	log    zerolog.Logger
}

// NewUseCase construye el caso de uso. tokens puede ser nil.
func NewUseCase(repo repository.TaxpayerRepository, cipher Cipher, tokens TokenInvalidator, log zerolog.Logger) *UseCase {
	return &UseCase{repo: repo, cipher: cipher, tokens: tokens, log: log}
}

// Get devuelve el perfil sin secretos.
func (uc *UseCase) Get(ctx context.Context, ownerID string) (*dto.TaxpayerResponse, error) {
	p, err := uc.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return toResponse(p), nil
}

// Profile devuelve la entidad (para otros casos de uso); nil si no existe.
func (uc *UseCase) Profile(ctx context.Context, ownerID string) (*entity.TaxpayerProfile, error) {
	return uc.repo.Get(ctx, ownerID)
}

// Upsert crea o actualiza el perfil. Si vienen credenciales se cifran y reemplazan las anteriores.
func (uc *UseCase) Upsert(ctx context.Context, ownerID string, in dto.UpsertTaxpayerRequest) (*dto.TaxpayerResponse, error) {
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if err := sunat.ValidateRUC(in.RUC); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	rt, err := tax.ParseRegimeType(in.Regime.Type)
	if err != nil {
		return nil, err
	}

	p, err := uc.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if p == nil {
		p = &entity.TaxpayerProfile{OwnerID: ownerID, CreatedAt: now}
	}
	p.RUC = in.RUC
	p.BusinessName = in.BusinessName
	p.Regime = entity.Regime{Type: rt, Category: in.Regime.Category}
	p.UpdatedAt = now

	credentialsChanged := in.SolUser != ""
	if credentialsChanged {
		pwd, err := uc.cipher.Encrypt([]byte(in.SolPassword))
		if err != nil {
			return nil, fmt.Errorf("cifrar clave SOL: %w", err)
		}
		secret, err := uc.cipher.Encrypt([]byte(in.ClientSecret))
		if err != nil {
			return nil, fmt.Errorf("cifrar client secret: %w", err)
		}
		p.SolUser = in.SolUser
		p.SolPasswordEnc = pwd
		p.ClientID = in.ClientID
		p.ClientSecretEnc = secret
	}
	if err := uc.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	if credentialsChanged && uc.tokens != nil {
		if err := uc.tokens.Invalidate(ctx, ownerID); err != nil {
			uc.log.Warn().Err(err).Str("owner_id", ownerID).Msg("no se pudo invalidar el token SUNAT en caché")
		}
	}
	return toResponse(p), nil
}

// Credentials descifra las credenciales SUNAT del owner. Sin perfil o sin credenciales
// devuelve domain.ErrCredentialsMissing.
func (uc *UseCase) Credentials(ctx context.Context, ownerID string) (entity.SunatCredentials, error) {
	p, err := uc.repo.Get(ctx, ownerID)
	if err != nil {
		return entity.SunatCredentials{}, err
	}
	if p == nil || !p.HasCredentials() {
		return entity.SunatCredentials{}, domain.ErrCredentialsMissing
	}
	pwd, err := uc.cipher.Decrypt(p.SolPasswordEnc)
	if err != nil {
		return entity.SunatCredentials{}, fmt.Errorf("descifrar clave SOL: %w", err)
	}
	secret, err := uc.cipher.Decrypt(p.ClientSecretEnc)
	if err != nil {
		return entity.SunatCredentials{}, fmt.Errorf("descifrar client secret: %w", err)
	}
	return entity.SunatCredentials{
		OwnerID:      ownerID,
		RUC:          p.RUC,
		SolUser:      p.SolUser,
		SolPassword:  string(pwd),
		ClientID:     p.ClientID,
		ClientSecret: string(secret),
	}, nil
}

func toResponse(p *entity.TaxpayerProfile) *dto.TaxpayerResponse {
	return &dto.TaxpayerResponse{
		RUC:            p.RUC,
		BusinessName:   p.BusinessName,
		Regime:         dto.RegimeDTO{Type: string(p.Regime.Type), Category: p.Regime.Category},
		SolUser:        p.SolUser,
		ClientID:       p.ClientID,
		HasCredentials: p.HasCredentials(),
		UpdatedAt:      p.UpdatedAt,
	}
}
