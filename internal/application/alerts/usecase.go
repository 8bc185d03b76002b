package alerts

import (
	"context"
	"time"

	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/domain/alerts"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
)

// UseCase recordatorios de vencimiento.
type UseCase struct {
	repo repository.DeclarationRepository
	now  func() time.Time
}

// NewUseCase construye el caso de uso.
func NewUseCase(repo repository.DeclarationRepository) *UseCase {
	return &UseCase{repo: repo, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	uc.now = now
	return uc
}

// ListUpcomingDeadlines alertas del owner ordenadas por vencimiento.
func (uc *UseCase) ListUpcomingDeadlines(ctx context.Context, ownerID string) ([]dto.AlertResponse, error) {
	open, err := uc.repo.ListOpen(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return dto.NewAlertResponses(alerts.Derive(open, uc.now())), nil
}
