package sunat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/tributa-api/internal/application/sire"
	"github.com/jhoicas/tributa-api/internal/domain"
	lifecycle "github.com/jhoicas/tributa-api/internal/domain/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

var _ sire.AuthorityClient = (*MockAuthority)(nil)

// MockAuthority autoridad simulada para desarrollo (SUNAT_MODE=mock).
// Emite tickets reales en memoria que terminan luego de ReadyAfter consultas.
type MockAuthority struct {
	mu         sync.Mutex
	readyAfter int
	tickets    map[string]*mockTicket
	now        func() time.Time
}

type mockTicket struct {
	owner     string
	periodKey string
	kind      string
	polls     int
	created   time.Time
	finished  *time.Time
}

// NewMockAuthority readyAfter < 1 equivale a 1.
func NewMockAuthority(readyAfter int) *MockAuthority {
	if readyAfter < 1 {
		readyAfter = 1
	}
	return &MockAuthority{readyAfter: readyAfter, tickets: make(map[string]*mockTicket), now: time.Now}
}

func (m *MockAuthority) authenticate(creds entity.SunatCredentials) error {
	if creds.SolUser == "" || creds.SolPassword == "" || creds.ClientID == "" {
		return fmt.Errorf("%w: credenciales incompletas", domain.ErrExternalAuth)
	}
	return nil
}

// ListPeriods los últimos doce meses cerrados.
func (m *MockAuthority) ListPeriods(ctx context.Context, creds entity.SunatCredentials) ([]entity.AuthorityPeriod, error) {
	if err := m.authenticate(creds); err != nil {
		return nil, err
	}
	cur := m.now().In(lifecycle.Lima)
	first := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, lifecycle.Lima)
	out := make([]entity.AuthorityPeriod, 0, 12)
	for i := 1; i <= 12; i++ {
		p := first.AddDate(0, -i, 0)
		out = append(out, entity.AuthorityPeriod{
			Year:        p.Year(),
			PeriodKey:   p.Format("200601"),
			StatusCode:  "01",
			Description: "Pendiente",
		})
	}
	return out, nil
}

func (m *MockAuthority) issue(creds entity.SunatCredentials, periodKey, kind string) (string, error) {
	if err := m.authenticate(creds); err != nil {
		return "", err
	}
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:14])
	m.mu.Lock()
	m.tickets[id] = &mockTicket{owner: creds.OwnerID, periodKey: periodKey, kind: kind, created: m.now()}
	m.mu.Unlock()
	return id, nil
}

func (m *MockAuthority) DownloadProposal(ctx context.Context, creds entity.SunatCredentials, periodKey string) (string, error) {
	return m.issue(creds, periodKey, "propuesta")
}

func (m *MockAuthority) AcceptProposal(ctx context.Context, creds entity.SunatCredentials, periodKey string) (string, error) {
	return m.issue(creds, periodKey, "aceptacion")
}

// RegisterPreliminary responde en línea, sin ticket.
func (m *MockAuthority) RegisterPreliminary(ctx context.Context, creds entity.SunatCredentials, periodKey string) (string, error) {
	if err := m.authenticate(creds); err != nil {
		return "", err
	}
	return "", nil
}

func (m *MockAuthority) TicketStatus(ctx context.Context, creds entity.SunatCredentials, ticketID string) (*entity.Ticket, error) {
	if err := m.authenticate(creds); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok || t.owner != creds.OwnerID {
		return nil, fmt.Errorf("%w: ticket %s desconocido", domain.ErrExternalRejected, ticketID)
	}
	t.polls++
	out := &entity.Ticket{ID: ticketID, Estado: entity.TicketEnProceso, FechaCreacion: t.created}
	if t.polls >= m.readyAfter {
		if t.finished == nil {
			now := m.now()
			t.finished = &now
		}
		fin := *t.finished
		out.Estado = entity.TicketTerminado
		out.FechaTermino = &fin
		out.NombreArchivo = mockFileName(creds.RUC, t)
	}
	return out, nil
}

func (m *MockAuthority) DownloadFile(ctx context.Context, creds entity.SunatCredentials, ticketID string) (string, []byte, error) {
	if err := m.authenticate(creds); err != nil {
		return "", nil, err
	}
	m.mu.Lock()
	t, ok := m.tickets[ticketID]
	var ready bool
	if ok {
		ready = t.finished != nil
	}
	m.mu.Unlock()
	if !ok || t.owner != creds.OwnerID {
		return "", nil, fmt.Errorf("%w: ticket %s desconocido", domain.ErrExternalRejected, ticketID)
	}
	if !ready {
		return "", nil, fmt.Errorf("%w: el ticket %s sigue en proceso", domain.ErrPrecondition, ticketID)
	}
	content := fmt.Sprintf("RUC|PERIODO|TICKET|TIPO\n%s|%s|%s|%s\n", creds.RUC, t.periodKey, ticketID, t.kind)
	return mockFileName(creds.RUC, t), []byte(content), nil
}

func mockFileName(ruc string, t *mockTicket) string {
	return fmt.Sprintf("LE%s%s00140400021112.txt", ruc, t.periodKey)
}
