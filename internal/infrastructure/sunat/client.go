package sunat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jhoicas/tributa-api/internal/application/sire"
	"github.com/jhoicas/tributa-api/internal/domain"
	lifecycle "github.com/jhoicas/tributa-api/internal/domain/declaration"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
)

const (
	// rutas del RVIE (registro de ventas e ingresos electrónico)
	pathPeriods      = "/v1/contribuyente/migeigv/libros/rvierce/padron/web/omisos/140000/periodos"
	pathProposal     = "/v1/contribuyente/migeigv/libros/rvie/propuesta/web/propuesta/%s/exportapropuesta"
	pathAccept       = "/v1/contribuyente/migeigv/libros/rvie/propuesta/web/propuesta/%s/aceptapropuesta"
	pathPreliminary  = "/v1/contribuyente/migeigv/libros/rvie/preliminar/web/registropreliminar/%s/registra"
	pathTicketStatus = "/v1/contribuyente/migeigv/libros/rvierce/gestionprocesosmasivos/web/masivo/consultaestadotickets"
	pathReportFile   = "/v1/contribuyente/migeigv/libros/rvierce/gestionprocesosmasivos/web/masivo/archivoreporte"

	maxBodyBytes = 32 << 20
)

// ClientConfig parámetros del cliente SIRE.
type ClientConfig struct {
	AuthURL       string // https://api-seguridad.sunat.gob.pe
	BaseURL       string // https://api-sire.sunat.gob.pe
	Scope         string
	Timeout       time.Duration
	RatePerSecond float64
}

var _ sire.AuthorityClient = (*Client)(nil)

// Client cliente HTTP de la API SIRE. Autentica con password grant por owner y guarda el token en TokenStore.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	tokens  TokenStore
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewClient(cfg ClientConfig, tokens TokenStore, log zerolog.Logger) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

// WithHTTPClient reemplaza el *http.Client (tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// ── Autenticación ─────────────────────────────────────────────────────────────

func (c *Client) oauthConfig(creds entity.SunatCredentials) *oauth2.Config {
	var scopes []string
	if c.cfg.Scope != "" {
		scopes = []string{c.cfg.Scope}
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(c.cfg.AuthURL, "/") + "/v1/clientessol/" + url.PathEscape(creds.ClientID) + "/oauth2/token/",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) token(ctx context.Context, creds entity.SunatCredentials) (*oauth2.Token, error) {
	if tok, err := c.tokens.Get(ctx, creds.OwnerID); err != nil {
		c.log.Warn().Err(err).Str("owner_id", creds.OwnerID).Msg("caché de tokens no disponible")
	} else if tok != nil {
		return tok, nil
	}

	octx := context.WithValue(ctx, oauth2.HTTPClient, c.http)
	// usuario SOL = RUC + usuario secundario
	tok, err := c.oauthConfig(creds).PasswordCredentialsToken(octx, creds.RUC+creds.SolUser, creds.SolPassword)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if err := c.tokens.Set(ctx, creds.OwnerID, tok); err != nil {
		c.log.Warn().Err(err).Str("owner_id", creds.OwnerID).Msg("no se pudo guardar el token")
	}
	return tok, nil
}

func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch code := re.Response.StatusCode; {
		case code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden:
			return fmt.Errorf("%w: token (%d) %s", domain.ErrExternalAuth, code, re.ErrorDescription)
		case code == http.StatusTooManyRequests || code >= 500:
			return fmt.Errorf("%w: token (%d)", domain.ErrExternalTransient, code)
		default:
			return fmt.Errorf("%w: token (%d)", domain.ErrExternalRejected, code)
		}
	}
	return classifyTransportError("token", err)
}

func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %v", domain.ErrExternalTransient, op, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %s: %v", domain.ErrExternalTransient, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ── Transporte ────────────────────────────────────────────────────────────────

// HTTPError respuesta no exitosa de la SIRE.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func classifyStatus(e *HTTPError) error {
	switch code := e.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", domain.ErrExternalAuth, e)
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %v", domain.ErrExternalTransient, e)
	default:
		return fmt.Errorf("%w: %v", domain.ErrExternalRejected, e)
	}
}

// do ejecuta la llamada autenticada. Ante 401 descarta el token y reintenta una vez con uno nuevo.
func (c *Client) do(ctx context.Context, creds entity.SunatCredentials, method, path string, query url.Values) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		tok, err := c.token(ctx, creds)
		if err != nil {
			return nil, err
		}
		endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("sire: crear request: %w", err)
		}
		tok.SetAuthHeader(req)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, classifyTransportError("sire "+path, err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			_ = c.tokens.Invalidate(ctx, creds.OwnerID)
			continue
		}
		return nil, classifyStatus(&HTTPError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(body)})
	}
}

func (c *Client) doJSON(ctx context.Context, creds entity.SunatCredentials, method, path string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, creds, method, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: respuesta ilegible de %s: %v", domain.ErrExternalTransient, path, err)
	}
	return nil
}

// ── Operaciones ───────────────────────────────────────────────────────────────

type ticketResponse struct {
	NumTicket string `json:"numTicket"`
}

type periodYear struct {
	NumEjercicio string `json:"numEjercicio"`
	LisPeriodos  []struct {
		PerTributario string `json:"perTributario"`
		CodEstado     string `json:"codEstado"`
		DesEstado     string `json:"desEstado"`
	} `json:"lisPeriodos"`
}

func (c *Client) ListPeriods(ctx context.Context, creds entity.SunatCredentials) ([]entity.AuthorityPeriod, error) {
	var years []periodYear
	if err := c.doJSON(ctx, creds, http.MethodGet, pathPeriods, nil, &years); err != nil {
		return nil, err
	}
	var out []entity.AuthorityPeriod
	for _, y := range years {
		year, _ := strconv.Atoi(y.NumEjercicio)
		for _, p := range y.LisPeriodos {
			out = append(out, entity.AuthorityPeriod{
				Year:        year,
				PeriodKey:   p.PerTributario,
				StatusCode:  p.CodEstado,
				Description: p.DesEstado,
			})
		}
	}
	return out, nil
}

func (c *Client) DownloadProposal(ctx context.Context, creds entity.SunatCredentials, periodKey string) (string, error) {
	var r ticketResponse
	q := url.Values{"codTipoArchivo": {"0"}}
	if err := c.doJSON(ctx, creds, http.MethodGet, fmt.Sprintf(pathProposal, periodKey), q, &r); err != nil {
		return "", err
	}
	if r.NumTicket == "" {
		return "", fmt.Errorf("%w: la descarga de propuesta no devolvió ticket", domain.ErrExternalRejected)
	}
	return r.NumTicket, nil
}

func (c *Client) AcceptProposal(ctx context.Context, creds entity.SunatCredentials, periodKey string) (string, error) {
	var r ticketResponse
	if err := c.doJSON(ctx, creds, http.MethodPost, fmt.Sprintf(pathAccept, periodKey), nil, &r); err != nil {
		return "", err
	}
	if r.NumTicket == "" {
		return "", fmt.Errorf("%w: la aceptación no devolvió ticket", domain.ErrExternalRejected)
	}
	return r.NumTicket, nil
}

// RegisterPreliminary la SIRE puede responder sin ticket cuando registra en línea.
func (c *Client) RegisterPreliminary(ctx context.Context, creds entity.SunatCredentials, periodKey string) (string, error) {
	var r ticketResponse
	if err := c.doJSON(ctx, creds, http.MethodPost, fmt.Sprintf(pathPreliminary, periodKey), nil, &r); err != nil {
		return "", err
	}
	return r.NumTicket, nil
}

type ticketStatusResponse struct {
	Registros []ticketRecord `json:"registros"`
}

type ticketRecord struct {
	NumTicket        string `json:"numTicket"`
	PerTributario    string `json:"perTributario"`
	CodEstadoProceso string `json:"codEstadoProceso"`
	DesEstadoProceso string `json:"desEstadoProceso"`
	FecInicioProceso string `json:"fecInicioProceso"`
	FecFinProceso    string `json:"fecFinProceso"`
	DesMensaje       string `json:"desMensaje"`
	ArchivoReporte   []struct {
		CodTipoArchivoReporte string `json:"codTipoAchivoReporte"`
		NomArchivoReporte     string `json:"nomArchivoReporte"`
	} `json:"archivoReporte"`
}

func (c *Client) ticketRecord(ctx context.Context, creds entity.SunatCredentials, ticketID string) (*ticketRecord, error) {
	q := url.Values{"numTicket": {ticketID}, "page": {"1"}, "perPage": {"20"}}
	var r ticketStatusResponse
	if err := c.doJSON(ctx, creds, http.MethodGet, pathTicketStatus, q, &r); err != nil {
		return nil, err
	}
	for i := range r.Registros {
		if r.Registros[i].NumTicket == ticketID {
			return &r.Registros[i], nil
		}
	}
	return nil, fmt.Errorf("%w: ticket %s desconocido para la SUNAT", domain.ErrExternalRejected, ticketID)
}

func (c *Client) TicketStatus(ctx context.Context, creds entity.SunatCredentials, ticketID string) (*entity.Ticket, error) {
	rec, err := c.ticketRecord(ctx, creds, ticketID)
	if err != nil {
		return nil, err
	}
	t := &entity.Ticket{
		ID:            rec.NumTicket,
		Estado:        ticketState(rec.CodEstadoProceso, rec.DesEstadoProceso),
		FechaCreacion: parseSunatTime(rec.FecInicioProceso),
		MensajeError:  rec.DesMensaje,
	}
	if fin := parseSunatTime(rec.FecFinProceso); !fin.IsZero() {
		t.FechaTermino = &fin
	}
	if len(rec.ArchivoReporte) > 0 {
		t.NombreArchivo = rec.ArchivoReporte[0].NomArchivoReporte
	}
	if t.Estado == entity.TicketError && t.MensajeError == "" {
		t.MensajeError = rec.DesEstadoProceso
	}
	return t, nil
}

// DownloadFile consulta el ticket para conocer el archivo y luego lo descarga.
func (c *Client) DownloadFile(ctx context.Context, creds entity.SunatCredentials, ticketID string) (string, []byte, error) {
	rec, err := c.ticketRecord(ctx, creds, ticketID)
	if err != nil {
		return "", nil, err
	}
	if len(rec.ArchivoReporte) == 0 {
		return "", nil, fmt.Errorf("%w: el ticket %s no tiene archivo", domain.ErrPrecondition, ticketID)
	}
	file := rec.ArchivoReporte[0]
	q := url.Values{
		"nomArchivoReporte":     {file.NomArchivoReporte},
		"codTipoArchivoReporte": {file.CodTipoArchivoReporte},
		"perTributario":         {rec.PerTributario},
		"numTicket":             {ticketID},
	}
	resp, err := c.do(ctx, creds, http.MethodGet, pathReportFile, q)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", nil, classifyTransportError("descarga", err)
	}
	return file.NomArchivoReporte, content, nil
}

// ticketState normaliza el estado; la SIRE usa código 06 para terminado y 07 para error.
func ticketState(code, desc string) entity.TicketStatus {
	switch {
	case code == "06" || strings.EqualFold(desc, string(entity.TicketTerminado)):
		return entity.TicketTerminado
	case code == "07" || strings.EqualFold(desc, string(entity.TicketError)):
		return entity.TicketError
	default:
		return entity.TicketEnProceso
	}
}

func parseSunatTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "02/01/2006 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, lifecycle.Lima); err == nil {
			return t
		}
	}
	return time.Time{}
}
