package sunat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/infrastructure/sunat"
)

var creds = entity.SunatCredentials{
	OwnerID:      "owner-1",
	RUC:          "20100123453",
	SolUser:      "MODDATOS",
	SolPassword:  "moddatos",
	ClientID:     "client-1",
	ClientSecret: "secret-1",
}

type fakeSire struct {
	tokenCalls atomic.Int32
	tokenCode  int
	apiCode    atomic.Int32 // 0 = 200
	unauthOnce atomic.Bool
	lastAuth   atomic.Value
}

func (f *fakeSire) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/clientessol/client-1/oauth2/token/", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "20100123453MODDATOS", r.PostForm.Get("username"))
		if f.tokenCode != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.tokenCode)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"credenciales invalidas"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": fmt.Sprintf("tok-%d", f.tokenCalls.Load()),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	api := func(w http.ResponseWriter, r *http.Request) bool {
		f.lastAuth.Store(r.Header.Get("Authorization"))
		if f.unauthOnce.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		if code := f.apiCode.Load(); code != 0 {
			w.WriteHeader(int(code))
			_, _ = w.Write([]byte(`{"msg":"falla"}`))
			return false
		}
		return true
	}
	mux.HandleFunc("/v1/contribuyente/migeigv/libros/rvie/propuesta/web/propuesta/202406/exportapropuesta", func(w http.ResponseWriter, r *http.Request) {
		if api(w, r) {
			_, _ = w.Write([]byte(`{"numTicket":"20240300000001"}`))
		}
	})
	mux.HandleFunc("/v1/contribuyente/migeigv/libros/rvierce/padron/web/omisos/140000/periodos", func(w http.ResponseWriter, r *http.Request) {
		if api(w, r) {
			_, _ = w.Write([]byte(`[{"numEjercicio":"2024","lisPeriodos":[{"perTributario":"202405","codEstado":"02","desEstado":"Presentado"},{"perTributario":"202406","codEstado":"01","desEstado":"Pendiente"}]}]`))
		}
	})
	mux.HandleFunc("/v1/contribuyente/migeigv/libros/rvierce/gestionprocesosmasivos/web/masivo/consultaestadotickets", func(w http.ResponseWriter, r *http.Request) {
		if api(w, r) {
			_, _ = w.Write([]byte(`{"registros":[{"numTicket":"20240300000001","perTributario":"202406","codEstadoProceso":"06","desEstadoProceso":"Terminado","fecInicioProceso":"2024-07-01T10:00:00","fecFinProceso":"2024-07-01T10:02:00","archivoReporte":[{"codTipoAchivoReporte":"00","nomArchivoReporte":"LE2010012345320240600140400021112.zip"}]}]}`))
		}
	})
	mux.HandleFunc("/v1/contribuyente/migeigv/libros/rvierce/gestionprocesosmasivos/web/masivo/archivoreporte", func(w http.ResponseWriter, r *http.Request) {
		if api(w, r) {
			assert.Equal(t, "LE2010012345320240600140400021112.zip", r.URL.Query().Get("nomArchivoReporte"))
			_, _ = w.Write([]byte("contenido"))
		}
	})
	return mux
}

func newClient(t *testing.T, f *fakeSire) *sunat.Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return sunat.NewClient(sunat.ClientConfig{
		AuthURL: srv.URL,
		BaseURL: srv.URL,
		Scope:   "https://api-sire.sunat.gob.pe",
		Timeout: 5 * time.Second,
	}, sunat.NewMemoryTokenStore(), zerolog.Nop())
}

func TestClient_TokenSeReutiliza(t *testing.T) {
	f := &fakeSire{}
	c := newClient(t, f)
	ctx := context.Background()

	ticket, err := c.DownloadProposal(ctx, creds, "202406")
	require.NoError(t, err)
	assert.Equal(t, "20240300000001", ticket)
	_, err = c.DownloadProposal(ctx, creds, "202406")
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.tokenCalls.Load())
	assert.True(t, strings.HasPrefix(f.lastAuth.Load().(string), "Bearer tok-"))
}

func TestClient_CredencialesRechazadas(t *testing.T) {
	f := &fakeSire{tokenCode: http.StatusUnauthorized}
	c := newClient(t, f)

	_, err := c.DownloadProposal(context.Background(), creds, "202406")
	assert.ErrorIs(t, err, domain.ErrExternalAuth)
}

func TestClient_ClasificaErroresHTTP(t *testing.T) {
	f := &fakeSire{}
	c := newClient(t, f)
	ctx := context.Background()

	f.apiCode.Store(http.StatusServiceUnavailable)
	_, err := c.DownloadProposal(ctx, creds, "202406")
	assert.ErrorIs(t, err, domain.ErrExternalTransient)

	f.apiCode.Store(http.StatusUnprocessableEntity)
	_, err = c.DownloadProposal(ctx, creds, "202406")
	assert.ErrorIs(t, err, domain.ErrExternalRejected)

	f.apiCode.Store(http.StatusForbidden)
	_, err = c.DownloadProposal(ctx, creds, "202406")
	assert.ErrorIs(t, err, domain.ErrExternalAuth)
}

func TestClient_401RenuevaTokenUnaVez(t *testing.T) {
	f := &fakeSire{}
	c := newClient(t, f)
	ctx := context.Background()
	_, err := c.DownloadProposal(ctx, creds, "202406")
	require.NoError(t, err)

	f.unauthOnce.Store(true)
	_, err = c.DownloadProposal(ctx, creds, "202406")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.tokenCalls.Load())
}

func TestClient_EstadoDeTicketYDescarga(t *testing.T) {
	f := &fakeSire{}
	c := newClient(t, f)
	ctx := context.Background()

	tk, err := c.TicketStatus(ctx, creds, "20240300000001")
	require.NoError(t, err)
	assert.Equal(t, entity.TicketTerminado, tk.Estado)
	assert.Equal(t, "LE2010012345320240600140400021112.zip", tk.NombreArchivo)
	require.NotNil(t, tk.FechaTermino)

	name, content, err := c.DownloadFile(ctx, creds, "20240300000001")
	require.NoError(t, err)
	assert.Equal(t, "LE2010012345320240600140400021112.zip", name)
	assert.Equal(t, "contenido", string(content))

	_, err = c.TicketStatus(ctx, creds, "otro")
	assert.ErrorIs(t, err, domain.ErrExternalRejected)
}

func TestClient_ListaPeriodos(t *testing.T) {
	f := &fakeSire{}
	c := newClient(t, f)

	periods, err := c.ListPeriods(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, 2024, periods[0].Year)
	assert.Equal(t, "202405", periods[0].PeriodKey)
	assert.Equal(t, "Pendiente", periods[1].Description)
}

func TestClient_ServidorCaidoEsTransitorio(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := sunat.NewClient(sunat.ClientConfig{AuthURL: url, BaseURL: url, Timeout: time.Second}, nil, zerolog.Nop())

	_, err := c.DownloadProposal(context.Background(), creds, "202406")
	assert.ErrorIs(t, err, domain.ErrExternalTransient)
}
