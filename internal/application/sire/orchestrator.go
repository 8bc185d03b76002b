// Package sire orquesta la presentación ante el SIRE: descargar propuesta, aceptarla y registrar
// el preliminar. Cada paso es un proceso con ticket asíncrono que se consulta hasta resolverse.
//
// El request que inicia un paso vuelve apenas la SUNAT entrega el ticket; la consulta del ticket
// corre en una goroutine supervisada por proceso, desacoplada del request.
package sire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/dto"
	"github.com/jhoicas/tributa-api/internal/application/ports"
	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	"github.com/jhoicas/tributa-api/internal/domain/repository"
	domsire "github.com/jhoicas/tributa-api/internal/domain/sire"
	"github.com/jhoicas/tributa-api/pkg/sunat"
)

// Config parámetros de orquestación.
type Config struct {
	PollInterval    time.Duration // intervalo fijo entre consultas del ticket
	PollMaxAttempts int           // consultas máximas antes de declarar timeout
	PollMaxDuration time.Duration // tiempo máximo desde el inicio del proceso
	CallTimeout     time.Duration // timeout de cada llamada a la SUNAT
	Retry           RetryPolicy
	AutoAdvance     bool // al completar un paso iniciar el siguiente
}

// DefaultConfig valores por defecto.
func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Second,
		PollMaxAttempts: 120,
		PollMaxDuration: 15 * time.Minute,
		CallTimeout:     30 * time.Second,
		Retry:           DefaultRetryPolicy(),
		AutoAdvance:     true,
	}
}

// Orchestrator maneja los procesos SIRE y sus pollers.
type Orchestrator struct {
	processes    repository.SireProcessRepository
	declarations repository.DeclarationRepository
	credentials  CredentialsProvider
	client       AuthorityClient
	submitter    DeclarationSubmitter
	events       ports.EventPublisher
	cfg          Config
	log          zerolog.Logger
	now          func() time.Time

	rootCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	pollers map[string]context.CancelFunc // process id -> cancelación del poller
	periods map[string]*sync.Mutex        // owner|período -> serializa el inicio de pasos
}

// NewOrchestrator construye el orquestador. events puede ser nil.
func NewOrchestrator(
	processes repository.SireProcessRepository,
	declarations repository.DeclarationRepository,
	credentials CredentialsProvider,
	client AuthorityClient,
	submitter DeclarationSubmitter,
	events ports.EventPublisher,
	cfg Config,
	log zerolog.Logger,
) *Orchestrator {
	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		processes:    processes,
		declarations: declarations,
		credentials:  credentials,
		client:       client,
		submitter:    submitter,
		events:       events,
		cfg:          cfg,
		log:          log.With().Str("component", "sire").Logger(),
		now:          time.Now,
		rootCtx:      ctx,
		stop:         stop,
		pollers:      make(map[string]context.CancelFunc),
		periods:      make(map[string]*sync.Mutex),
	}
}

// SubmitDeclaration inicia (o retoma) el siguiente paso pendiente del período de la declaración.
func (o *Orchestrator) SubmitDeclaration(ctx context.Context, ownerID, declarationID string) (*dto.ProcessResponse, error) {
	d, err := o.declarations.GetByID(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrNotFound
	}
	if d.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	periodKey := sunat.PeriodKey(d.Period.Year, d.Period.Month)
	latest, err := o.processes.LatestByStage(ctx, ownerID, periodKey)
	if err != nil {
		return nil, err
	}
	latest = domsire.ForDeclaration(latest, d.ID, rectificationStart(d))
	stage, pending := domsire.NextPending(latest)
	if !pending {
		// el preliminar ya está registrado; si la marca de presentada falló se repite aquí
		if d.Status == entity.DeclarationCalculated {
			if err := o.submitter.MarkSubmitted(ctx, d.ID); err != nil {
				return nil, err
			}
		}
		return dto.NewProcessResponse(latest[entity.StagePreliminar]), nil
	}
	if d.Status != entity.DeclarationCalculated {
		return nil, fmt.Errorf("%w: la declaración debe estar calculada para presentarse (estado %s)", domain.ErrPrecondition, d.Status)
	}
	p, err := o.RunStage(ctx, ownerID, declarationID, periodKey, stage)
	if p == nil {
		return nil, err
	}
	return dto.NewProcessResponse(p), err
}

// RunStageForOwner ejecuta un paso explícito para un período "AAAAMM".
func (o *Orchestrator) RunStageForOwner(ctx context.Context, ownerID, periodKey, stageName string) (*dto.ProcessResponse, error) {
	stage, err := domsire.ParseStage(stageName)
	if err != nil {
		return nil, err
	}
	if err := validatePeriodKey(periodKey); err != nil {
		return nil, err
	}
	p, err := o.RunStage(ctx, ownerID, "", periodKey, stage)
	if p == nil {
		return nil, err
	}
	return dto.NewProcessResponse(p), err
}

// RunStage aplica la regla de idempotencia y, si corresponde, llama a la SUNAT.
//   - completado: devuelve el proceso guardado sin llamar a la SUNAT.
//   - iniciado/procesando: se engancha al ticket existente.
//   - sin proceso o en error: verifica el orden y crea un proceso nuevo.
//
// Si la llamada falla devuelve el proceso en error junto con el error clasificado.
func (o *Orchestrator) RunStage(ctx context.Context, ownerID, declarationID, periodKey string, stage entity.Stage) (*entity.SireProcess, error) {
	p, completed, err := o.runStage(ctx, ownerID, declarationID, periodKey, stage)
	if completed {
		// fuera del lock del período: onCompleted puede iniciar el paso siguiente
		o.onCompleted(p)
	}
	return p, err
}

func (o *Orchestrator) runStage(ctx context.Context, ownerID, declarationID, periodKey string, stage entity.Stage) (p *entity.SireProcess, completed bool, err error) {
	unlock := o.lockPeriod(ownerID + "|" + periodKey)
	defer unlock()

	latest, err := o.latestFor(ctx, ownerID, declarationID, periodKey)
	if err != nil {
		return nil, false, err
	}
	current := latest[stage]
	switch domsire.Decide(current) {
	case domsire.DecisionReuse:
		return current, false, nil
	case domsire.DecisionAttach:
		if current.Estado == entity.ProcessProcesando {
			o.startPoller(current)
		}
		return current, false, nil
	}

	if err := domsire.CheckOrder(stage, latest); err != nil {
		return nil, false, err
	}
	if declarationID == "" {
		declarationID = inheritDeclaration(stage, latest)
	}
	creds, err := o.credentials.Credentials(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}

	now := o.now()
	p = &entity.SireProcess{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		DeclarationID: declarationID,
		PeriodKey:     periodKey,
		Stage:         stage,
		Estado:        entity.ProcessIniciado,
		FechaInicio:   now,
		UpdatedAt:     now,
	}
	if err := o.processes.Create(ctx, p); err != nil {
		return nil, false, err
	}
	log := o.log.With().Str("process_id", p.ID).Str("owner_id", ownerID).Str("period", periodKey).Str("stage", string(stage)).Logger()
	log.Info().Msg("paso SIRE iniciado")
	o.publish(ctx, p)

	// la llamada ya enviada no se deshace: se desacopla de la cancelación del request
	callCtx := context.WithoutCancel(ctx)
	var ticket string
	err = o.cfg.Retry.Do(callCtx, func(ctx context.Context) error {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
		var cerr error
		ticket, cerr = o.callStage(tctx, creds, stage, periodKey)
		return cerr
	})
	if err != nil {
		log.Warn().Err(err).Msg("la SUNAT rechazó el paso")
		o.fail(callCtx, p, entity.ProcessIniciado, err.Error())
		return p, false, err
	}

	if err := domsire.MarkProcessing(p, ticket, o.now()); err != nil {
		return nil, false, err
	}
	if err := o.processes.Update(callCtx, p, entity.ProcessIniciado); err != nil {
		return nil, false, err
	}
	o.publish(callCtx, p)

	if ticket == "" {
		// preliminar con respuesta síncrona {success: true}
		if err := domsire.Complete(p, "", o.now()); err != nil {
			return nil, false, err
		}
		if err := o.processes.Update(callCtx, p, entity.ProcessProcesando); err != nil {
			return nil, false, err
		}
		log.Info().Msg("paso SIRE completado sin ticket")
		o.publish(callCtx, p)
		return p, true, nil
	}

	log.Info().Str("ticket", ticket).Msg("ticket recibido; consulta en segundo plano")
	o.startPoller(p)
	return p, false, nil
}

func (o *Orchestrator) callStage(ctx context.Context, creds entity.SunatCredentials, stage entity.Stage, periodKey string) (string, error) {
	switch stage {
	case entity.StagePropuesta:
		return o.client.DownloadProposal(ctx, creds, periodKey)
	case entity.StageAceptacion:
		return o.client.AcceptProposal(ctx, creds, periodKey)
	case entity.StagePreliminar:
		return o.client.RegisterPreliminary(ctx, creds, periodKey)
	default:
		return "", fmt.Errorf("%w: paso SIRE desconocido %q", domain.ErrValidation, stage)
	}
}

// GetProcessStatus estado persistido del proceso.
func (o *Orchestrator) GetProcessStatus(ctx context.Context, ownerID, processID string) (*dto.ProcessResponse, error) {
	p, err := o.loadProcess(ctx, ownerID, processID)
	if err != nil {
		return nil, err
	}
	return dto.NewProcessResponse(p), nil
}

// CancelPolling detiene el poller del proceso en su próxima iteración. El registro conserva su
// último estado: la SUNAT puede completar la operación igual.
func (o *Orchestrator) CancelPolling(ctx context.Context, ownerID, processID string) (*dto.ProcessResponse, error) {
	p, err := o.loadProcess(ctx, ownerID, processID)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	cancel, running := o.pollers[processID]
	o.mu.Unlock()
	if running {
		cancel()
		o.log.Info().Str("process_id", processID).Msg("consulta de ticket cancelada")
	}
	return dto.NewProcessResponse(p), nil
}

// IsPolling indica si hay un poller activo para el proceso.
func (o *Orchestrator) IsPolling(processID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.pollers[processID]
	return ok
}

// ResumePending retoma los pollers de procesos en curso al arrancar. Un proceso iniciado sin
// ticket quedó interrumpido antes de conocer la respuesta de la SUNAT y se cierra en error.
func (o *Orchestrator) ResumePending(ctx context.Context) (int, error) {
	active, err := o.processes.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, p := range active {
		if p.Estado == entity.ProcessProcesando && p.Ticket != "" {
			o.startPoller(p)
			resumed++
			continue
		}
		o.fail(ctx, p, p.Estado, "proceso interrumpido antes de recibir el ticket; reintente el paso")
	}
	if resumed > 0 {
		o.log.Info().Int("procesos", resumed).Msg("consultas de tickets reanudadas")
	}
	return resumed, nil
}

// ListPeriods períodos habilitados por la SUNAT para el owner.
func (o *Orchestrator) ListPeriods(ctx context.Context, ownerID string) ([]dto.AuthorityPeriodResponse, error) {
	creds, err := o.credentials.Credentials(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var periods []entity.AuthorityPeriod
	err = o.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
		var cerr error
		periods, cerr = o.client.ListPeriods(tctx, creds)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	out := make([]dto.AuthorityPeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, dto.AuthorityPeriodResponse{Year: p.Year, Period: p.PeriodKey, Code: p.StatusCode, Description: p.Description})
	}
	return out, nil
}

// DownloadFile descarga el archivo de un ticket terminado.
func (o *Orchestrator) DownloadFile(ctx context.Context, ownerID, ticketID string) (string, []byte, error) {
	if ticketID == "" {
		return "", nil, fmt.Errorf("%w: ticket requerido", domain.ErrValidation)
	}
	creds, err := o.credentials.Credentials(ctx, ownerID)
	if err != nil {
		return "", nil, err
	}
	var (
		name    string
		content []byte
	)
	err = o.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
		var cerr error
		name, content, cerr = o.client.DownloadFile(tctx, creds, ticketID)
		return cerr
	})
	return name, content, err
}

// Shutdown cancela los pollers y espera a que terminen (o a que venza ctx).
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) loadProcess(ctx context.Context, ownerID, processID string) (*entity.SireProcess, error) {
	p, err := o.processes.GetByID(ctx, processID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	if p.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

// onCompleted efectos de un paso completado: el preliminar presenta la declaración y, con
// AutoAdvance, se encadena el paso siguiente.
func (o *Orchestrator) onCompleted(p *entity.SireProcess) {
	ctx := o.rootCtx
	log := o.log.With().Str("process_id", p.ID).Str("stage", string(p.Stage)).Logger()
	if p.Stage == entity.StagePreliminar {
		if p.DeclarationID == "" {
			log.Warn().Msg("preliminar registrado sin declaración asociada")
			return
		}
		if err := o.submitter.MarkSubmitted(context.WithoutCancel(ctx), p.DeclarationID); err != nil {
			log.Error().Err(err).Str("declaration_id", p.DeclarationID).Msg("no se pudo marcar la declaración como presentada")
		}
		return
	}
	if !o.cfg.AutoAdvance || ctx.Err() != nil {
		return
	}
	next, ok := domsire.Next(p.Stage)
	if !ok {
		return
	}
	if _, err := o.RunStage(ctx, p.OwnerID, p.DeclarationID, p.PeriodKey, next); err != nil {
		log.Warn().Err(err).Str("next_stage", string(next)).Msg("no se pudo iniciar el paso siguiente")
	}
}

// fail cierra el proceso en error si sigue en el estado esperado.
func (o *Orchestrator) fail(ctx context.Context, p *entity.SireProcess, expected entity.ProcessState, msg string) {
	ctx = context.WithoutCancel(ctx)
	if err := domsire.Fail(p, msg, o.now()); err != nil {
		o.log.Warn().Err(err).Str("process_id", p.ID).Msg("transición a error inválida")
		return
	}
	if err := o.processes.Update(ctx, p, expected); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			o.log.Error().Err(err).Str("process_id", p.ID).Msg("no se pudo guardar el error del proceso")
		}
		return
	}
	o.publish(ctx, p)
}

func (o *Orchestrator) lockPeriod(key string) func() {
	o.mu.Lock()
	m, ok := o.periods[key]
	if !ok {
		m = &sync.Mutex{}
		o.periods[key] = m
	}
	o.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (o *Orchestrator) publish(ctx context.Context, p *entity.SireProcess) {
	if o.events == nil {
		return
	}
	err := o.events.Publish(ctx, ports.SubjectProcessUpdated, ports.ProcessUpdatedEvent{
		ProcessID: p.ID,
		OwnerID:   p.OwnerID,
		Period:    p.PeriodKey,
		Stage:     string(p.Stage),
		Estado:    string(p.Estado),
		Ticket:    p.Ticket,
		Error:     p.Error,
	})
	if err != nil {
		o.log.Warn().Err(err).Str("process_id", p.ID).Msg("no se pudo publicar evento de proceso")
	}
}

// latestFor últimos procesos del período. Con declaración solo cuentan los suyos, así una
// rectificatoria no hereda los pasos completados de la original.
func (o *Orchestrator) latestFor(ctx context.Context, ownerID, declarationID, periodKey string) (domsire.Latest, error) {
	latest, err := o.processes.LatestByStage(ctx, ownerID, periodKey)
	if err != nil || declarationID == "" {
		return latest, err
	}
	d, err := o.declarations.GetByID(ctx, declarationID)
	if err != nil {
		return nil, err
	}
	var since time.Time
	if d != nil {
		since = rectificationStart(d)
	}
	return domsire.ForDeclaration(latest, declarationID, since), nil
}

// rectificationStart desde cuándo cuentan los pasos sin declaración: para una rectificatoria
// los anteriores a su creación pertenecen a la original.
func rectificationStart(d *entity.Declaration) time.Time {
	if d.RectifiesID == "" {
		return time.Time{}
	}
	return d.CreatedAt
}

func inheritDeclaration(stage entity.Stage, latest domsire.Latest) string {
	for prev, ok := domsire.Previous(stage); ok; prev, ok = domsire.Previous(prev) {
		if p := latest[prev]; p != nil && p.DeclarationID != "" {
			return p.DeclarationID
		}
	}
	return ""
}

func validatePeriodKey(k string) error {
	var year, month int
	if len(k) != 6 {
		return fmt.Errorf("%w: período %q debe tener formato AAAAMM", domain.ErrValidation, k)
	}
	if _, err := fmt.Sscanf(k, "%4d%2d", &year, &month); err != nil || month < 1 || month > 12 || year < 2020 {
		return fmt.Errorf("%w: período %q debe tener formato AAAAMM", domain.ErrValidation, k)
	}
	return nil
}
