package sire

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/tributa-api/internal/domain"
	"github.com/jhoicas/tributa-api/internal/domain/entity"
	domsire "github.com/jhoicas/tributa-api/internal/domain/sire"
)

// startPoller lanza la goroutine de consulta del ticket si no hay otra para el proceso.
func (o *Orchestrator) startPoller(p *entity.SireProcess) {
	o.mu.Lock()
	if _, running := o.pollers[p.ID]; running || o.rootCtx.Err() != nil {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(o.rootCtx)
	o.pollers[p.ID] = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go func(id string) {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.pollers, id)
			o.mu.Unlock()
			cancel()
		}()
		o.poll(ctx, id)
	}(p.ID)
}

// poll consulta el ticket a intervalo fijo hasta Terminado/Error, timeout o cancelación.
func (o *Orchestrator) poll(ctx context.Context, processID string) {
	log := o.log.With().Str("process_id", processID).Logger()
	// la persistencia no depende de la cancelación del poller
	store := context.WithoutCancel(ctx)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("poller detenido")
			return
		case <-ticker.C:
		}

		p, err := o.processes.GetByID(store, processID)
		if err != nil {
			log.Error().Err(err).Msg("no se pudo leer el proceso")
			continue
		}
		if p == nil || p.IsFinal() {
			return
		}
		if p.Estado != entity.ProcessProcesando {
			return
		}
		if p.PollAttempts >= o.cfg.PollMaxAttempts || o.now().Sub(p.FechaInicio) > o.cfg.PollMaxDuration {
			log.Warn().Int("intentos", p.PollAttempts).Msg("tiempo de espera del ticket agotado")
			o.fail(store, p, entity.ProcessProcesando, "tiempo de espera agotado consultando el ticket "+p.Ticket)
			return
		}

		creds, err := o.credentials.Credentials(store, p.OwnerID)
		if err != nil {
			o.fail(store, p, entity.ProcessProcesando, err.Error())
			return
		}

		var t *entity.Ticket
		err = o.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			tctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
			defer cancel()
			var cerr error
			t, cerr = o.client.TicketStatus(tctx, creds, p.Ticket)
			return cerr
		})
		if ctx.Err() != nil {
			// cancelado durante la consulta: se conserva el último estado conocido
			return
		}
		p.PollAttempts++
		p.UpdatedAt = o.now()
		if err != nil {
			log.Warn().Err(err).Str("ticket", p.Ticket).Msg("consulta de ticket fallida tras reintentos")
			o.fail(store, p, entity.ProcessProcesando, err.Error())
			return
		}

		switch t.Estado {
		case entity.TicketTerminado:
			if err := domsire.Complete(p, t.NombreArchivo, o.now()); err != nil {
				log.Error().Err(err).Msg("transición a completado inválida")
				return
			}
			if err := o.processes.Update(store, p, entity.ProcessProcesando); err != nil {
				if !errors.Is(err, domain.ErrConflict) {
					log.Error().Err(err).Msg("no se pudo guardar el proceso completado")
				}
				return
			}
			log.Info().Str("ticket", p.Ticket).Str("archivo", p.NombreArchivo).Msg("ticket terminado")
			o.publish(store, p)
			o.onCompleted(p)
			return
		case entity.TicketError:
			msg := t.MensajeError
			if msg == "" {
				msg = "la SUNAT reportó error en el ticket " + p.Ticket
			}
			o.fail(store, p, entity.ProcessProcesando, msg)
			return
		default:
			if err := o.processes.Update(store, p, entity.ProcessProcesando); err != nil {
				if errors.Is(err, domain.ErrConflict) {
					return
				}
				log.Error().Err(err).Msg("no se pudo guardar el intento de consulta")
			}
		}
	}
}
