package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/jhoicas/tributa-api/internal/application/ports"
)

var (
	_ ports.EventPublisher = (*NATSPublisher)(nil)
	_ ports.EventPublisher = Noop{}
)

// conn lo que el publicador usa de *nats.Conn.
type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publica eventos de dominio como JSON en <prefijo>.<subject>.
type NATSPublisher struct {
	nc     conn
	prefix string
	log    zerolog.Logger
}

// Connect abre la conexión con reconexión indefinida.
func Connect(url, name string, log zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats: desconectado")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats: reconectado")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

func NewNATSPublisher(nc *nats.Conn, prefix string, log zerolog.Logger) *NATSPublisher {
	return newPublisher(nc, prefix, log)
}

func newPublisher(nc conn, prefix string, log zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: strings.TrimSuffix(prefix, "."), log: log}
}

// Subject nombre completo con prefijo.
func (p *NATSPublisher) Subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: serializar %s: %w", subject, err)
	}
	full := p.Subject(subject)
	if err := p.nc.Publish(full, data); err != nil {
		return fmt.Errorf("events: publicar %s: %w", full, err)
	}
	p.log.Debug().Str("subject", full).Int("bytes", len(data)).Msg("evento publicado")
	return nil
}

// Noop descarta los eventos (NATS_URL vacío).
type Noop struct{}

func (Noop) Publish(ctx context.Context, subject string, payload interface{}) error { return nil }
