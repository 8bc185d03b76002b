package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tributa-api/internal/application/ports"
	"github.com/jhoicas/tributa-api/internal/infrastructure/events"
)

type connSpy struct {
	subject string
	data    []byte
	err     error
}

func (c *connSpy) Publish(subject string, data []byte) error {
	c.subject, c.data = subject, data
	return c.err
}

func TestNATSPublisher_PrefijoYJSON(t *testing.T) {
	spy := &connSpy{}
	p := events.NewPublisherForTest(spy, "tributa.")

	err := p.Publish(context.Background(), ports.SubjectProcessUpdated, ports.ProcessUpdatedEvent{ProcessID: "p-1", Estado: "completado"})
	require.NoError(t, err)
	assert.Equal(t, "tributa.sire.process.updated", spy.subject)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(spy.data, &got))
	assert.Equal(t, "p-1", got["process_id"])
}

func TestNATSPublisher_ErrorDeConexion(t *testing.T) {
	spy := &connSpy{err: errors.New("nats: connection closed")}
	p := events.NewPublisherForTest(spy, "")

	err := p.Publish(context.Background(), ports.SubjectInvoiceCreated, map[string]string{"a": "b"})
	assert.Error(t, err)
	assert.Equal(t, ports.SubjectInvoiceCreated, spy.subject)
}
