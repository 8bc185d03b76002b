package events

import "github.com/rs/zerolog"

type Conn = conn

func NewPublisherForTest(c Conn, prefix string) *NATSPublisher {
	return newPublisher(c, prefix, zerolog.Nop())
}
