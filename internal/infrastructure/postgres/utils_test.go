package postgres_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/tributa-api/internal/infrastructure/postgres"
)

func TestIsSequencingConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicado", &pgconn.PgError{Code: "23505"}, true},
		{"serializacion", fmt.Errorf("next sequence: %w", &pgconn.PgError{Code: "40001"}), true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"fk", &pgconn.PgError{Code: "23503"}, false},
		{"conexion", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, postgres.IsSequencingConflict(tc.err))
		})
	}
}
