package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/xela07ax/guildpulse/internal/repository"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unsupported bool
	}{
		{"undefined table", &pgconn.PgError{Code: "42P01"}, true},
		{"undefined column", &pgconn.PgError{Code: "42703"}, true},
		{"undefined function", &pgconn.PgError{Code: "42883"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"network", errors.New("connection reset by peer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			assert.ErrorIs(t, err, tt.err)
			if tt.unsupported {
				assert.ErrorIs(t, err, repository.ErrQueryUnsupported)
				assert.NotErrorIs(t, err, repository.ErrTransport)
			} else {
				assert.ErrorIs(t, err, repository.ErrTransport)
				assert.NotErrorIs(t, err, repository.ErrQueryUnsupported)
			}
		})
	}

	assert.NoError(t, classify("op", nil))
}

func TestNonNil(t *testing.T) {
	assert.Equal(t, []string{}, nonNil(nil))
	assert.Equal(t, []string{"a"}, nonNil([]string{"a"}))
}
