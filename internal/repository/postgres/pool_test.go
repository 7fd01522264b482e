package postgres

import (
	"errors"
	"testing"

	"github.com/and161185/jdue/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return &DB{Pool: mock}, mock
}

func TestHelpers(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("x")))

	require.ErrorIs(t, notFound(pgx.ErrNoRows), errs.ErrNotFound)
	boom := errors.New("boom")
	require.Same(t, boom, notFound(boom))

	require.ErrorIs(t, mustAffect(pgxmock.NewResult("UPDATE", 0), nil), errs.ErrNotFound)
	require.NoError(t, mustAffect(pgxmock.NewResult("UPDATE", 1), nil))
	require.Same(t, boom, mustAffect(pgconn.CommandTag{}, boom))
}
