package sqlerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/deppfellow/lead-intake/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleErrorNoRowsNamesEntity(t *testing.T) {
	err := fmt.Errorf("get lead id=42 table:leads: %w", pgx.ErrNoRows)

	var httpErr *errs.HTTPError
	require.True(t, errors.As(HandleError(err), &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, "Lead not found", httpErr.Message)
}

func TestHandleErrorNoRowsWithoutTable(t *testing.T) {
	var httpErr *errs.HTTPError
	require.True(t, errors.As(HandleError(pgx.ErrNoRows), &httpErr))
	assert.Equal(t, "Resource not found", httpErr.Message)
}

func TestHandleErrorUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{
		Code:           "23505",
		Severity:       "ERROR",
		TableName:      "users",
		ConstraintName: "users_username_key",
	}

	var httpErr *errs.HTTPError
	require.True(t, errors.As(HandleError(err), &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "USER_ALREADY_EXISTS", httpErr.Code)
	assert.Equal(t, "A User with this Username already exists", httpErr.Message)
}

func TestHandleErrorCheckViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23514", Severity: "ERROR", TableName: "leads", ColumnName: "state"}

	var httpErr *errs.HTTPError
	require.True(t, errors.As(HandleError(err), &httpErr))
	assert.Equal(t, "LEAD_INVALID", httpErr.Code)
}

func TestHandleErrorPassesHTTPErrorThrough(t *testing.T) {
	in := errs.NewUnauthorizedError("Unauthorized", false)
	assert.Same(t, in, HandleError(in))
}

func TestHandleErrorUnknown(t *testing.T) {
	var httpErr *errs.HTTPError
	require.True(t, errors.As(HandleError(errors.New("boom")), &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("table:leads: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("connection refused")))
}
