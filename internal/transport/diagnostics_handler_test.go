package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"products-api/internal/config"
	"products-api/internal/database"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubRow scans fixed values or returns err.
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *bool:
			*p = r.values[i].(bool)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

// stubQuerier answers every QueryRow with row.
type stubQuerier struct {
	row     stubRow
	lastSQL string
}

func (q *stubQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (q *stubQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	return q.row
}

func (q *stubQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func newDiagnosticsRouter(db database.Querier, stats func() database.PoolStats) http.Handler {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     "5432",
		User:     "svc",
		Password: "s3cret",
		Database: "products",
	}
	r := chi.NewRouter()
	NewDiagnosticsHandler(db, database.NewExecutor(time.Second, zap.NewNop()), cfg, stats, zap.NewNop()).RegisterRoutes(r)
	return r
}

func TestDiagnosticsHandler_Root(t *testing.T) {
	w := doRequest(newDiagnosticsRouter(&stubQuerier{}, nil), http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Server is running", decodeBody(t, w)["message"])
}

func TestDiagnosticsHandler_Health(t *testing.T) {
	stats := func() database.PoolStats {
		return database.PoolStats{TotalConns: 3, IdleConns: 2, AcquiredConns: 1, MaxConns: 20}
	}

	w := doRequest(newDiagnosticsRouter(&stubQuerier{}, stats), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	pool := body["pool"].(map[string]interface{})
	assert.EqualValues(t, 20, pool["max_conns"])
	assert.EqualValues(t, 1, pool["acquired_conns"])
}

func TestDiagnosticsHandler_TestDB(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db := &stubQuerier{row: stubRow{values: []any{now}}}

	w := doRequest(newDiagnosticsRouter(db, nil), http.MethodGet, "/test-db", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SELECT NOW()", db.lastSQL)

	body := decodeBody(t, w)
	assert.Equal(t, "Database connection successful", body["message"])
	assert.Equal(t, "2024-05-01T12:00:00Z", body["time"].(map[string]interface{})["now"])

	dbConfig := body["dbConfig"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"host":     "db.internal",
		"database": "products",
		"port":     "5432",
		"user":     "svc",
	}, dbConfig)
	assert.NotContains(t, w.Body.String(), "s3cret")
}

func TestDiagnosticsHandler_TestDBFailure(t *testing.T) {
	db := &stubQuerier{row: stubRow{err: &pgconn.PgError{Severity: "FATAL", Code: "28P01", Message: "password authentication failed"}}}

	w := doRequest(newDiagnosticsRouter(db, nil), http.MethodGet, "/test-db", "")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Database connection failed", body["message"])
	assert.Equal(t, "28P01", body["code"])
	assert.Contains(t, body["error"], "password authentication failed")
}

func TestDiagnosticsHandler_CheckDBMissingTable(t *testing.T) {
	db := &stubQuerier{row: stubRow{values: []any{false}}}

	w := doRequest(newDiagnosticsRouter(db, nil), http.MethodGet, "/check-db", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["tableExists"])
	assert.Equal(t, []interface{}{}, body["structure"])
}

func TestDiagnosticsHandler_CheckDBFailure(t *testing.T) {
	db := &stubQuerier{row: stubRow{err: errors.New("connection reset by peer")}}

	w := doRequest(newDiagnosticsRouter(db, nil), http.MethodGet, "/check-db", "")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Database check failed", decodeBody(t, w)["message"])
}
