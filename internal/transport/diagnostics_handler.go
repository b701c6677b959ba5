package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"products-api/internal/config"
	"products-api/internal/database"
	"products-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBConfigView is the connection config echoed by /test-db. It never carries the password.
type DBConfigView struct {
	Host     string `json:"host"`
	Database string `json:"database"`
	Port     string `json:"port"`
	User     string `json:"user"`
}

// TestDBResponse is the /test-db success body
type TestDBResponse struct {
	Message  string               `json:"message"`
	Time     map[string]time.Time `json:"time"`
	DBConfig DBConfigView         `json:"dbConfig"`
}

// CheckDBResponse is the /check-db success body
type CheckDBResponse struct {
	Message     string                `json:"message"`
	TableExists bool                  `json:"tableExists"`
	Structure   []database.ColumnInfo `json:"structure"`
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status string              `json:"status"`
	Pool   *database.PoolStats `json:"pool,omitempty"`
}

// DiagnosticsHandler serves liveness and database diagnostics
type DiagnosticsHandler struct {
	db       database.Querier
	exec     *database.Executor
	dbConfig config.DatabaseConfig
	stats    func() database.PoolStats
	logger   *zap.Logger
}

// NewDiagnosticsHandler creates a new DiagnosticsHandler. stats may be nil.
func NewDiagnosticsHandler(db database.Querier, exec *database.Executor, dbConfig config.DatabaseConfig, stats func() database.PoolStats, logger *zap.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		db:       db,
		exec:     exec,
		dbConfig: dbConfig,
		stats:    stats,
		logger:   logger,
	}
}

// RegisterRoutes registers the diagnostics routes
func (h *DiagnosticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/test-db", h.TestDB)
	r.Get("/check-db", h.CheckDB)
}

// Root handles GET /
func (h *DiagnosticsHandler) Root(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Server is running"})
}

// Health handles GET /health
func (h *DiagnosticsHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.stats != nil {
		stats := h.stats()
		resp.Pool = &stats
	}
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// TestDB handles GET /test-db
func (h *DiagnosticsHandler) TestDB(w http.ResponseWriter, r *http.Request) {
	now, err := database.Execute(r.Context(), h.exec, func(ctx context.Context) (time.Time, error) {
		var now time.Time
		err := h.db.QueryRow(ctx, "SELECT NOW()").Scan(&now)
		return now, err
	})
	if err != nil {
		h.logger.Error("Database connection error", zap.Error(err))
		h.respondWithDBError(w, err, "Database connection failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, TestDBResponse{
		Message: "Database connection successful",
		Time:    map[string]time.Time{"now": now},
		DBConfig: DBConfigView{
			Host:     h.dbConfig.Host,
			Database: h.dbConfig.Database,
			Port:     h.dbConfig.Port,
			User:     h.dbConfig.User,
		},
	})
}

// CheckDB handles GET /check-db
func (h *DiagnosticsHandler) CheckDB(w http.ResponseWriter, r *http.Request) {
	resp, err := database.Execute(r.Context(), h.exec, func(ctx context.Context) (CheckDBResponse, error) {
		exists, err := database.TableExists(ctx, h.db, database.ProductsTable)
		if err != nil {
			return CheckDBResponse{}, err
		}

		resp := CheckDBResponse{TableExists: exists, Structure: []database.ColumnInfo{}}
		if !exists {
			resp.Message = "Products table does not exist"
			return resp, nil
		}

		columns, err := database.DescribeTable(ctx, h.db, database.ProductsTable)
		if err != nil {
			return CheckDBResponse{}, err
		}
		resp.Message = "Products table exists"
		resp.Structure = columns
		return resp, nil
	})
	if err != nil {
		h.logger.Error("Database check error", zap.Error(err))
		h.respondWithDBError(w, err, "Database check failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// respondWithDBError always includes the driver message; these endpoints exist to debug connectivity.
func (h *DiagnosticsHandler) respondWithDBError(w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError
	if errors.Is(err, database.ErrTimeout) {
		status = http.StatusGatewayTimeout
	}

	resp := middleware.ErrorResponse{Message: message, Error: err.Error()}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		resp.Code = pgErr.Code
	}
	middleware.RespondWithErrorResponse(w, status, resp)
}
