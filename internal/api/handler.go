// Package api exposes the gateway to the dashboard UI over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sqlward/sqlward/internal/core/domain"
	"github.com/sqlward/sqlward/internal/core/port"
	"github.com/sqlward/sqlward/internal/core/service"
)

// maxRequestBody bounds the decoded request; the validator enforces the
// query byte ceiling separately with a specific rejection reason.
const maxRequestBody = 4 << 20

type queryRequest struct {
	SQL            string `json:"sql"`
	MaxRows        int    `json:"max_rows,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type queryResponse struct {
	Columns    []domain.Column             `json:"columns"`
	Rows       []map[string]any            `json:"rows"`
	RowCount   int                         `json:"row_count"`
	Statistics *domain.ExecutionStatistics `json:"statistics,omitempty"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Code     *int   `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
}

// Handler adapts HTTP requests to the gateway service.
type Handler struct {
	gateway *service.GatewayService
	logger  *slog.Logger
}

func NewHandler(gateway *service.GatewayService, logger *slog.Logger) *Handler {
	return &Handler{gateway: gateway, logger: logger}
}

// Router builds the chi router for the dashboard API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Get("/healthz", h.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", h.executeQuery)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) executeQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	limits := port.Limits{
		MaxRows: req.MaxRows,
		Timeout: time.Duration(req.TimeoutSeconds) * time.Second,
	}

	result, err := h.gateway.Execute(r.Context(), req.SQL, actorFromRequest(r), limits)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Columns:    result.Columns,
		Rows:       result.Rows,
		RowCount:   result.RowCount,
		Statistics: result.Stats,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Reason})
		return
	}

	var eErr *service.ExecutionError
	if errors.As(err, &eErr) {
		status := http.StatusUnprocessableEntity
		if eErr.Timeout {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, errorResponse{
			Error:    eErr.Classified.Message,
			Code:     eErr.Classified.Code,
			Category: eErr.Classified.Category,
		})
		return
	}

	h.logger.ErrorContext(r.Context(), "unexpected query error",
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// actorFromRequest assembles audit attribution from request headers. Identity
// verification is the session layer's job; these values are recorded, not
// trusted for access control.
func actorFromRequest(r *http.Request) port.Actor {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return port.Actor{
		UserID:    r.Header.Get("X-User-Id"),
		UserEmail: r.Header.Get("X-User-Email"),
		UserName:  r.Header.Get("X-User-Name"),
		SessionID: r.Header.Get("X-Session-Id"),
		ClientIP:  host,
		UserAgent: r.UserAgent(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
