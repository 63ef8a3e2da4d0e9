package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

const (
	defaultQueuePageSize = 50
	maxQueuePageSize     = 500
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ReadyResponse reports the reachability of both stores
type ReadyResponse struct {
	Status string `json:"status"`
	Local  string `json:"local"`
	Remote string `json:"remote"`
}

// ForceSyncRequest is the optional body of POST /api/v1/sync/force
type ForceSyncRequest struct {
	Direction domain.Direction `json:"direction,omitempty"`
	Tables    []string         `json:"tables,omitempty"`
}

// ResetRequest is the optional body of POST /api/v1/queue/reset
type ResetRequest struct {
	IDs []int64 `json:"ids,omitempty"`
}

// CountResponse reports how many queue entries an operation touched
type CountResponse struct {
	Count int64 `json:"count"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady succeeds while the local store answers. The remote store being
// down is normal offline operation and only shows in the body.
func (s *Server) handleReady(timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := ReadyResponse{Status: "ready", Local: "ok", Remote: "ok"}
		status := http.StatusOK

		if s.local == nil {
			resp.Local = "not configured"
		} else if err := s.local.Ping(ctx); err != nil {
			resp.Status = "not ready"
			resp.Local = err.Error()
			status = http.StatusServiceUnavailable
		}

		if s.remote == nil {
			resp.Remote = "not configured"
		} else if err := s.remote.Ping(ctx); err != nil {
			resp.Remote = "unavailable"
		}

		writeJSON(w, status, resp)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "email and password are required")
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "account disabled")
		default:
			s.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.RefreshToken(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authService.Logout(r.Context(), bearerToken(r)); err != nil {
		s.logger.Warn("logout failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sync endpoints

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSyncHealth(w http.ResponseWriter, r *http.Request) {
	report, err := s.queueAdmin.Health(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleForceSync(w http.ResponseWriter, r *http.Request) {
	var req ForceSyncRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := s.engine.ForceSync(r.Context(), driving.SyncOptions{
		Direction: req.Direction,
		Tables:    req.Tables,
	})
	s.writeSyncReport(w, report, err)
}

func (s *Server) handleOneWaySync(dir domain.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.queueAdmin.SyncOneWay(r.Context(), dir)
		s.writeSyncReport(w, report, err)
	}
}

// writeSyncReport answers 503 with the report when the remote store could
// not be reached
func (s *Server) writeSyncReport(w http.ResponseWriter, report *domain.SyncReport, err error) {
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !report.Online {
		writeJSON(w, http.StatusServiceUnavailable, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Queue endpoints

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQueueFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.queueAdmin.Inspect(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetQueueEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	entry, err := s.queueAdmin.GetEntry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleResetQueue(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := s.queueAdmin.ResetFailed(r.Context(), req.IDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.auditLog(r, "queue reset", "count", n)
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// handlePurgeQueue deletes completed entries by default. older_than is a
// duration such as 72h; without it every entry of the status goes.
func (s *Server) handlePurgeQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := domain.QueueStatusCompleted
	if raw := q.Get("status"); raw != "" {
		parsed, err := domain.ParseQueueStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	var cutoff time.Time
	if raw := q.Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid older_than duration")
			return
		}
		cutoff = time.Now().Add(-d)
	}

	n, err := s.queueAdmin.Purge(r.Context(), status, cutoff)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.auditLog(r, "queue purge", "status", status, "count", n)
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// Schema cache

// handleRefreshSchema drops the cached schema of a table; "all" drops every
// cached schema
func (s *Server) handleRefreshSchema(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	if table == "all" {
		table = ""
	}

	if err := s.queueAdmin.RefreshSchema(r.Context(), table); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func parseQueueFilter(r *http.Request) (domain.QueueFilter, error) {
	q := r.URL.Query()
	filter := domain.QueueFilter{
		TableName: q.Get("table"),
		Limit:     defaultQueuePageSize,
	}

	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseQueueStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}

	var err error
	if filter.ExhaustedOnly, err = parseBool(q.Get("exhausted")); err != nil {
		return filter, fmt.Errorf("invalid exhausted: %w", err)
	}
	if filter.Newest, err = parseBool(q.Get("newest")); err != nil {
		return filter, fmt.Errorf("invalid newest: %w", err)
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = min(limit, maxQueuePageSize)
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// decodeOptionalJSON decodes the body into v, accepting an empty body
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) auditLog(r *http.Request, msg string, args ...any) {
	if authCtx := OperatorFrom(r.Context()); authCtx != nil {
		args = append(args, "operator_id", authCtx.OperatorID)
	}
	s.logger.Info(msg, args...)
}

// writeServiceError maps domain errors to status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSyncInProgress):
		writeError(w, http.StatusConflict, "sync already in progress")
	case errors.Is(err, domain.ErrRemoteUnavailable):
		writeError(w, http.StatusServiceUnavailable, "remote store unavailable")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
