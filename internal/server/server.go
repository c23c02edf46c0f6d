package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ayursutra/internal/app"
	"ayursutra/internal/ratelimit"
	"ayursutra/internal/util"
	"ayursutra/pkg/store"
)

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second

	codeInvalidJSON        = "SYSTEM_INVALID_JSON"
	codePatientInvalid     = "PATIENT_INVALID_REQUEST"
	codePatientNotFound    = "PATIENT_NOT_FOUND"
	codeChatInvalid        = "CHAT_INVALID_REQUEST"
	codeExportUnavailable  = "EXPORT_UNAVAILABLE"
	codeStorageUnavailable = "STORAGE_UNAVAILABLE"
	codeInternal           = "SYSTEM_INTERNAL_ERROR"
	codeRateLimited        = "RATE_LIMITED"
	codeMethodNotAllowed   = "SYSTEM_METHOD_NOT_ALLOWED"
	codeNotFound           = "SYSTEM_NOT_FOUND"
)

// Config wires dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Limiter throttles POST, PUT and DELETE. Nil disables rate limiting.
	Limiter        *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes the clinic REST API.
type Server struct {
	app     *app.App
	limiter *ratelimit.FixedWindowLimiter
	proxies *util.TrustedProxies
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	s := &Server{
		app:     cfg.App,
		limiter: cfg.Limiter,
		proxies: cfg.TrustedProxies,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("ayursutra", util.WithSecurityHeaders(util.WithCORS(s.withMutationLimit(s.mux)))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/dashboard", s.handleDashboard)

	// patients
	s.mux.HandleFunc("/api/patients", s.handlePatients)
	s.mux.HandleFunc("/api/patients/export", s.handleExport)
	s.mux.HandleFunc("/api/patients/", s.handlePatientByID)

	// chat
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/api/chat/ask", s.handleAsk)

	s.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.app.Ping(ctx); err != nil {
		util.LoggerFromContext(r.Context()).Warn("health check failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, codeStorageUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Dashboard(r.Context())
	if err != nil {
		s.writeAppError(w, r, err, codeInternal)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		patients, err := s.app.ListPatients(r.Context())
		if err != nil {
			s.writeAppError(w, r, err, codePatientInvalid)
			return
		}
		writeJSON(w, http.StatusOK, patients)
	case http.MethodPost:
		var req patientRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in, err := req.createInput(s.app.Location())
		if err != nil {
			s.writeAppError(w, r, err, codePatientInvalid)
			return
		}
		patient, err := s.app.CreatePatient(r.Context(), in)
		if err != nil {
			s.writeAppError(w, r, err, codePatientInvalid)
			return
		}
		writeJSON(w, http.StatusCreated, patient)
	default:
		methodNotAllowed(w)
	}
}

// /api/patients/{id}
func (s *Server) handlePatientByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/patients/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		patient, err := s.app.GetPatient(r.Context(), id)
		if err != nil {
			s.writeAppError(w, r, err, codePatientInvalid)
			return
		}
		writeJSON(w, http.StatusOK, patient)
	case http.MethodPut:
		var req patientRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in, err := req.updateInput()
		if err != nil {
			s.writeAppError(w, r, err, codePatientInvalid)
			return
		}
		patient, err := s.app.UpdatePatient(r.Context(), id, in)
		if err != nil {
			s.writeAppError(w, r, err, codePatientInvalid)
			return
		}
		writeJSON(w, http.StatusOK, patient)
	case http.MethodDelete:
		if err := s.app.DeletePatient(r.Context(), id); err != nil {
			s.writeAppError(w, r, err, codePatientInvalid)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Patient deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	format, err := app.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeAppError(w, r, err, codePatientInvalid)
		return
	}
	export, err := s.app.ExportPatients(r.Context(), format)
	if err != nil {
		s.writeAppError(w, r, err, codeInternal)
		return
	}
	writeJSON(w, http.StatusCreated, export)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		history, err := s.app.ChatHistory(r.Context())
		if err != nil {
			s.writeAppError(w, r, err, codeChatInvalid)
			return
		}
		writeJSON(w, http.StatusOK, history)
	case http.MethodPost:
		var req chatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := s.app.AppendChatMessage(r.Context(), req.Message, req.Sender)
		if err != nil {
			s.writeAppError(w, r, err, codeChatInvalid)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	exchange, err := s.app.AskBot(r.Context(), req.Message)
	if err != nil {
		s.writeAppError(w, r, err, codeChatInvalid)
		return
	}
	writeJSON(w, http.StatusCreated, exchange)
}

// withMutationLimit applies the fixed-window limiter to POST, PUT and DELETE.
// Limiter failures deny the request.
func (s *Server) withMutationLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || !isMutation(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		ip := util.ClientIP(r, s.proxies)
		key := r.Method + " " + routeKey(r.URL.Path) + "|" + ip
		decision, err := s.limiter.Allow(r.Context(), key)
		if err != nil {
			util.LoggerFromContext(r.Context()).Warn("rate limiter unavailable", "err", err)
		}
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		util.LoggerFromContext(r.Context()).Warn("rate_limited", "ip", ip, "path", r.URL.Path, "method", r.Method)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
		writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// routeKey collapses patient ids so a client cannot dodge the quota by
// spreading writes over records.
func routeKey(path string) string {
	if rest, ok := strings.CutPrefix(path, "/api/patients/"); ok && rest != "export" {
		return "/api/patients/{id}"
	}
	return path
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// writeAppError maps service errors to HTTP. invalidCode labels validation
// failures for the resource being handled.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error, invalidCode string) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, invalidCode, verr.Error())
	case errors.Is(err, app.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, codePatientNotFound, "patient not found")
	case errors.Is(err, app.ErrExportUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeExportUnavailable, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		util.LoggerFromContext(r.Context()).Error("storage unavailable", "err", err)
		writeError(w, http.StatusInternalServerError, codeStorageUnavailable, "storage unavailable")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}
