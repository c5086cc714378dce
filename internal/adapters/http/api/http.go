// Package api serves the registry over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/okian/talentboard/internal/adapters/directory"
	"github.com/okian/talentboard/internal/adapters/http/auth"
	service "github.com/okian/talentboard/internal/app"
	"github.com/okian/talentboard/internal/domain/dedupe"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/pkg/logger"
	"github.com/okian/talentboard/pkg/metrics"
)

const (
	maxBodyBytes = 1 << 20

	// HeaderIdempotencyKey names the optional header that makes a mutating
	// request safe to retry.
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Registry is the registry surface the handlers call.
type Registry interface {
	RegisterTalent(ctx context.Context, caller model.Identity, p model.Profile) (model.Talent, error)
	UpdateTalentProfile(ctx context.Context, caller model.Identity, p model.Profile) (model.Talent, error)
	VerifyTalent(ctx context.Context, caller, target model.Identity) (model.Talent, error)
	TalentInfo(ctx context.Context, id model.Identity) (model.Talent, error)
	SearchTalents(ctx context.Context, q directory.Query) ([]model.Talent, int)

	CreateProject(ctx context.Context, caller model.Identity, d model.ProjectDraft) (model.Project, error)
	AssignProject(ctx context.Context, caller model.Identity, id uint64, talent model.Identity) (model.Project, error)
	CloseProject(ctx context.Context, caller model.Identity, id uint64) (model.Project, error)
	ProjectInfo(ctx context.Context, id uint64) (model.Project, error)
	Projects(ctx context.Context, f service.ProjectFilter) ([]model.Project, int, error)

	Events(ctx context.Context, after uint64, limit int) ([]model.Event, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper
	Registry
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	talentsHandler  *TalentsHandler
	projectsHandler *ProjectsHandler
	eventsHandler   *EventsHandler
}

// NewServer creates a new API server with all handlers. Mutating routes
// authenticate callers with verifier.
func NewServer(deps Dependencies, verifier *auth.Verifier) *Server {
	b := &base{
		deps:     deps,
		verifier: verifier,
		validate: validator.New(),
		logger:   logger.Named("api"),
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		talentsHandler:  &TalentsHandler{base: b},
		projectsHandler: &ProjectsHandler{base: b},
		eventsHandler:   &EventsHandler{base: b},
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	t := s.talentsHandler
	mux.HandleFunc("POST /talents", MetricsMiddleware(t.HandleRegister, "talents_register"))
	mux.HandleFunc("PUT /talents/me", MetricsMiddleware(t.HandleUpdate, "talents_update"))
	mux.HandleFunc("POST /talents/{identity}/verify", MetricsMiddleware(t.HandleVerify, "talents_verify"))
	mux.HandleFunc("GET /talents/{identity}", MetricsMiddleware(t.HandleGet, "talents_get"))
	mux.HandleFunc("GET /talents", MetricsMiddleware(t.HandleSearch, "talents_search"))

	p := s.projectsHandler
	mux.HandleFunc("POST /projects", MetricsMiddleware(p.HandleCreate, "projects_create"))
	mux.HandleFunc("GET /projects", MetricsMiddleware(p.HandleList, "projects_list"))
	mux.HandleFunc("GET /projects/{id}", MetricsMiddleware(p.HandleGet, "projects_get"))
	mux.HandleFunc("POST /projects/{id}/assign", MetricsMiddleware(p.HandleAssign, "projects_assign"))
	mux.HandleFunc("POST /projects/{id}/close", MetricsMiddleware(p.HandleClose, "projects_close"))

	mux.HandleFunc("GET /events", MetricsMiddleware(s.eventsHandler.HandleList, "events"))
}

// base carries what every resource handler shares.
type base struct {
	deps     Dependencies
	verifier *auth.Verifier
	validate *validator.Validate
	logger   logger.Logger
}

// mutation authenticates the caller, decodes and validates the body into
// req when it is non-nil, and runs fn under the request's idempotency key.
// fn's result is written with status on success.
func (b *base) mutation(w http.ResponseWriter, r *http.Request, op string, req any, status int, fn func(ctx context.Context, caller model.Identity) (any, error)) {
	caller, err := b.verifier.Verify(r.Header.Get("Authorization"))
	if err != nil {
		metrics.RecordAuthFailure(authFailureReason(err))
		b.writeError(w, r, WrapKind(op, ErrUnauthorized, err))
		return
	}
	if req != nil {
		if err := b.decode(r, req); err != nil {
			b.writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
	}

	var key string
	if raw := r.Header.Get(HeaderIdempotencyKey); raw != "" {
		key = dedupe.Key(caller.String(), raw)
		if b.deps.SeenAndRecord(r.Context(), key) {
			b.writeError(w, r, NewKind(op, ErrDuplicate))
			return
		}
	}

	out, err := fn(r.Context(), caller)
	if err != nil {
		if key != "" {
			b.deps.Unrecord(r.Context(), key)
		}
		b.writeError(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

// decode reads one strict JSON document into dst and validates it.
func (b *base) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("decode body: trailing data")
	}
	if err := b.validate.Struct(dst); err != nil {
		return fmt.Errorf("validate body: %w", err)
	}
	return nil
}

func (b *base) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if re, ok := model.AsRegistryError(err); ok {
		msg = re.Message
	}
	if status >= http.StatusInternalServerError {
		b.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps an error to its HTTP status and machine code.
func classify(err error) (int, string) {
	if re, ok := model.AsRegistryError(err); ok {
		switch {
		case errors.Is(err, model.ErrValidation):
			return http.StatusBadRequest, re.Code
		case errors.Is(err, model.ErrAuthorization):
			return http.StatusForbidden, re.Code
		case model.IsNotFound(err):
			return http.StatusNotFound, re.Code
		default:
			return http.StatusConflict, re.Code
		}
	}
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict, "duplicate_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing"
	case errors.Is(err, auth.ErrBadSubject):
		return "bad_subject"
	default:
		return "invalid"
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// pathIdentity parses the {identity} path segment.
func pathIdentity(r *http.Request) (model.Identity, error) {
	return model.ParseIdentity(r.PathValue("identity"))
}

// pathProjectID parses the {id} path segment.
func pathProjectID(op string, r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, WrapKind(op, ErrBadRequest, fmt.Errorf("project id: %w", err))
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter, def when absent.
func queryInt(op string, r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, WrapKind(op, ErrBadRequest, fmt.Errorf("%s must be a non-negative integer", name))
	}
	return n, nil
}
