package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codewithboateng/adlint/internal/check"
	"github.com/codewithboateng/adlint/internal/metrics"
	"github.com/codewithboateng/adlint/internal/model"
	"github.com/codewithboateng/adlint/internal/rules"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// RuleService is the rule provider surface the API needs.
type RuleService interface {
	Mode() rules.Mode
	Ruleset() *rules.Ruleset
	Reload() error
	Rules(includeInactive bool) ([]model.Rule, error)
	Get(id int64) (model.Rule, error)
	Search(keyword string) ([]model.Rule, error)
	Statistics() (model.RuleStats, error)
	AddRule(model.Rule) (int64, error)
	UpdateRule(model.Rule) (model.Rule, error)
	DeleteRule(id int64) error
	DeactivateRule(id int64) error
	SetActive(id int64, active bool) (model.Rule, error)
}

// AuditLog records admin mutations.
type AuditLog interface {
	LogAudit(actor, action, resource string, meta map[string]any) error
}

type Server struct {
	Rules          RuleService
	Checker        *check.Service
	Audit          AuditLog // optional
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	AdminTokenHash string // bcrypt; empty disables admin routes
	AllowedOrigins []string
	Limiter        *Limiter // optional
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/check", s.handleCheck)

	// Rules, read-only
	mux.HandleFunc("GET /api/v1/rules", s.handleListRules)
	mux.HandleFunc("GET /api/v1/rules/search", s.handleSearchRules)
	mux.HandleFunc("GET /api/v1/rules/stats", s.handleRuleStats)
	mux.HandleFunc("GET /api/v1/rules/{id}", s.handleGetRule)
	mux.HandleFunc("POST /api/v1/rules/validate", s.handleValidatePattern)

	// Rules, admin
	mux.HandleFunc("POST /api/v1/rules", withAdmin(s, s.handleCreateRule, "rules:create"))
	mux.HandleFunc("PUT /api/v1/rules/{id}", withAdmin(s, s.handleUpdateRule, "rules:update"))
	mux.HandleFunc("DELETE /api/v1/rules/{id}", withAdmin(s, s.handleDeleteRule, "rules:delete"))
	mux.HandleFunc("POST /api/v1/rules/{id}/deactivate", withAdmin(s, s.handleSetActive(false), "rules:deactivate"))
	mux.HandleFunc("POST /api/v1/rules/{id}/activate", withAdmin(s, s.handleSetActive(true), "rules:activate"))
	mux.HandleFunc("POST /api/v1/rules/reload", withAdmin(s, s.handleReload, "rules:reload"))

	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.err(w, http.StatusNotFound, "not found")
	})

	return withRequestID(s.withCORS(s.withRateLimit(s.withAccessLog(mux))))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":        true,
		"mode":      s.Rules.Mode().String(),
		"timestamp": time.Now().UTC(),
	}
	if rs := s.Rules.Ruleset(); rs != nil {
		out["ruleset_version"] = rs.Version
		out["rules"] = rs.Len()
	} else {
		out["ok"] = false
	}
	writeJSON(w, http.StatusOK, out)
}

type checkReq struct {
	Text string `json:"text"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var in checkReq
	if !s.decode(w, r, &in) {
		return
	}
	res, err := s.Checker.Check(in.Text)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidPattern), errors.Is(err, model.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnsupported):
		return http.StatusConflict
	case errors.Is(err, model.ErrStoreUnavailable), errors.Is(err, model.ErrNoRuleset):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.logger().Error("request failed", "err", err)
	}
	s.err(w, code, err.Error())
}

func (s *Server) err(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.err(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.err(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	return id, err == nil && id > 0
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
