package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/codewithboateng/adlint/internal/model"
	"github.com/codewithboateng/adlint/internal/rules"
)

// GET /api/v1/rules?all=true&category=MEDICAL_CLAIM
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := s.Rules.Rules(parseBool(q.Get("all")))
	if err != nil {
		s.fail(w, err)
		return
	}
	if c := strings.TrimSpace(q.Get("category")); c != "" {
		cat, err := model.ParseCategory(c)
		if err != nil {
			s.fail(w, err)
			return
		}
		filtered := items[:0:0]
		for _, it := range items {
			if it.Category == cat {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items), "mode": s.Rules.Mode().String()})
}

func (s *Server) handleSearchRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	items, err := s.Rules.Search(q)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "items": items, "count": len(items)})
}

func (s *Server) handleRuleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Rules.Statistics()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.err(w, http.StatusBadRequest, "invalid id")
		return
	}
	rule, err := s.Rules.Get(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

type validateReq struct {
	Pattern string `json:"pattern"`
}

func (s *Server) handleValidatePattern(w http.ResponseWriter, r *http.Request) {
	var in validateReq
	if !s.decode(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, rules.ValidatePattern(in.Pattern))
}

type ruleReq struct {
	Pattern     string `json:"pattern"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	LegalBasis  string `json:"legal_basis"`
	Suggestion  string `json:"suggestion"`
	Description string `json:"description"`
	Group       string `json:"group_label"`
	Active      *bool  `json:"is_active"`
}

func (in ruleReq) rule() (model.Rule, error) {
	cat, err := model.ParseCategory(in.Category)
	if err != nil {
		return model.Rule{}, err
	}
	sev, err := model.ParseSeverity(in.Severity)
	if err != nil {
		return model.Rule{}, err
	}
	return model.Rule{
		Pattern:     in.Pattern,
		Category:    cat,
		Severity:    sev,
		LegalBasis:  in.LegalBasis,
		Suggestion:  in.Suggestion,
		Description: in.Description,
		Group:       in.Group,
		Active:      in.Active == nil || *in.Active,
	}, nil
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var in ruleReq
	if !s.decode(w, r, &in) {
		return
	}
	rule, err := in.rule()
	if err != nil {
		s.fail(w, err)
		return
	}
	id, err := s.Rules.AddRule(rule)
	if err != nil && id == 0 {
		s.fail(w, err)
		return
	}
	if err != nil {
		s.logger().Warn("rule saved but reload failed", "id", id, "err", err)
	}
	s.audit(r, "rules:create", id, map[string]any{"category": rule.Category, "severity": rule.Severity})
	created, gerr := s.Rules.Get(id)
	if gerr != nil {
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// PUT replaces every mutable field. An omitted is_active keeps the stored value.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.err(w, http.StatusBadRequest, "invalid id")
		return
	}
	var in ruleReq
	if !s.decode(w, r, &in) {
		return
	}
	rule, err := in.rule()
	if err != nil {
		s.fail(w, err)
		return
	}
	if in.Active == nil {
		cur, err := s.Rules.Get(id)
		if err != nil {
			s.fail(w, err)
			return
		}
		rule.Active = cur.Active
	}
	rule.ID = id
	out, err := s.Rules.UpdateRule(rule)
	if err != nil && out.ID == 0 {
		s.fail(w, err)
		return
	}
	if err != nil {
		s.logger().Warn("rule saved but reload failed", "id", id, "err", err)
	}
	s.audit(r, "rules:update", id, nil)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.err(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.Rules.DeleteRule(id); err != nil {
		s.fail(w, err)
		return
	}
	s.audit(r, "rules:delete", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			s.err(w, http.StatusBadRequest, "invalid id")
			return
		}
		var err error
		var out model.Rule
		if active {
			out, err = s.Rules.SetActive(id, true)
		} else {
			err = s.Rules.DeactivateRule(id)
			cur, gerr := s.Rules.Get(id)
			switch {
			case err == nil:
				out, err = cur, gerr
			case gerr == nil && !cur.Active:
				// A failed reload still leaves the rule saved as inactive.
				out = cur
			}
		}
		if err != nil && out.ID == 0 {
			s.fail(w, err)
			return
		}
		if err != nil {
			s.logger().Warn("rule saved but reload failed", "id", id, "err", err)
		}
		s.audit(r, "rules:set-active", id, map[string]any{"active": active})
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	err := s.Rules.Reload()
	s.Metrics.RecordReload(err == nil)
	if err != nil {
		s.fail(w, err)
		return
	}
	rs := s.Rules.Ruleset()
	s.observeRuleset()
	s.audit(r, "rules:reload", 0, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ruleset_version": rs.Version, "rules": rs.Len()})
}

func (s *Server) observeRuleset() {
	if rs := s.Rules.Ruleset(); rs != nil {
		s.Metrics.SetRuleset(rs.Version, rs.Len(), s.Rules.Mode().String())
	}
}

func (s *Server) audit(r *http.Request, action string, id int64, meta map[string]any) {
	s.observeRuleset()
	if s.Audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["request_id"] = requestIDFrom(r.Context())
	resource := ""
	if id > 0 {
		resource = fmt.Sprintf("rule:%d", id)
	}
	if err := s.Audit.LogAudit("admin", action, resource, meta); err != nil {
		s.logger().Warn("audit write failed", "action", action, "err", err)
	}
}
