package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"codeguardian/internal/errors"
	"codeguardian/types"
)

// defaultSearchLimit bounds knowledge-store queries with no explicit limit
const defaultSearchLimit = 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	errors.SendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// handleAnalyze analyzes one in-memory document.
// POST body: {"fileName": "...", "source": "..."}
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"fileName"`
		Source   string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.SendError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}
	if req.Source == "" {
		errors.SendError(w, errors.NewValidationError("source is required", nil))
		return
	}

	result := s.engine.AnalyzeSource(r.Context(), req.FileName, req.Source)
	errors.SendSuccess(w, result)
}

// handleAnalyzeBatch queues a directory analysis job.
// POST body: {"root": "..."}
func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Root string `json:"root"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Root == "" {
		errors.SendError(w, errors.NewValidationError("root is required", nil))
		return
	}

	job, err := s.jobs.Submit(req.Root)
	if err != nil {
		errors.SendError(w, errors.NewAppError(errors.ErrorTypeConflict, "JOB_REJECTED", err.Error(), nil))
		return
	}
	errors.SendSuccess(w, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	errors.SendSuccess(w, map[string]interface{}{
		"jobs":  s.jobs.Jobs(),
		"queue": s.jobs.QueueStatus(),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := s.jobs.Job(id)
	if !ok {
		errors.SendError(w, errors.NewNotFoundError("job "+id))
		return
	}
	errors.SendSuccess(w, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.jobs.Cancel(id); err != nil {
		errors.SendError(w, errors.NewAppError(errors.ErrorTypeConflict, "CANCEL_FAILED", err.Error(), nil))
		return
	}
	errors.SendSuccess(w, map[string]interface{}{"cancelled": id})
}

func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions := s.engine.Suggestions()
	errors.SendSuccess(w, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// handleGenerateSuggestions generates remediations for submitted issues.
// POST body: {"issues": [...]}
func (s *Server) handleGenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Issues []types.Issue `json:"issues"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.SendError(w, errors.NewValidationError("Invalid request body", nil))
		return
	}
	if len(req.Issues) == 0 {
		errors.SendError(w, errors.NewValidationError("issues are required", nil))
		return
	}

	suggestions := s.engine.GenerateSuggestions(r.Context(), req.Issues)
	errors.SendSuccess(w, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

func (s *Server) handleClearSuggestions(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearSuggestionCache()
	errors.SendSuccess(w, map[string]interface{}{"cleared": true})
}

func (s *Server) handleApplySuggestion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	suggestion, err := s.engine.ApplySuggestion(r.Context(), id)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			errors.SendError(w, appErr)
		} else {
			errors.SendError(w, errors.NewInternalError("Failed to apply suggestion", err))
		}
		return
	}
	errors.SendSuccess(w, suggestion)
}

func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	ruleSet := s.engine.RuleSet()
	errors.SendSuccess(w, map[string]interface{}{
		"version":     ruleSet.Version,
		"rules":       ruleSet.Rules,
		"quarantined": s.engine.Quarantined(),
	})
}

func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	s.engine.ReloadRules()
	ruleSet := s.engine.RuleSet()
	errors.SendSuccess(w, map[string]interface{}{
		"version":     ruleSet.Version,
		"ruleCount":   len(ruleSet.Rules),
		"quarantined": s.engine.Quarantined(),
	})
}

// handleSearch queries the knowledge store.
// Query params: q (required), type (issues|suggestions), limit
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		errors.SendError(w, errors.NewValidationError("query parameter q is required", nil))
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	kind := r.URL.Query().Get("type")
	switch kind {
	case "suggestions":
		results, err := s.engine.SearchSuggestions(r.Context(), query, limit)
		if err != nil {
			errors.SendError(w, errors.NewInternalError("Suggestion search failed", err))
			return
		}
		errors.SendSuccess(w, map[string]interface{}{"suggestions": results, "count": len(results)})
	case "issues", "":
		results, err := s.engine.SearchIssues(r.Context(), query, limit)
		if err != nil {
			errors.SendError(w, errors.NewInternalError("Issue search failed", err))
			return
		}
		errors.SendSuccess(w, map[string]interface{}{"issues": results, "count": len(results)})
	default:
		errors.SendError(w, errors.NewValidationError("type must be issues or suggestions", nil))
	}
}

// handleListAlerts lists alerts; ?active=true filters to unresolved ones
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("active") == "true" {
		alerts := s.engine.ActiveAlerts()
		errors.SendSuccess(w, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
		return
	}
	alerts := s.engine.Alerts()
	errors.SendSuccess(w, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.engine.ResolveAlert(id) {
		errors.SendError(w, errors.NewNotFoundError("alert "+id))
		return
	}
	errors.SendSuccess(w, map[string]interface{}{"resolved": id})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := collectSystemMetrics(r.Context())
	metrics["connections"] = s.hub.ConnectionCount()
	errors.SendSuccess(w, metrics)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status()
	status["jobs"] = s.jobs.QueueStatus()
	status["connections"] = s.hub.ConnectionCount()
	errors.SendSuccess(w, status)
}
