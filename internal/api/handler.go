package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/janus-audit/janus/internal/casefile"
	"github.com/janus-audit/janus/internal/domain"
	"github.com/janus-audit/janus/internal/explain"
	"github.com/janus-audit/janus/internal/pipeline"
	"github.com/janus-audit/janus/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	pipe    *pipeline.Pipeline
	cases   *casefile.Manager
	tagger  *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, pipe *pipeline.Pipeline, cases *casefile.Manager, tagger *rules.Engine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		pipe:    pipe,
		cases:   cases,
		tagger:  tagger,
		version: version,
	}
}

// ModuleScoreInput is one detection module's output for a transaction.
type ModuleScoreInput struct {
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence,omitempty"`
}

// ScoreRequest is the request body for POST /score.
type ScoreRequest struct {
	TransactionID string                      `json:"transactionId"`
	Amount        float64                     `json:"amount"`
	Department    string                      `json:"department,omitempty"`
	VendorID      string                      `json:"vendorId,omitempty"`
	OfficialID    string                      `json:"officialId,omitempty"`
	Date          string                      `json:"date,omitempty"` // YYYY-MM-DD
	Scores        map[string]ModuleScoreInput `json:"scores"`
}

// ScoreResponse is the response for POST /score.
type ScoreResponse struct {
	TransactionID string           `json:"transactionId"`
	Meta          domain.MetaScore `json:"meta"`
	CaseID        string           `json:"caseId,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

func (r *ScoreRequest) toScores() (*domain.TransactionScores, error) {
	if r.TransactionID == "" {
		return nil, errors.New("transactionId is required")
	}
	if r.Amount < 0 {
		return nil, errors.New("amount must not be negative")
	}

	ts := &domain.TransactionScores{
		TransactionID: r.TransactionID,
		Amount:        r.Amount,
		Department:    r.Department,
		VendorID:      r.VendorID,
		OfficialID:    r.OfficialID,
		Scores:        make(map[domain.ModuleID]domain.ModuleScore, len(r.Scores)),
	}

	if r.Date != "" {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, errors.New("date must be YYYY-MM-DD")
		}
		ts.Date = d
	}

	for name, in := range r.Scores {
		id := domain.ModuleID(name)
		if !domain.ValidModule(id) {
			return nil, errors.New("unknown module: " + name)
		}
		ts.Scores[id] = domain.ModuleScore{
			Module:   id,
			Score:    in.Score,
			Present:  true,
			Evidence: in.Evidence,
		}
	}
	return ts, nil
}

// Score handles POST /score requests.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	ts, err := req.toScores()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	res, err := h.pipe.Score(ctx, tenantID, ts)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientSignal) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  "no module produced a usable score",
				"reason": domain.RejectInsufficientSignal,
			})
			return
		}
		slog.Error("scoring failed", "tx_id", ts.TransactionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
		return
	}

	resp := ScoreResponse{
		TransactionID: res.TransactionID,
		Meta:          res.Meta,
		Warnings:      res.Warnings,
	}
	if res.Case != nil {
		resp.CaseID = res.Case.ID
		resp.Tags = res.Case.Tags
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// BatchRequest is the request body for POST /score/batch.
type BatchRequest struct {
	Transactions []ScoreRequest `json:"transactions"`
}

// BatchResponse is the response for POST /score/batch.
type BatchResponse struct {
	Results    []*pipeline.Result `json:"results"`
	Rejections []domain.Rejection `json:"rejections,omitempty"`
	Stats      domain.BatchStats  `json:"stats"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// ScoreBatch handles POST /score/batch requests. Malformed entries
// become rejections in the response rather than failing the batch,
// so a 200 can still carry per-transaction errors.
func (h *Handler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions must not be empty",
		})
		return
	}

	batch := make([]*domain.TransactionScores, 0, len(req.Transactions))
	var rejections []domain.Rejection
	for _, sr := range req.Transactions {
		ts, err := sr.toScores()
		if err != nil {
			rejections = append(rejections, domain.Rejection{
				TransactionID: sr.TransactionID,
				Reason:        domain.RejectInvalidInput,
				Detail:        err.Error(),
			})
			continue
		}
		batch = append(batch, ts)
	}

	br := h.pipe.ScoreBatch(ctx, tenantID, batch)
	pipeline.Rank(br.Results)

	resp := BatchResponse{
		Results:    br.Results,
		Rejections: append(rejections, br.Rejections...),
		Stats:      br.Stats,
	}
	resp.Stats.Rejected = len(resp.Rejections)
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListCases returns cases filtered by query parameters, ordered by
// priority descending.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	q := r.URL.Query()
	filter := domain.CaseFilter{
		Status:     domain.CaseStatus(q.Get("status")),
		RiskLevel:  domain.RiskLevel(q.Get("riskLevel")),
		Department: q.Get("department"),
		VendorID:   q.Get("vendorId"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "offset must be a non-negative integer",
			})
			return
		}
		filter.Offset = n
	}

	cases, err := h.repo.ListCases(ctx, tenantID, filter)
	if err != nil {
		slog.Error("failed to list cases", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list cases",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": len(cases),
	})
}

// GetCase retrieves a case by ID.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	c, err := h.repo.GetCase(ctx, tenantID, caseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "case not found",
			})
			return
		}
		slog.Error("failed to get case", "case_id", caseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get case",
		})
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// GetReport retrieves a case's evidence report. With ?format=text the
// rendered investigation report is returned as plain text.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	rep, err := h.repo.GetReport(ctx, tenantID, caseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "report not found",
			})
			return
		}
		slog.Error("failed to get report", "case_id", caseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get report",
		})
		return
	}

	if r.URL.Query().Get("format") == "text" {
		c, err := h.repo.GetCase(ctx, tenantID, caseID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "case not found",
			})
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(explain.Render(c, rep)))
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// ReviewRequest is the request body for claim and close actions.
type ReviewRequest struct {
	Investigator string `json:"investigator"`
	Resolution   string `json:"resolution,omitempty"`
}

// ClaimCase moves a NEW case to UNDER_REVIEW on behalf of an investigator.
func (h *Handler) ClaimCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Investigator == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "investigator is required",
		})
		return
	}

	c, err := h.cases.Claim(ctx, tenantID, caseID, req.Investigator)
	if err != nil {
		h.writeCaseError(w, caseID, err)
		return
	}

	slog.Info("case claimed", "case_id", caseID, "investigator", req.Investigator)
	writeJSON(w, http.StatusOK, c)
}

// CloseCase moves an UNDER_REVIEW case to CLOSED with a resolution.
func (h *Handler) CloseCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "id")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Investigator == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "investigator is required",
		})
		return
	}

	c, err := h.cases.Close(ctx, tenantID, caseID, req.Investigator, req.Resolution)
	if err != nil {
		h.writeCaseError(w, caseID, err)
		return
	}

	slog.Info("case closed", "case_id", caseID, "investigator", req.Investigator)
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) writeCaseError(w http.ResponseWriter, caseID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "case not found",
		})
	case errors.Is(err, domain.ErrBadTransition):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrSuperseded):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "case was updated concurrently",
		})
	default:
		slog.Error("case update failed", "case_id", caseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "case update failed",
		})
	}
}

// ListRules returns all tag rules currently loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.tagger.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a tag rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.tagger.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a tag rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Tag         string `json:"tag"`
	Enabled     bool   `json:"enabled"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new tag rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Tag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and tag are required",
		})
		return
	}

	ruleConfig := &domain.TagRuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Tag:         req.Tag,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression by attempting to load it
	if err := h.tagger.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveTagRule(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save tag rule", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("tag rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule removes a tag rule from the database and reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteTagRule(ctx, GlobalTenantID, ruleID); err != nil {
		slog.Error("failed to delete tag rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	// Reload the engine so the deleted rule stops firing
	dbRules, err := h.repo.ListTagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to reload rules after delete", "error", err)
	} else if err := h.tagger.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
	}

	slog.Info("tag rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadRules reloads all tag rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListTagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.tagger.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("tag rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
