package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RouteRisk/internal/recalc"
	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
)

// Assessor calculates and stores route assessments.
type Assessor interface {
	Recalculate(ctx context.Context, routeID uuid.UUID, trigger string) (*risk.RiskAssessment, bool, error)
	RecalculateBatch(ctx context.Context, routeIDs []string, trigger string) ([]risk.BatchResult, error)
}

// SnapshotReader returns the latest stored assessment, or nil when the route
// has never been assessed.
type SnapshotReader interface {
	GetLatestAssessment(ctx context.Context, routeID uuid.UUID) (*risk.RiskAssessment, error)
}

type RiskHandler struct {
	assessor  Assessor
	snapshots SnapshotReader
	policy    *risk.WeightPolicy
	grades    *risk.GradeTable
	logger    *slog.Logger
}

func NewRiskHandler(a Assessor, s SnapshotReader, policy *risk.WeightPolicy, grades *risk.GradeTable, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{assessor: a, snapshots: s, policy: policy, grades: grades, logger: logger}
}

// Calculate runs a fresh assessment and stores it as the latest snapshot.
// POST /api/v1/routes/{id}/risk
func (h *RiskHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": risk.ErrInvalidRouteID.Error()})
		return
	}

	a, stored, err := h.assessor.Recalculate(r.Context(), id, recalc.TriggerAPI)
	if err != nil {
		h.writeError(w, id.String(), err)
		return
	}
	w.Header().Set("X-Snapshot-Stored", strconv.FormatBool(stored))
	writeJSON(w, http.StatusOK, a)
}

// Latest returns the stored snapshot without recalculating.
// GET /api/v1/routes/{id}/risk
func (h *RiskHandler) Latest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": risk.ErrInvalidRouteID.Error()})
		return
	}

	a, err := h.snapshots.GetLatestAssessment(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no assessment for route"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type BatchRequest struct {
	RouteIDs []string `json:"route_ids"`
}

type BatchResponse struct {
	Results   []risk.BatchResult `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// Batch assesses several routes; one route failing never fails the request.
// POST /api/v1/risk/batch
func (h *RiskHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.RouteIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "route_ids required"})
		return
	}

	results, err := h.assessor.RecalculateBatch(r.Context(), req.RouteIDs, recalc.TriggerBatch)
	if err != nil {
		h.writeError(w, "", err)
		return
	}

	resp := BatchResponse{Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type policyFactor struct {
	Factor risk.FactorID `json:"factor"`
	Label  string        `json:"label"`
	Weight int           `json:"weight"`
}

// Policy reports the weights and grade bands in force.
// GET /api/v1/risk/policy
func (h *RiskHandler) Policy(w http.ResponseWriter, r *http.Request) {
	factors := make([]policyFactor, 0, len(h.policy.Factors()))
	for _, f := range h.policy.Factors() {
		factors = append(factors, policyFactor{Factor: f, Label: f.Label(), Weight: h.policy.Weight(f)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"factors": factors,
		"bands":   h.grades.Bands(),
	})
}

func (h *RiskHandler) writeError(w http.ResponseWriter, routeID string, err error) {
	var invErr *risk.AggregationInvariantError
	switch {
	case errors.Is(err, risk.ErrInvalidRouteID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, risk.ErrRouteNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, risk.ErrBatchTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
	case errors.As(err, &invErr):
		h.logger.Error("assessment invariant violated", "route_id", routeID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal scoring error"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
	default:
		h.logger.Error("assessment failed", "route_id", routeID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
