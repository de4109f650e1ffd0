package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/avdeyev/techcard-service/internal/domain"
	"github.com/avdeyev/techcard-service/internal/logger"
)

// StageLister provides the deal stage directory from CRM.
type StageLister interface {
	ListDealStages(ctx context.Context) ([]domain.DealStage, error)
}

const stageCacheKey = "deal_stages"

// StageHandler serves the deal stage directory with a short-lived cache so
// the authoring UI does not hammer CRM on every dropdown render.
type StageHandler struct {
	crm   StageLister
	cache *expirable.LRU[string, []domain.DealStage]
}

// NewStageHandler builds a stage handler with the given cache TTL.
func NewStageHandler(crm StageLister, ttl time.Duration) *StageHandler {
	return &StageHandler{
		crm:   crm,
		cache: expirable.NewLRU[string, []domain.DealStage](1, nil, ttl),
	}
}

// HandleListStages returns all CRM deal stages.
// @Summary List deal stages
// @Tags stages
// @Produce json
// @Success 200 {array} domain.DealStage
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/stages [get]
func (h *StageHandler) HandleListStages(w http.ResponseWriter, r *http.Request) {
	if stages, ok := h.cache.Get(stageCacheKey); ok {
		respondJSON(w, http.StatusOK, stages)
		return
	}

	stages, err := h.crm.ListDealStages(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list deal stages", "error", err)
		status, msg := mapServiceErrorToUserMessage(err)
		respondError(w, status, msg)
		return
	}

	h.cache.Add(stageCacheKey, stages)
	respondJSON(w, http.StatusOK, stages)
}
