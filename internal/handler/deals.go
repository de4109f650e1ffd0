package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avdeyev/techcard-service/internal/domain"
	"github.com/avdeyev/techcard-service/internal/logger"
	"github.com/avdeyev/techcard-service/internal/production"
)

// HandleProcessDealProducts runs production from a deal's product lines,
// for manual or re-run triggering from the ops side.
// @Summary Produce a deal's product lines
// @Description Matches every product line of the deal against the tech cards by product name and runs the matches
// @Tags deals
// @Produce json
// @Param dealID path string true "Deal ID"
// @Success 200 {object} domain.ProcessingReport
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/deals/{dealID}/process [post]
func HandleProcessDealProducts(svc production.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		dealID := chi.URLParam(r, "dealID")

		report, err := svc.ProcessDealProducts(r.Context(), dealID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidEvent):
				respondError(w, http.StatusBadRequest, ErrMsgInvalidRequestError)
			case errors.Is(err, domain.ErrRecipeLookup):
				log.Error("Recipe store unavailable", "error", err)
				respondError(w, http.StatusServiceUnavailable, ErrMsgRecipeStoreDown)
			case errors.Is(err, domain.ErrDealLookup):
				log.Error("Deal lookup failed", "dealId", dealID, "error", err)
				respondError(w, http.StatusBadGateway, ErrMsgDealLookup)
			default:
				log.Error("Production run failed", "dealId", dealID, "error", err)
				respondError(w, http.StatusInternalServerError, ErrMsgInternalError)
			}
			return
		}

		respondJSON(w, http.StatusOK, report)
	}
}
