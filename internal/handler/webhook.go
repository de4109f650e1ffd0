package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/avdeyev/techcard-service/internal/domain"
	"github.com/avdeyev/techcard-service/internal/event"
	"github.com/avdeyev/techcard-service/internal/logger"
	"github.com/avdeyev/techcard-service/internal/metrics"
	"github.com/avdeyev/techcard-service/internal/production"
)

// WebhookRequest mirrors the Bitrix24 outgoing webhook payload for deal events.
type WebhookRequest struct {
	Event string `json:"event" validate:"required,crmevent"`
	Data  struct {
		Fields struct {
			ID      string `json:"ID"`
			StageID string `json:"STAGE_ID"`
		} `json:"FIELDS"`
	} `json:"data"`
}

// WebhookAck is returned when an event is acknowledged without processing.
type WebhookAck struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

const (
	ackIgnored       = "ignored"
	ackNoStageChange = "no_stage_change"
)

// HandleBitrixWebhook receives deal stage-change notifications and runs
// production for every tech card bound to the new stage.
// @Summary Process a CRM deal event
// @Description Accepts Bitrix24 ONCRMDEALADD/ONCRMDEALUPDATE notifications and executes matching tech cards
// @Tags webhook
// @Accept json
// @Produce json
// @Param multiplier query int false "Batch multiplier, defaults to 1"
// @Success 200 {object} domain.ProcessingReport
// @Failure 400 {object} ErrorResponse
// @Router /webhook/bitrix [post]
func HandleBitrixWebhook(svc production.Service, bus event.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req WebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Warn("Failed to decode webhook payload", "error", err)
			metrics.WebhookEvents.WithLabelValues("invalid").Inc()
			respondError(w, http.StatusBadRequest, ErrMsgInvalidJSON)
			return
		}

		if !ValidCRMEvents[req.Event] {
			log.Info("Ignoring non-deal event", "event", req.Event)
			metrics.WebhookEvents.WithLabelValues(ackIgnored).Inc()
			publishWebhook(r, bus, req, ackIgnored)
			respondJSON(w, http.StatusOK, WebhookAck{Status: ackIgnored, Reason: "unsupported event"})
			return
		}

		dealID := req.Data.Fields.ID
		if dealID == "" {
			log.Warn("Webhook payload missing deal ID", "event", req.Event)
			metrics.WebhookEvents.WithLabelValues("invalid").Inc()
			respondError(w, http.StatusBadRequest, ErrMsgMissingDealID)
			return
		}

		stageID := req.Data.Fields.StageID
		if stageID == "" {
			log.Info("Deal event carries no stage change", "dealId", dealID, "event", req.Event)
			metrics.WebhookEvents.WithLabelValues(ackNoStageChange).Inc()
			publishWebhook(r, bus, req, ackNoStageChange)
			respondJSON(w, http.StatusOK, WebhookAck{Status: ackNoStageChange})
			return
		}

		multiplier, err := parseMultiplier(r.URL.Query().Get("multiplier"))
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrMsgInvalidMultiplier)
			return
		}

		publishWebhook(r, bus, req, "accepted")

		report, err := svc.ProcessStageChangeScaled(r.Context(), dealID, stageID, multiplier)
		if err != nil {
			metrics.WebhookEvents.WithLabelValues("error").Inc()
			switch {
			case errors.Is(err, domain.ErrInvalidEvent):
				respondError(w, http.StatusBadRequest, ErrMsgInvalidEvent)
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

		metrics.WebhookEvents.WithLabelValues(string(report.Status)).Inc()
		respondJSON(w, http.StatusOK, report)
	}
}

func parseMultiplier(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("multiplier must be a positive integer")
	}
	return n, nil
}

func publishWebhook(r *http.Request, bus event.Bus, req WebhookRequest, outcome string) {
	if bus == nil {
		return
	}
	eventType := event.WebhookReceived
	if outcome == ackIgnored || outcome == ackNoStageChange {
		eventType = event.WebhookIgnored
	}
	evt := event.NewWebhookEvent(eventType, req.Event, req.Data.Fields.ID, outcome)
	_ = bus.Publish(r.Context(), evt)
}
