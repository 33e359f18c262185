package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/marinaops/boatcare/internal/model"
	"github.com/marinaops/boatcare/internal/outbox"
	"github.com/marinaops/boatcare/internal/repository"
)

type createRequestBody struct {
	ClientID     int64 `json:"client_id"`
	BoatID       int64 `json:"boat_id"`
	CapabilityID int64 `json:"capability_id"`
}

type requestResponse struct {
	RequestID          int64  `json:"request_id"`
	Status             string `json:"status"`
	AssignedProviderID *int64 `json:"assigned_provider_id"`
	ResolutionStage    string `json:"resolution_stage,omitempty"`
}

// createRequest persists a new service request and runs provider
// resolution. An unresolved outcome is a normal response: the request stays
// open for manual assignment.
func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json"})
		return
	}
	if body.ClientID <= 0 || body.BoatID <= 0 || body.CapabilityID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_required_fields"})
		return
	}

	ctx := r.Context()

	req := &model.ServiceRequest{
		ClientID:     body.ClientID,
		BoatID:       body.BoatID,
		CapabilityID: body.CapabilityID,
		Status:       model.RequestStatusOpen,
	}
	if err := h.requests.Create(ctx, req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	res, err := h.resolver.Resolve(ctx, body.BoatID, body.CapabilityID, body.ClientID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if !res.Resolved {
		h.logger.Info("service request unresolved",
			"request_id", req.ID,
			"boat_id", body.BoatID,
			"capability_id", body.CapabilityID,
		)
		writeJSON(w, http.StatusOK, requestResponse{
			RequestID:       req.ID,
			Status:          string(model.RequestStatusOpen),
			ResolutionStage: string(res.Stage),
		})
		return
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewGormRequestRepository(tx)
		if err := repo.AssignProvider(ctx, req.ID, res.ProviderID); err != nil {
			return err
		}
		payload, err := json.Marshal(map[string]any{
			"request_id":  req.ID,
			"provider_id": res.ProviderID,
			"stage":       res.Stage,
		})
		if err != nil {
			return err
		}
		return h.events.Record(ctx, tx, outbox.Event{
			AggregateType: "service_request",
			AggregateID:   req.ID,
			EventType:     "request_assigned",
			Payload:       payload,
		})
	})
	if err != nil {
		// A lost race means another resolution already assigned the
		// request; respond with the assignment that won.
		if errors.Is(err, repository.ErrAlreadyAssigned) {
			current, err := h.requests.GetByID(ctx, req.ID)
			if err != nil {
				h.writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, requestResponse{
				RequestID:          current.ID,
				Status:             string(current.Status),
				AssignedProviderID: current.AssignedProviderID,
			})
			return
		}
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("service request assigned",
		"request_id", req.ID,
		"provider_id", res.ProviderID,
		"stage", res.Stage,
	)
	writeJSON(w, http.StatusCreated, requestResponse{
		RequestID:          req.ID,
		Status:             string(model.RequestStatusAssigned),
		AssignedProviderID: &res.ProviderID,
		ResolutionStage:    string(res.Stage),
	})
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_id"})
		return
	}

	req, err := h.requests.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, requestResponse{
		RequestID:          req.ID,
		Status:             string(req.Status),
		AssignedProviderID: req.AssignedProviderID,
	})
}
