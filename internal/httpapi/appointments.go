package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/marinaops/boatcare/internal/model"
	"github.com/marinaops/boatcare/internal/scheduler"
)

type proposeAppointmentBody struct {
	ProviderID  int64  `json:"provider_id"`
	Day         string `json:"day"`        // "2006-01-02"
	StartTime   string `json:"start_time"` // "15:04"
	DurationMin *int64 `json:"duration_min"`
	ClientID    int64  `json:"client_id"`
	BoatID      *int64 `json:"boat_id"`
	CreatorID   int64  `json:"creator_id"`
	InviteeID   *int64 `json:"invitee_id"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

type appointmentResponse struct {
	ID          int64  `json:"id"`
	ProviderID  int64  `json:"provider_id"`
	Day         string `json:"day"`
	StartTime   string `json:"start_time"`
	DurationMin *int64 `json:"duration_min"`
	ClientID    int64  `json:"client_id"`
	BoatID      *int64 `json:"boat_id,omitempty"`
	CreatorID   int64  `json:"creator_id"`
	InviteeID   *int64 `json:"invitee_id,omitempty"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

func toAppointmentResponse(a *model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:          a.ID,
		ProviderID:  a.ProviderID,
		Day:         time.Time(a.Day).Format("2006-01-02"),
		StartTime:   formatClock(a.StartMinute),
		DurationMin: a.DurationMin,
		ClientID:    a.ClientID,
		BoatID:      a.BoatID,
		CreatorID:   a.CreatorID,
		InviteeID:   a.InviteeID,
		Status:      string(a.Status),
		Description: a.Description,
	}
}

func (h *Handler) proposeAppointment(w http.ResponseWriter, r *http.Request) {
	var body proposeAppointmentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json"})
		return
	}

	day, err := model.ParseDay(body.Day)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_day"})
		return
	}
	startMinute, err := parseClock(body.StartTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_start_time"})
		return
	}

	appt, err := h.scheduler.Propose(r.Context(), scheduler.Candidate{
		ProviderID:  body.ProviderID,
		Day:         day,
		StartMinute: startMinute,
		DurationMin: body.DurationMin,
		ClientID:    body.ClientID,
		BoatID:      body.BoatID,
		CreatorID:   body.CreatorID,
		InviteeID:   body.InviteeID,
		Status:      model.AppointmentStatus(body.Status),
		Description: body.Description,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	appt, err := h.appts.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

type respondBody struct {
	ActorID  int64  `json:"actor_id"`
	Decision string `json:"decision"` // "accept" or "reject"
}

func (h *Handler) respondAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json"})
		return
	}
	if body.ActorID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_actor_id"})
		return
	}
	if body.Decision != "accept" && body.Decision != "reject" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_decision"})
		return
	}

	appt, err := h.scheduler.Respond(r.Context(), id, body.ActorID, body.Decision == "accept")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

type editAppointmentBody struct {
	ActorID     int64   `json:"actor_id"`
	Day         *string `json:"day"`
	StartTime   *string `json:"start_time"`
	DurationMin *int64  `json:"duration_min"`
	Description *string `json:"description"`
}

func (h *Handler) editAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body editAppointmentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json"})
		return
	}
	if body.ActorID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_actor_id"})
		return
	}

	changes := scheduler.Changes{
		DurationMin: body.DurationMin,
		Description: body.Description,
	}
	if body.Day != nil {
		day, err := model.ParseDay(*body.Day)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_day"})
			return
		}
		changes.Day = &day
	}
	if body.StartTime != nil {
		startMinute, err := parseClock(*body.StartTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_start_time"})
			return
		}
		changes.StartMinute = &startMinute
	}

	appt, err := h.scheduler.Edit(r.Context(), id, body.ActorID, changes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	actorID, err := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err != nil || actorID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_actor_id"})
		return
	}

	if err := h.scheduler.Delete(r.Context(), id, actorID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_id"})
		return 0, false
	}
	return id, true
}
