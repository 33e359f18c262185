package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/marinaops/boatcare/internal/outbox"
	"github.com/marinaops/boatcare/internal/repository"
	"github.com/marinaops/boatcare/internal/resolver"
	"github.com/marinaops/boatcare/internal/scheduler"
)

// Handler is the thin request/booking surface: it composes the resolver and
// the scheduler with the directory store. Actor identity always arrives in
// the request payload; nothing here reads ambient session state.
type Handler struct {
	db        *gorm.DB
	resolver  *resolver.Resolver
	scheduler *scheduler.Scheduler
	requests  repository.RequestRepository
	appts     repository.AppointmentRepository
	events    *outbox.Repository
	logger    *slog.Logger
}

func NewHandler(
	db *gorm.DB,
	res *resolver.Resolver,
	sched *scheduler.Scheduler,
	requests repository.RequestRepository,
	appts repository.AppointmentRepository,
	events *outbox.Repository,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		db:        db,
		resolver:  res,
		scheduler: sched,
		requests:  requests,
		appts:     appts,
		events:    events,
		logger:    logger,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /requests", h.createRequest)
	mux.HandleFunc("GET /requests/{id}", h.getRequest)

	mux.HandleFunc("POST /appointments", h.proposeAppointment)
	mux.HandleFunc("GET /appointments/{id}", h.getAppointment)
	mux.HandleFunc("POST /appointments/{id}/respond", h.respondAppointment)
	mux.HandleFunc("PATCH /appointments/{id}", h.editAppointment)
	mux.HandleFunc("DELETE /appointments/{id}", h.deleteAppointment)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error                    string `json:"error"`
	ConflictingAppointmentID int64  `json:"conflicting_appointment_id,omitempty"`
}

// writeDomainError maps the core error taxonomy onto HTTP statuses.
// Anything that is neither a domain outcome nor "not found" is treated as
// the store being unavailable, never as an empty result.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var conflict *scheduler.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:                    "conflict",
			ConflictingAppointmentID: conflict.ExistingID,
		})
	case errors.Is(err, scheduler.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, scheduler.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "invalid_transition"})
	case errors.Is(err, scheduler.ErrInvalidSlot):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid_slot"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	default:
		h.logger.Error("store operation failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store_unavailable"})
	}
}

// parseClock parses "HH:MM" into minutes from midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
