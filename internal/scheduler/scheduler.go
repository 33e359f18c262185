package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/marinaops/boatcare/internal/model"
	"github.com/marinaops/boatcare/internal/outbox"
	"github.com/marinaops/boatcare/internal/repository"
)

var (
	// ErrForbidden: the actor lacks authority for the requested action.
	ErrForbidden = errors.New("actor is not allowed to perform this action")
	// ErrInvalidTransition: the appointment state does not allow the action.
	ErrInvalidTransition = errors.New("appointment state does not allow this transition")
	// ErrInvalidSlot: the proposed slot fails basic validation.
	ErrInvalidSlot = errors.New("invalid appointment slot")
)

// ConflictError reports the first appointment colliding with the proposed
// window. Recoverable: the proposer picks a different slot; the scheduler
// never retries on its own.
type ConflictError struct {
	ExistingID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with appointment %d", e.ExistingID)
}

// Candidate is a proposed booking on a provider's calendar.
type Candidate struct {
	ProviderID  int64
	Day         datatypes.Date
	StartMinute int
	DurationMin *int64

	ClientID int64
	BoatID   *int64

	CreatorID int64
	InviteeID *int64

	// Optional initial status; the creator is authoritative at creation.
	// Empty means pending when an invitee is set, confirmed otherwise.
	Status      model.AppointmentStatus
	Description string
}

type Scheduler struct {
	db     *gorm.DB
	events *outbox.Repository
	logger *slog.Logger
}

func New(db *gorm.DB, events *outbox.Repository, logger *slog.Logger) *Scheduler {
	return &Scheduler{db: db, events: events, logger: logger}
}

// Propose validates the candidate slot against the provider's day and
// persists it. The per-(provider, day) advisory lock makes the
// check-then-insert sequence atomic: concurrent proposals for the same day
// serialize, and the loser sees the winner's row as a conflict.
func (s *Scheduler) Propose(ctx context.Context, cand Candidate) (*model.Appointment, error) {
	if err := validateCandidate(cand); err != nil {
		return nil, err
	}

	status := cand.Status
	if status == "" {
		if cand.InviteeID != nil {
			status = model.AppointmentStatusPending
		} else {
			status = model.AppointmentStatusConfirmed
		}
	}

	appt := &model.Appointment{
		ProviderID:  cand.ProviderID,
		Day:         cand.Day,
		StartMinute: cand.StartMinute,
		DurationMin: cand.DurationMin,
		ClientID:    cand.ClientID,
		BoatID:      cand.BoatID,
		CreatorID:   cand.CreatorID,
		InviteeID:   cand.InviteeID,
		Status:      status,
		Description: cand.Description,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewGormAppointmentRepository(tx)

		if err := repo.LockProviderDay(ctx, cand.ProviderID, cand.Day); err != nil {
			return fmt.Errorf("lock provider day: %w", err)
		}

		existing, err := repo.ListDay(ctx, cand.ProviderID, cand.Day, 0)
		if err != nil {
			return fmt.Errorf("load provider day: %w", err)
		}
		if id, ok := firstConflict(cand.StartMinute, appt.Duration(), existing); ok {
			return &ConflictError{ExistingID: id}
		}

		if err := repo.Create(ctx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return s.record(ctx, tx, appt, "appointment_created")
	})
	if err != nil {
		if repository.IsExclusionViolation(err) {
			// The store-level backstop fired before our check could see the
			// row; the colliding id is unknown at this point.
			return nil, &ConflictError{}
		}
		return nil, err
	}

	s.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"day", dayString(appt.Day),
		"status", appt.Status,
	)
	return appt, nil
}

// Respond records the invitee's decision on a pending appointment:
// accept confirms it, reject cancels it. Only the invitee may respond, and
// only while the appointment is pending.
func (s *Scheduler) Respond(ctx context.Context, appointmentID, actorID int64, accept bool) (*model.Appointment, error) {
	var appt *model.Appointment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewGormAppointmentRepository(tx)

		current, err := repo.GetByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if current.InviteeID == nil || *current.InviteeID != actorID {
			return ErrForbidden
		}
		if current.Status != model.AppointmentStatusPending {
			return ErrInvalidTransition
		}

		next := model.AppointmentStatusConfirmed
		eventType := "appointment_confirmed"
		if !accept {
			next = model.AppointmentStatusCancelled
			eventType = "appointment_cancelled"
		}

		if err := repo.UpdateStatus(ctx, appointmentID, next); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		current.Status = next
		appt = current
		return s.record(ctx, tx, current, eventType)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment responded",
		"appointment_id", appt.ID,
		"invitee_id", actorID,
		"status", appt.Status,
	)
	return appt, nil
}

// Changes holds the fields a creator may edit. Status is deliberately not
// among them: it moves only through Propose defaults and Respond.
type Changes struct {
	Day         *datatypes.Date
	StartMinute *int
	DurationMin *int64
	Description *string
}

func (c Changes) touchesTime() bool {
	return c.Day != nil || c.StartMinute != nil || c.DurationMin != nil
}

// Edit applies creator edits. Cancelled appointments are frozen, and any
// change to the slot window re-runs conflict detection against the target
// day, excluding the appointment itself.
func (s *Scheduler) Edit(ctx context.Context, appointmentID, actorID int64, changes Changes) (*model.Appointment, error) {
	var appt *model.Appointment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewGormAppointmentRepository(tx)

		current, err := repo.GetByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if current.CreatorID != actorID {
			return ErrForbidden
		}
		if current.Status == model.AppointmentStatusCancelled {
			return ErrInvalidTransition
		}

		fields := map[string]any{}
		day := current.Day
		startMinute := current.StartMinute
		duration := current.Duration()

		if changes.Day != nil {
			day = *changes.Day
			fields["day"] = *changes.Day
		}
		if changes.StartMinute != nil {
			if *changes.StartMinute < 0 || *changes.StartMinute >= minutesPerDay {
				return ErrInvalidSlot
			}
			startMinute = *changes.StartMinute
			fields["start_minute"] = *changes.StartMinute
		}
		if changes.DurationMin != nil {
			if *changes.DurationMin < 0 {
				return ErrInvalidSlot
			}
			duration = *changes.DurationMin
			fields["duration_min"] = *changes.DurationMin
		}
		if changes.Description != nil {
			fields["description"] = *changes.Description
		}
		if len(fields) == 0 {
			appt = current
			return nil
		}

		if changes.touchesTime() {
			if err := repo.LockProviderDay(ctx, current.ProviderID, day); err != nil {
				return fmt.Errorf("lock provider day: %w", err)
			}
			existing, err := repo.ListDay(ctx, current.ProviderID, day, appointmentID)
			if err != nil {
				return fmt.Errorf("load provider day: %w", err)
			}
			if id, ok := firstConflict(startMinute, duration, existing); ok {
				return &ConflictError{ExistingID: id}
			}
		}

		if err := repo.Updates(ctx, appointmentID, fields); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		updated, err := repo.GetByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		appt = updated
		return s.record(ctx, tx, updated, "appointment_updated")
	})
	if err != nil {
		if repository.IsExclusionViolation(err) {
			return nil, &ConflictError{}
		}
		return nil, err
	}

	return appt, nil
}

// Delete hard-removes an appointment. Only the creator may delete, in any
// state.
func (s *Scheduler) Delete(ctx context.Context, appointmentID, actorID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewGormAppointmentRepository(tx)

		current, err := repo.GetByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if current.CreatorID != actorID {
			return ErrForbidden
		}

		if err := repo.Delete(ctx, appointmentID); err != nil {
			return fmt.Errorf("delete appointment: %w", err)
		}
		return s.record(ctx, tx, current, "appointment_deleted")
	})
}

const minutesPerDay = 24 * 60

func validateCandidate(cand Candidate) error {
	if cand.ProviderID <= 0 || cand.ClientID <= 0 || cand.CreatorID <= 0 {
		return ErrInvalidSlot
	}
	if time.Time(cand.Day).IsZero() {
		return ErrInvalidSlot
	}
	if cand.StartMinute < 0 || cand.StartMinute >= minutesPerDay {
		return ErrInvalidSlot
	}
	if cand.DurationMin != nil && *cand.DurationMin < 0 {
		return ErrInvalidSlot
	}
	if cand.Status != "" && !cand.Status.Valid() {
		return ErrInvalidSlot
	}
	return nil
}

type appointmentEvent struct {
	AppointmentID int64  `json:"appointment_id"`
	ProviderID    int64  `json:"provider_id"`
	ClientID      int64  `json:"client_id"`
	Day           string `json:"day"`
	StartMinute   int    `json:"start_minute"`
	DurationMin   int64  `json:"duration_min"`
	Status        string `json:"status"`
}

func (s *Scheduler) record(ctx context.Context, tx *gorm.DB, appt *model.Appointment, eventType string) error {
	payload, err := json.Marshal(appointmentEvent{
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		ClientID:      appt.ClientID,
		Day:           dayString(appt.Day),
		StartMinute:   appt.StartMinute,
		DurationMin:   appt.Duration(),
		Status:        string(appt.Status),
	})
	if err != nil {
		return err
	}
	return s.events.Record(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func dayString(d datatypes.Date) string {
	return time.Time(d).Format("2006-01-02")
}
