package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marinaops/boatcare/internal/model"
	"github.com/marinaops/boatcare/internal/outbox"
	"github.com/marinaops/boatcare/internal/repository"
	"github.com/marinaops/boatcare/internal/resolver"
	"github.com/marinaops/boatcare/internal/scheduler"
)

func newTestHandler(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	schema := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			display_name TEXT NOT NULL,
			contact_email TEXT,
			contact_phone TEXT,
			note TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			name TEXT
		);`,
		`CREATE TABLE user_roles (
			role_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (role_id, user_id)
		);`,
		`CREATE TABLE ports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE coverage_assignments (
			user_id INTEGER NOT NULL,
			port_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, port_id)
		);`,
		`CREATE TABLE capabilities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE provider_capabilities (
			user_id INTEGER NOT NULL,
			capability_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, capability_id)
		);`,
		`CREATE TABLE boats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL,
			port_id INTEGER,
			name TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE service_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL,
			boat_id INTEGER NOT NULL,
			capability_id INTEGER NOT NULL,
			assigned_provider_id INTEGER,
			status TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider_id INTEGER NOT NULL,
			day DATE NOT NULL,
			start_minute INTEGER NOT NULL,
			duration_min INTEGER,
			client_id INTEGER NOT NULL,
			boat_id INTEGER,
			creator_id INTEGER NOT NULL,
			invitee_id INTEGER,
			status TEXT NOT NULL,
			description TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE outbox_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			aggregate_type TEXT NOT NULL,
			aggregate_id INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			payload BLOB,
			created_at DATETIME,
			published_at DATETIME
		);`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := outbox.NewRepository()
	directoryRepo := repository.NewGormDirectoryRepository(db)

	h := NewHandler(
		db,
		resolver.New(directoryRepo),
		scheduler.New(db, events, logger),
		repository.NewGormRequestRepository(db),
		repository.NewGormAppointmentRepository(db),
		events,
		logger,
	)
	return h, db
}

func seedProvider(t *testing.T, db *gorm.DB, id int64, name string, portIDs ...int64) {
	t.Helper()
	if err := db.Create(&model.User{ID: id, DisplayName: name}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	var role model.Role
	if err := db.Where("code = ?", model.RoleProvider).First(&role).Error; err != nil {
		role = model.Role{Code: model.RoleProvider, Name: model.RoleProvider}
		if err := db.Create(&role).Error; err != nil {
			t.Fatalf("seed role: %v", err)
		}
	}
	if err := db.Create(&model.UserRole{RoleID: role.ID, UserID: id}).Error; err != nil {
		t.Fatalf("seed user role: %v", err)
	}
	for _, portID := range portIDs {
		if err := db.Create(&model.CoverageAssignment{UserID: id, PortID: portID}).Error; err != nil {
			t.Fatalf("seed coverage: %v", err)
		}
	}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreateRequest_AssignsByHistory(t *testing.T) {
	h, db := newTestHandler(t)
	routes := h.Routes()

	// Port X covered by P1 and P2, neither declares the capability, the
	// client booked P2 twice before: P2 must win.
	if err := db.Create(&model.Port{ID: 1, Name: "Port Said Marina"}).Error; err != nil {
		t.Fatalf("seed port: %v", err)
	}
	seedProvider(t, db, 11, "P1", 1)
	seedProvider(t, db, 12, "P2", 1)
	if err := db.Create(&model.User{ID: 100, DisplayName: "client"}).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if err := db.Create(&model.Capability{ID: 2, Name: "Maintenance"}).Error; err != nil {
		t.Fatalf("seed capability: %v", err)
	}
	portID := int64(1)
	if err := db.Create(&model.Boat{ID: 5, OwnerID: 100, PortID: &portID, Name: "Aurora"}).Error; err != nil {
		t.Fatalf("seed boat: %v", err)
	}
	assigned := int64(12)
	for i := 0; i < 2; i++ {
		req := model.ServiceRequest{
			ClientID:           100,
			BoatID:             5,
			CapabilityID:       2,
			AssignedProviderID: &assigned,
			Status:             model.RequestStatusAssigned,
			CreatedAt:          time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC),
		}
		if err := db.Create(&req).Error; err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	rec := doJSON(t, routes, http.MethodPost, "/requests", createRequestBody{
		ClientID: 100, BoatID: 5, CapabilityID: 2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[requestResponse](t, rec)
	if resp.AssignedProviderID == nil || *resp.AssignedProviderID != 12 {
		t.Fatalf("expected provider 12, got %+v", resp.AssignedProviderID)
	}
	if resp.ResolutionStage != "history" {
		t.Fatalf("expected history stage, got %q", resp.ResolutionStage)
	}
	if resp.Status != string(model.RequestStatusAssigned) {
		t.Fatalf("expected assigned, got %q", resp.Status)
	}
}

func TestCreateRequest_UnresolvedStaysOpen(t *testing.T) {
	h, db := newTestHandler(t)
	routes := h.Routes()

	if err := db.Create(&model.User{ID: 100, DisplayName: "client"}).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	// Boat without a home port.
	if err := db.Create(&model.Boat{ID: 5, OwnerID: 100, Name: "Drifter"}).Error; err != nil {
		t.Fatalf("seed boat: %v", err)
	}

	rec := doJSON(t, routes, http.MethodPost, "/requests", createRequestBody{
		ClientID: 100, BoatID: 5, CapabilityID: 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[requestResponse](t, rec)
	if resp.AssignedProviderID != nil {
		t.Fatalf("expected no assignment, got %d", *resp.AssignedProviderID)
	}
	if resp.Status != string(model.RequestStatusOpen) {
		t.Fatalf("expected open, got %q", resp.Status)
	}
}

func TestAppointmentFlow(t *testing.T) {
	h, _ := newTestHandler(t)
	routes := h.Routes()

	invitee := int64(2)
	dur := int64(60)
	propose := proposeAppointmentBody{
		ProviderID:  1,
		Day:         "2024-06-01",
		StartTime:   "09:00",
		DurationMin: &dur,
		ClientID:    100,
		CreatorID:   1,
		InviteeID:   &invitee,
	}

	rec := doJSON(t, routes, http.MethodPost, "/appointments", propose)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[appointmentResponse](t, rec)
	if created.Status != "pending" {
		t.Fatalf("expected pending, got %q", created.Status)
	}

	// Overlapping slot is rejected and names the colliding appointment.
	overlap := propose
	overlap.StartTime = "09:30"
	short := int64(30)
	overlap.DurationMin = &short
	rec = doJSON(t, routes, http.MethodPost, "/appointments", overlap)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	conflict := decode[errorResponse](t, rec)
	if conflict.ConflictingAppointmentID != created.ID {
		t.Fatalf("expected colliding id %d, got %d", created.ID, conflict.ConflictingAppointmentID)
	}

	// A later slot fits.
	free := propose
	free.StartTime = "10:00"
	free.DurationMin = &short
	free.InviteeID = nil
	rec = doJSON(t, routes, http.MethodPost, "/appointments", free)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	respondURL := fmt.Sprintf("/appointments/%d/respond", created.ID)

	// Creator cannot answer the invitation.
	rec = doJSON(t, routes, http.MethodPost, respondURL, respondBody{ActorID: 1, Decision: "accept"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	// Invitee confirms.
	rec = doJSON(t, routes, http.MethodPost, respondURL, respondBody{ActorID: 2, Decision: "accept"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	confirmed := decode[appointmentResponse](t, rec)
	if confirmed.Status != "confirmed" {
		t.Fatalf("expected confirmed, got %q", confirmed.Status)
	}

	// Responding again is an invalid transition.
	rec = doJSON(t, routes, http.MethodPost, respondURL, respondBody{ActorID: 2, Decision: "accept"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	// Only the creator may delete.
	rec = doJSON(t, routes, http.MethodDelete, fmt.Sprintf("/appointments/%d?actor_id=2", created.ID), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, routes, http.MethodDelete, fmt.Sprintf("/appointments/%d?actor_id=1", created.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, routes, http.MethodGet, fmt.Sprintf("/appointments/%d", created.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEditAppointment_MovesAndConflicts(t *testing.T) {
	h, _ := newTestHandler(t)
	routes := h.Routes()

	dur := int64(60)
	morning := proposeAppointmentBody{
		ProviderID: 1, Day: "2024-06-01", StartTime: "09:00", DurationMin: &dur,
		ClientID: 100, CreatorID: 1,
	}
	rec := doJSON(t, routes, http.MethodPost, "/appointments", morning)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	first := decode[appointmentResponse](t, rec)

	afternoon := morning
	afternoon.StartTime = "14:00"
	rec = doJSON(t, routes, http.MethodPost, "/appointments", afternoon)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	second := decode[appointmentResponse](t, rec)

	// Moving the afternoon slot into the morning one conflicts.
	into := "09:15"
	rec = doJSON(t, routes, http.MethodPatch, fmt.Sprintf("/appointments/%d", second.ID), editAppointmentBody{
		ActorID: 1, StartTime: &into,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	conflict := decode[errorResponse](t, rec)
	if conflict.ConflictingAppointmentID != first.ID {
		t.Fatalf("expected colliding id %d, got %d", first.ID, conflict.ConflictingAppointmentID)
	}

	// A non-creator cannot edit.
	desc := "rig check"
	rec = doJSON(t, routes, http.MethodPatch, fmt.Sprintf("/appointments/%d", second.ID), editAppointmentBody{
		ActorID: 9, Description: &desc,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	// Creator moves it to a free window.
	late := "16:00"
	rec = doJSON(t, routes, http.MethodPatch, fmt.Sprintf("/appointments/%d", second.ID), editAppointmentBody{
		ActorID: 1, StartTime: &late,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	moved := decode[appointmentResponse](t, rec)
	if moved.StartTime != "16:00" {
		t.Fatalf("expected 16:00, got %q", moved.StartTime)
	}
}
