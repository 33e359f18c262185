package model

import (
	"time"

	"gorm.io/datatypes"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	// Completed is set by back-office tooling, never by the scheduler.
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed,
		AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

// appointments
//
// A slot is the half-open window [StartMinute, StartMinute+DurationMin)
// on the given calendar day. A nil duration is a zero-width instant.
type Appointment struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	// Owner of the calendar being booked.
	ProviderID int64          `gorm:"not null;index:idx_appointments_provider_day"`
	Day        datatypes.Date `gorm:"type:date;not null;index:idx_appointments_provider_day"`

	// Minutes from midnight, [0, 1440).
	StartMinute int    `gorm:"not null"`
	DurationMin *int64 `gorm:"type:bigint"`

	ClientID int64  `gorm:"not null;index"`
	BoatID   *int64 `gorm:"index"`

	CreatorID int64 `gorm:"not null;index"`
	// Optional second professional whose acceptance drives pending→confirmed.
	InviteeID *int64 `gorm:"index"`

	Status      AppointmentStatus `gorm:"type:varchar(32);not null;index"`
	Description string            `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Client  *User `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Boat    *Boat `gorm:"foreignKey:BoatID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Creator *User `gorm:"foreignKey:CreatorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Invitee *User `gorm:"foreignKey:InviteeID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// Duration returns the slot width in minutes, 0 when unset.
func (a *Appointment) Duration() int64 {
	if a.DurationMin == nil {
		return 0
	}
	return *a.DurationMin
}

// Day constructs a normalized calendar day (UTC midnight).
func Day(year int, month time.Month, day int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDay parses "2006-01-02" into a normalized calendar day.
func ParseDay(s string) (datatypes.Date, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return datatypes.Date{}, err
	}
	return datatypes.Date(t), nil
}
