package model

import "time"

type RequestStatus string

const (
	RequestStatusOpen     RequestStatus = "open"
	RequestStatusAssigned RequestStatus = "assigned"
	RequestStatusClosed   RequestStatus = "closed"
)

// service_requests
type ServiceRequest struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	ClientID     int64 `gorm:"not null;index"`
	BoatID       int64 `gorm:"not null;index"`
	CapabilityID int64 `gorm:"not null;index"`

	// Set at most once by the resolver; never reassigned automatically.
	AssignedProviderID *int64 `gorm:"index"`

	Status RequestStatus `gorm:"type:varchar(32);not null;index"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Client     *User       `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Boat       *Boat       `gorm:"foreignKey:BoatID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Capability *Capability `gorm:"foreignKey:CapabilityID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
