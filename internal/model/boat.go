package model

import "time"

// boats
type Boat struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	OwnerID int64 `gorm:"not null;index"`
	// Home port. Nullable: a boat without a home port cannot be resolved
	// to a provider, but it is a valid row.
	PortID *int64 `gorm:"index"`

	Name string `gorm:"type:varchar(255);not null"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Port  *Port `gorm:"foreignKey:PortID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
