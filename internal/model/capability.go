package model

import "time"

// capabilities — named service categories ("Maintenance", "Sale", ...).
type Capability struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// provider_capabilities — which capabilities a provider declares (composite PK).
type ProviderCapability struct {
	UserID       int64 `gorm:"primaryKey;index"`
	CapabilityID int64 `gorm:"primaryKey;index"`

	User       *User       `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Capability *Capability `gorm:"foreignKey:CapabilityID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
