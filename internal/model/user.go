package model

import "time"

// users
type User struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	DisplayName  string `gorm:"type:varchar(255);not null"`
	ContactEmail string `gorm:"type:varchar(255)"`
	ContactPhone string `gorm:"type:varchar(32)"`

	Note string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
