package model

// Role codes used by the resolver when narrowing a port's coverage set.
const (
	RoleClient   = "client"
	RoleProvider = "provider"
)

// roles
type Role struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Code string `gorm:"type:varchar(32);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(255)"`
}

// user_roles — links users to roles (composite PK)
type UserRole struct {
	RoleID int64 `gorm:"primaryKey;index"`
	UserID int64 `gorm:"primaryKey;index"`

	Role *Role `gorm:"foreignKey:RoleID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
