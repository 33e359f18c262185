package model

// Port is a coverage area: boats have a home port, providers cover ports.
// Immutable reference data.
type Port struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex"`
}

// coverage_assignments — which providers service which ports (composite PK).
// A provider may cover several ports, a port may have several providers.
type CoverageAssignment struct {
	UserID int64 `gorm:"primaryKey;index"`
	PortID int64 `gorm:"primaryKey;index"`

	User *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Port *Port `gorm:"foreignKey:PortID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
