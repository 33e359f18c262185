package model

import "gorm.io/gorm"

// AutoMigrate migrates all entities of the marketplace core.
func AutoMigrate(db *gorm.DB) error {
	if err := autoMigrate(db); err != nil {
		return err
	}
	return EnsureConstraints(db)
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Role{},
		&UserRole{},
		&Port{},
		&CoverageAssignment{},
		&Capability{},
		&ProviderCapability{},
		&Boat{},
		&ServiceRequest{},
		&Appointment{},
		&OutboxEvent{},
	)
}

// EnsureConstraints installs the Postgres-only exclusion constraint on
// overlapping appointment windows. The advisory lock in the scheduler is the
// authoritative guard; the constraint backstops writes that bypass it.
// Zero-width windows produce empty ranges, which the constraint ignores;
// those are handled by the in-transaction check only.
func EnsureConstraints(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return err
	}
	return db.Exec(`
		DO $$ BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'appointments_no_overlap'
			) THEN
				ALTER TABLE appointments ADD CONSTRAINT appointments_no_overlap
				EXCLUDE USING gist (
					provider_id WITH =,
					day WITH =,
					int4range(start_minute, start_minute + GREATEST(COALESCE(duration_min, 0), 0)::int) WITH &&
				) WHERE (status <> 'cancelled');
			END IF;
		END $$;
	`).Error
}
