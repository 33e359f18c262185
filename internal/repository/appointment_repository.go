package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/marinaops/boatcare/internal/model"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt *model.Appointment) error
	GetByID(ctx context.Context, id int64) (*model.Appointment, error)
	// Non-cancelled appointments of the provider on the day, ordered by
	// start minute then id. excludeID > 0 skips the row being edited.
	ListDay(ctx context.Context, providerID int64, day datatypes.Date, excludeID int64) ([]model.Appointment, error)
	Updates(ctx context.Context, id int64, fields map[string]any) error
	UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus) error
	Delete(ctx context.Context, id int64) error
	// LockProviderDay serializes check-then-insert for one provider/day.
	// Must run inside a transaction; the lock is released on commit/rollback.
	LockProviderDay(ctx context.Context, providerID int64, day datatypes.Date) error
}

type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	return r.db.WithContext(ctx).Create(appt).Error
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) ListDay(ctx context.Context, providerID int64, day datatypes.Date, excludeID int64) ([]model.Appointment, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("provider_id = ?", providerID).
		Where("day = ?", day).
		Where("status <> ?", model.AppointmentStatusCancelled)

	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var appts []model.Appointment
	if err := q.Order("start_minute ASC, id ASC").Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *GormAppointmentRepository) Updates(ctx context.Context, id int64, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *GormAppointmentRepository) UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

func (r *GormAppointmentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Appointment{}, "id = ?", id).Error
}

func (r *GormAppointmentRepository) LockProviderDay(ctx context.Context, providerID int64, day datatypes.Date) error {
	if r.db.Dialector.Name() != "postgres" {
		// sqlite serializes writers on its own.
		return nil
	}
	epochDay := time.Time(day).Unix() / 86400
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?, ?)", int32(providerID), int32(epochDay)).
		Error
}

// IsExclusionViolation reports whether err is the Postgres exclusion
// constraint on overlapping appointment windows firing. The constraint is
// a backstop behind the advisory lock; see model.EnsureConstraints.
func IsExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
