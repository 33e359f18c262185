package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/marinaops/boatcare/internal/model"
)

// ErrAlreadyAssigned means the compare-and-set on assigned_provider_id lost:
// another resolution already wrote an assignment for the request.
var ErrAlreadyAssigned = errors.New("service request already assigned")

type RequestRepository interface {
	Create(ctx context.Context, req *model.ServiceRequest) error
	GetByID(ctx context.Context, id int64) (*model.ServiceRequest, error)
	// AssignProvider sets assigned_provider_id iff it is still unset.
	AssignProvider(ctx context.Context, id, providerID int64) error
	ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]model.ServiceRequest, int64, error)
}

type GormRequestRepository struct {
	db *gorm.DB
}

func NewGormRequestRepository(db *gorm.DB) *GormRequestRepository {
	return &GormRequestRepository{db: db}
}

func (r *GormRequestRepository) Create(ctx context.Context, req *model.ServiceRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *GormRequestRepository) GetByID(ctx context.Context, id int64) (*model.ServiceRequest, error) {
	var req model.ServiceRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *GormRequestRepository) AssignProvider(ctx context.Context, id, providerID int64) error {
	tx := r.db.WithContext(ctx).
		Model(&model.ServiceRequest{}).
		Where("id = ? AND assigned_provider_id IS NULL", id).
		Updates(map[string]any{
			"assigned_provider_id": providerID,
			"status":               model.RequestStatusAssigned,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		// Distinguish a lost race from a missing row.
		var req model.ServiceRequest
		if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
			return err
		}
		return ErrAlreadyAssigned
	}
	return nil
}

func (r *GormRequestRepository) ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]model.ServiceRequest, int64, error) {
	var (
		requests []model.ServiceRequest
		total    int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.ServiceRequest{}).
		Where("client_id = ?", clientID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
