package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/marinaops/boatcare/internal/model"
)

// HistoryStat aggregates a client's prior requests handled by one provider.
type HistoryStat struct {
	Count      int
	MostRecent time.Time
}

// DirectoryRepository is the read side of the directory store: reference
// data and the foreign-key set lookups the resolver runs on.
type DirectoryRepository interface {
	GetBoat(ctx context.Context, id int64) (*model.Boat, error)
	GetPort(ctx context.Context, id int64) (*model.Port, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	// Users covering the port that hold the provider role, ascending by id.
	ListPortProviders(ctx context.Context, portID int64) ([]int64, error)
	// Subset of userIDs declaring the capability, ascending by id.
	FilterByCapability(ctx context.Context, capabilityID int64, userIDs []int64) ([]int64, error)
	// Per-provider (count, most recent) over the client's prior requests.
	// Providers with no history are absent from the map.
	ClientHistory(ctx context.Context, clientID int64, providerIDs []int64) (map[int64]HistoryStat, error)
}

type GormDirectoryRepository struct {
	db *gorm.DB
}

func NewGormDirectoryRepository(db *gorm.DB) *GormDirectoryRepository {
	return &GormDirectoryRepository{db: db}
}

func (r *GormDirectoryRepository) GetBoat(ctx context.Context, id int64) (*model.Boat, error) {
	var b model.Boat
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormDirectoryRepository) GetPort(ctx context.Context, id int64) (*model.Port, error) {
	var p model.Port
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormDirectoryRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormDirectoryRepository) ListPortProviders(ctx context.Context, portID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Table("coverage_assignments").
		Joins("JOIN user_roles ON user_roles.user_id = coverage_assignments.user_id").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("coverage_assignments.port_id = ?", portID).
		Where("roles.code = ?", model.RoleProvider).
		Order("coverage_assignments.user_id ASC").
		Pluck("coverage_assignments.user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormDirectoryRepository) FilterByCapability(ctx context.Context, capabilityID int64, userIDs []int64) ([]int64, error) {
	if len(userIDs) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Table("provider_capabilities").
		Where("capability_id = ?", capabilityID).
		Where("user_id IN ?", userIDs).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormDirectoryRepository) ClientHistory(ctx context.Context, clientID int64, providerIDs []int64) (map[int64]HistoryStat, error) {
	if len(providerIDs) == 0 {
		return map[int64]HistoryStat{}, nil
	}

	var rows []model.ServiceRequest
	err := r.db.WithContext(ctx).
		Select("assigned_provider_id", "created_at").
		Where("client_id = ?", clientID).
		Where("assigned_provider_id IN ?", providerIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// A client's history is a handful of rows; aggregate here rather than
	// in dialect-specific SQL.
	stats := make(map[int64]HistoryStat)
	for _, row := range rows {
		if row.AssignedProviderID == nil {
			continue
		}
		s := stats[*row.AssignedProviderID]
		s.Count++
		if row.CreatedAt.After(s.MostRecent) {
			s.MostRecent = row.CreatedAt
		}
		stats[*row.AssignedProviderID] = s
	}
	return stats, nil
}
