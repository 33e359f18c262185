package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marinaops/boatcare/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   int64
	EventType     string
	Payload       []byte
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Record writes the event in the caller's transaction so it commits or
// rolls back together with the state change it describes.
func (r *Repository) Record(ctx context.Context, tx *gorm.DB, evt Event) error {
	row := model.OutboxEvent{
		EventID:       uuid.New(),
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		Payload:       evt.Payload,
	}
	return tx.WithContext(ctx).Create(&row).Error
}

func (r *Repository) FetchUnpublished(ctx context.Context, tx *gorm.DB, limit int) ([]model.OutboxEvent, error) {
	q := tx.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id ASC").
		Limit(limit)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var rows []model.OutboxEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) MarkPublished(ctx context.Context, tx *gorm.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return tx.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id IN ?", ids).
		Update("published_at", now).
		Error
}
