package outbox

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

type Publisher struct {
	db        *gorm.DB
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   []string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(db *gorm.DB, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		db:        db,
		repo:      repo,
		logger:    logger,
		brokers:   cfg.Brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run drains unpublished outbox rows to Kafka until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer *kafka.Writer) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		for _, r := range records {
			msg := kafka.Message{
				Topic: r.EventType,
				Key:   []byte(strconv.FormatInt(r.AggregateID, 10)),
				Value: r.Payload,
				Headers: []kafka.Header{
					{Key: "event_id", Value: []byte(r.EventID.String())},
					{Key: "event_type", Value: []byte(r.EventType)},
					{Key: "aggregate_type", Value: []byte(r.AggregateType)},
				},
			}
			if err := writer.WriteMessages(ctx, msg); err != nil {
				return err
			}
		}

		ids := make([]int64, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		return p.repo.MarkPublished(ctx, tx, ids)
	})
}
