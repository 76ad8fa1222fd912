package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warbler-social/warbler/internal/config"
	"github.com/warbler-social/warbler/internal/models"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/pkg/logger"
	"github.com/warbler-social/warbler/pkg/queue"
)

// ActivityWorker drains the activity topic into the activity_events table and
// ages out old rows. The log is display-only, so a failed insert is logged
// and skipped rather than retried.
type ActivityWorker struct {
	activityRepo *repository.ActivityRepository
	consumer     *queue.KafkaConsumer
	cfg          *config.ActivityConfig
	logger       *logger.Logger
	cancel       context.CancelFunc
}

func NewActivityWorker(
	activityRepo *repository.ActivityRepository,
	consumer *queue.KafkaConsumer,
	cfg *config.ActivityConfig,
	logger *logger.Logger,
) *ActivityWorker {
	return &ActivityWorker{
		activityRepo: activityRepo,
		consumer:     consumer,
		cfg:          cfg,
		logger:       logger,
	}
}

func (w *ActivityWorker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.logger.Info("Starting activity worker")

	if w.cfg.RetentionDays > 0 {
		go w.retentionLoop(ctx)
	}

	return w.consumer.Subscribe(ctx, func(msg queue.Message) error {
		var event models.ActivityEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.WithError(err).Error("Failed to decode activity event")
			return nil
		}

		if err := w.activityRepo.Create(ctx, &event); err != nil {
			w.logger.WithError(err).WithField("event_type", event.Type).Error("Failed to persist activity event")
			return nil
		}

		w.logger.WithFields(map[string]interface{}{
			"event_type": event.Type,
			"actor_id":   event.ActorID,
		}).Debug("Activity event persisted")
		return nil
	})
}

func (w *ActivityWorker) retentionLoop(ctx context.Context) {
	interval := w.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -w.cfg.RetentionDays)
			removed, err := w.activityRepo.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				w.logger.WithError(err).Error("Activity retention sweep failed")
				continue
			}
			if removed > 0 {
				w.logger.WithField("removed", removed).Info("Aged out old activity events")
			}
		}
	}
}

func (w *ActivityWorker) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	if err := w.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close consumer: %w", err)
	}
	return nil
}
