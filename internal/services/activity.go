package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/metrics"
	"github.com/warbler-social/warbler/internal/models"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/pkg/logger"
	"github.com/warbler-social/warbler/pkg/queue"
)

// ActivityRecorder appends one event to the activity log, best-effort. A
// failed Record must never fail the operation being recorded; implementations
// log and move on.
type ActivityRecorder interface {
	Record(ctx context.Context, event *models.ActivityEvent)
}

// KafkaActivityRecorder publishes events to the activity topic; the worker
// process persists them. Losing an event loses a display row, nothing more.
type KafkaActivityRecorder struct {
	producer *queue.KafkaProducer
	logger   *logger.Logger
}

func NewKafkaActivityRecorder(producer *queue.KafkaProducer, logger *logger.Logger) *KafkaActivityRecorder {
	return &KafkaActivityRecorder{producer: producer, logger: logger}
}

func (r *KafkaActivityRecorder) Record(ctx context.Context, event *models.ActivityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if err := r.producer.Publish(ctx, event.ActorID.String(), event); err != nil {
		metrics.ActivityEventsDropped.Inc()
		r.logger.WithError(err).WithField("event_type", event.Type).Error("Failed to publish activity event")
		return
	}
	metrics.ActivityEventsPublished.Inc()
}

// ActivityService is the read side of the activity log.
type ActivityService struct {
	activityRepo *repository.ActivityRepository
	logger       *logger.Logger
}

func NewActivityService(activityRepo *repository.ActivityRepository, logger *logger.Logger) *ActivityService {
	return &ActivityService{activityRepo: activityRepo, logger: logger}
}

func (s *ActivityService) RecentForUser(ctx context.Context, userID string, limit int) ([]*models.ActivityEvent, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}

	events, err := s.activityRepo.RecentForUser(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return events, nil
}
