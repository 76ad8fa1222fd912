package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityType string

const (
	ActivityPostCreated ActivityType = "post_created"
	ActivityPostDeleted ActivityType = "post_deleted"
	ActivityPostLiked   ActivityType = "post_liked"
	ActivityPostUnliked ActivityType = "post_unliked"
	ActivityFollowed    ActivityType = "followed"
	ActivityUnfollowed  ActivityType = "unfollowed"
)

// JSONMap stores an arbitrary metadata object as a JSON column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// ActivityEvent is an append-only record of a social or content action. It is
// written best-effort and read only for display; it is never the source of
// truth for any other state.
type ActivityEvent struct {
	ID           uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	Type         ActivityType `json:"type" gorm:"not null;index:idx_type_created"`
	ActorID      uuid.UUID    `json:"actor_id" gorm:"type:uuid;not null;index:idx_actor_created"`
	PostID       *uuid.UUID   `json:"post_id,omitempty" gorm:"type:uuid"`
	TargetUserID *uuid.UUID   `json:"target_user_id,omitempty" gorm:"type:uuid;index"`
	Metadata     JSONMap      `json:"metadata" gorm:"type:text"`
	CreatedAt    time.Time    `json:"created_at" gorm:"index:idx_actor_created;index:idx_type_created"`
}

func (e *ActivityEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (ActivityEvent) TableName() string {
	return "activity_events"
}
