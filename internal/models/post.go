package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is immutable after creation except for its like count. The Author*
// fields are a snapshot of the author's public profile taken at creation time
// and are intentionally not refreshed when the profile changes later.
type Post struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	AuthorID  uuid.UUID `json:"author_id" gorm:"type:uuid;not null;index:idx_author_created"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	LikeCount int64     `json:"like_count" gorm:"default:0"`

	AuthorName       string `json:"author_name"`
	AuthorUsername   string `json:"author_username"`
	AuthorProfilePic string `json:"author_profile_pic"`
	AuthorVerified   bool   `json:"author_verified"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_author_created"`
}

// Like is one user's like on one post. The unique index is what makes the
// toggle race-free: two concurrent inserts for the same (user, post) cannot
// both succeed.
type Like struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_post_like"`
	PostID    uuid.UUID `json:"post_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_post_like;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (Post) TableName() string {
	return "posts"
}

func (Like) TableName() string {
	return "likes"
}
