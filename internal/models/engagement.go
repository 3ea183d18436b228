package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Like is a single engagement record. Exactly one of UserID and SessionID is
// set: an authenticated like is keyed by user, an anonymous like by the
// visitor's session token. Uniqueness per (post, identity) is enforced by
// partial unique indexes created in database.Migrate.
type Like struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PostID string `gorm:"not null;index" json:"post_id"`
	Post   Post   `gorm:"foreignKey:PostID" json:"-"`

	UserID    *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	SessionID *string `gorm:"type:text;index" json:"session_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Comment is a reply to a post. UserID is nil for anonymous commenters;
// AuthorName carries the display name either way. ParentID is stored for
// threading but not specially rendered.
type Comment struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PostID string `gorm:"not null;index" json:"post_id"`
	Post   Post   `gorm:"foreignKey:PostID" json:"-"`

	ParentID *string  `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Parent   *Comment `gorm:"foreignKey:ParentID" json:"-"`

	UserID     *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	AuthorName string  `gorm:"not null" json:"author_name"`
	Content    string  `gorm:"type:text;not null" json:"content"`

	CreatedAt time.Time `json:"created_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
