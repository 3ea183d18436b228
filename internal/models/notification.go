package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType distinguishes what triggered a notification
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
)

// Notification is created for the blog owner when a visitor likes or comments
// on one of their posts.
type Notification struct {
	ID          string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RecipientID string  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Recipient   Profile `gorm:"foreignKey:RecipientID" json:"-"`

	Type   NotificationType `gorm:"type:varchar(16);not null" json:"type"`
	PostID string           `gorm:"type:uuid;not null" json:"post_id"`

	ActorName string `json:"actor_name"`
	Read      bool   `gorm:"default:false;index" json:"read"`

	CreatedAt time.Time `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}
