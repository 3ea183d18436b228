package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is one row per authenticated user. The single is_blog_owner boolean
// is the entire authorization model: exactly one profile is expected to ever
// hold it.
type Profile struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`

	PasswordHash *string `gorm:"type:text" json:"-"`

	AvatarURL   string `json:"avatar_url"`
	IsBlogOwner bool   `gorm:"default:false" json:"is_blog_owner"`

	LastActiveAt *time.Time `json:"last_active_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
