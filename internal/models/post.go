package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringArray is a custom type for PostgreSQL text[] that implements Scanner and Valuer
type StringArray []string

// Scan implements the sql.Scanner interface for reading from database
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	// PostgreSQL returns text[] as a string like "{value1,value2,value3}"
	str, ok := value.(string)
	if !ok {
		if bytes, ok := value.([]byte); ok {
			str = string(bytes)
		} else {
			*a = nil
			return nil
		}
	}

	str = strings.TrimPrefix(str, "{")
	str = strings.TrimSuffix(str, "}")

	if str == "" {
		*a = []string{}
		return nil
	}

	// Split by comma (simple case - doesn't handle quoted values with commas)
	*a = strings.Split(str, ",")
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

// Category is the fixed journal category set
type Category string

const (
	CategoryEat   Category = "eat"
	CategorySleep Category = "sleep"
	CategoryStudy Category = "study"
	CategoryPlay  Category = "play"
	CategoryLife  Category = "life"
)

// Categories lists every valid category, in display order
var Categories = []Category{CategoryEat, CategorySleep, CategoryStudy, CategoryPlay, CategoryLife}

// Valid reports whether c is one of the fixed categories
func (c Category) Valid() bool {
	switch c {
	case CategoryEat, CategorySleep, CategoryStudy, CategoryPlay, CategoryLife:
		return true
	}
	return false
}

// DefaultTitle returns the title used when a post is created with an empty one
func (c Category) DefaultTitle() string {
	if c == CategorySleep {
		return "Sleep Log"
	}
	return "Untitled"
}

// WeatherSnapshot is the weather captured at post creation time
type WeatherSnapshot struct {
	Temp      int    `json:"temp"`
	Condition string `json:"condition"`
	Icon      string `json:"icon"`
	Location  string `json:"location"`
}

// MusicSnapshot is the now-playing track attached to a post
type MusicSnapshot struct {
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	URL     string `json:"url"`
	TrackID string `json:"track_id,omitempty"`
}

// Post is a single journal entry
type Post struct {
	ID     string   `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID *string  `gorm:"type:uuid;index" json:"user_id"`
	User   *Profile `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Category Category `gorm:"type:varchar(16);not null;index" json:"category"`
	Title    string   `gorm:"not null" json:"title"`
	Content  string   `gorm:"type:text;not null" json:"content"`

	Hashtags  StringArray `gorm:"type:text[]" json:"hashtags"`
	ImageURLs StringArray `gorm:"type:text[]" json:"image_urls"`
	VideoURLs StringArray `gorm:"type:text[]" json:"video_urls"`

	// Optional snapshots captured when the post is written
	Weather *WeatherSnapshot `gorm:"type:jsonb;serializer:json" json:"weather,omitempty"`
	Music   *MusicSnapshot   `gorm:"type:jsonb;serializer:json" json:"music,omitempty"`

	// Drafts are excluded from every visitor-facing query
	IsDraft bool `gorm:"default:false;index" json:"is_draft"`

	// Engagement counters (cached, authoritative counts live in likes/comments)
	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Title == "" {
		p.Title = p.Category.DefaultTitle()
	}
	return nil
}
