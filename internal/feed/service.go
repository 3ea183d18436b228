// Package feed serves the public post feed: non-draft posts, newest first,
// optionally narrowed to one category, paged by offset. One parametrized
// query serves both the all-posts view and the category tabs.
package feed

import (
	"context"
	"fmt"

	"github.com/pixelblog/backend/internal/engagement"
	apperrors "github.com/pixelblog/backend/internal/errors"
	"github.com/pixelblog/backend/internal/identity"
	"github.com/pixelblog/backend/internal/models"
	"gorm.io/gorm"
)

const (
	// DefaultPageSize is the feed page length
	DefaultPageSize = 10

	// MaxPageSize caps what a client may request
	MaxPageSize = 50
)

// Service implements feed reads
type Service struct {
	db         *gorm.DB
	engagement *engagement.Service
}

// NewService creates a feed service
func NewService(db *gorm.DB, engagementService *engagement.Service) *Service {
	return &Service{db: db, engagement: engagementService}
}

// Query selects a feed page. Category empty means all categories.
type Query struct {
	Category string `form:"category"`
	Offset   int    `form:"offset"`
	Limit    int    `form:"limit"`
}

// PostView is a post hydrated with the caller's engagement state
type PostView struct {
	models.Post
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	Liked        bool  `json:"liked"`
}

// Page is one feed page. HasMore is inferred from page fullness: a full page
// means another fetch is worth attempting, a short page ends the feed.
type Page struct {
	Posts   []PostView `json:"posts"`
	Offset  int        `json:"offset"`
	Limit   int        `json:"limit"`
	HasMore bool       `json:"has_more"`
}

// LoadPosts returns one page of visible posts for the given identity.
// Draft posts never appear here, whoever asks.
func (s *Service) LoadPosts(ctx context.Context, id identity.Identity, q Query) (*Page, error) {
	if q.Offset < 0 {
		return nil, apperrors.BadRequest("offset cannot be negative")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}

	query := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("is_draft = false")

	if q.Category != "" {
		category := models.Category(q.Category)
		if !category.Valid() {
			return nil, apperrors.ValidationError("category", fmt.Sprintf("unknown category: %s", q.Category))
		}
		query = query.Where("category = ?", category)
	}

	var posts []models.Post
	err := query.
		Order("created_at DESC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	page := &Page{
		Posts:   make([]PostView, 0, len(posts)),
		Offset:  q.Offset,
		Limit:   q.Limit,
		HasMore: len(posts) == q.Limit,
	}

	postIDs := make([]string, len(posts))
	for i, post := range posts {
		postIDs[i] = post.ID
	}

	// Engagement is hydrated for exactly the returned page
	likeStates, err := s.engagement.LikeStates(ctx, id, postIDs)
	if err != nil {
		return nil, err
	}
	commentCounts, err := s.engagement.CommentCounts(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	for _, post := range posts {
		state := likeStates[post.ID]
		page.Posts = append(page.Posts, PostView{
			Post:         post,
			LikeCount:    state.Count,
			CommentCount: commentCounts[post.ID],
			Liked:        state.Liked,
		})
	}

	return page, nil
}

// GetPost returns one visible post hydrated for the given identity
func (s *Service) GetPost(ctx context.Context, id identity.Identity, postID string) (*PostView, error) {
	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "id = ? AND is_draft = false", postID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("post")
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	likeStates, err := s.engagement.LikeStates(ctx, id, []string{postID})
	if err != nil {
		return nil, err
	}
	commentCounts, err := s.engagement.CommentCounts(ctx, []string{postID})
	if err != nil {
		return nil, err
	}

	state := likeStates[postID]
	return &PostView{
		Post:         post,
		LikeCount:    state.Count,
		CommentCount: commentCounts[postID],
		Liked:        state.Liked,
	}, nil
}
