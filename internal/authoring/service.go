// Package authoring is the owner-only write path for posts. Every operation
// re-checks owner status here, behind the API surface; client-side gating is
// cosmetic and carries no authority.
package authoring

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/pixelblog/backend/internal/errors"
	"github.com/pixelblog/backend/internal/identity"
	"github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/models"
	"github.com/pixelblog/backend/internal/music"
	"github.com/pixelblog/backend/internal/realtime"
	"github.com/pixelblog/backend/internal/util"
	"github.com/pixelblog/backend/internal/weather"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service implements the post authoring workflow
type Service struct {
	db      *gorm.DB
	hub     *realtime.Hub
	weather *weather.Client
	music   *music.Client
}

// NewService creates an authoring service. hub, weatherClient and
// musicClient may be nil; the corresponding enrichment is skipped.
func NewService(db *gorm.DB, hub *realtime.Hub, weatherClient *weather.Client, musicClient *music.Client) *Service {
	return &Service{db: db, hub: hub, weather: weatherClient, music: musicClient}
}

// CreateInput is a new post as the composer submits it
type CreateInput struct {
	Category  string   `json:"category"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Hashtags  []string `json:"hashtags"`
	ImageURLs []string `json:"image_urls"`
	VideoURLs []string `json:"video_urls"`
	IsDraft   bool     `json:"is_draft"`

	// SkipWeather leaves the weather snapshot off instead of capturing one
	SkipWeather bool `json:"skip_weather"`

	// MusicURL is an optional Spotify share link; Music overrides the lookup
	// when the composer already has the metadata
	MusicURL string                `json:"music_url"`
	Music    *models.MusicSnapshot `json:"music"`
}

// UpdateInput carries partial edits; nil fields are left untouched
type UpdateInput struct {
	Category  *string               `json:"category"`
	Title     *string               `json:"title"`
	Content   *string               `json:"content"`
	Hashtags  []string              `json:"hashtags"`
	ImageURLs []string              `json:"image_urls"`
	VideoURLs []string              `json:"video_urls"`
	IsDraft   *bool                 `json:"is_draft"`
	Music     *models.MusicSnapshot `json:"music"`
}

// Create validates and stores a new post. The weather snapshot is captured
// now and frozen; a failed music lookup drops the attachment rather than the
// post.
func (s *Service) Create(ctx context.Context, id identity.Identity, input CreateInput) (*models.Post, error) {
	if !id.IsOwner() {
		return nil, apperrors.Forbidden("only the blog owner can write posts")
	}

	category := models.Category(input.Category)
	if !category.Valid() {
		return nil, apperrors.ValidationError("category", fmt.Sprintf("unknown category: %s", input.Category))
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.ValidationError("content", "post content cannot be empty")
	}

	post := models.Post{
		UserID:    &id.UserID,
		Category:  category,
		Title:     strings.TrimSpace(input.Title),
		Content:   content,
		Hashtags:  util.MergeHashtags(input.Hashtags, content),
		ImageURLs: input.ImageURLs,
		VideoURLs: input.VideoURLs,
		IsDraft:   input.IsDraft,
	}

	if !input.SkipWeather && s.weather != nil {
		post.Weather = s.weather.Current(ctx)
	}

	post.Music = s.resolveMusic(ctx, input.Music, input.MusicURL)

	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if s.hub != nil && !post.IsDraft {
		s.hub.PublishRow(realtime.TablePosts, realtime.EventInsert, post.ID, post.ID, post)
	}

	logger.Log.Info("Post created",
		logger.WithPostID(post.ID),
		zap.String("category", string(post.Category)),
		zap.Bool("draft", post.IsDraft),
	)

	return &post, nil
}

// resolveMusic picks the attachment: explicit snapshot wins, then a link
// lookup. Lookup failures are logged and dropped.
func (s *Service) resolveMusic(ctx context.Context, explicit *models.MusicSnapshot, musicURL string) *models.MusicSnapshot {
	if explicit != nil {
		return explicit
	}
	if musicURL == "" || s.music == nil {
		return nil
	}

	snapshot, err := s.music.Resolve(ctx, musicURL)
	if err != nil {
		logger.WarnWithError("Music attachment dropped", err)
		return nil
	}
	return snapshot
}

// Update applies partial edits to an owner's post, drafts included
func (s *Service) Update(ctx context.Context, id identity.Identity, postID string, input UpdateInput) (*models.Post, error) {
	if !id.IsOwner() {
		return nil, apperrors.Forbidden("only the blog owner can edit posts")
	}

	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("post")
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	wasDraft := post.IsDraft

	if input.Category != nil {
		category := models.Category(*input.Category)
		if !category.Valid() {
			return nil, apperrors.ValidationError("category", fmt.Sprintf("unknown category: %s", *input.Category))
		}
		post.Category = category
	}
	if input.Title != nil {
		post.Title = strings.TrimSpace(*input.Title)
		if post.Title == "" {
			post.Title = post.Category.DefaultTitle()
		}
	}
	if input.Content != nil {
		content := strings.TrimSpace(*input.Content)
		if content == "" {
			return nil, apperrors.ValidationError("content", "post content cannot be empty")
		}
		post.Content = content
		post.Hashtags = util.MergeHashtags(input.Hashtags, content)
	} else if input.Hashtags != nil {
		post.Hashtags = util.MergeHashtags(input.Hashtags, post.Content)
	}
	if input.ImageURLs != nil {
		post.ImageURLs = input.ImageURLs
	}
	if input.VideoURLs != nil {
		post.VideoURLs = input.VideoURLs
	}
	if input.IsDraft != nil {
		post.IsDraft = *input.IsDraft
	}
	if input.Music != nil {
		post.Music = input.Music
	}

	if err := s.db.WithContext(ctx).Save(&post).Error; err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	s.publishUpdate(&post, wasDraft)

	logger.Log.Info("Post updated", logger.WithPostID(post.ID))
	return &post, nil
}

// publishUpdate translates a save into the feed's view of the change:
// publishing a draft is an INSERT, unpublishing is a DELETE.
func (s *Service) publishUpdate(post *models.Post, wasDraft bool) {
	if s.hub == nil {
		return
	}
	switch {
	case wasDraft && !post.IsDraft:
		s.hub.PublishRow(realtime.TablePosts, realtime.EventInsert, post.ID, post.ID, post)
	case !wasDraft && post.IsDraft:
		s.hub.PublishRow(realtime.TablePosts, realtime.EventDelete, post.ID, post.ID, nil)
	case !post.IsDraft:
		s.hub.PublishRow(realtime.TablePosts, realtime.EventUpdate, post.ID, post.ID, post)
	}
}

// Delete removes a post and everything hanging off it in one transaction
func (s *Service) Delete(ctx context.Context, id identity.Identity, postID string) error {
	if !id.IsOwner() {
		return apperrors.Forbidden("only the blog owner can delete posts")
	}

	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("post")
		}
		return fmt.Errorf("failed to load post: %w", err)
	}

	wasVisible := !post.IsDraft

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	if s.hub != nil && wasVisible {
		s.hub.PublishRow(realtime.TablePosts, realtime.EventDelete, postID, postID, nil)
	}

	logger.Log.Info("Post deleted", logger.WithPostID(postID))
	return nil
}

// ListDrafts returns the owner's unpublished posts, newest first
func (s *Service) ListDrafts(ctx context.Context, id identity.Identity) ([]models.Post, error) {
	if !id.IsOwner() {
		return nil, apperrors.Forbidden("only the blog owner has drafts")
	}

	var drafts []models.Post
	err := s.db.WithContext(ctx).
		Where("is_draft = true").
		Order("created_at DESC").
		Find(&drafts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}
	return drafts, nil
}
