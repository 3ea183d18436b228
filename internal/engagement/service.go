// Package engagement tracks likes and comments. Likes are keyed by identity:
// an authenticated like belongs to a user, an anonymous like to a session
// token, and the two never collide. Counts live on the posts table and are
// cached in Redis.
package engagement

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pixelblog/backend/internal/cache"
	apperrors "github.com/pixelblog/backend/internal/errors"
	"github.com/pixelblog/backend/internal/identity"
	"github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/models"
	"github.com/pixelblog/backend/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// AnonymousDisplayName labels comments from visitors who gave no name
	AnonymousDisplayName = "Anonymous"

	// likeCountTTL bounds staleness when an invalidation is missed
	likeCountTTL = 10 * time.Minute
)

func likeCountKey(postID string) string {
	return "engagement:likes:" + postID
}

// Service implements like and comment operations
type Service struct {
	db  *gorm.DB
	hub *realtime.Hub

	// In-flight like toggles, keyed by postID + identity. A second toggle
	// for the same key is rejected, not queued.
	inflight   map[string]struct{}
	inflightMu sync.Mutex
}

// NewService creates an engagement service. hub may be nil in tests.
func NewService(db *gorm.DB, hub *realtime.Hub) *Service {
	return &Service{
		db:       db,
		hub:      hub,
		inflight: make(map[string]struct{}),
	}
}

// LikeState is the per-post engagement summary for one identity
type LikeState struct {
	Count int64 `json:"count"`
	Liked bool  `json:"liked"`
}

// ToggleResult is the authoritative outcome of a like toggle
type ToggleResult struct {
	PostID string `json:"post_id"`
	Liked  bool   `json:"liked"`
	Count  int64  `json:"count"`
}

// identityClause scopes a likes query to one identity axis
func identityClause(q *gorm.DB, id identity.Identity) *gorm.DB {
	if id.IsAuthenticated() {
		return q.Where("user_id = ?", id.UserID)
	}
	return q.Where("session_id = ?", id.SessionToken)
}

// LikeStates returns the like count and this identity's liked flag for each
// requested post. Two batched queries, partitioned in memory; never N+1.
func (s *Service) LikeStates(ctx context.Context, id identity.Identity, postIDs []string) (map[string]LikeState, error) {
	states := make(map[string]LikeState, len(postIDs))
	if len(postIDs) == 0 {
		return states, nil
	}
	for _, postID := range postIDs {
		states[postID] = LikeState{}
	}

	var counts []struct {
		PostID string
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Like{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load like counts: %w", err)
	}
	for _, row := range counts {
		state := states[row.PostID]
		state.Count = row.Count
		states[row.PostID] = state
	}

	var liked []string
	err = identityClause(
		s.db.WithContext(ctx).Model(&models.Like{}).Where("post_id IN ?", postIDs),
		id,
	).Pluck("post_id", &liked).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load liked posts: %w", err)
	}
	for _, postID := range liked {
		state := states[postID]
		state.Liked = true
		states[postID] = state
	}

	return states, nil
}

// LikeCount returns the like count for a single post, served from Redis when
// the cache is warm.
func (s *Service) LikeCount(ctx context.Context, postID string) (int64, error) {
	if redis := cache.GetRedisClient(); redis != nil {
		if count, err := redis.GetInt(ctx, likeCountKey(postID)); err == nil {
			return count, nil
		}
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}

	if redis := cache.GetRedisClient(); redis != nil {
		_ = redis.SetEx(ctx, likeCountKey(postID), count, likeCountTTL)
	}
	return count, nil
}

// acquireToggle claims the in-flight slot for (post, identity)
func (s *Service) acquireToggle(key string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) releaseToggle(key string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, key)
}

// ToggleLike flips this identity's like on a post and returns the
// authoritative state. A concurrent toggle for the same (post, identity) is
// rejected with TOGGLE_IN_FLIGHT. The partial unique indexes on likes close
// the remaining cross-process race: a duplicate insert from another tab is
// treated as already-liked, not an error.
func (s *Service) ToggleLike(ctx context.Context, id identity.Identity, postID string) (*ToggleResult, error) {
	guardKey := postID + "|" + id.Key()
	if !s.acquireToggle(guardKey) {
		return nil, apperrors.ToggleInFlight(postID)
	}
	defer s.releaseToggle(guardKey)

	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "id = ? AND is_draft = false", postID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("post")
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	var existing models.Like
	err = identityClause(
		s.db.WithContext(ctx).Where("post_id = ?", postID),
		id,
	).First(&existing).Error

	liked := false
	switch {
	case err == nil:
		// Unlike
		if err := s.deleteLike(ctx, &existing); err != nil {
			return nil, err
		}

	case err == gorm.ErrRecordNotFound:
		// Like
		if err := s.createLike(ctx, id, &post); err != nil {
			return nil, err
		}
		liked = true

	default:
		return nil, fmt.Errorf("failed to look up like: %w", err)
	}

	count, err := s.refreshLikeCount(ctx, postID)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.PublishRow(realtime.TablePosts, realtime.EventUpdate, postID, postID, nil)
	}

	logger.Log.Info("Like toggled",
		logger.WithPostID(postID),
		logger.WithIdentity(id.Key()),
		zap.Bool("liked", liked),
		zap.Int64("count", count),
	)

	return &ToggleResult{PostID: postID, Liked: liked, Count: count}, nil
}

func (s *Service) createLike(ctx context.Context, id identity.Identity, post *models.Post) error {
	like := models.Like{PostID: post.ID}
	if id.IsAuthenticated() {
		userID := id.UserID
		like.UserID = &userID
	} else {
		token := id.SessionToken
		like.SessionID = &token
	}

	err := s.db.WithContext(ctx).Create(&like).Error
	if err != nil {
		if isUniqueViolation(err) {
			// Another tab won the race; the like exists, which is the state
			// the caller asked for
			logger.Log.Debug("Duplicate like absorbed",
				logger.WithPostID(post.ID),
				logger.WithIdentity(id.Key()))
			return nil
		}
		return fmt.Errorf("failed to create like: %w", err)
	}

	s.notify(ctx, post, models.NotificationLike, id)
	return nil
}

func (s *Service) deleteLike(ctx context.Context, like *models.Like) error {
	if err := s.db.WithContext(ctx).Delete(like).Error; err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}

// refreshLikeCount recounts from storage, syncs the denormalized column and
// the Redis cache, and returns the authoritative count.
func (s *Service) refreshLikeCount(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}

	err = s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Update("like_count", count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to update like count: %w", err)
	}

	if redis := cache.GetRedisClient(); redis != nil {
		_ = redis.SetEx(ctx, likeCountKey(postID), count, likeCountTTL)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// CommentCounts returns the comment count for each requested post
func (s *Service) CommentCounts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		PostID string
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load comment counts: %w", err)
	}
	for _, row := range rows {
		counts[row.PostID] = row.Count
	}
	return counts, nil
}

// ListComments returns a post's comments oldest first. ParentID is included
// so clients can render threads.
func (s *Service) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	return comments, nil
}

// CommentInput is the caller-supplied part of a new comment
type CommentInput struct {
	Content    string  `json:"content"`
	AuthorName string  `json:"author_name"`
	ParentID   *string `json:"parent_id"`
}

// PostComment validates and stores a comment, bumps the post's comment count,
// and publishes a comments INSERT event. The display name comes from the
// profile when authenticated; anonymous visitors may supply a free-text name.
func (s *Service) PostComment(ctx context.Context, id identity.Identity, postID string, input CommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.ValidationError("content", "comment content cannot be empty")
	}

	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "id = ? AND is_draft = false", postID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("post")
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	if input.ParentID != nil {
		var parent models.Comment
		err := s.db.WithContext(ctx).First(&parent, "id = ? AND post_id = ?", *input.ParentID, postID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, apperrors.NotFound("parent comment")
			}
			return nil, fmt.Errorf("failed to load parent comment: %w", err)
		}
	}

	comment := models.Comment{
		PostID:     postID,
		ParentID:   input.ParentID,
		AuthorName: displayName(id, input.AuthorName),
		Content:    content,
	}
	if id.IsAuthenticated() {
		userID := id.UserID
		comment.UserID = &userID
	}

	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	err = s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Update("comment_count", gorm.Expr("comment_count + 1")).Error
	if err != nil {
		logger.WarnWithError("Failed to bump comment count", err)
	}

	s.notify(ctx, &post, models.NotificationComment, id)

	if s.hub != nil {
		s.hub.PublishRow(realtime.TableComments, realtime.EventInsert, comment.ID, postID, comment)
	}

	logger.Log.Info("Comment posted",
		logger.WithPostID(postID),
		logger.WithIdentity(id.Key()),
		zap.String("comment_id", comment.ID),
	)

	return &comment, nil
}

// displayName resolves what a comment is signed as
func displayName(id identity.Identity, provided string) string {
	if id.IsAuthenticated() && id.Username != "" {
		return id.Username
	}
	if name := strings.TrimSpace(provided); name != "" {
		return name
	}
	return AnonymousDisplayName
}

// notify records a notification for the post's author. Self-engagement and
// posts without an author profile produce none; a failed insert is logged,
// never surfaced.
func (s *Service) notify(ctx context.Context, post *models.Post, kind models.NotificationType, actor identity.Identity) {
	if post.UserID == nil {
		return
	}
	if actor.IsAuthenticated() && actor.UserID == *post.UserID {
		return
	}

	actorName := AnonymousDisplayName
	if actor.IsAuthenticated() && actor.Username != "" {
		actorName = actor.Username
	}

	notification := models.Notification{
		RecipientID: *post.UserID,
		Type:        kind,
		PostID:      post.ID,
		ActorName:   actorName,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		logger.WarnWithError("Failed to record notification", err)
	}
}
