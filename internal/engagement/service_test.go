package engagement

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/pixelblog/backend/internal/database"
	apperrors "github.com/pixelblog/backend/internal/errors"
	"github.com/pixelblog/backend/internal/identity"
	applogger "github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/models"
	"github.com/pixelblog/backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// EngagementTestSuite contains engagement service tests
type EngagementTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service

	owner models.Profile
	post  models.Post
}

// SetupSuite initializes the test database and service
func (suite *EngagementTestSuite) SetupSuite() {
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "postgres")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "")
	dbname := getEnvOrDefault("POSTGRES_DB", "pixelblog_test")

	testDSN := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		testDSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	}

	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Quiet during tests
	})
	if err != nil {
		suite.T().Skipf("Skipping engagement tests: database not available (%v)", err)
		return
	}

	applogger.Log = zap.NewNop()
	database.DB = db

	err = db.AutoMigrate(
		&models.Profile{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
		&models.Notification{},
	)
	require.NoError(suite.T(), err)

	// Same uniqueness guarantees production carries
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_likes_post_user ON likes (post_id, user_id) WHERE user_id IS NOT NULL`)
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_likes_post_session ON likes (post_id, session_id) WHERE session_id IS NOT NULL`)

	suite.db = db
	suite.service = NewService(db, nil)
}

// TearDownSuite cleans up after tests
func (suite *EngagementTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS notifications, likes, comments, posts, profiles CASCADE")

	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

// SetupTest resets rows and seeds one owner post
func (suite *EngagementTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM notifications")
	suite.db.Exec("DELETE FROM likes")
	suite.db.Exec("DELETE FROM comments")
	suite.db.Exec("DELETE FROM posts")
	suite.db.Exec("DELETE FROM profiles")

	suite.owner = models.Profile{
		Email:       "owner@example.com",
		Username:    "pixel_blogger",
		IsBlogOwner: true,
	}
	require.NoError(suite.T(), suite.db.Create(&suite.owner).Error)

	suite.post = models.Post{
		UserID:   &suite.owner.ID,
		Category: models.CategoryEat,
		Content:  "ramen again",
	}
	require.NoError(suite.T(), suite.db.Create(&suite.post).Error)
}

func (suite *EngagementTestSuite) ownerIdentity() identity.Identity {
	return identity.Identity{Kind: identity.KindOwner, UserID: suite.owner.ID, Username: suite.owner.Username}
}

func (suite *EngagementTestSuite) TestToggleLikeAnonymous() {
	t := suite.T()
	ctx := context.Background()
	anon := identity.Anonymous(identity.NewAnonymousToken())

	result, err := suite.service.ToggleLike(ctx, anon, suite.post.ID)
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, int64(1), result.Count)

	// Same identity toggling again removes the like
	result, err = suite.service.ToggleLike(ctx, anon, suite.post.ID)
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.Equal(t, int64(0), result.Count)
}

func (suite *EngagementTestSuite) TestLikeIdentitiesAreIndependent() {
	t := suite.T()
	ctx := context.Background()

	anon := identity.Anonymous(identity.NewAnonymousToken())
	owner := suite.ownerIdentity()

	_, err := suite.service.ToggleLike(ctx, anon, suite.post.ID)
	require.NoError(t, err)
	result, err := suite.service.ToggleLike(ctx, owner, suite.post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Count)

	states, err := suite.service.LikeStates(ctx, anon, []string{suite.post.ID})
	require.NoError(t, err)
	assert.True(t, states[suite.post.ID].Liked)
	assert.Equal(t, int64(2), states[suite.post.ID].Count)

	// Removing the anonymous like leaves the owner's like standing
	_, err = suite.service.ToggleLike(ctx, anon, suite.post.ID)
	require.NoError(t, err)

	states, err = suite.service.LikeStates(ctx, owner, []string{suite.post.ID})
	require.NoError(t, err)
	assert.True(t, states[suite.post.ID].Liked)
	assert.Equal(t, int64(1), states[suite.post.ID].Count)
}

func (suite *EngagementTestSuite) TestToggleRejectedWhileInFlight() {
	t := suite.T()
	anon := identity.Anonymous(identity.NewAnonymousToken())

	guardKey := suite.post.ID + "|" + anon.Key()
	require.True(t, suite.service.acquireToggle(guardKey))
	defer suite.service.releaseToggle(guardKey)

	_, err := suite.service.ToggleLike(context.Background(), anon, suite.post.ID)
	require.Error(t, err)

	apiErr, ok := err.(*apperrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrToggleInFlight, apiErr.Code)

	// A different identity is not blocked by this guard
	other := identity.Anonymous(identity.NewAnonymousToken())
	result, err := suite.service.ToggleLike(context.Background(), other, suite.post.ID)
	require.NoError(t, err)
	assert.True(t, result.Liked)
}

func (suite *EngagementTestSuite) TestToggleLikeDraftPostNotFound() {
	t := suite.T()

	draft := models.Post{
		UserID:   &suite.owner.ID,
		Category: models.CategorySleep,
		Content:  "not published yet",
		IsDraft:  true,
	}
	require.NoError(t, suite.db.Create(&draft).Error)

	_, err := suite.service.ToggleLike(context.Background(), identity.Anonymous("anon_1_abcdefghi"), draft.ID)
	require.Error(t, err)
	apiErr, ok := err.(*apperrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNotFound, apiErr.Code)
}

func (suite *EngagementTestSuite) TestLikeStatesBatch() {
	t := suite.T()
	ctx := context.Background()
	anon := identity.Anonymous(identity.NewAnonymousToken())

	second := models.Post{UserID: &suite.owner.ID, Category: models.CategoryPlay, Content: "arcade"}
	require.NoError(t, suite.db.Create(&second).Error)

	_, err := suite.service.ToggleLike(ctx, anon, second.ID)
	require.NoError(t, err)

	states, err := suite.service.LikeStates(ctx, anon, []string{suite.post.ID, second.ID, "00000000-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Equal(t, LikeState{Count: 0, Liked: false}, states[suite.post.ID])
	assert.Equal(t, LikeState{Count: 1, Liked: true}, states[second.ID])
	assert.Equal(t, LikeState{}, states["00000000-0000-0000-0000-000000000000"])
}

func (suite *EngagementTestSuite) TestPostCommentValidation() {
	t := suite.T()

	_, err := suite.service.PostComment(context.Background(), identity.Anonymous("anon_1_abcdefghi"), suite.post.ID, CommentInput{Content: "   "})
	require.Error(t, err)
	apiErr, ok := err.(*apperrors.APIError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrValidation, apiErr.Code)
	assert.Equal(t, "content", apiErr.Field)
}

func (suite *EngagementTestSuite) TestCommentDisplayNames() {
	t := suite.T()
	ctx := context.Background()

	named, err := suite.service.PostComment(ctx, identity.Anonymous("anon_1_abcdefghi"), suite.post.ID, CommentInput{Content: "looks tasty", AuthorName: "  noodle fan "})
	require.NoError(t, err)
	assert.Equal(t, "noodle fan", named.AuthorName)
	assert.Nil(t, named.UserID)

	unnamed, err := suite.service.PostComment(ctx, identity.Anonymous("anon_2_abcdefghi"), suite.post.ID, CommentInput{Content: "me too"})
	require.NoError(t, err)
	assert.Equal(t, AnonymousDisplayName, unnamed.AuthorName)

	// Authenticated commenters are signed by their profile, whatever the
	// request claims
	owned, err := suite.service.PostComment(ctx, suite.ownerIdentity(), suite.post.ID, CommentInput{Content: "thanks!", AuthorName: "impostor"})
	require.NoError(t, err)
	assert.Equal(t, "pixel_blogger", owned.AuthorName)
	require.NotNil(t, owned.UserID)
	assert.Equal(t, suite.owner.ID, *owned.UserID)
}

func (suite *EngagementTestSuite) TestCommentsOrderedOldestFirst() {
	t := suite.T()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, text := range []string{"first", "second", "third"} {
		comment := models.Comment{
			PostID:     suite.post.ID,
			AuthorName: "Anonymous",
			Content:    text,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, suite.db.Create(&comment).Error)
	}

	comments, err := suite.service.ListComments(ctx, suite.post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "third", comments[2].Content)

	counts, err := suite.service.CommentCounts(ctx, []string{suite.post.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[suite.post.ID])
}

func (suite *EngagementTestSuite) TestThreadedReply() {
	t := suite.T()
	ctx := context.Background()
	anon := identity.Anonymous("anon_1_abcdefghi")

	parent, err := suite.service.PostComment(ctx, anon, suite.post.ID, CommentInput{Content: "top level"})
	require.NoError(t, err)

	reply, err := suite.service.PostComment(ctx, anon, suite.post.ID, CommentInput{Content: "a reply", ParentID: &parent.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)

	// Replies cannot point into another post's thread
	other := models.Post{UserID: &suite.owner.ID, Category: models.CategoryLife, Content: "elsewhere"}
	require.NoError(t, suite.db.Create(&other).Error)

	_, err = suite.service.PostComment(ctx, anon, other.ID, CommentInput{Content: "cross thread", ParentID: &parent.ID})
	require.Error(t, err)
}

func (suite *EngagementTestSuite) TestNotifications() {
	t := suite.T()
	ctx := context.Background()

	_, err := suite.service.PostComment(ctx, identity.Anonymous("anon_1_abcdefghi"), suite.post.ID, CommentInput{Content: "hello"})
	require.NoError(t, err)

	// Self-engagement produces no notification
	_, err = suite.service.PostComment(ctx, suite.ownerIdentity(), suite.post.ID, CommentInput{Content: "replying to myself"})
	require.NoError(t, err)

	var notifications []models.Notification
	require.NoError(t, suite.db.Order("created_at ASC").Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, suite.owner.ID, notifications[0].RecipientID)
	assert.Equal(t, models.NotificationComment, notifications[0].Type)
	assert.Equal(t, AnonymousDisplayName, notifications[0].ActorName)
	assert.False(t, notifications[0].Read)
}

func (suite *EngagementTestSuite) TestMutationsPublishChangeEvents() {
	t := suite.T()
	ctx := context.Background()

	hub := realtime.NewHub()
	service := NewService(suite.db, hub)
	anon := identity.Anonymous(identity.NewAnonymousToken())

	// Like toggle publishes a posts UPDATE, comment publishes a comments
	// INSERT; feed pages stay fresh without polling
	_, err := service.ToggleLike(ctx, anon, suite.post.ID)
	require.NoError(t, err)

	_, err = service.PostComment(ctx, anon, suite.post.ID, CommentInput{Content: "watching this"})
	require.NoError(t, err)

	stats := hub.GetMetrics()
	assert.Equal(t, int64(2), stats.EventsPublished)
}

func TestEngagementTestSuite(t *testing.T) {
	suite.Run(t, new(EngagementTestSuite))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
