// Seeds a development database with a blog owner, a spread of posts across
// every category, and realistic anonymous engagement.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/pixelblog/backend/internal/database"
	"github.com/pixelblog/backend/internal/identity"
	"github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var categoryContent = map[models.Category][]string{
	models.CategoryEat:   {"breakfast", "ramen", "homemade curry", "bakery run"},
	models.CategorySleep: {"slept in", "afternoon nap", "all-nighter recovery"},
	models.CategoryStudy: {"algorithms chapter", "language practice", "side project notes"},
	models.CategoryPlay:  {"arcade night", "new game", "board games with friends"},
	models.CategoryLife:  {"long walk", "plant update", "rainy day errands"},
}

func main() {
	postCount := flag.Int("posts", 40, "number of posts to create")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize("info", ""); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	if err := database.Initialize(); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Migration failed", zap.Error(err))
	}

	owner := ensureOwner()
	seedPosts(owner, *postCount)

	logger.Log.Info("✅ Seed complete", zap.Int("posts", *postCount))
}

// ensureOwner creates the blog owner profile unless one exists
func ensureOwner() *models.Profile {
	var owner models.Profile
	if err := database.DB.First(&owner, "is_blog_owner = true").Error; err == nil {
		logger.Log.Info("Owner already present", zap.String("username", owner.Username))
		return &owner
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("pixel-dev-password"), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Fatal("Failed to hash password", zap.Error(err))
	}
	hashStr := string(hash)

	owner = models.Profile{
		Email:        "owner@pixelblog.dev",
		Username:     "pixel_blogger",
		PasswordHash: &hashStr,
		IsBlogOwner:  true,
	}
	if err := database.DB.Create(&owner).Error; err != nil {
		logger.Log.Fatal("Failed to create owner", zap.Error(err))
	}

	logger.Log.Info("Created blog owner", zap.String("email", owner.Email))
	return &owner
}

func seedPosts(owner *models.Profile, count int) {
	faker := gofakeit.New(0)

	for i := 0; i < count; i++ {
		category := models.Categories[rand.Intn(len(models.Categories))]
		topics := categoryContent[category]
		topic := topics[rand.Intn(len(topics))]

		createdAt := time.Now().UTC().Add(-time.Duration(count-i) * 7 * time.Hour)

		post := models.Post{
			UserID:   &owner.ID,
			Category: category,
			Content:  fmt.Sprintf("%s. %s #%s", topic, faker.Sentence(12), category),
			Hashtags: models.StringArray{string(category)},
			Weather: &models.WeatherSnapshot{
				Temp:      faker.Number(-5, 32),
				Condition: faker.RandomString([]string{"clear", "light rain", "overcast", "snow"}),
				Icon:      faker.RandomString([]string{"☀️", "🌧️", "☁️", "❄️"}),
				Location:  faker.City(),
			},
			IsDraft:   rand.Intn(10) == 0,
			CreatedAt: createdAt,
		}
		if err := database.DB.Create(&post).Error; err != nil {
			logger.Log.Fatal("Failed to create post", zap.Error(err))
		}
		if post.IsDraft {
			continue
		}

		seedEngagement(faker, &post)
	}
}

// seedEngagement attaches anonymous likes and comments to a post
func seedEngagement(faker *gofakeit.Faker, post *models.Post) {
	likeCount := rand.Intn(8)
	for i := 0; i < likeCount; i++ {
		token := identity.NewAnonymousToken()
		like := models.Like{PostID: post.ID, SessionID: &token}
		if err := database.DB.Create(&like).Error; err != nil {
			logger.Log.Warn("Failed to create like", zap.Error(err))
		}
	}

	commentCount := rand.Intn(4)
	for i := 0; i < commentCount; i++ {
		comment := models.Comment{
			PostID:     post.ID,
			AuthorName: faker.Username(),
			Content:    faker.Sentence(8),
			CreatedAt:  post.CreatedAt.Add(time.Duration(i+1) * time.Hour),
		}
		if err := database.DB.Create(&comment).Error; err != nil {
			logger.Log.Warn("Failed to create comment", zap.Error(err))
		}
	}

	database.DB.Model(post).Updates(map[string]interface{}{
		"like_count":    likeCount,
		"comment_count": commentCount,
	})
}
