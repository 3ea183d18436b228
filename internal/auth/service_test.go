package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/pixelblog/backend/internal/database"
	applogger "github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AuthServiceTestSuite contains auth service tests
type AuthServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *Service
}

// SetupSuite initializes the test database and auth service
func (suite *AuthServiceTestSuite) SetupSuite() {
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
		suite.T().Skipf("Skipping auth tests: database not available (%v)", err)
		return
	}

	applogger.Log = zap.NewNop()
	database.DB = db

	require.NoError(suite.T(), db.AutoMigrate(&models.Profile{}))

	suite.db = db
	suite.service = NewService([]byte("test_jwt_secret_key"))
}

// TearDownSuite cleans up after tests
func (suite *AuthServiceTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS profiles CASCADE")

	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

// SetupTest cleans the database before each test
func (suite *AuthServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM profiles")
}

func (suite *AuthServiceTestSuite) TestFirstRegistrationBecomesOwner() {
	t := suite.T()

	resp, err := suite.service.Register(RegisterRequest{
		Email:    "owner@example.com",
		Username: "pixel_blogger",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.True(t, resp.Profile.IsBlogOwner)
	assert.NotEmpty(t, resp.Token)

	second, err := suite.service.Register(RegisterRequest{
		Email:    "visitor@example.com",
		Username: "drive_by",
		Password: "another-password-1",
	})
	require.NoError(t, err)
	assert.False(t, second.Profile.IsBlogOwner)
}

func (suite *AuthServiceTestSuite) TestDuplicateRegistration() {
	t := suite.T()

	_, err := suite.service.Register(RegisterRequest{
		Email: "owner@example.com", Username: "pixel_blogger", Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	_, err = suite.service.Register(RegisterRequest{
		Email: "OWNER@example.com", Username: "someone_else", Password: "correct-horse-battery",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = suite.service.Register(RegisterRequest{
		Email: "fresh@example.com", Username: "PIXEL_BLOGGER", Password: "correct-horse-battery",
	})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func (suite *AuthServiceTestSuite) TestLoginAndValidate() {
	t := suite.T()

	registered, err := suite.service.Register(RegisterRequest{
		Email: "owner@example.com", Username: "pixel_blogger", Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	resp, err := suite.service.Login(LoginRequest{Email: "owner@example.com", Password: "correct-horse-battery"})
	require.NoError(t, err)
	assert.Equal(t, registered.Profile.ID, resp.Profile.ID)

	profile, err := suite.service.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.Profile.ID, profile.ID)
	assert.True(t, profile.IsBlogOwner)

	// Password hashes never travel in responses
	data := suite.marshalJSON(resp)
	assert.NotContains(t, data, "password")
}

func (suite *AuthServiceTestSuite) TestLoginFailures() {
	t := suite.T()

	_, err := suite.service.Register(RegisterRequest{
		Email: "owner@example.com", Username: "pixel_blogger", Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	_, err = suite.service.Login(LoginRequest{Email: "owner@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.service.Login(LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func (suite *AuthServiceTestSuite) TestValidateRejectsGarbage() {
	t := suite.T()

	_, err := suite.service.ValidateToken("not-a-token")
	assert.Error(t, err)

	// Token signed with a different secret
	other := NewService([]byte("different_secret"))
	resp, err := other.generateAuthResponse(&models.Profile{ID: "11111111-1111-1111-1111-111111111111"})
	require.NoError(t, err)

	_, err = suite.service.ValidateToken(resp.Token)
	assert.Error(t, err)
}

func (suite *AuthServiceTestSuite) marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	require.NoError(suite.T(), err)
	return string(data)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
