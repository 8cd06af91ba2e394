// Package testsupport provides database and fixture helpers shared by tests.
package testsupport

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

// TestJWTSecret signs tokens issued during tests.
const TestJWTSecret = "test-secret-do-not-use"

var fixtureSeq atomic.Int64

// Config returns the defaults with test friendly overrides and installs them.
func Config() config.AppConfig {
	cfg := config.Defaults()
	cfg.JWTSecret = TestJWTSecret
	cfg.DBDriver = "sqlite"
	cfg.GinMode = "test"
	cfg.LogLevel = "error"
	cfg.LogPath = ""
	cfg.GinPath = ""
	cfg.GeoRemoteAPI = false
	cfg.RedisHost = ""
	cfg.RateLimitPerMinute = 1000
	cfg.FormCooldownSec = 0
	cfg.FormMaxPerIPPerDay = 0
	cfg.AdminUsernames = []string{"admin"}
	config.Set(cfg)
	return cfg
}

// SetupTestDB opens a fresh in-memory sqlite database with every model migrated.
// The named shared-cache DSN keeps the database alive across pooled
// connections; the pool is capped at one connection so concurrent writers queue
// instead of failing with table locks.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := Config()
	if utils.Logger == nil {
		_ = utils.InitLogger(cfg)
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("testsupport: failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateTestUser inserts a user with a bcrypt hash of password.
func CreateTestUser(t *testing.T, db *gorm.DB, username, password string) models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("testsupport: hash password: %v", err)
	}
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		DisplayName:  username,
	}
	if username == "admin" {
		user.Role = models.RoleAdmin
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("testsupport: create user: %v", err)
	}
	return user
}

// CreateTestBlog inserts a published blog owned by userID.
func CreateTestBlog(t *testing.T, db *gorm.DB, userID uint, title string) models.Blog {
	t.Helper()
	now := time.Now().UTC()
	blog := models.Blog{
		UserID:      userID,
		Title:       title,
		Slug:        fmt.Sprintf("%s-%d", utils.Slugify(title), fixtureSeq.Add(1)),
		Content:     "<p>" + title + "</p>",
		Status:      models.BlogStatusPublished,
		PublishedAt: &now,
	}
	if err := db.Create(&blog).Error; err != nil {
		t.Fatalf("testsupport: create blog: %v", err)
	}
	return blog
}

// IssueToken returns a signed access token for user.
func IssueToken(t *testing.T, user models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		t.Fatalf("testsupport: issue token: %v", err)
	}
	return token
}
