package service

import (
	"path/filepath"
	"testing"
	"time"

	"adaptive_quiz/internal/config"
	"adaptive_quiz/internal/model"
	"adaptive_quiz/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWT:     config.JWTConfig{Secret: "service-test-secret", ExpireTime: time.Hour},
		Admin:   config.AdminConfig{Username: "admin", Password: "admin-pass"},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
	}
}

func intPtr(n int) *int { return &n }

func newQuestionService(t *testing.T, db *gorm.DB) *QuestionService {
	return NewQuestionService(repository.NewQuestionRepository(db), NewStorageService(testConfig(t)))
}
