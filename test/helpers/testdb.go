package helpers

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"helpinghands_backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// NewTestDB - отдельная sqlite-база в памяти на каждый тест, схема через AutoMigrate.
// Одно соединение: sqlite не переносит параллельных писателей.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Не удалось открыть sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...), "AutoMigrate не должен падать")
	return db
}

// CreateUser создает донора с уникальным email
func CreateUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Name:  "Test Donor",
		Email: fmt.Sprintf("donor_%d@test.com", dbCounter.Add(1)),
		Role:  role,
	}
	require.NoError(t, db.Create(user).Error, "Не удалось создать пользователя")
	return user
}

// CreateRequest создает активный сбор с целью amountNeeded (minor units)
func CreateRequest(t *testing.T, db *gorm.DB, amountNeeded int64) *models.Request {
	t.Helper()
	request := &models.Request{
		Title:        "Operation for Asha",
		Description:  "Heart surgery",
		Category:     models.CategoryMedical,
		AmountNeeded: amountNeeded,
		Status:       models.RequestStatusActive,
	}
	require.NoError(t, db.Create(request).Error, "Не удалось создать запрос")
	return request
}

// ReloadRequest перечитывает агрегаты из базы
func ReloadRequest(t *testing.T, db *gorm.DB, id string) *models.Request {
	t.Helper()
	var request models.Request
	require.NoError(t, db.First(&request, "id = ?", id).Error)
	return &request
}

func ReloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, "id = ?", id).Error)
	return &user
}

func CountDonations(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Donation{}).Count(&count).Error)
	return count
}
