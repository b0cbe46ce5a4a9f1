package service

import (
	"testing"
	"time"

	"notify24/config"
	"notify24/internal/auth"
	"notify24/internal/domain"
	"notify24/internal/models"
	"notify24/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newAuthFixture(t *testing.T) (*AuthService, *models.User) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	cfg := &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret",
			RefreshSecret: "test-refresh-secret",
			AccessExpiry:  time.Minute,
			RefreshExpiry: time.Hour,
			Issuer:        "notify24",
		},
	}

	userRepo := repository.NewUserRepository(db)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	require.NoError(t, userRepo.Create(u))

	return NewAuthService(cfg, userRepo), u
}

func TestLogin(t *testing.T) {
	svc, u := newAuthFixture(t)

	got, access, refresh, err := svc.Login("alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	claims, err := auth.ParseAccessToken(&svc.cfg.JWT, access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, _, _, err := svc.Login("alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, _, _, err := svc.Login("nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestRefresh(t *testing.T) {
	svc, u := newAuthFixture(t)

	_, _, refresh, err := svc.Login("alice@example.com", "correct horse")
	require.NoError(t, err)

	access, err := svc.Refresh(refresh)
	require.NoError(t, err)

	claims, err := auth.ParseAccessToken(&svc.cfg.JWT, access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
}

func TestRefresh_RejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Refresh("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	svc, u := newAuthFixture(t)

	access, err := auth.GenerateAccessToken(&svc.cfg.JWT, u.ID, u.Email, u.Role)
	require.NoError(t, err)

	// Tokens are signed with different secrets; one cannot stand in for
	// the other.
	_, err = svc.Refresh(access)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
