package repository

import (
	"time"

	"notify24/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(u *models.User) error {
	return r.db.Save(u).Error
}

func (r *UserRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&models.User{}, "id = ?", id).Error
}

// SetOnline persists the durable presence flag alongside last-seen.
func (r *UserRepository) SetOnline(id uuid.UUID, online bool, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen_at": at}).Error
}

// eligibleQuery scopes users to what the caller may target: admins see
// everyone but themselves, regular users only accounts they created.
func (r *UserRepository) eligibleQuery(callerID uuid.UUID, isAdmin bool) *gorm.DB {
	if isAdmin {
		return r.db.Model(&models.User{}).Where("id <> ?", callerID)
	}
	return r.db.Model(&models.User{}).Where("created_by_user_id = ?", callerID)
}

// ListEligible returns the users the caller is permitted to target.
func (r *UserRepository) ListEligible(callerID uuid.UUID, isAdmin bool) ([]models.User, error) {
	var users []models.User
	err := r.eligibleQuery(callerID, isAdmin).Order("username").Find(&users).Error
	return users, err
}

// ListEligibleIDs returns the eligible set as ids, optionally intersected
// with a selection. An empty selection means the full eligible set.
func (r *UserRepository) ListEligibleIDs(callerID uuid.UUID, isAdmin bool, selected []uuid.UUID) ([]uuid.UUID, error) {
	q := r.eligibleQuery(callerID, isAdmin)
	if len(selected) > 0 {
		q = q.Where("id IN ?", selected)
	}
	var ids []uuid.UUID
	err := q.Pluck("id", &ids).Error
	return ids, err
}
