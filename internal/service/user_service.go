package service

import (
	"errors"
	"strings"

	"notify24/internal/domain"
	"notify24/internal/models"
	"notify24/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists    = errors.New("email already registered")
	ErrUsernameExists = errors.New("username already taken")
	ErrNotPermitted   = errors.New("not permitted")
	ErrUserNotFound   = errors.New("user not found")
)

// UserService manages the accounts a caller may notify. Every created user
// records its creator; that link is what scopes the eligible target set for
// non-admin senders.
type UserService struct {
	userRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) Create(callerID uuid.UUID, callerIsAdmin bool, username, email, password, fullName, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrValidation
	}

	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByUsername(username); err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Only admins may mint other admins.
	if role != domain.RoleAdmin || !callerIsAdmin {
		role = domain.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	creator := callerID
	u := &models.User{
		Username:        username,
		Email:           email,
		PasswordHash:    string(hash),
		FullName:        strings.TrimSpace(fullName),
		Role:            role,
		CreatedByUserID: &creator,
	}
	if err := s.userRepo.Create(u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListEligible returns the users the caller may target with a dispatch.
func (s *UserService) ListEligible(callerID uuid.UUID, isAdmin bool) ([]models.User, error) {
	return s.userRepo.ListEligible(callerID, isAdmin)
}

func (s *UserService) Update(callerID uuid.UUID, callerIsAdmin bool, id uuid.UUID, fullName *string, password *string) (*models.User, error) {
	u, err := s.loadOwned(callerID, callerIsAdmin, id)
	if err != nil {
		return nil, err
	}
	if fullName != nil {
		u.FullName = strings.TrimSpace(*fullName)
	}
	if password != nil && *password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.userRepo.Update(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Delete(callerID uuid.UUID, callerIsAdmin bool, id uuid.UUID) error {
	if _, err := s.loadOwned(callerID, callerIsAdmin, id); err != nil {
		return err
	}
	return s.userRepo.Delete(id)
}

// loadOwned fetches the user and enforces that the caller is an admin or the
// account's creator.
func (s *UserService) loadOwned(callerID uuid.UUID, callerIsAdmin bool, id uuid.UUID) (*models.User, error) {
	u, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if callerIsAdmin {
		return u, nil
	}
	if u.CreatedByUserID == nil || *u.CreatedByUserID != callerID {
		return nil, ErrNotPermitted
	}
	return u, nil
}
