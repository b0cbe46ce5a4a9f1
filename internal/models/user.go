package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID              uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	Username        string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email           string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash    string         `gorm:"size:255" json:"-"`
	FullName        string         `gorm:"size:255" json:"full_name"`
	Role            string         `gorm:"size:20;not null;index" json:"role"` // ADMIN | USER
	CreatedByUserID *uuid.UUID     `gorm:"type:char(36);index" json:"created_by_user_id"`
	IsOnline        bool           `gorm:"default:false;index" json:"is_online"`
	LastSeenAt      *time.Time     `json:"last_seen_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
