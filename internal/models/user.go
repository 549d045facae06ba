package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string         `gorm:"not null;size:255" json:"-"`
	FullName     string         `gorm:"size:255" json:"full_name"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	LastLogin    *time.Time     `json:"last_login"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	Credentials []Credential `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Topics      []Topic      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Posts       []Post       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
