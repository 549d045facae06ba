package models

import (
	"time"

	"gorm.io/gorm"
)

// Tone selects the writing style content is generated with.
type Tone string

const (
	ToneProfessional  Tone = "professional"
	ToneCasual        Tone = "casual"
	ToneEducational   Tone = "educational"
	ToneInspirational Tone = "inspirational"
)

func (t Tone) Valid() bool {
	switch t {
	case ToneProfessional, ToneCasual, ToneEducational, ToneInspirational:
		return true
	}
	return false
}

// Topic groups the posts produced by one generation request.
type Topic struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Name        string         `gorm:"not null;size:500;index" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Tone        Tone           `gorm:"not null;size:50;default:'professional'" json:"tone"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	Posts []Post `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"-"`
}
