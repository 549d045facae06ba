package models

import (
	"time"

	"gorm.io/gorm"
)

// ServiceKind identifies the external service a credential belongs to.
type ServiceKind string

const (
	ServiceOpenAI    ServiceKind = "openai"
	ServiceGemini    ServiceKind = "gemini"
	ServiceLinkedIn  ServiceKind = "linkedin"
	ServiceInstagram ServiceKind = "instagram"
	ServiceFacebook  ServiceKind = "facebook"
)

// ServiceKinds lists every supported kind, generation providers first.
var ServiceKinds = []ServiceKind{
	ServiceOpenAI,
	ServiceGemini,
	ServiceLinkedIn,
	ServiceInstagram,
	ServiceFacebook,
}

func (k ServiceKind) Valid() bool {
	switch k {
	case ServiceOpenAI, ServiceGemini, ServiceLinkedIn, ServiceInstagram, ServiceFacebook:
		return true
	}
	return false
}

// IsGeneration reports whether the kind is a content-generation provider
// rather than a publishing platform.
func (k ServiceKind) IsGeneration() bool {
	return k == ServiceOpenAI || k == ServiceGemini
}

// Credential stores one encrypted secret per (user, service kind). The
// plaintext never persists; MaskedKey is the only displayable form.
type Credential struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	Kind          ServiceKind    `gorm:"not null;size:50;index" json:"kind"`
	Ciphertext    string         `gorm:"type:text;not null" json:"-"`
	MaskedKey     string         `gorm:"size:255" json:"masked_key"`
	IsValid       bool           `gorm:"default:true" json:"is_valid"`
	LastValidated *time.Time     `json:"last_validated"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}
