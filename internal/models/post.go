package models

import (
	"time"

	"gorm.io/gorm"
)

// Platform identifies a publishing target.
type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
)

// Platforms lists every publishing target.
var Platforms = []Platform{PlatformLinkedIn, PlatformInstagram, PlatformFacebook}

func (p Platform) Valid() bool {
	switch p {
	case PlatformLinkedIn, PlatformInstagram, PlatformFacebook:
		return true
	}
	return false
}

// CredentialKind maps a platform to the service kind of the credential that
// authorizes publishing to it.
func (p Platform) CredentialKind() ServiceKind {
	return ServiceKind(p)
}

// PostStatus is the delivery lifecycle state of a post.
//
//	draft -> pending -> posted | failed | cancelled
//
// posted and cancelled are terminal; failed can re-enter pending through a
// user-initiated retry.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPending   PostStatus = "pending"
	StatusPosted    PostStatus = "posted"
	StatusFailed    PostStatus = "failed"
	StatusCancelled PostStatus = "cancelled"
)

func (s PostStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPosted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Post is one platform-targeted piece of generated content. RetryCount always
// equals the number of error log entries recorded for the post.
type Post struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	TopicID       uint           `gorm:"not null;index" json:"topic_id"`
	Platform      Platform       `gorm:"not null;size:50;index" json:"platform"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	Hashtags      string         `gorm:"type:text" json:"hashtags"`
	ImageURL      string         `gorm:"size:1024" json:"image_url"`
	Tone          Tone           `gorm:"not null;size:50;default:'professional'" json:"tone"`
	Status        PostStatus     `gorm:"not null;size:50;default:'draft';index" json:"status"`
	ScheduledTime *time.Time     `gorm:"index" json:"scheduled_time"`
	PostedAt      *time.Time     `json:"posted_at"`
	RemotePostID  string         `gorm:"size:255" json:"remote_post_id"`
	RetryCount    int            `gorm:"not null;default:0" json:"retry_count"`
	LastError     string         `gorm:"type:text" json:"last_error"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	Topic     Topic      `gorm:"foreignKey:TopicID" json:"topic"`
	ErrorLogs []ErrorLog `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// ErrorLog is an append-only record of one failed delivery attempt. Entries
// are never mutated; they disappear only when their post is deleted.
type ErrorLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PostID        uint      `gorm:"not null;index" json:"post_id"`
	ErrorMessage  string    `gorm:"type:text;not null" json:"error_message"`
	ErrorType     string    `gorm:"size:255" json:"error_type"`
	AttemptNumber int       `gorm:"not null" json:"attempt_number"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
