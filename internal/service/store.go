package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iadityaojha/postflow/internal/models"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrTopicNotFound = errors.New("topic not found")
	// ErrInvalidTransition is returned when a requested lifecycle change is
	// not allowed from the post's current status. State is left unchanged.
	ErrInvalidTransition = errors.New("invalid post state transition")
)

// PostStore owns the persisted post state machine. Every delivery attempt is
// committed as a single transaction (status, retry count, last error and the
// error log entry together), so a crash between posts never leaves a
// half-recorded attempt.
type PostStore struct {
	db *gorm.DB
}

func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

// DuePending returns all pending posts whose scheduled time is unset or has
// passed, oldest first.
func (s *PostStore) DuePending(ctx context.Context, now time.Time) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Where("scheduled_time IS NULL OR scheduled_time <= ?", now).
		Order("created_at ASC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due posts: %w", err)
	}
	return posts, nil
}

// RecordSuccess marks the post published. The update is unconditional on
// status: if a cancel raced the in-flight attempt, the completed publish
// wins and the post stays posted.
func (s *PostStore) RecordSuccess(ctx context.Context, postID uint, remotePostID string, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]any{
			"status":         models.StatusPosted,
			"posted_at":      at,
			"remote_post_id": remotePostID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// RecordFailure commits one failed attempt: retry count incremented, error
// log appended with the new attempt number, last error updated, and a
// still-pending post moved to failed when the attempt is terminal.
func (s *PostStore) RecordFailure(ctx context.Context, postID uint, errType, message string, terminal bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}

		attempt := post.RetryCount + 1
		entry := models.ErrorLog{
			PostID:        post.ID,
			ErrorMessage:  message,
			ErrorType:     errType,
			AttemptNumber: attempt,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		// A failed attempt has no durable external effect, so a cancel that
		// landed while the attempt was in flight stands; only a still-pending
		// post is promoted to failed.
		status := post.Status
		if terminal && post.Status == models.StatusPending {
			status = models.StatusFailed
		}
		return tx.Model(&post).Updates(map[string]any{
			"retry_count": attempt,
			"last_error":  message,
			"status":      status,
		}).Error
	})
}

// RecordSkip stores a reason the post was skipped without burning a retry.
// Used for configuration problems such as a missing platform credential.
func (s *PostStore) RecordSkip(ctx context.Context, postID uint, message string) error {
	return s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Update("last_error", message).Error
}

// CreateManual stores user-written content as pending posts, one per
// platform, under a synthetic topic. Manual posts skip the draft stage:
// writing the content is the approval.
func (s *PostStore) CreateManual(ctx context.Context, userID uint, content, imageURL string, platforms []models.Platform, scheduledTime *time.Time) (*models.Topic, []models.Post, error) {
	topic := &models.Topic{
		UserID:      userID,
		Name:        fmt.Sprintf("Manual Post - %s", time.Now().UTC().Format("2006-01-02 15:04")),
		Description: "Manually created post",
		Tone:        models.ToneProfessional,
	}

	var posts []models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(topic).Error; err != nil {
			return err
		}
		for _, platform := range platforms {
			post := models.Post{
				UserID:        userID,
				TopicID:       topic.ID,
				Platform:      platform,
				Content:       content,
				ImageURL:      imageURL,
				Tone:          models.ToneProfessional,
				Status:        models.StatusPending,
				ScheduledTime: scheduledTime,
			}
			if err := tx.Create(&post).Error; err != nil {
				return err
			}
			posts = append(posts, post)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create manual post: %w", err)
	}
	return topic, posts, nil
}

// Approve moves a draft to pending, optionally scheduled for the future.
func (s *PostStore) Approve(ctx context.Context, userID, postID uint, scheduledTime *time.Time) (*models.Post, error) {
	return s.transition(ctx, userID, postID, func(post *models.Post) error {
		if post.Status != models.StatusDraft {
			return fmt.Errorf("%w: only draft posts can be approved (status is %s)", ErrInvalidTransition, post.Status)
		}
		post.Status = models.StatusPending
		post.ScheduledTime = scheduledTime
		return nil
	})
}

// Cancel withdraws a pending post. Cancelled is terminal.
func (s *PostStore) Cancel(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return s.transition(ctx, userID, postID, func(post *models.Post) error {
		if post.Status != models.StatusPending {
			return fmt.Errorf("%w: only pending posts can be cancelled (status is %s)", ErrInvalidTransition, post.Status)
		}
		post.Status = models.StatusCancelled
		post.ScheduledTime = nil
		return nil
	})
}

// Retry re-queues a failed post for immediate delivery. The retry count is
// preserved so the error log stays consistent with it.
func (s *PostStore) Retry(ctx context.Context, userID, postID uint) (*models.Post, error) {
	return s.transition(ctx, userID, postID, func(post *models.Post) error {
		if post.Status != models.StatusFailed {
			return fmt.Errorf("%w: only failed posts can be retried (status is %s)", ErrInvalidTransition, post.Status)
		}
		post.Status = models.StatusPending
		post.ScheduledTime = nil
		return nil
	})
}

// UpdateContent edits the body/hashtags of a draft or failed post.
func (s *PostStore) UpdateContent(ctx context.Context, userID, postID uint, content string, hashtags *string) (*models.Post, error) {
	return s.transition(ctx, userID, postID, func(post *models.Post) error {
		if post.Status != models.StatusDraft && post.Status != models.StatusFailed {
			return fmt.Errorf("%w: only draft or failed posts can be edited (status is %s)", ErrInvalidTransition, post.Status)
		}
		post.Content = content
		if hashtags != nil {
			post.Hashtags = *hashtags
		}
		return nil
	})
}

// Delete removes a post and its error log entries. Published posts are kept
// as the permanent record of what went out.
func (s *PostStore) Delete(ctx context.Context, userID, postID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.owned(tx, userID, postID)
		if err != nil {
			return err
		}
		if post.Status == models.StatusPosted {
			return fmt.Errorf("%w: published posts cannot be deleted", ErrInvalidTransition)
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.ErrorLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
}

// Get loads one post with its topic and error log entries.
func (s *PostStore) Get(ctx context.Context, userID, postID uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("Topic").
		Preload("ErrorLogs", func(db *gorm.DB) *gorm.DB {
			return db.Order("error_logs.created_at ASC")
		}).
		Where("id = ? AND user_id = ?", postID, userID).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// List returns the user's posts, newest first, with optional status and
// platform filters.
func (s *PostStore) List(ctx context.Context, userID uint, status models.PostStatus, platform models.Platform, offset, limit int) ([]models.Post, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	err := query.Preload("Topic").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Stats counts the user's posts per lifecycle status.
func (s *PostStore) Stats(ctx context.Context, userID uint) (map[models.PostStatus]int64, error) {
	type row struct {
		Status models.PostStatus
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := map[models.PostStatus]int64{
		models.StatusDraft:     0,
		models.StatusPending:   0,
		models.StatusPosted:    0,
		models.StatusFailed:    0,
		models.StatusCancelled: 0,
	}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	return stats, nil
}

// Upcoming returns pending scheduled posts, soonest first.
func (s *PostStore) Upcoming(ctx context.Context, userID uint, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Preload("Topic").
		Where("user_id = ? AND status = ? AND scheduled_time IS NOT NULL", userID, models.StatusPending).
		Order("scheduled_time ASC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// Topics returns the user's topics, newest first.
func (s *PostStore) Topics(ctx context.Context, userID uint) ([]models.Topic, error) {
	var topics []models.Topic
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&topics).Error
	return topics, err
}

// TopicPosts returns the posts generated for one topic.
func (s *PostStore) TopicPosts(ctx context.Context, userID, topicID uint) ([]models.Post, error) {
	var topic models.Topic
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", topicID, userID).
		First(&topic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}

	var posts []models.Post
	err = s.db.WithContext(ctx).
		Where("topic_id = ?", topic.ID).
		Order("platform ASC").
		Find(&posts).Error
	return posts, err
}

// transition applies a state mutation to an owned post inside a transaction.
func (s *PostStore) transition(ctx context.Context, userID, postID uint, mutate func(*models.Post) error) (*models.Post, error) {
	var post *models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		post, err = s.owned(tx, userID, postID)
		if err != nil {
			return err
		}
		if err := mutate(post); err != nil {
			return err
		}
		return tx.Model(post).Select("status", "scheduled_time", "content", "hashtags").
			Updates(map[string]any{
				"status":         post.Status,
				"scheduled_time": post.ScheduledTime,
				"content":        post.Content,
				"hashtags":       post.Hashtags,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostStore) owned(tx *gorm.DB, userID, postID uint) (*models.Post, error) {
	var post models.Post
	err := tx.Where("id = ? AND user_id = ?", postID, userID).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}
