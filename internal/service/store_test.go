package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iadityaojha/postflow/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Credential{},
		&models.Topic{},
		&models.Post{},
		&models.ErrorLog{},
	))
	return db
}

func seedPost(t *testing.T, db *gorm.DB, userID uint, status models.PostStatus) *models.Post {
	t.Helper()
	topic := models.Topic{UserID: userID, Name: "Go concurrency patterns", Tone: models.ToneProfessional}
	require.NoError(t, db.Create(&topic).Error)

	post := models.Post{
		UserID:   userID,
		TopicID:  topic.ID,
		Platform: models.PlatformLinkedIn,
		Content:  "Goroutines are cheap, but unbounded goroutines are not.",
		Hashtags: "#golang,#concurrency",
		Tone:     models.ToneProfessional,
		Status:   status,
	}
	require.NoError(t, db.Create(&post).Error)
	return &post
}

func TestDuePendingSelection(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)
	now := time.Now().UTC()

	unscheduled := seedPost(t, db, 1, models.StatusPending)
	past := seedPost(t, db, 1, models.StatusPending)
	require.NoError(t, db.Model(past).Update("scheduled_time", now.Add(-time.Hour)).Error)
	future := seedPost(t, db, 1, models.StatusPending)
	require.NoError(t, db.Model(future).Update("scheduled_time", now.Add(time.Hour)).Error)
	seedPost(t, db, 1, models.StatusDraft)
	seedPost(t, db, 1, models.StatusFailed)

	due, err := store.DuePending(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)

	ids := []uint{due[0].ID, due[1].ID}
	assert.Contains(t, ids, unscheduled.ID)
	assert.Contains(t, ids, past.ID)
}

func TestApproveOnlyFromDraft(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	draft := seedPost(t, db, 1, models.StatusDraft)
	when := time.Now().UTC().Add(2 * time.Hour)

	approved, err := store.Approve(ctx, 1, draft.ID, &when)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, approved.Status)
	require.NotNil(t, approved.ScheduledTime)

	for _, status := range []models.PostStatus{models.StatusPosted, models.StatusCancelled, models.StatusFailed} {
		post := seedPost(t, db, 1, status)
		_, err := store.Approve(ctx, 1, post.ID, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		var unchanged models.Post
		require.NoError(t, db.First(&unchanged, post.ID).Error)
		assert.Equal(t, status, unchanged.Status, "rejected transition must not mutate state")
	}
}

func TestCancelOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	pending := seedPost(t, db, 1, models.StatusPending)
	cancelled, err := store.Cancel(ctx, 1, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ScheduledTime)

	// Cancelled is terminal: a second cancel is rejected.
	_, err = store.Cancel(ctx, 1, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	draft := seedPost(t, db, 1, models.StatusDraft)
	_, err = store.Cancel(ctx, 1, draft.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var unchanged models.Post
	require.NoError(t, db.First(&unchanged, draft.ID).Error)
	assert.Equal(t, models.StatusDraft, unchanged.Status)
}

func TestRetryPreservesRetryCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	failed := seedPost(t, db, 1, models.StatusFailed)
	require.NoError(t, db.Model(failed).Updates(map[string]any{
		"retry_count":    2,
		"scheduled_time": time.Now().UTC().Add(time.Hour),
	}).Error)

	retried, err := store.Retry(ctx, 1, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, retried.Status)
	assert.Nil(t, retried.ScheduledTime, "retry is immediate")

	var stored models.Post
	require.NoError(t, db.First(&stored, failed.ID).Error)
	assert.Equal(t, 2, stored.RetryCount, "retry keeps the attempt history")

	pending := seedPost(t, db, 1, models.StatusPending)
	_, err = store.Retry(ctx, 1, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionsCheckOwnership(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	post := seedPost(t, db, 1, models.StatusPending)

	_, err := store.Cancel(ctx, 2, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)

	var unchanged models.Post
	require.NoError(t, db.First(&unchanged, post.ID).Error)
	assert.Equal(t, models.StatusPending, unchanged.Status)
}

func TestRecordSuccessSetsPostedFields(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	post := seedPost(t, db, 1, models.StatusPending)
	at := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.RecordSuccess(ctx, post.ID, "urn:li:share:42", at))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, models.StatusPosted, stored.Status)
	assert.Equal(t, "urn:li:share:42", stored.RemotePostID)
	require.NotNil(t, stored.PostedAt)
	assert.WithinDuration(t, at, *stored.PostedAt, time.Second)
}

func TestRecordSuccessWinsOverConcurrentCancel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	post := seedPost(t, db, 1, models.StatusPending)

	// Cancel lands while the publish call is in flight; the completed
	// publish is the durable fact and overrides it.
	_, err := store.Cancel(ctx, 1, post.ID)
	require.NoError(t, err)
	require.NoError(t, store.RecordSuccess(ctx, post.ID, "media-1", time.Now().UTC()))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, models.StatusPosted, stored.Status)
}

func TestRecordFailureKeepsCountAndLogInSync(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	post := seedPost(t, db, 1, models.StatusPending)

	require.NoError(t, store.RecordFailure(ctx, post.ID, "transient", "linkedin API returned status 503", false))
	require.NoError(t, store.RecordFailure(ctx, post.ID, "rate_limited", "linkedin API returned status 429", false))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, models.StatusPending, stored.Status, "non-terminal failures leave the post pending")
	assert.Equal(t, 2, stored.RetryCount)
	assert.Equal(t, "linkedin API returned status 429", stored.LastError)

	var logs []models.ErrorLog
	require.NoError(t, db.Where("post_id = ?", post.ID).Order("attempt_number ASC").Find(&logs).Error)
	require.Len(t, logs, stored.RetryCount)
	assert.Equal(t, 1, logs[0].AttemptNumber)
	assert.Equal(t, "transient", logs[0].ErrorType)
	assert.Equal(t, 2, logs[1].AttemptNumber)

	require.NoError(t, store.RecordFailure(ctx, post.ID, "auth", "token expired", true))
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
}

func TestRecordFailureDoesNotOverrideCancel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	post := seedPost(t, db, 1, models.StatusPending)

	// The user cancels while the attempt is in flight. A failed attempt has
	// no external effect, so the cancel stands even when the failure is
	// terminal.
	_, err := store.Cancel(ctx, 1, post.ID)
	require.NoError(t, err)
	require.NoError(t, store.RecordFailure(ctx, post.ID, "auth", "token expired", true))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	assert.Equal(t, 1, stored.RetryCount, "the attempt is still recorded")
	assert.Equal(t, "token expired", stored.LastError)
}

func TestCreateManualPosts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	platforms := []models.Platform{models.PlatformLinkedIn, models.PlatformFacebook}
	topic, posts, err := store.CreateManual(ctx, 1, "Hand-written update", "https://cdn.example.com/pic.jpg", platforms, nil)
	require.NoError(t, err)

	assert.Contains(t, topic.Name, "Manual Post")
	require.Len(t, posts, 2)
	for i, post := range posts {
		assert.Equal(t, models.StatusPending, post.Status, "manual posts skip the draft stage")
		assert.Equal(t, platforms[i], post.Platform)
		assert.Equal(t, "https://cdn.example.com/pic.jpg", post.ImageURL)
		assert.Nil(t, post.ScheduledTime)
		assert.Equal(t, topic.ID, post.TopicID)
	}

	// Unscheduled manual posts are due immediately.
	due, err := store.DuePending(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestCreateManualScheduled(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)
	when := time.Now().UTC().Add(2 * time.Hour)

	_, posts, err := store.CreateManual(ctx, 1, "Scheduled update", "", []models.Platform{models.PlatformInstagram}, &when)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].ScheduledTime)

	due, err := store.DuePending(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, due, "scheduled manual posts wait for their slot")
}

func TestRecordSkipLeavesPostPending(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	post := seedPost(t, db, 1, models.StatusPending)
	require.NoError(t, store.RecordSkip(ctx, post.ID, "platform not configured"))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, "platform not configured", stored.LastError)
	assert.Zero(t, stored.RetryCount)

	var logCount int64
	require.NoError(t, db.Model(&models.ErrorLog{}).Where("post_id = ?", post.ID).Count(&logCount).Error)
	assert.Zero(t, logCount, "a skip is not a delivery attempt")
}

func TestUpdateContentOnlyDraftOrFailed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	draft := seedPost(t, db, 1, models.StatusDraft)
	tags := "#rewritten"
	updated, err := store.UpdateContent(ctx, 1, draft.ID, "New body", &tags)
	require.NoError(t, err)
	assert.Equal(t, "New body", updated.Content)
	assert.Equal(t, "#rewritten", updated.Hashtags)

	pending := seedPost(t, db, 1, models.StatusPending)
	_, err = store.UpdateContent(ctx, 1, pending.ID, "nope", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteRemovesErrorLogsButNotPostedPosts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	failed := seedPost(t, db, 1, models.StatusFailed)
	require.NoError(t, store.RecordFailure(ctx, failed.ID, "transient", "timeout", true))

	require.NoError(t, store.Delete(ctx, 1, failed.ID))

	var logCount int64
	require.NoError(t, db.Model(&models.ErrorLog{}).Where("post_id = ?", failed.ID).Count(&logCount).Error)
	assert.Zero(t, logCount)

	posted := seedPost(t, db, 1, models.StatusPosted)
	err := store.Delete(ctx, 1, posted.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetPreloadsErrorLogs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	post := seedPost(t, db, 1, models.StatusPending)
	require.NoError(t, store.RecordFailure(ctx, post.ID, "transient", "first", false))
	require.NoError(t, store.RecordFailure(ctx, post.ID, "transient", "second", false))

	got, err := store.Get(ctx, 1, post.ID)
	require.NoError(t, err)
	require.Len(t, got.ErrorLogs, 2)
	assert.Equal(t, "Go concurrency patterns", got.Topic.Name)

	_, err = store.Get(ctx, 2, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestListFiltersAndCounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	seedPost(t, db, 1, models.StatusDraft)
	seedPost(t, db, 1, models.StatusPending)
	seedPost(t, db, 1, models.StatusPending)
	seedPost(t, db, 2, models.StatusPending)

	posts, total, err := store.List(ctx, 1, models.StatusPending, "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, posts, 2)

	posts, total, err = store.List(ctx, 1, "", "", 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, posts, 2, "limit applies to the page, not the count")

	posts, total, err = store.List(ctx, 1, "", models.PlatformInstagram, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, posts)
}

func TestStatsCoversAllStatuses(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	seedPost(t, db, 1, models.StatusDraft)
	seedPost(t, db, 1, models.StatusPosted)
	seedPost(t, db, 1, models.StatusPosted)

	stats, err := store.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, stats, 5, "every lifecycle status is present even at zero")
	assert.EqualValues(t, 1, stats[models.StatusDraft])
	assert.EqualValues(t, 2, stats[models.StatusPosted])
	assert.EqualValues(t, 0, stats[models.StatusCancelled])
}

func TestUpcomingOrdersBySchedule(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)
	now := time.Now().UTC()

	later := seedPost(t, db, 1, models.StatusPending)
	require.NoError(t, db.Model(later).Update("scheduled_time", now.Add(3*time.Hour)).Error)
	sooner := seedPost(t, db, 1, models.StatusPending)
	require.NoError(t, db.Model(sooner).Update("scheduled_time", now.Add(time.Hour)).Error)
	seedPost(t, db, 1, models.StatusPending) // unscheduled, excluded

	upcoming, err := store.Upcoming(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, sooner.ID, upcoming[0].ID)
	assert.Equal(t, later.ID, upcoming[1].ID)
}

func TestTopicPosts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewPostStore(db)

	post := seedPost(t, db, 1, models.StatusDraft)

	posts, err := store.TopicPosts(ctx, 1, post.TopicID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, post.ID, posts[0].ID)

	_, err = store.TopicPosts(ctx, 2, post.TopicID)
	assert.ErrorIs(t, err, ErrTopicNotFound)

	topics, err := store.Topics(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, topics, 1)
}
