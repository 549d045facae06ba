package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iadityaojha/postflow/internal/config"
	"github.com/iadityaojha/postflow/internal/models"
	"github.com/iadityaojha/postflow/internal/service/publisher"
	"github.com/iadityaojha/postflow/internal/service/vault"
)

// Scheduler is the delivery loop: on every poll interval it scans for
// pending posts that are due and drives each one through its platform
// publisher, committing the outcome before moving to the next post.
//
// One scheduler per store. Running two instances against the same database
// is unsupported and can double-deliver; a multi-instance deployment would
// need a per-post claim lease this design deliberately omits.
type Scheduler struct {
	config     *config.SchedulerConfig
	logger     *zap.Logger
	store      *PostStore
	vault      *vault.Vault
	publishers *publisher.Manager

	maxRetries     int
	publishTimeout time.Duration

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, store *PostStore, v *vault.Vault, publishers *publisher.Manager) *Scheduler {
	s := &Scheduler{
		config:     cfg,
		logger:     logger,
		store:      store,
		vault:      v,
		publishers: publishers,
		maxRetries: cfg.MaxRetries,
		stopCh:     make(chan struct{}),
	}
	if s.maxRetries <= 0 {
		s.maxRetries = 3
	}
	if d, err := time.ParseDuration(cfg.PublishTimeout); err == nil && d > 0 {
		s.publishTimeout = d
	} else {
		s.publishTimeout = 30 * time.Second
	}
	return s
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.Disabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.PollInterval)
	if err != nil {
		s.logger.Error("Invalid poll interval", zap.String("interval", s.config.PollInterval), zap.Error(err))
		return err
	}
	s.logger.Info("Starting delivery scheduler",
		zap.String("poll_interval", s.config.PollInterval),
		zap.Int("max_retries", s.maxRetries))

	s.ticker = time.NewTicker(interval)

	// The WaitGroup covers the polling goroutine's whole lifetime, so Stop
	// cannot observe a zero counter between a tick firing and the cycle
	// starting.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C:
				s.runCycle(ctx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

// Stop halts polling and waits for the in-flight cycle to finish committing
// its current post, so shutdown never leaves an attempt half-recorded.
func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Scheduler shutdown completed")
}

// runCycle executes one due-post scan. Posts are processed sequentially:
// retry bookkeeping stays simple and outbound concurrency against
// rate-limited platforms stays bounded.
func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()
	posts, err := s.store.DuePending(ctx, start.UTC())
	if err != nil {
		s.logger.Error("Due-post scan failed", zap.Error(err))
		return
	}
	if len(posts) == 0 {
		return
	}

	s.logger.Info("Delivering due posts", zap.Int("count", len(posts)))
	for i := range posts {
		s.deliver(ctx, &posts[i])
	}
	s.logger.Info("Delivery cycle completed",
		zap.Int("count", len(posts)),
		zap.Duration("duration", time.Since(start)))
}

func (s *Scheduler) deliver(ctx context.Context, post *models.Post) {
	log := s.logger.With(
		zap.Uint("post_id", post.ID),
		zap.String("platform", string(post.Platform)))

	kind := post.Platform.CredentialKind()

	// A missing credential is a configuration problem, not a delivery
	// failure: surface it and leave the post pending without burning a
	// retry.
	status, err := s.vault.Status(ctx, post.UserID)
	if err != nil {
		log.Error("Credential status lookup failed", zap.Error(err))
		return
	}
	if !status[kind] {
		log.Warn("Platform credential not configured, skipping")
		if err := s.store.RecordSkip(ctx, post.ID, "platform not configured"); err != nil {
			log.Error("Failed to record skip", zap.Error(err))
		}
		return
	}

	token, err := s.vault.RevealKind(ctx, post.UserID, kind)
	if err != nil {
		// Reveal failures (key rotation, corrupted row) behave like a bad
		// credential: terminal, no automatic retries.
		s.recordFailure(ctx, log, post, publisher.ErrAuth,
			fmt.Sprintf("credential unusable: %v", err))
		return
	}

	pub, err := s.publishers.Get(post.Platform)
	if err != nil {
		s.recordFailure(ctx, log, post, publisher.ErrPermanent, err.Error())
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	outcome := pub.Publish(publishCtx, token, publisher.Content{
		Body:     post.Content,
		Hashtags: splitHashtags(post.Hashtags),
		ImageURL: post.ImageURL,
	})
	cancel()

	if outcome.Success {
		if err := s.store.RecordSuccess(ctx, post.ID, outcome.RemotePostID, time.Now().UTC()); err != nil {
			log.Error("Failed to record publish success", zap.Error(err))
			return
		}
		log.Info("Post published", zap.String("remote_post_id", outcome.RemotePostID))
		return
	}

	s.recordFailure(ctx, log, post, outcome.Kind, outcome.Detail)
}

func (s *Scheduler) recordFailure(ctx context.Context, log *zap.Logger, post *models.Post, kind publisher.ErrorKind, detail string) {
	attempt := post.RetryCount + 1
	terminal := !kind.Retryable() || attempt >= s.maxRetries

	if err := s.store.RecordFailure(ctx, post.ID, string(kind), detail, terminal); err != nil {
		log.Error("Failed to record delivery failure", zap.Error(err))
		return
	}

	if terminal {
		log.Error("Post delivery failed permanently",
			zap.String("error_kind", string(kind)),
			zap.Int("attempts", attempt),
			zap.String("detail", detail))
	} else {
		log.Warn("Post delivery failed, will retry next cycle",
			zap.String("error_kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.String("detail", detail))
	}
}

func splitHashtags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
