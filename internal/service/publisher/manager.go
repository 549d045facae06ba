package publisher

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/iadityaojha/postflow/internal/models"
)

// Manager is the platform -> publisher registry the scheduler dispatches
// through. Adding a platform means adding one Publisher implementation and
// registering it here.
type Manager struct {
	publishers map[models.Platform]Publisher
	logger     *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		publishers: make(map[models.Platform]Publisher),
		logger:     logger,
	}
}

func (m *Manager) Register(p Publisher) error {
	platform := p.Platform()
	if _, exists := m.publishers[platform]; exists {
		return fmt.Errorf("publisher for platform %s already registered", platform)
	}
	m.publishers[platform] = p
	m.logger.Info("Publisher registered", zap.String("platform", string(platform)))
	return nil
}

func (m *Manager) Get(platform models.Platform) (Publisher, error) {
	p, exists := m.publishers[platform]
	if !exists {
		return nil, fmt.Errorf("publisher for platform %s not found", platform)
	}
	return p, nil
}

// NewDefaultManager registers the three supported platforms.
func NewDefaultManager(logger *zap.Logger) (*Manager, error) {
	m := NewManager(logger)
	for _, p := range []Publisher{
		NewLinkedInPublisher(logger),
		NewInstagramPublisher(logger),
		NewFacebookPublisher(logger),
	} {
		if err := m.Register(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}
