package status

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

// Publisher mirrors status events to other storefront replicas.
type Publisher interface {
	PublishStatus(ctx context.Context, event models.StatusEvent) error
}

type Service struct {
	kv          storage.KV
	broadcaster *Broadcaster
	publisher   Publisher
	source      string
	logger      *logrus.Logger
	now         func() time.Time
}

// NewService wires the status flag to storage and the broadcaster. kv must be
// the process-wide store, not a session-scoped one. publisher may be nil.
func NewService(kv storage.KV, broadcaster *Broadcaster, publisher Publisher, source string, logger *logrus.Logger) *Service {
	return &Service{
		kv:          kv,
		broadcaster: broadcaster,
		publisher:   publisher,
		source:      source,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) Source() string {
	return s.source
}

func (s *Service) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// IsOpen reads the persisted flag. A missing or unreadable flag means open.
func (s *Service) IsOpen(ctx context.Context) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, storage.KeyRestaurantOpen)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}
	open, err := cast.ToBoolE(raw)
	if err != nil {
		s.logger.WithField("value", raw).Warn("Unreadable restaurant status, assuming open")
		return true, nil
	}
	return open, nil
}

// SetOpen persists the flag and notifies every listener.
func (s *Service) SetOpen(ctx context.Context, open bool) (models.StatusEvent, error) {
	if err := s.kv.Set(ctx, storage.KeyRestaurantOpen, strconv.FormatBool(open)); err != nil {
		return models.StatusEvent{}, err
	}

	event := models.StatusEvent{
		Kind:   models.StatusEventRestaurant,
		Open:   &open,
		At:     s.now().UTC(),
		Source: s.source,
	}
	s.emit(ctx, event)

	s.logger.WithField("open", open).Info("Restaurant status changed")
	return event, nil
}

// SettingsSaved tells listeners that admin settings changed.
func (s *Service) SettingsSaved(ctx context.Context) models.StatusEvent {
	event := models.StatusEvent{
		Kind:   models.StatusEventSettingsSaved,
		At:     s.now().UTC(),
		Source: s.source,
	}
	s.emit(ctx, event)
	return event
}

// Apply delivers an event that arrived from another replica. Events that
// originated here were already delivered and are skipped.
func (s *Service) Apply(ctx context.Context, event models.StatusEvent) error {
	if event.Source == s.source {
		return nil
	}
	if event.Kind == models.StatusEventRestaurant && event.Open != nil {
		if err := s.kv.Set(ctx, storage.KeyRestaurantOpen, strconv.FormatBool(*event.Open)); err != nil {
			return err
		}
	}
	s.broadcaster.Publish(event)
	return nil
}

func (s *Service) emit(ctx context.Context, event models.StatusEvent) {
	s.broadcaster.Publish(event)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStatus(ctx, event); err != nil {
		s.logger.WithError(err).WithField("kind", event.Kind).Warn("Failed to mirror status event")
	}
}
