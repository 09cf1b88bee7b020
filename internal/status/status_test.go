package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.StatusEvent
	err    error
}

func (p *fakePublisher) PublishStatus(_ context.Context, event models.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func receive(t *testing.T, sub *Subscription) models.StatusEvent {
	t.Helper()
	select {
	case event, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return models.StatusEvent{}
}

func TestBroadcaster_FanOutAndUnsubscribe(t *testing.T) {
	b := NewBroadcaster(quietLogger())
	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())

	b.Publish(models.StatusEvent{Kind: models.StatusEventSettingsSaved})
	assert.Equal(t, models.StatusEventSettingsSaved, receive(t, first).Kind)
	assert.Equal(t, models.StatusEventSettingsSaved, receive(t, second).Kind)

	b.Unsubscribe(first)
	_, ok := <-first.C
	assert.False(t, ok)
	assert.Equal(t, 1, b.Subscribers())

	// double unsubscribe is harmless
	b.Unsubscribe(first)
	b.Unsubscribe(nil)
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(quietLogger())
	sub := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish(models.StatusEvent{Kind: models.StatusEventSettingsSaved})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.C, subscriberBuffer)
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(quietLogger())
	sub := b.Subscribe()
	b.Close()
	b.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	late := b.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
}

func TestService_DefaultsToOpen(t *testing.T) {
	kv := storage.NewMemoryStore()
	svc := NewService(kv, NewBroadcaster(quietLogger()), nil, "replica-a", quietLogger())

	open, err := svc.IsOpen(context.Background())
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, kv.Set(context.Background(), storage.KeyRestaurantOpen, "garbage"))
	open, err = svc.IsOpen(context.Background())
	require.NoError(t, err)
	assert.True(t, open)
}

func TestService_SetOpenPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	b := NewBroadcaster(quietLogger())
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewService(kv, b, pub, "replica-a", quietLogger())
	sub := b.Subscribe()

	event, err := svc.SetOpen(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, event.Open)
	assert.False(t, *event.Open)
	assert.Equal(t, "replica-a", event.Source)

	open, err := svc.IsOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)

	got := receive(t, sub)
	assert.Equal(t, models.StatusEventRestaurant, got.Kind)
	assert.Len(t, pub.events, 1, "publisher failure must not fail the change")

	svc.SettingsSaved(ctx)
	assert.Equal(t, models.StatusEventSettingsSaved, receive(t, sub).Kind)
}

func TestService_ApplySkipsOwnEvents(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	b := NewBroadcaster(quietLogger())
	svc := NewService(kv, b, nil, "replica-a", quietLogger())
	sub := b.Subscribe()

	closed := false
	require.NoError(t, svc.Apply(ctx, models.StatusEvent{Kind: models.StatusEventRestaurant, Open: &closed, Source: "replica-a"}))
	assert.Len(t, sub.C, 0)

	require.NoError(t, svc.Apply(ctx, models.StatusEvent{Kind: models.StatusEventRestaurant, Open: &closed, Source: "replica-b"}))
	assert.Equal(t, "replica-b", receive(t, sub).Source)

	open, err := svc.IsOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)
}
