package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/restaurant-storefront/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func startHub(t *testing.T, snapshot SnapshotFunc) (*Hub, chan models.StatusEvent, string) {
	t.Helper()
	hub := NewHub([]string{"http://menu.example"}, snapshot, quietLogger())
	events := make(chan models.StatusEvent, 4)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx, events)
	t.Cleanup(cancel)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)
	return hub, events, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_SnapshotThenBroadcast(t *testing.T) {
	open := true
	hub, events, url := startHub(t, func(context.Context) (models.StatusEvent, bool) {
		return models.StatusEvent{Kind: models.StatusEventRestaurant, Open: &open, Source: "snapshot"}, true
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, "restaurant_status", first.Type)
	assert.Equal(t, "snapshot", first.Data.Source)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	events <- models.StatusEvent{Kind: models.StatusEventSettingsSaved, Source: "admin"}
	second := readMessage(t, conn)
	assert.Equal(t, "settings_saved", second.Type)
	assert.Equal(t, "admin", second.Data.Source)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, _, url := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, _, url := startHub(t, nil)

	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://menu.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestOriginChecker_Wildcard(t *testing.T) {
	check := originChecker([]string{"*"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "http://anything.example")
	assert.True(t, check(r))
}
