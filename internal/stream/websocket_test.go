package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"autoguard/internal/model"
)

func mustField(t *testing.T, raw json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	v, ok := m[key]
	require.True(t, ok, "missing %q in %s", key, raw)
	return v
}

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) RawEnvelope {
	t.Helper()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	env, err := DecodeEnvelope(data)
	require.NoError(t, err)
	return env
}

func TestWebSocketStreamsEvents(t *testing.T) {
	bus := NewBus(discardLogger())
	srv := httptest.NewServer(NewWebSocketHandler(bus, WebSocketOptions{Buffer: 8}, discardLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	hello := readEnvelope(t, ctx, conn)
	assert.Equal(t, model.EventConnected, hello.Event)
	assert.JSONEq(t, `"Connected to monitoring system"`, string(mustField(t, hello.Payload, "message")))
	require.Equal(t, 1, bus.Subscribers())

	bus.Publish(model.EventAutoHealComplete, model.AutoHealResult{AlertID: 3, Status: model.StatusSuccess})
	env := readEnvelope(t, ctx, conn)
	assert.Equal(t, model.EventAutoHealComplete, env.Event)
	assert.JSONEq(t, `"success"`, string(mustField(t, env.Payload, "status")))

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool { return bus.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	bus := NewBus(discardLogger())
	srv := httptest.NewServer(NewWebSocketHandler(bus, WebSocketOptions{OriginPatterns: []string{"localhost:3000"}}, discardLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Origin": {"http://evil.example"}},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
	assert.Equal(t, 0, bus.Subscribers())
}
