package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

func dial(t *testing.T, handler *Handler) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n },
		2*time.Second, 10*time.Millisecond, "expected %d clients", n)
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{hub: hub, send: make(chan []byte, 1)}

	hub.Register(c)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-c.send
	assert.False(t, open, "send channel should be closed")

	hub.Unregister(c) // second call is a no-op
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast([]byte("one"))
	hub.Broadcast([]byte("two")) // must not block

	assert.Equal(t, []byte("one"), <-c.send)
	assert.Len(t, c.send, 0)
}

func TestHandler_HelloOnConnect(t *testing.T) {
	hub := NewHub(nil)
	handler := NewHandler(hub, func() HelloPayload { return HelloPayload{Records: 7} }, nil)

	conn, cleanup := dial(t, handler)
	defer cleanup()

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeHello, env.Type)
	var hello HelloPayload
	require.NoError(t, json.Unmarshal(env.Payload, &hello))
	assert.Equal(t, 7, hello.Records)
}

func TestHandler_BroadcastReachesClients(t *testing.T) {
	hub := NewHub(nil)
	handler := NewHandler(hub, nil, nil)

	conn1, cleanup1 := dial(t, handler)
	defer cleanup1()
	conn2, cleanup2 := dial(t, handler)
	defer cleanup2()
	waitForClients(t, hub, 2)

	rec := models.PredictionRecord{ID: 3, Timestamp: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), Hour: 9, PredictedKWh: 1.25}
	msg, err := PredictionAdded(rec)
	require.NoError(t, err)
	hub.Broadcast(msg)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		env := readEnvelope(t, conn)
		assert.Equal(t, TypePredictionAdded, env.Type)
		var got models.PredictionRecord
		require.NoError(t, json.Unmarshal(env.Payload, &got))
		assert.Equal(t, int64(3), got.ID)
		assert.Equal(t, 1.25, got.PredictedKWh)
	}
}

func TestHandler_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	handler := NewHandler(hub, nil, nil)

	conn, cleanup := dial(t, handler)
	defer cleanup()
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(nil)
	handler := NewHandler(hub, nil, nil)

	conn, cleanup := dial(t, handler)
	defer cleanup()
	waitForClients(t, hub, 1)

	hub.CloseAll()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "client should observe the close")
}
