package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHub sets up a Hub behind a test HTTP server that upgrades connections.
func testHub(t *testing.T) (*Hub, func() *ws.Conn) {
	t.Helper()

	hub := NewHub()
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := hub.Register(conn); err != nil {
			return
		}

		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(func() { server.Close() })

	dial := func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

func waitForClientCount(hub *Hub, expected int) bool {
	for i := 0; i < 100; i++ {
		if hub.ClientCount() == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub, dial := testHub(t)

	conn := dial()
	require.True(t, waitForClientCount(hub, 1))

	hub.Broadcast(map[string]string{"account_name": "alice", "status": "BOOSTING"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(msg, &result))
	assert.Equal(t, "alice", result["account_name"])
	assert.Equal(t, "BOOSTING", result["status"])
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub, dial := testHub(t)

	conns := []*ws.Conn{dial(), dial(), dial()}
	require.True(t, waitForClientCount(hub, 3))

	hub.Broadcast(map[string]string{"status": "ONLINE"})

	for _, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(msg), "ONLINE")
	}
}

func TestHubUnregisterOnDisconnect(t *testing.T) {
	hub, dial := testHub(t)

	conn := dial()
	require.True(t, waitForClientCount(hub, 1))

	conn.Close()
	require.True(t, waitForClientCount(hub, 0))
}

func TestHubStopDisconnectsClients(t *testing.T) {
	hub := NewHub()

	hub.Broadcast(map[string]string{"status": "ONLINE"})
	hub.Stop()
}
