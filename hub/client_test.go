package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, h *Hub, sheetID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, sheetID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestServeWS_RoundTrip(t *testing.T) {
	h, _ := newTestHub()
	alice := dial(t, h, "s1")
	bob := dial(t, h, "s1")
	require.Eventually(t, func() bool { return h.Sessions("s1") == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join", "username": "alice"}))
	assert.Equal(t, TypeUserPresence, readFrame(t, alice)["type"])
	assert.Equal(t, TypeUserPresence, readFrame(t, bob)["type"])

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("garbage")))
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "cell_update", "cellRef": "C3", "value": "7"}))
	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, conn)
		assert.Equal(t, "cell_update", frame["type"])
		assert.Equal(t, 7.0, frame["value"])
		assert.Equal(t, 1.0, frame["version"])
	}
}

func TestServeWS_CloseLeavesRoster(t *testing.T) {
	h, _ := newTestHub()
	alice := dial(t, h, "s1")
	bob := dial(t, h, "s1")
	require.Eventually(t, func() bool { return h.Sessions("s1") == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join", "username": "alice"}))
	readFrame(t, bob)
	require.NoError(t, bob.WriteJSON(map[string]any{"type": "join", "username": "bob"}))
	readFrame(t, bob)

	require.NoError(t, alice.Close())
	frame := readFrame(t, bob)
	assert.Equal(t, []string{"bob"}, usernames(frame))
	assert.Eventually(t, func() bool { return h.Sessions("s1") == 1 }, time.Second, 10*time.Millisecond)
}
