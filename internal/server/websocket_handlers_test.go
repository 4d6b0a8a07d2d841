package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"snapshare/internal/notifications"
	"snapshare/internal/testutil"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves the app on a loopback port and returns its websocket URL.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.ShutdownWithTimeout(time.Second) })
	return "ws://" + ln.Addr().String() + "/api/v1/ws"
}

func dial(t *testing.T, url, token string) (*gorillaws.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := gorillaws.Dialer{HandshakeTimeout: 2 * time.Second}
	return dialer.Dial(url, header)
}

func TestWebsocket_RequiresAuth(t *testing.T) {
	env := newTestServer(t)
	url := env.listen(t)

	conn, resp, err := dial(t, url, "")
	require.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocket_DeliversLikeToAuthor(t *testing.T) {
	env := newTestServer(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	post := testutil.CreatePost(t, env.db, alice.ID, "sunset")
	url := env.listen(t)

	conn, resp, err := dial(t, url, env.tokenFor(t, alice.ID, alice.Username))
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return env.srv.hub.ConnectionCount(alice.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, env.srv.hub.IsOnline(alice.ID))

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))

	likeResp, _ := env.do(t, jsonRequest(http.MethodGet, fmt.Sprintf("/api/v1/post/%d/like", post.ID), nil,
		env.tokenFor(t, bob.ID, bob.Username)))
	require.Equal(t, http.StatusOK, likeResp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)

	var ev notifications.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, notifications.EventLike, ev.Type)
	assert.Equal(t, bob.ID, ev.ActorID)
	assert.Equal(t, post.ID, ev.PostID)
	require.NotNil(t, ev.Actor)
	assert.Equal(t, "bob", ev.Actor.Username)

	_ = conn.Close()
	require.Eventually(t, func() bool {
		return env.srv.hub.ConnectionCount(alice.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
