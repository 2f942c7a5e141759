package world

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

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub.Handler(func(r *http.Request) string {
		return r.URL.Query().Get("room")
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) State {
	t.Helper()
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var st State
		require.NoError(t, conn.ReadJSON(&st))
		if st.Type == TypeState {
			return st
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, id, name string) string {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Message{Type: TypeJoin, ID: id, Name: name}))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var welcome Message
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, TypeWelcome, welcome.Type)
	require.NotEmpty(t, welcome.ID)
	return welcome.ID
}

func TestJoinUpdateBroadcast(t *testing.T) {
	hub, url := startHub(t)

	a := dial(t, url+"?room=840000")
	idA := join(t, a, "alice", "Alice")
	assert.Equal(t, "alice", idA)
	st := readState(t, a)
	assert.Equal(t, Player{Name: "Alice"}, st.Players["alice"])

	b := dial(t, url+"?room=840000")
	idB := join(t, b, "", "Bob")
	assert.NotEqual(t, idA, idB, "uuid assigned")
	readState(t, b)
	st = readState(t, a)
	assert.Len(t, st.Players, 2)

	require.NoError(t, b.WriteJSON(Message{Type: TypeUpdate, ID: idB, Pos: &Vec3{X: 1, Y: 2, Z: 3}}))
	st = readState(t, a)
	assert.Equal(t, Vec3{1, 2, 3}, st.Players[idB].Vec3)
	assert.Equal(t, "Bob", st.Players[idB].Name)

	assert.Equal(t, map[string]int{"840000": 2}, hub.Rooms())
}

func TestRoomsAreIsolated(t *testing.T) {
	hub, url := startHub(t)

	a := dial(t, url+"?room=1")
	join(t, a, "a", "")
	readState(t, a)

	b := dial(t, url+"?room=2")
	join(t, b, "b", "")
	st := readState(t, b)
	assert.Len(t, st.Players, 1)

	assert.Len(t, hub.Players("1"), 1)
	assert.Len(t, hub.Players("2"), 1)
	assert.Empty(t, hub.Players("3"))
}

func TestLeaveRemovesPlayer(t *testing.T) {
	hub, url := startHub(t)

	a := dial(t, url+"?room=9")
	join(t, a, "a", "")
	readState(t, a)

	b := dial(t, url+"?room=9")
	join(t, b, "b", "")
	readState(t, b)
	readState(t, a)

	b.Close()
	st := readState(t, a)
	assert.Equal(t, []string{"a"}, keys(st.Players))

	assert.Eventually(t, func() bool { return hub.Rooms()["9"] == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestDuplicateIDGetsFreshOne(t *testing.T) {
	_, url := startHub(t)

	a := dial(t, url+"?room=5")
	join(t, a, "same", "")
	b := dial(t, url+"?room=5")
	assert.NotEqual(t, "same", join(t, b, "same", ""))
}

func TestMissingRoom(t *testing.T) {
	_, url := startHub(t)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func keys(m map[string]Player) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
