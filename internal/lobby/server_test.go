package lobby

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Registry) {
	t.Helper()
	registry := NewRegistry()
	srv, err := NewServer(registry)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, registry
}

// noRedirect returns a client that hands redirects back to the test.
func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func get(t *testing.T, u string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestLobby_EmptyListing(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Contains(t, body, "<title>BringTen - Lobby</title>")
	for _, id := range []string{"create_game_tab", "join_game_tab", "create_game_username", "create_game_room_name", "create_game_submit", "join_game_username"} {
		assert.Contains(t, body, `id="`+id+`"`)
	}
	assert.Contains(t, body, "No results found.")
}

func TestLobby_CreateRedirectsToRoom(t *testing.T) {
	t.Parallel()
	ts, registry := newTestServer(t)

	resp, err := noRedirect().PostForm(ts.URL+"/create", url.Values{"name": {"Akil"}, "room_name": {"Game Grumps"}})
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	rooms := registry.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "/games/"+rooms[0].ID, resp.Header.Get("Location"))

	cookies := map[string]string{}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}
	assert.Equal(t, rooms[0].Host().ID, cookies[cookiePlayerID])
	assert.Equal(t, "Akil", cookies[cookiePlayerName])

	_, body := get(t, ts.URL+"/")
	assert.NotContains(t, body, "No results found.")
	assert.Contains(t, body, `name="rooms" value="`+rooms[0].ID+`"`)
}

func TestLobby_JoinShowsPlayers(t *testing.T) {
	t.Parallel()
	ts, registry := newTestServer(t)
	room, _, err := registry.CreateRoom("Akil", "Game Grumps")
	require.NoError(t, err)

	resp, err := http.PostForm(ts.URL+"/join", url.Values{"name": {"Des"}, "rooms": {room.ID}})
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/games/"+room.ID, resp.Request.URL.Path)
	body := string(b)
	assert.Contains(t, body, "<title>BringTen - Game Grumps</title>")
	assert.Contains(t, body, "<li>Akil</li>")
	assert.Contains(t, body, "2/4 seats taken.")
	assert.Contains(t, body, `value="`+ts.URL+`/games/`+room.ID+`"`)
}

func TestLobby_FormErrors(t *testing.T) {
	t.Parallel()
	ts, registry := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/create", url.Values{"name": {""}, "room_name": {"x"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.PostForm(ts.URL+"/join", url.Values{"name": {"Des"}, "rooms": {"nope"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	room, _, err := registry.CreateRoom("Akil", "Game Grumps")
	require.NoError(t, err)
	for _, n := range []string{"Des", "Jabari", "Momz"} {
		_, _, err := registry.JoinRoom(room.ID, n)
		require.NoError(t, err)
	}
	resp, err = http.PostForm(ts.URL+"/join", url.Values{"name": {"Late"}, "rooms": {room.ID}})
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(b), "is full")

	resp2, _ := get(t, ts.URL+"/games/nope")
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestLobby_SecondRunJoinsItsOwnRoom(t *testing.T) {
	t.Parallel()
	ts, registry := newTestServer(t)

	first, _, err := registry.CreateRoom("Akil", "Game Grumps")
	require.NoError(t, err)
	for _, n := range []string{"Des", "Jabari", "Momz"} {
		_, _, err := registry.JoinRoom(first.ID, n)
		require.NoError(t, err)
	}
	second, _, err := registry.CreateRoom("Akil", "Game Grumps")
	require.NoError(t, err)

	_, body := get(t, ts.URL+"/")
	open := strings.Index(body, `value="`+second.ID+`">`)
	full := strings.Index(body, `value="`+first.ID+`" disabled>`)
	require.NotEqual(t, -1, open)
	require.NotEqual(t, -1, full)
	assert.Less(t, open, full, "the first join button belongs to the open room")
}

func TestRoomsAPI(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/rooms", "application/json", strings.NewReader(`{"host_name":"Akil","room_name":"Game Grumps"}`))
	require.NoError(t, err)
	var created struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, created.Success)
	assert.Equal(t, "Akil", created.Data["host_name"])
	assert.Equal(t, "Game Grumps", created.Data["room_name"])
	assert.NotEmpty(t, created.Data["host_id"])
	roomID, _ := created.Data["room_id"].(string)
	require.Len(t, roomID, roomIDSize)

	resp, err = http.Post(ts.URL+"/rooms/"+roomID+"/join", "application/json", strings.NewReader(`{"player_name":"Des"}`))
	require.NoError(t, err)
	var joined struct {
		Data seatResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&joined))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Des", joined.Data.PlayerName)
	assert.Equal(t, roomID, joined.Data.RoomID)

	resp, body := get(t, ts.URL+"/rooms")
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var listed struct {
		Data map[string]RoomSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &listed))
	assert.Equal(t, RoomSummary{ID: roomID, Name: "Game Grumps", Host: "Akil", NumPlayers: 2}, listed.Data[roomID])

	resp, err = http.Post(ts.URL+"/rooms/nope/join", "application/json", strings.NewReader(`{"player_name":"Des"}`))
	require.NoError(t, err)
	var failed apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&failed))
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, failed.Success)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "not_found", string(failed.Error.Code))

	resp, err = http.Post(ts.URL+"/rooms", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)
	resp, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"message":"ok","data":null,"error":null}`, body)
}
