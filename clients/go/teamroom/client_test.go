package teamroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("TEAMROOM_CONFIG", t.TempDir())
	t.Setenv("TEAMROOM_USER", "")
	return NewClient(srv.URL)
}

func TestRegisterSavesIdentity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Olga", req["name"])
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"u-1","name":"Olga","email":"olga@example.com"}`)
	})
	mux.HandleFunc("POST /rooms/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u-1", r.Header.Get(UserHeader))
		assert.Equal(t, "r-1", r.PathValue("id"))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"m-1","seq":3,"content":"hi","sender_name":"Olga"}`)
	})
	c := newTestClient(t, mux)

	u, err := c.Register(context.Background(), "Olga", "olga@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)

	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "user.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"u-1"`)

	reloaded := NewClient(c.BaseURL)
	assert.Equal(t, "u-1", reloaded.UserID)

	msg, err := c.PostMessage(context.Background(), "r-1", "hi")
	require.NoError(t, err)
	assert.EqualValues(t, 3, msg.Seq)
}

func TestAPIErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"room not found"}`)
	}))

	_, err := c.GetMessages(context.Background(), "r-1", 20, 0)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "room not found", apiErr.Message)

	_, err = c.PostMessage(context.Background(), "r-1", "hi")
	assert.ErrorContains(t, err, "register first")
}

func TestGetMessagesQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms/r-1/messages", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "42", r.URL.Query().Get("before"))
		fmt.Fprint(w, `{"room":{"id":"r-1","name":"General"},"messages":[{"id":"a","seq":40},{"id":"b","seq":41}],"has_more":true}`)
	}))

	page, err := c.GetMessages(context.Background(), "r-1", 5, 42)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "b", page.Messages[1].ID)
}

func TestSetTeam(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/projects/p-1/team", r.URL.Path)
		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{}, body["persona_ids"])
		fmt.Fprint(w, `{"project_id":"p-1","team":[],"team_size":0}`)
	}))

	team, err := c.SetTeam(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Empty(t, team)
}

func TestTail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms/r-1/events", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		fmt.Fprint(w, "id: 1\nevent: message\ndata: {\"id\":\"a\",\"content\":\"first\"}\n\n")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "id: 2\nevent: message\ndata: {\"id\":\"b\",\"content\":\"second\"}\n\n")
	}))

	var got []string
	err := c.Tail(context.Background(), "r-1", func(m Message) error {
		got = append(got, m.Content)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got)

	stop := errors.New("stop")
	err = c.Tail(context.Background(), "r-1", func(m Message) error { return stop })
	assert.ErrorIs(t, err, stop)
}
