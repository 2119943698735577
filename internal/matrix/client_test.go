package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/psds-microservice/support-relay/internal/errs"
	"github.com/psds-microservice/support-relay/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// homeserver отвечает на минимальный набор client-server вызовов.
type homeserver struct {
	mu     sync.Mutex
	direct map[string][]string
	levels map[string]any
	sent   []map[string]any
}

func (h *homeserver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case strings.Contains(path, "/account_data/m.direct") && r.Method == http.MethodGet:
		if h.direct == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errcode":"M_NOT_FOUND","error":"Account data not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(h.direct)
	case strings.Contains(path, "/account_data/m.direct") && r.Method == http.MethodPut:
		var body map[string][]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		h.direct = body
		_, _ = w.Write([]byte(`{}`))
	case strings.Contains(path, "/state/m.room.power_levels"):
		_ = json.NewEncoder(w).Encode(h.levels)
	case strings.Contains(path, "/send/m.room.message/"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		h.sent = append(h.sent, body)
		_, _ = w.Write([]byte(`{"event_id":"$sent"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errcode":"M_UNRECOGNIZED","error":"unexpected request"}`))
	}
}

func newTestClient(t *testing.T, hs *homeserver) *Client {
	t.Helper()
	srv := httptest.NewServer(hs)
	t.Cleanup(srv.Close)
	c, err := New(Config{HomeserverURL: srv.URL, UserID: "@bot:example.org", AccessToken: "token"})
	require.NoError(t, err)
	return c
}

func TestIsDirect(t *testing.T) {
	hs := &homeserver{}
	c := newTestClient(t, hs)
	ctx := context.Background()

	_, err := c.IsDirect(ctx, "!dm:example.org")
	assert.ErrorIs(t, err, errs.ErrDirectUnknown)

	require.NoError(t, c.markDirect(ctx, "!dm:example.org", "@alice:example.org"))
	require.NoError(t, c.markDirect(ctx, "!dm:example.org", "@alice:example.org"))
	assert.Equal(t, []string{"!dm:example.org"}, hs.direct["@alice:example.org"])

	direct, err := c.IsDirect(ctx, "!dm:example.org")
	require.NoError(t, err)
	assert.True(t, direct)

	direct, err = c.IsDirect(ctx, "!it:example.org")
	require.NoError(t, err)
	assert.False(t, direct)
}

func TestPowerLevel(t *testing.T) {
	hs := &homeserver{levels: map[string]any{
		"users":         map[string]int{"@admin:example.org": 100, "@mod:example.org": 50},
		"users_default": 0,
	}}
	c := newTestClient(t, hs)
	ctx := context.Background()

	level, err := c.PowerLevel(ctx, "!it:example.org", "@admin:example.org")
	require.NoError(t, err)
	assert.Equal(t, 100, level)

	level, err = c.PowerLevel(ctx, "!it:example.org", "@guest:example.org")
	require.NoError(t, err)
	assert.Equal(t, 0, level)
}

func TestSendMessage(t *testing.T) {
	hs := &homeserver{}
	c := newTestClient(t, hs)

	id, err := c.SendMessage(context.Background(), "!it:example.org", relay.Notice("**hi**"))
	require.NoError(t, err)
	assert.Equal(t, "$sent", id)
	require.Len(t, hs.sent, 1)
	assert.Equal(t, "m.notice", hs.sent[0]["msgtype"])
	assert.Equal(t, "org.matrix.custom.html", hs.sent[0]["format"])
	assert.Equal(t, "<p><strong>hi</strong></p>", hs.sent[0]["formatted_body"])
	assert.Equal(t, "@bot:example.org", c.UserID())
}
