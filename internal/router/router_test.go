package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/support-relay/internal/handler"
	"github.com/psds-microservice/support-relay/internal/service"
	"github.com/psds-microservice/support-relay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type fixture struct {
	srv     http.Handler
	dests   *service.DestinationService
	tickets *service.TicketService
}

func newFixture(t *testing.T, ping handler.Pinger) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	dests := service.NewDestinationService(db)
	tickets := service.NewTicketService(db)
	srv := New(Handlers{
		Ready:        handler.Ready(ping),
		Destinations: handler.NewDestinationHandler(dests),
		Tickets:      handler.NewTicketHandler(tickets),
	})
	return &fixture{srv: srv, dests: dests, tickets: tickets}
}

func (f *fixture) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec.Code, body
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, pinger{})
	code, body := f.get(t, paths.PathHealth)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "support-relay", body["service"])

	code, body = f.get(t, paths.PathReady)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])

	down := newFixture(t, pinger{err: errors.New("connection refused")})
	code, _ = down.get(t, paths.PathReady)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestOpenAPISpec(t *testing.T) {
	f := newFixture(t, pinger{})
	code, body := f.get(t, paths.PathSwagger+"/openapi.json")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "3.0.3", body["openapi"])
}

func TestDestinations(t *testing.T) {
	f := newFixture(t, pinger{})
	ctx := context.Background()

	code, body := f.get(t, "/api/v1/destinations")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["total"])

	_, err := f.dests.Register(ctx, "!press:example.org", "Press")
	require.NoError(t, err)
	_, err = f.dests.Register(ctx, "!it:example.org", "IT")
	require.NoError(t, err)
	_, err = f.dests.Register(ctx, "!legal:example.org", "Legal")
	require.NoError(t, err)
	require.NoError(t, f.dests.Lock(ctx, "!legal:example.org"))

	code, body = f.get(t, "/api/v1/destinations")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["total"])
	items := body["destinations"].([]any)
	assert.Equal(t, "IT", items[0].(map[string]any)["display_name"])
	assert.Equal(t, "Press", items[1].(map[string]any)["display_name"])

	legal, err := f.dests.FindByRoom(ctx, "!legal:example.org")
	require.NoError(t, err)
	code, body = f.get(t, "/api/v1/destinations/"+strconv.FormatUint(legal.Code(), 10))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["locked"])

	code, _ = f.get(t, "/api/v1/destinations/9999")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.get(t, "/api/v1/destinations/abc")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTickets(t *testing.T) {
	f := newFixture(t, pinger{})
	ctx := context.Background()

	_, err := f.tickets.Create(ctx, "$orig", "!dm:example.org", "$mirror", "!it:example.org", "@alice:example.org")
	require.NoError(t, err)

	code, body := f.get(t, "/api/v1/tickets")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])
	ticket := body["tickets"].([]any)[0].(map[string]any)
	assert.Equal(t, "$mirror", ticket["mirrored_message"])
	assert.Equal(t, "open", ticket["status"])

	code, body = f.get(t, "/api/v1/tickets?status=pending")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["total"])

	code, _ = f.get(t, "/api/v1/tickets?status=closed")
	assert.Equal(t, http.StatusBadRequest, code)
}
