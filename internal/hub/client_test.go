package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"ready": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	connected, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, connected)
}

func TestClientStatusUnreachableHubIsNotAnError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	connected, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestClientEntities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/entities", r.URL.Path)
		assert.Equal(t, "fronius", r.URL.Query().Get("manufacturer"))
		w.Write([]byte(`[{"entity_id": "sensor.fronius_pv_power", "name": "PV Power", "unit": "W", "source": "fronius"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	entities, err := c.Entities(context.Background(), "fronius")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "sensor.fronius_pv_power", entities[0].EntityID)
	assert.Equal(t, "fronius", entities[0].Source)
}

func TestClientEntitiesServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Entities(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClientEntitiesNetworkErrorMapsToNotConnected(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	_, err := c.Entities(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConnected)
}
