package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode", r.URL.Path)
		assert.Equal(t, "10115", r.URL.Query().Get("postal_code"))
		w.Write([]byte(`{"latitude": 52.532, "longitude": 13.384}`))
	}))
	defer srv.Close()

	lat, lng, err := NewClient(srv.URL).Lookup(context.Background(), "10115")
	require.NoError(t, err)
	assert.InDelta(t, 52.532, lat, 0.0001)
	assert.InDelta(t, 13.384, lng, 0.0001)
}

func TestClientLookupNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL).Lookup(context.Background(), "00000")
	assert.Error(t, err)
}
