package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetSnapshot_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/current", r.URL.Path)
		assert.Equal(t, "28.613900", r.URL.Query().Get("lat"))
		assert.Equal(t, "77.209000", r.URL.Query().Get("lon"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":0,"temperature_c":41.5,"condition":"clear"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 2*time.Second, zap.NewNop())

	snapshot, err := client.GetSnapshot(context.Background(), 28.6139, 77.2090)

	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.NotNil(t, snapshot.TemperatureC)
	assert.Equal(t, 41.5, *snapshot.TemperatureC)
	assert.Equal(t, "clear", snapshot.Condition)
}

func TestGetSnapshot_MissingTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":0,"condition":"fog"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())

	snapshot, err := client.GetSnapshot(context.Background(), 28.6139, 77.2090)

	require.NoError(t, err)
	assert.Nil(t, snapshot.TemperatureC)
	assert.Equal(t, "fog", snapshot.Condition)
}

func TestGetSnapshot_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":13,"msg":"quota exceeded"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())

	_, err := client.GetSnapshot(context.Background(), 28.6139, 77.2090)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGetSnapshot_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, zap.NewNop())

	_, err := client.GetSnapshot(context.Background(), 28.6139, 77.2090)

	assert.Error(t, err)
}
