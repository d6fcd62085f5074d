package profiler

import (
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudposse/link-install/pkg/schema"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.False(t, config.Enabled)
	assert.Equal(t, 6060, config.Port)
	assert.Equal(t, "localhost", config.Host)
}

func TestServer_Disabled(t *testing.T) {
	p := New(DefaultConfig(), nil)
	require.NoError(t, p.Start())
	assert.False(t, p.IsRunning())
	assert.Empty(t, p.Address())
	assert.NoError(t, p.Stop())
}

func TestServer_ServesProfilesAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "link_install_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	p := New(schema.Profiler{Enabled: true, Host: "127.0.0.1", Port: 0}, registry)
	require.NoError(t, p.Start())
	t.Cleanup(func() { _ = p.Stop() })

	assert.True(t, p.IsRunning())
	require.NotEmpty(t, p.Address())

	status, _ := get(t, "http://"+p.Address()+"/debug/pprof/")
	assert.Equal(t, http.StatusOK, status)

	status, body := get(t, "http://"+p.Address()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "link_install_test_total 1")

	// Starting twice is a no-op.
	require.NoError(t, p.Start())

	require.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop())
}

func TestServer_WithoutRegistryHasNoMetrics(t *testing.T) {
	p := New(schema.Profiler{Enabled: true, Host: "127.0.0.1", Port: 0}, nil)
	require.NoError(t, p.Start())
	t.Cleanup(func() { _ = p.Stop() })

	status, _ := get(t, "http://"+p.Address()+"/metrics")
	assert.Equal(t, http.StatusNotFound, status)
}
