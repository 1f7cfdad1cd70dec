package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointsWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`schema_version: v1
endpoints:
  - name: docs
    url: "https://mcp.example.com/sse"
    enabled: true
`), 0644))

	loaded := make(chan *EndpointsFile, 4)
	w, err := NewEndpointsWatcher(EndpointsWatcherConfig{
		FilePath:       path,
		DebounceMillis: 50,
	}, func(cfg *EndpointsFile) error {
		loaded <- cfg
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	select {
	case cfg := <-loaded:
		require.Len(t, cfg.Endpoints, 1)
		assert.Equal(t, "docs", cfg.Endpoints[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial config load")
	}
}

func TestEndpointsWatcher_ReloadOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`schema_version: v1
endpoints:
  - name: docs
    url: "https://mcp.example.com/sse"
    enabled: true
`), 0644))

	loaded := make(chan *EndpointsFile, 4)
	w, err := NewEndpointsWatcher(EndpointsWatcherConfig{
		FilePath:       path,
		DebounceMillis: 50,
	}, func(cfg *EndpointsFile) error {
		loaded <- cfg
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	// Drain the initial load.
	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial config load")
	}

	require.NoError(t, os.WriteFile(path, []byte(`schema_version: v1
endpoints:
  - name: docs
    url: "https://other.example.com/sse"
    enabled: true
`), 0644))

	select {
	case cfg := <-loaded:
		require.Len(t, cfg.Endpoints, 1)
		assert.Equal(t, "https://other.example.com/sse", cfg.Endpoints[0].URL)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestEndpointsWatcher_KeepsPreviousOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`schema_version: v1
endpoints:
  - name: docs
    url: "https://mcp.example.com/sse"
    enabled: true
`), 0644))

	loaded := make(chan *EndpointsFile, 4)
	w, err := NewEndpointsWatcher(EndpointsWatcherConfig{
		FilePath:       path,
		DebounceMillis: 50,
	}, func(cfg *EndpointsFile) error {
		loaded <- cfg
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial config load")
	}

	// An invalid rewrite must not reach the callback.
	require.NoError(t, os.WriteFile(path, []byte(`schema_version: v9`), 0644))

	select {
	case cfg := <-loaded:
		t.Fatalf("callback fired for invalid config: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestNewEndpointsWatcher_Validation(t *testing.T) {
	_, err := NewEndpointsWatcher(EndpointsWatcherConfig{}, func(*EndpointsFile) error { return nil })
	assert.Error(t, err)

	_, err = NewEndpointsWatcher(EndpointsWatcherConfig{FilePath: "endpoints.yaml"}, nil)
	assert.Error(t, err)
}
