package locator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pksebben/Napkin/config"
	"github.com/pksebben/Napkin/dehydrate"
	"github.com/pksebben/Napkin/mermaid"
	"github.com/pksebben/Napkin/registry"
	"github.com/pksebben/Napkin/server"
	"github.com/pksebben/Napkin/state"
)

// freePort grabs an ephemeral loopback port and releases it so the
// locator under test can race for it.
func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testServerConfig(port int) *config.ServerConfig {
	return &config.ServerConfig{
		Port:              port,
		ProbeTimeout:      500,
		RetryProbeTimeout: 2000,
		ShutdownTimeout:   5,
	}
}

func newServerFactory() func() *server.Server {
	return func() *server.Server {
		reg := registry.New(nil, mermaid.Validate, dehydrate.Convert, state.DefaultMaxHistory)
		return server.New(reg, &config.WebSocketConfig{
			WriteTimeout:    10,
			PingInterval:    25,
			ActivityTimeout: 300,
			KeepAlive:       true,
		})
	}
}

func TestEnsureStartsServer(t *testing.T) {
	cfg := testServerConfig(freePort(t))
	loc := New(cfg, newServerFactory())

	location, err := loc.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, location.Owner)
	defer location.Shutdown(context.Background())

	resp, err := http.Get(location.BaseURL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEnsureIsMemoized(t *testing.T) {
	cfg := testServerConfig(freePort(t))
	loc := New(cfg, newServerFactory())

	first, err := loc.Ensure(context.Background())
	require.NoError(t, err)
	defer first.Shutdown(context.Background())

	second, err := loc.Ensure(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEnsureFindsExistingServer(t *testing.T) {
	cfg := testServerConfig(freePort(t))

	owner := New(cfg, newServerFactory())
	ownerLoc, err := owner.Ensure(context.Background())
	require.NoError(t, err)
	require.True(t, ownerLoc.Owner)
	defer ownerLoc.Shutdown(context.Background())

	follower := New(cfg, newServerFactory())
	followerLoc, err := follower.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, followerLoc.Owner)
	assert.Equal(t, ownerLoc.BaseURL, followerLoc.BaseURL)
}

func TestConcurrentEnsureConvergesOnOneOwner(t *testing.T) {
	cfg := testServerConfig(freePort(t))

	const racers = 8
	locations := make([]*Location, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc, err := New(cfg, newServerFactory()).Ensure(context.Background())
			assert.NoError(t, err)
			locations[i] = loc
		}(i)
	}
	wg.Wait()

	owners := 0
	var ownerLoc *Location
	for _, loc := range locations {
		require.NotNil(t, loc)
		if loc.Owner {
			owners++
			ownerLoc = loc
		}
	}
	assert.Equal(t, 1, owners)
	defer ownerLoc.Shutdown(context.Background())

	// Every racer sees the same registry: a session created through one
	// BaseURL is visible through all of them.
	resp, err := http.Post(locations[0].BaseURL+"/api/sessions", "application/json",
		jsonBody(t, map[string]string{"name": "shared"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	for _, loc := range locations {
		resp, err := http.Get(loc.BaseURL + "/api/sessions")
		require.NoError(t, err)
		var list []registry.Descriptor
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		resp.Body.Close()
		require.Len(t, list, 1)
		assert.Equal(t, "shared", list[0].Name)
	}
}

func TestEnsureBindConflict(t *testing.T) {
	port := freePort(t)

	// Squat on the port with something that is not a coordination server.
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer ln.Close()

	cfg := testServerConfig(port)
	cfg.ProbeTimeout = 200
	cfg.RetryProbeTimeout = 400

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = New(cfg, newServerFactory()).Ensure(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBindConflict)
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}
