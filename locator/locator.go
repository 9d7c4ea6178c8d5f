// Package locator implements the convergence protocol for the shared
// coordination server: every process races to bind a well-known
// loopback port, exactly one wins and serves, the rest discover the
// winner by probing it.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pksebben/Napkin/config"
	"github.com/pksebben/Napkin/server"
)

// ErrBindConflict is returned when the port is held by something that
// never starts answering the control API.
var ErrBindConflict = errors.New("coordination port is bound but not responding")

// probeInterval spaces out repeated probe attempts within a probe window.
const probeInterval = 250 * time.Millisecond

// Location is the resolved coordination server for this process.
type Location struct {
	// BaseURL is the http root of the coordination server.
	BaseURL string
	// Owner is true when this process won the bind race and is hosting
	// the server in-process.
	Owner bool

	server   *server.Server
	listener net.Listener
}

// Shutdown stops the in-process server if this location owns it.
// Non-owner locations are a no-op.
func (l *Location) Shutdown(ctx context.Context) error {
	if !l.Owner || l.server == nil {
		return nil
	}
	return l.server.Shutdown(ctx)
}

// Locator resolves the coordination server at most once per process;
// repeated Ensure calls return the memoized result.
type Locator struct {
	cfg       *config.ServerConfig
	newServer func() *server.Server

	once sync.Once
	loc  *Location
	err  error
}

// New constructs a locator. newServer is only invoked if this process
// wins the bind race.
func New(cfg *config.ServerConfig, newServer func() *server.Server) *Locator {
	return &Locator{cfg: cfg, newServer: newServer}
}

// Ensure returns the coordination server location, starting one
// in-process if no other process got there first. The result is
// memoized: the race runs at most once per Locator.
func (l *Locator) Ensure(ctx context.Context) (*Location, error) {
	l.once.Do(func() {
		l.loc, l.err = l.locate(ctx)
	})
	return l.loc, l.err
}

func (l *Locator) locate(ctx context.Context) (*Location, error) {
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", l.cfg.Port)

	// Fast path: somebody is already serving.
	if l.probe(ctx, baseURL, time.Duration(l.cfg.ProbeTimeout)*time.Millisecond) {
		return &Location{BaseURL: baseURL, Owner: false}, nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", l.cfg.Port))
	if err != nil {
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("failed to bind coordination port: %w", err)
		}
		// Lost the race. The winner may still be between bind and
		// accept, so probe again with a longer window before giving up.
		if l.probe(ctx, baseURL, time.Duration(l.cfg.RetryProbeTimeout)*time.Millisecond) {
			return &Location{BaseURL: baseURL, Owner: false}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrBindConflict, err)
	}

	srv := l.newServer()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Coordination server stopped: %v", err)
		}
	}()
	log.Printf("Won bind race, serving coordination API on %s", baseURL)

	return &Location{
		BaseURL:  baseURL,
		Owner:    true,
		server:   srv,
		listener: ln,
	}, nil
}

// probe reports whether a coordination server answers on baseURL within
// the window, retrying at a fixed interval until the window closes.
func (l *Locator) probe(ctx context.Context, baseURL string, window time.Duration) bool {
	probeCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	client := &http.Client{Timeout: window}
	operation := func() error {
		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, baseURL+"/api/sessions", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected probe status %d", resp.StatusCode)
		}
		return nil
	}

	strategy := backoff.WithContext(backoff.NewConstantBackOff(probeInterval), probeCtx)
	return backoff.Retry(operation, strategy) == nil
}
