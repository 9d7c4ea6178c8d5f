package server

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/pksebben/Napkin/config"
	"github.com/pksebben/Napkin/registry"
)

const (
	viewerRetryDelay = 200 * time.Millisecond
	viewerMaxRetries = 3
)

// viewerConn wraps a connected websocket viewer
type viewerConn struct {
	id            string
	conn          *websocket.Conn
	ctx           context.Context
	cfg           *config.WebSocketConfig
	lastActivity  atomic.Int64
	pingTicker    *time.Ticker
	activityTimer *time.Timer
	cancel        context.CancelFunc
	mu            sync.Mutex
}

func newViewerConn(id string, conn *websocket.Conn, cfg *config.WebSocketConfig) *viewerConn {
	ctx, cancel := context.WithCancel(context.Background())
	v := &viewerConn{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		cancel: cancel,
		ctx:    ctx,
	}
	v.lastActivity.Store(time.Now().Unix())
	return v
}

// ID implements registry.Viewer.
func (v *viewerConn) ID() string { return v.id }

// Send implements registry.Viewer.
func (v *viewerConn) Send(ev registry.Event) error {
	return v.safeWriteJSON(ev)
}

// CloseGoingAway implements registry.Viewer. Used when the session is
// destroyed out from under the viewer.
func (v *viewerConn) CloseGoingAway(reason string) {
	if err := v.Close(websocket.CloseGoingAway, reason); err != nil {
		log.Printf("Error closing viewer %s: %v", v.id, err)
	}
}

// safeWriteJSON writes data to the websocket with retry capability
func (v *viewerConn) safeWriteJSON(data interface{}) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	operation := func() error {
		return v.conn.WriteJSON(data)
	}

	backoffStrategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(viewerRetryDelay),
			viewerMaxRetries,
		),
		v.ctx,
	)

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		log.Printf("Retrying WebSocket write to viewer %s: %v (next attempt in %s)", v.id, err, d)
	})
}

// updateActivity updates the last activity timestamp and resets the timeout timer.
// This should only be called for actual viewer messages, not pong responses.
func (v *viewerConn) updateActivity() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastActivity.Store(time.Now().Unix())

	if v.activityTimer != nil {
		v.activityTimer.Stop()
		v.activityTimer = time.AfterFunc(
			time.Duration(v.cfg.ActivityTimeout)*time.Second,
			v.onActivityTimeout,
		)
	}
}

// updateLastSeen updates only the timestamp (for pong responses).
// Does NOT reset the activity timer.
func (v *viewerConn) updateLastSeen() {
	v.lastActivity.Store(time.Now().Unix())
}

func (v *viewerConn) startTimers() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.activityTimer = time.AfterFunc(
		time.Duration(v.cfg.ActivityTimeout)*time.Second,
		v.onActivityTimeout,
	)

	v.pingTicker = time.NewTicker(
		time.Duration(v.cfg.PingInterval) * time.Second,
	)
	go v.pingLoop()
}

func (v *viewerConn) pingLoop() {
	defer v.pingTicker.Stop()

	for {
		select {
		case <-v.pingTicker.C:
			if err := v.sendPing(); err != nil {
				log.Printf("Failed to send ping to viewer %s: %v", v.id, err)
				v.Close(websocket.CloseInternalServerErr, "Ping failure")
				return
			}
		case <-v.ctx.Done():
			return
		}
	}
}

func (v *viewerConn) onActivityTimeout() {
	log.Printf("Viewer %s timed out", v.id)
	v.Close(websocket.ClosePolicyViolation, "Inactivity timeout")
}

func (v *viewerConn) sendPing() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.conn.WriteControl(
		websocket.PingMessage,
		[]byte{},
		time.Now().Add(time.Duration(v.cfg.WriteTimeout)*time.Second),
	)
}

// pongHandler returns a pong handler function based on configuration
func (v *viewerConn) pongHandler() func(string) error {
	return func(msg string) error {
		if v.cfg.KeepAlive {
			v.updateActivity()
		} else {
			v.updateLastSeen()
		}
		return nil
	}
}

// Close closes the websocket connection
func (v *viewerConn) Close(code int, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pingTicker != nil {
		v.pingTicker.Stop()
	}
	if v.activityTimer != nil {
		v.activityTimer.Stop()
	}
	if v.cancel != nil {
		v.cancel()
	}

	writeTimeout := time.Duration(v.cfg.WriteTimeout) * time.Second
	err := v.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeTimeout),
	)
	if err != nil {
		log.Printf("Error sending close message to viewer %s: %v", v.id, err)
	}

	return v.conn.Close()
}
