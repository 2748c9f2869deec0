// Package daemon implements platform.Robot against the robot daemon.
//
// Commands go over the daemon's HTTP API; observations (objects, taps,
// faces, action completions) arrive on a websocket event stream.
// Long-running commands (speech, motion, remote animation) carry a
// client-generated action id and block until the daemon reports the
// matching action_completed event.
//
// HTTP endpoints (JSON bodies):
//   - POST /api/camera/stream           - enable/disable the image stream
//   - GET  /api/camera/latest           - latest frame as JPEG (404: none yet)
//   - POST /api/world/connect_cubes     - connect to all detectable cubes
//   - POST /api/behavior/start|stop     - platform behaviors
//   - POST /api/speech/say              - speech (action)
//   - POST /api/move/go_to_object       - drive to an object (action)
//   - POST /api/move/turn_towards_face  - turn to a face (action)
//   - POST /api/move/set_target         - direct head/antenna/body target
//   - POST /api/anim/play               - daemon-side animation (action)
//   - POST /api/lights/backpack         - chassis lights
//   - POST /api/cubes/{id}/lights       - cube lights
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/cube-action/internal/httpc"
	"github.com/teslashibe/cube-action/internal/log"
	"github.com/teslashibe/cube-action/pkg/anim"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// Ensure Client implements the platform contracts.
var (
	_ platform.Robot = (*Client)(nil)
	_ anim.PoseSink  = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the shared HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithAnimations plays clips found in lib locally, streaming poses through
// set_target. Clips missing from lib are played by the daemon.
func WithAnimations(lib *anim.Library) Option {
	return func(c *Client) { c.anims = lib }
}

// Client talks to one robot daemon.
type Client struct {
	baseURL   string
	eventsURL string
	http      *http.Client
	log       *slog.Logger

	anims  *anim.Library
	player *anim.Player

	// lifetime context handed to tap handlers, cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc

	connMu sync.Mutex
	conn   *websocket.Conn
	done   chan struct{} // closed when the event stream ends

	mu          sync.Mutex
	streamErr   error
	objects     map[string]*cube
	order       []string // object ids in observation order
	objWaiters  []chan struct{}
	faceWaiters map[chan platform.Face]struct{}
	lastFace    *platform.Face
	pending     map[string]chan error
	behaviors   map[string]platform.BehaviorType
}

// New creates a client for the daemon at baseURL (http://host:port) with
// the event stream at eventsURL (ws://host:port/api/events).
func New(baseURL, eventsURL string, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		baseURL:     baseURL,
		eventsURL:   eventsURL,
		http:        httpc.Client,
		player:      anim.NewPlayer(anim.DefaultFrameRate),
		ctx:         ctx,
		cancel:      cancel,
		objects:     make(map[string]*cube),
		faceWaiters: make(map[chan platform.Face]struct{}),
		pending:     make(map[string]chan error),
		behaviors:   make(map[string]platform.BehaviorType),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = log.Component("daemon")
	}
	return c
}

// Connect opens the event stream. Commands that wait for completion fail
// until Connect has succeeded.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.eventsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: event stream connect failed: %v", platform.ErrPlatform, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	done := c.done
	c.connMu.Unlock()

	c.mu.Lock()
	c.streamErr = nil
	c.mu.Unlock()

	go c.readLoop(conn, done)

	c.log.Info("connected to robot daemon", "url", c.baseURL)
	return nil
}

// Close stops the event stream and cancels running tap handlers.
func (c *Client) Close() error {
	c.cancel()
	c.player.Stop()

	c.connMu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.connMu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}

// streamDone returns the channel closed when the current stream ends, or
// an error if no stream is connected.
func (c *Client) streamDone() (<-chan struct{}, error) {
	c.connMu.Lock()
	done := c.done
	c.connMu.Unlock()

	if done == nil {
		return nil, fmt.Errorf("%w: event stream not connected", platform.ErrPlatform)
	}

	c.mu.Lock()
	err := c.streamErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return done, nil
}

// streamError returns why the event stream ended.
func (c *Client) streamError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamErr != nil {
		return c.streamErr
	}
	return fmt.Errorf("%w: event stream closed", platform.ErrPlatform)
}
