package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/cube-action/internal/log"
)

// request is one command received by the fake daemon.
type request struct {
	Path string
	Body map[string]any
}

// fakeDaemon serves the daemon HTTP API and event stream. Actions complete
// immediately unless told otherwise.
type fakeDaemon struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	requests   []request
	conns      []*websocket.Conn
	frame      []byte
	status     map[string]int    // path -> forced HTTP status
	failAction map[string]string // path -> failure reason
	holdAction map[string]bool   // path -> never complete
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	d := &fakeDaemon{
		status:     make(map[string]int),
		failAction: make(map[string]string),
		holdAction: make(map[string]bool),
	}
	d.srv = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDaemon) baseURL() string   { return d.srv.URL }
func (d *fakeDaemon) eventsURL() string { return "ws" + strings.TrimPrefix(d.srv.URL, "http") + "/api/events" }

func (d *fakeDaemon) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/events" {
		d.serveEvents(w, r)
		return
	}

	d.mu.Lock()
	code, forced := d.status[r.URL.Path]
	frame := d.frame
	d.mu.Unlock()
	if forced {
		w.WriteHeader(code)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/camera/latest" {
		if frame == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(frame)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	d.requests = append(d.requests, request{Path: r.URL.Path, Body: body})
	reason, fail := d.failAction[r.URL.Path]
	hold := d.holdAction[r.URL.Path]
	d.mu.Unlock()

	if id, ok := body["action_id"].(string); ok && !hold {
		ev := map[string]any{"type": EventActionCompleted, "action_id": id, "state": ActionSucceeded}
		if fail {
			ev["state"] = ActionFailed
			ev["reason"] = reason
		}
		d.send(ev)
	}
	w.WriteHeader(http.StatusOK)
}

func (d *fakeDaemon) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// send writes an event to every connected stream.
func (d *fakeDaemon) send(ev map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		c.WriteJSON(ev)
	}
}

// dropStreams closes every event stream from the daemon side.
func (d *fakeDaemon) dropStreams() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		c.Close()
	}
	d.conns = nil
}

func (d *fakeDaemon) requestsTo(path string) []request {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []request
	for _, r := range d.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// waitForRequest polls until a request to path has been received.
func (d *fakeDaemon) waitForRequest(t *testing.T, path string) request {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reqs := d.requestsTo(path); len(reqs) > 0 {
			return reqs[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no request to %s", path)
	return request{}
}

func (d *fakeDaemon) waitForStream(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		n := len(d.conns)
		d.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("event stream never connected")
}

// connectedClient returns a client with its event stream up.
func connectedClient(t *testing.T, d *fakeDaemon, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	c := New(d.baseURL(), d.eventsURL(), opts...)
	// Equivalent of t.Context() (Go 1.24+): cancelled before other cleanups run.
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Connect(ctx); err != nil {
		cancel()
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	t.Cleanup(cancel)
	d.waitForStream(t)
	return c
}
