package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/teslashibe/cube-action/internal/log"
	"github.com/teslashibe/cube-action/pkg/cubeaction"
	"github.com/teslashibe/cube-action/pkg/metrics"
	"github.com/teslashibe/cube-action/pkg/platform"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard()), WithGatherer(prometheus.NewRegistry())}, opts...)
	return New("0", opts...)
}

func get(t *testing.T, s *Server, path string) *http.Response {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatusAPI(t *testing.T) {
	s := newTestServer(t)
	s.SetSession("abc")
	s.StateChanged(cubeaction.StateReady)
	s.CubeLight(2, platform.Blue)
	s.CubeLight(1, platform.Blue)
	s.CubeLight(1, platform.Red)
	s.BehaviorStarted(1, cubeaction.BehaviorApproach)

	resp := get(t, s, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Session != "abc" || st.State != "ready" {
		t.Errorf("session/state = %q/%q", st.Session, st.State)
	}
	if len(st.Cubes) != 2 || st.Cubes[0].CubeID != 1 || st.Cubes[1].CubeID != 2 {
		t.Fatalf("cubes = %+v", st.Cubes)
	}
	c1 := st.Cubes[0]
	if c1.Light != "red" || c1.Color != "#ff0000" || c1.Behavior != "approach" || !c1.Running {
		t.Errorf("cube 1 = %+v", c1)
	}
	if st.Cubes[1].Color != "#0000ff" {
		t.Errorf("cube 2 = %+v", st.Cubes[1])
	}
}

func TestBehaviorFinished(t *testing.T) {
	s := newTestServer(t)
	s.BehaviorStarted(2, cubeaction.BehaviorPortrait)
	s.BehaviorFinished(2, cubeaction.BehaviorPortrait, 1500*time.Millisecond, errors.New("no face"))

	st := s.Snapshot()
	if len(st.Cubes) != 1 {
		t.Fatalf("cubes = %+v", st.Cubes)
	}
	c := st.Cubes[0]
	if c.Running || c.LastError != "no face" || c.LastMS != 1500 {
		t.Errorf("cube = %+v", c)
	}

	logs := s.Logs()
	last := logs[len(logs)-1]
	if last.Type != "error" || !strings.Contains(last.Message, "no face") {
		t.Errorf("last log = %+v", last)
	}

	s.BehaviorFinished(2, cubeaction.BehaviorPortrait, time.Second, nil)
	if c := s.Snapshot().Cubes[0]; c.LastError != "" {
		t.Errorf("error not cleared: %+v", c)
	}
}

func TestLogsAPI_Bounded(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < maxLogs+10; i++ {
		s.AddLog("info", fmt.Sprintf("line %d", i))
	}

	resp := get(t, s, "/api/logs")
	var logs []LogEntry
	if err := json.NewDecoder(resp.Body).Decode(&logs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(logs) != maxLogs {
		t.Fatalf("logs = %d, want %d", len(logs), maxLogs)
	}
	if logs[0].Message != "line 10" {
		t.Errorf("oldest = %q, want line 10", logs[0].Message)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg).TapStarted("1", "approach")
	s := newTestServer(t, WithGatherer(reg))

	resp := get(t, s, "/metrics")
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cubeaction_taps_total") {
		t.Errorf("metrics output missing taps counter:\n%s", body)
	}
}

func TestIndex(t *testing.T) {
	s := newTestServer(t)
	resp := get(t, s, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/ws/status", "/ws/logs", "/ws/camera"} {
		if resp := get(t, s, path); resp.StatusCode != http.StatusUpgradeRequired {
			t.Errorf("%s status = %d, want 426", path, resp.StatusCode)
		}
	}
}

type staticFrames struct{ frame []byte }

func (f staticFrames) LatestJPEG(context.Context) ([]byte, error) { return f.frame, nil }

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	frame := []byte{0xff, 0xd8, 0xff, 0xd9}
	s := newTestServer(t, WithFrames(staticFrames{frame}), WithFrameInterval(10*time.Millisecond))
	s.StateChanged(cubeaction.StateScanning)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	base := "ws://" + ln.Addr().String()

	status, _, err := websocket.DefaultDialer.Dial(base+"/ws/status", nil)
	if err != nil {
		t.Fatalf("dial status: %v", err)
	}
	defer status.Close()
	status.SetReadDeadline(time.Now().Add(2 * time.Second))
	var st Status
	if err := status.ReadJSON(&st); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if st.State != "scanning" {
		t.Errorf("state = %q, want scanning", st.State)
	}

	camera, _, err := websocket.DefaultDialer.Dial(base+"/ws/camera", nil)
	if err != nil {
		t.Fatalf("dial camera: %v", err)
	}
	defer camera.Close()
	camera.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := camera.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if mt != websocket.BinaryMessage || string(data) != string(frame) {
		t.Errorf("frame = %d %v", mt, data)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestPushFrame_NoViewers(t *testing.T) {
	calls := 0
	s := newTestServer(t, WithFrames(countingFrames(func() { calls++ })))
	if s.pushFrame(context.Background()) {
		t.Error("pushed a frame with no camera clients")
	}
	if calls != 0 {
		t.Errorf("fetched %d frames with no camera clients", calls)
	}
}

type countingFrames func()

func (f countingFrames) LatestJPEG(context.Context) ([]byte, error) {
	f()
	return nil, platform.ErrNoImage
}
