// Package viewer is the visual debugging overlay: a fiber app that shows the
// session state, cube lights, a behavior log and the robot camera.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teslashibe/cube-action/internal/log"
	"github.com/teslashibe/cube-action/pkg/hub"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// DefaultFrameInterval paces the camera feed (about 10 fps).
const DefaultFrameInterval = 100 * time.Millisecond

// FrameSource supplies JPEG camera frames.
type FrameSource interface {
	LatestJPEG(ctx context.Context) ([]byte, error)
}

// Option configures a Server.
type Option func(*Server)

// WithFrames enables the camera feed from src.
func WithFrames(src FrameSource) Option {
	return func(s *Server) { s.frames = src }
}

// WithFrameInterval sets the camera feed pacing.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Server) { s.frameInterval = d }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server is the overlay web server.
type Server struct {
	app  *fiber.App
	port string
	log  *slog.Logger

	frames        FrameSource
	frameInterval time.Duration
	gatherer      prometheus.Gatherer

	status  Status
	stateMu sync.RWMutex

	logs   []LogEntry
	logsMu sync.RWMutex

	statusHub *hub.Hub
	logHub    *hub.Hub
	cameraHub *hub.Hub
}

// New creates the overlay server for port.
func New(port string, opts ...Option) *Server {
	s := &Server{
		port:          port,
		frameInterval: DefaultFrameInterval,
		status:        Status{State: "idle"},
		logs:          make([]LogEntry, 0, maxLogs),
		statusHub:     hub.New("status"),
		logHub:        hub.New("logs"),
		cameraHub:     hub.New("camera"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.Component("viewer")
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	app := fiber.New(fiber.Config{
		AppName:               "cube-action viewer",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", s.handleIndex)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleLogs)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App returns the fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// URL is the overlay address on this host.
func (s *Server) URL() string {
	return "http://localhost:" + s.port
}

// Run listens on the configured port until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("viewer listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the overlay on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	if s.frames != nil {
		go s.streamCamera(ctx)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	// There's no window to raise; the overlay URL is the way in.
	s.log.Info("viewer started", "url", s.URL())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer stop()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("viewer shutdown: %w", err)
	}
	return nil
}

// streamCamera pulls frames only while someone is watching.
func (s *Server) streamCamera(ctx context.Context) {
	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pushFrame(ctx)
		}
	}
}

func (s *Server) pushFrame(ctx context.Context) bool {
	if s.cameraHub.ClientCount() == 0 {
		return false
	}
	frame, err := s.frames.LatestJPEG(ctx)
	if err != nil {
		if !errors.Is(err, platform.ErrNoImage) && ctx.Err() == nil {
			s.log.Debug("camera frame failed", "error", err)
		}
		return false
	}
	s.cameraHub.BroadcastBinary(frame)
	return true
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html")
	return c.SendString(indexHTML)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

// handleStatusWS sends the current status, then every update.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if err := sendJSON(client, s.Snapshot()); err != nil {
		s.log.Debug("status snapshot failed", "error", err)
	}
	client.Run()
}

// handleLogsWS replays the backlog, then streams new entries.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	client := hub.NewClient(s.logHub, c)
	for _, entry := range s.Logs() {
		if err := sendJSON(client, entry); err != nil {
			break
		}
	}
	client.Run()
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}

var errBacklogFull = errors.New("client backlog full")

func sendJSON(c *hub.Client, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !c.Send(hub.NewJSONMessage(data)) {
		return errBacklogFull
	}
	return nil
}
