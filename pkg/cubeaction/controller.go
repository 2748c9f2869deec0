// Package cubeaction is the session controller for the cube tap demo.
//
// On startup the robot scans for three light cubes and subscribes to their
// tap notifications. Each tap lights the cube red, runs the behavior bound
// to the cube's identity and restores the idle blue light:
//
//	cube 1  approach     drive up to the cube
//	cube 2  portrait     find a face, turn to it, save a greyscale photo
//	cube 3  performance  play an animation clip
//
// Taps on different cubes run concurrently; nothing serializes them.
package cubeaction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/cube-action/internal/log"
	"github.com/teslashibe/cube-action/pkg/metrics"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// cleanupTimeout bounds light restores and behavior stops that run after
// the caller's context is done.
const cleanupTimeout = 2 * time.Second

// Settings holds the fixed parameters of the session.
type Settings struct {
	NumCubes         int           // Cubes required before taps are handled
	DiscoveryTimeout time.Duration // Bound on the cube scan
	FaceTimeout      time.Duration // Bound on the face search
	StandoffMM       float64       // Distance kept from the cube when approaching
	SpeechScalar     float64       // Speaking-rate scalar for every utterance
	PhotoPath        string        // Where the portrait is written (overwritten)
	Animation        string        // Clip played by the performance behavior
	IdleInterval     time.Duration // Poll interval while waiting for interrupt
}

// DefaultSettings returns the demo's parameters.
func DefaultSettings() Settings {
	return Settings{
		NumCubes:         3,
		DiscoveryTimeout: 120 * time.Second,
		FaceTimeout:      120 * time.Second,
		StandoffMM:       100,
		SpeechScalar:     0.6,
		PhotoPath:        "portrait.png",
		Animation:        "anim_codelab_rattle_snake_01",
		IdleInterval:     500 * time.Millisecond,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(c *Controller) { c.settings = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.baseLog = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithObserver registers an observer for state and light changes.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// Controller owns one session: the robot handle and the discovered cubes.
type Controller struct {
	robot    platform.Robot
	settings Settings
	id       string

	baseLog  *slog.Logger
	log      *slog.Logger
	metrics  *metrics.Metrics
	observer Observer

	mu     sync.RWMutex
	state  State
	cubes  []platform.Object
	unsubs []func()
}

// New creates a controller for robot.
func New(robot platform.Robot, opts ...Option) *Controller {
	c := &Controller{
		robot:    robot,
		settings: DefaultSettings(),
		id:       uuid.NewString(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseLog == nil {
		c.baseLog = log.Component("cubeaction")
	}
	c.log = c.baseLog.With("session", c.id)
	return c
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// State returns the session state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Cubes returns the discovered cubes in identity order.
func (c *Controller) Cubes() []platform.Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]platform.Object, len(c.cubes))
	copy(out, c.cubes)
	return out
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.log.Info("session state", "state", s)
	c.observer.StateChanged(s)
}

// Initialize scans for the cubes and subscribes to their taps.
// A discovery timeout is returned wrapped in platform.ErrTimeout and leaves
// no handler registered.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := c.robot.SetBackpackLights(ctx, platform.Red); err != nil {
		return fmt.Errorf("backpack lights: %w", err)
	}
	if err := c.robot.EnableImageStream(ctx, true); err != nil {
		return fmt.Errorf("enable camera: %w", err)
	}
	if err := c.robot.ConnectCubes(ctx); err != nil {
		return fmt.Errorf("connect cubes: %w", err)
	}

	c.setState(StateScanning)
	if err := c.say(ctx, lineScanning); err != nil {
		return err
	}

	lookAround, err := c.robot.StartBehavior(ctx, platform.LookAroundInPlace)
	if err != nil {
		return fmt.Errorf("start %s: %w", platform.LookAroundInPlace, err)
	}

	start := time.Now()
	cubes, waitErr := c.robot.WaitForObjects(ctx, c.settings.NumCubes, platform.LightCube, c.settings.DiscoveryTimeout)
	stopErr := c.stopBehavior(ctx, lookAround)
	if waitErr != nil {
		return fmt.Errorf("discover cubes: %w", waitErr)
	}
	if stopErr != nil {
		return stopErr
	}
	if len(cubes) != c.settings.NumCubes {
		return fmt.Errorf("discover cubes: %w: got %d objects, want %d", platform.ErrPlatform, len(cubes), c.settings.NumCubes)
	}
	c.metrics.DiscoveryFinished(time.Since(start))

	sort.SliceStable(cubes, func(i, j int) bool { return cubes[i].CubeID() < cubes[j].CubeID() })

	if err := c.say(ctx, lineFound); err != nil {
		return err
	}
	c.log.Info("found cubes", "cubes", describe(cubes))

	if err := c.robot.SetBackpackLights(ctx, platform.Green); err != nil {
		return fmt.Errorf("backpack lights: %w", err)
	}

	for _, cube := range cubes {
		if err := c.setCubeLight(ctx, cube, platform.Blue); err != nil {
			c.unsubscribeAll()
			return err
		}
		unsub := cube.OnTap(c.onTap)
		c.mu.Lock()
		c.unsubs = append(c.unsubs, unsub)
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.cubes = cubes
	c.mu.Unlock()
	c.setState(StateReady)

	return c.say(ctx, lineTapPrompt)
}

// Run initializes the session and then idles until ctx is cancelled.
// Cancellation is the normal way out and returns nil.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	defer c.Close()

	ticker := time.NewTicker(c.settings.IdleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("session interrupted")
			return nil
		case <-ticker.C:
		}
	}
}

// Close removes the tap subscriptions. In-flight taps are not waited for.
func (c *Controller) Close() {
	c.unsubscribeAll()
}

func (c *Controller) unsubscribeAll() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// onTap is the platform-facing handler. Each call is its own task: an error
// ends that task only.
func (c *Controller) onTap(ctx context.Context, ev platform.TapEvent) {
	if err := c.HandleTap(ctx, ev); err != nil {
		c.log.Error("tap behavior failed", "cube", ev.Object.CubeID(), "error", err)
	}
}

// HandleTap runs the behavior for the tapped cube. The cube's idle light is
// restored when the behavior ends, including on error.
func (c *Controller) HandleTap(ctx context.Context, ev platform.TapEvent) (err error) {
	cube := ev.Object
	if cube == nil {
		return fmt.Errorf("tap event without object")
	}
	cubeID := cube.CubeID()
	b := BehaviorFor(cubeID)

	if err := c.setCubeLight(ctx, cube, platform.Red); err != nil {
		return err
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if rerr := c.setCubeLight(rctx, cube, platform.Blue); rerr != nil {
			c.log.Warn("restore cube light failed", "cube", cubeID, "error", rerr)
			if err == nil {
				err = rerr
			}
		}
	}()

	c.log.Info("cube tapped", "cube", cubeID, "behavior", b)
	c.observer.BehaviorStarted(cubeID, b)
	c.metrics.TapStarted(strconv.Itoa(cubeID), b.String())

	start := time.Now()
	err = c.perform(ctx, b, cube)
	elapsed := time.Since(start)

	c.metrics.TapFinished(b.String(), elapsed, err)
	c.observer.BehaviorFinished(cubeID, b, elapsed, err)
	return err
}

func (c *Controller) setCubeLight(ctx context.Context, cube platform.Object, light platform.Light) error {
	if err := cube.SetLights(ctx, light); err != nil {
		return fmt.Errorf("cube %d lights %s: %w", cube.CubeID(), light, err)
	}
	c.observer.CubeLight(cube.CubeID(), light)
	return nil
}

func describe(cubes []platform.Object) []string {
	out := make([]string, 0, len(cubes))
	for _, cube := range cubes {
		out = append(out, fmt.Sprintf("cube %d (%s)", cube.CubeID(), cube.ID()))
	}
	return out
}
