package cubeaction

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/teslashibe/cube-action/internal/log"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// call is one recorded robot request.
type call struct {
	name string
	arg  string
}

// fakeRobot records every request and replays scripted results.
type fakeRobot struct {
	mu    sync.Mutex
	calls []call

	cubes      []platform.Object
	discovered int // how many of cubes the scan finds before timing out

	face    *platform.Face // nil means no face within the bound
	frame   image.Image
	failOn  map[string]error
	stopped []platform.BehaviorType
}

func newFakeRobot(cubes ...*fakeCube) *fakeRobot {
	r := &fakeRobot{
		discovered: len(cubes),
		failOn:     map[string]error{},
		frame:      testFrame(),
	}
	for _, c := range cubes {
		r.cubes = append(r.cubes, c)
	}
	return r
}

func (r *fakeRobot) record(name, arg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name, arg})
	return r.failOn[name]
}

func (r *fakeRobot) callsNamed(name string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (r *fakeRobot) allCalls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *fakeRobot) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *fakeRobot) Say(ctx context.Context, text string, scalar float64) error {
	return r.record("say", fmt.Sprintf("%s@%.1f", text, scalar))
}

func (r *fakeRobot) GoToObject(ctx context.Context, obj platform.Object, distanceMM float64) error {
	return r.record("go_to_object", fmt.Sprintf("%s@%.0f", obj.ID(), distanceMM))
}

func (r *fakeRobot) TurnTowardsFace(ctx context.Context, face platform.Face) error {
	return r.record("turn_towards_face", fmt.Sprint(face.ID))
}

func (r *fakeRobot) StartBehavior(ctx context.Context, kind platform.BehaviorType) (platform.Behavior, error) {
	if err := r.record("start_behavior", string(kind)); err != nil {
		return nil, err
	}
	return &fakeBehavior{robot: r, kind: kind}, nil
}

func (r *fakeRobot) PlayAnimation(ctx context.Context, name string) error {
	return r.record("play_animation", name)
}

func (r *fakeRobot) EnableImageStream(ctx context.Context, enabled bool) error {
	return r.record("enable_image_stream", fmt.Sprint(enabled))
}

func (r *fakeRobot) LatestImage(ctx context.Context) (image.Image, error) {
	if err := r.record("latest_image", ""); err != nil {
		return nil, err
	}
	return r.frame, nil
}

func (r *fakeRobot) SetBackpackLights(ctx context.Context, light platform.Light) error {
	return r.record("backpack_lights", light.Name)
}

func (r *fakeRobot) ConnectCubes(ctx context.Context) error {
	return r.record("connect_cubes", "")
}

func (r *fakeRobot) WaitForObjects(ctx context.Context, n int, kind platform.ObjectType, timeout time.Duration) ([]platform.Object, error) {
	if err := r.record("wait_for_objects", fmt.Sprintf("%d %s %s", n, kind, timeout)); err != nil {
		return nil, err
	}
	if r.discovered < n {
		return nil, fmt.Errorf("%w: saw %d of %d objects", platform.ErrTimeout, r.discovered, n)
	}
	return append([]platform.Object(nil), r.cubes...), nil
}

func (r *fakeRobot) WaitForFace(ctx context.Context, timeout time.Duration) (platform.Face, error) {
	if err := r.record("wait_for_face", timeout.String()); err != nil {
		return platform.Face{}, err
	}
	if r.face == nil {
		return platform.Face{}, fmt.Errorf("%w: no face after %s", platform.ErrTimeout, timeout)
	}
	return *r.face, nil
}

type fakeBehavior struct {
	robot *fakeRobot
	kind  platform.BehaviorType
}

func (b *fakeBehavior) Type() platform.BehaviorType { return b.kind }

func (b *fakeBehavior) Stop(ctx context.Context) error {
	b.robot.mu.Lock()
	b.robot.stopped = append(b.robot.stopped, b.kind)
	b.robot.mu.Unlock()
	return b.robot.record("stop_behavior", string(b.kind))
}

// fakeCube is an in-memory light cube.
type fakeCube struct {
	id     string
	cubeID int

	mu       sync.Mutex
	lights   []platform.Light
	handlers []platform.TapHandler
	lightErr error
}

func newFakeCube(cubeID int) *fakeCube {
	return &fakeCube{id: fmt.Sprintf("obj-%d", cubeID), cubeID: cubeID}
}

func (c *fakeCube) ID() string                { return c.id }
func (c *fakeCube) CubeID() int               { return c.cubeID }
func (c *fakeCube) Type() platform.ObjectType { return platform.LightCube }

func (c *fakeCube) SetLights(ctx context.Context, light platform.Light) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lightErr != nil {
		return c.lightErr
	}
	c.lights = append(c.lights, light)
	return nil
}

func (c *fakeCube) OnTap(h platform.TapHandler) func() {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	idx := len(c.handlers) - 1
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.handlers[idx] = nil
		c.mu.Unlock()
	}
}

// tap invokes the live handlers synchronously.
func (c *fakeCube) tap(ctx context.Context) {
	c.mu.Lock()
	handlers := append([]platform.TapHandler(nil), c.handlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(ctx, platform.TapEvent{Object: c, At: time.Now(), Extra: map[string]any{"tap_count": 1}})
		}
	}
}

func (c *fakeCube) liveHandlers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, h := range c.handlers {
		if h != nil {
			n++
		}
	}
	return n
}

func (c *fakeCube) light() platform.Light {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lights) == 0 {
		return platform.Off
	}
	return c.lights[len(c.lights)-1]
}

func (c *fakeCube) lightHistory() []platform.Light {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]platform.Light(nil), c.lights...)
}

// recordingObserver keeps every notification.
type recordingObserver struct {
	mu       sync.Mutex
	states   []State
	started  []Behavior
	finished []error
}

func (o *recordingObserver) StateChanged(s State) {
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
}

func (o *recordingObserver) CubeLight(int, platform.Light) {}

func (o *recordingObserver) BehaviorStarted(_ int, b Behavior) {
	o.mu.Lock()
	o.started = append(o.started, b)
	o.mu.Unlock()
}

func (o *recordingObserver) BehaviorFinished(_ int, _ Behavior, _ time.Duration, err error) {
	o.mu.Lock()
	o.finished = append(o.finished, err)
	o.mu.Unlock()
}

func testFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	return img
}

func testCubes() (*fakeCube, *fakeCube, *fakeCube) {
	return newFakeCube(1), newFakeCube(2), newFakeCube(3)
}

func newTestController(r *fakeRobot, s Settings, opts ...Option) *Controller {
	opts = append([]Option{WithSettings(s), WithLogger(log.Discard())}, opts...)
	return New(r, opts...)
}
