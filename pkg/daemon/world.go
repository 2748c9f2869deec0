package daemon

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/cube-action/pkg/platform"
)

// cube is an object known to the daemon.
type cube struct {
	client *Client
	id     string
	cubeID int
	kind   platform.ObjectType

	mu       sync.Mutex
	handlers map[int]platform.TapHandler
	nextSub  int
}

func (o *cube) ID() string                { return o.id }
func (o *cube) CubeID() int               { return o.cubeID }
func (o *cube) Type() platform.ObjectType { return o.kind }

func (o *cube) String() string {
	return fmt.Sprintf("%s(%s, cube %d)", o.kind, o.id, o.cubeID)
}

// SetLights sets the cube's light.
func (o *cube) SetLights(ctx context.Context, light platform.Light) error {
	return o.client.post(ctx, "/api/cubes/"+url.PathEscape(o.id)+"/lights", map[string]any{
		"color": colorPayload(light),
	})
}

// OnTap subscribes handler to this cube's taps.
func (o *cube) OnTap(handler platform.TapHandler) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.handlers[id] = handler
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.handlers, id)
			o.mu.Unlock()
		})
	}
}

func (c *Client) observeObject(ev Event) {
	if ev.ObjectID == "" {
		return
	}

	c.mu.Lock()
	if _, ok := c.objects[ev.ObjectID]; ok {
		c.mu.Unlock()
		return
	}
	o := &cube{
		client:   c,
		id:       ev.ObjectID,
		cubeID:   ev.CubeID,
		kind:     platform.ObjectType(ev.ObjectType),
		handlers: make(map[int]platform.TapHandler),
	}
	c.objects[o.id] = o
	c.order = append(c.order, o.id)
	waiters := c.objWaiters
	c.objWaiters = nil
	c.mu.Unlock()

	c.log.Info("object observed", "object", o.id, "cube", o.cubeID, "type", o.kind)
	for _, w := range waiters {
		close(w)
	}
}

// dispatchTap runs every handler of the object on its own goroutine.
func (c *Client) dispatchTap(objectID string, extra map[string]any) {
	c.mu.Lock()
	o, ok := c.objects[objectID]
	c.mu.Unlock()
	if !ok {
		c.log.Warn("tap on unknown object", "object", objectID)
		return
	}

	o.mu.Lock()
	handlers := make([]platform.TapHandler, 0, len(o.handlers))
	for _, h := range o.handlers {
		handlers = append(handlers, h)
	}
	o.mu.Unlock()

	ev := platform.TapEvent{Object: o, At: time.Now(), Extra: extra}
	for _, h := range handlers {
		go h(c.ctx, ev)
	}
}

// objectsOfType returns observed objects of kind in observation order.
// Callers hold c.mu.
func (c *Client) objectsOfType(kind platform.ObjectType) []platform.Object {
	var out []platform.Object
	for _, id := range c.order {
		if o := c.objects[id]; o.kind == kind {
			out = append(out, o)
		}
	}
	return out
}

// Objects returns every observed object in observation order.
func (c *Client) Objects() []platform.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]platform.Object, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.objects[id])
	}
	return out
}

// ConnectCubes asks the daemon to connect every detectable cube.
func (c *Client) ConnectCubes(ctx context.Context) error {
	return c.post(ctx, "/api/world/connect_cubes", map[string]any{})
}

// WaitForObjects blocks until n distinct objects of kind have been
// observed, counting those seen before the call. The first n observed are
// returned in cube-id order.
func (c *Client) WaitForObjects(ctx context.Context, n int, kind platform.ObjectType, timeout time.Duration) ([]platform.Object, error) {
	done, err := c.streamDone()
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		objs := c.objectsOfType(kind)
		if len(objs) >= n {
			c.mu.Unlock()
			objs = objs[:n]
			sort.SliceStable(objs, func(i, j int) bool { return objs[i].CubeID() < objs[j].CubeID() })
			return objs, nil
		}
		changed := make(chan struct{})
		c.objWaiters = append(c.objWaiters, changed)
		c.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return nil, fmt.Errorf("%w: observed %d of %d %s objects after %s",
				platform.ErrTimeout, len(objs), n, kind, timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
			return nil, c.streamError()
		}
	}
}

// ObserveFace records a face observation and wakes face waiters.
// Local detectors use this to feed faces the daemon didn't report.
func (c *Client) ObserveFace(face platform.Face) {
	if face.ObservedAt.IsZero() {
		face.ObservedAt = time.Now()
	}

	c.mu.Lock()
	c.lastFace = &face
	waiters := c.faceWaiters
	c.faceWaiters = make(map[chan platform.Face]struct{})
	c.mu.Unlock()

	for w := range waiters {
		w <- face // buffered
	}
}

// LastFace returns the most recent face observation.
func (c *Client) LastFace() (platform.Face, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFace == nil {
		return platform.Face{}, false
	}
	return *c.lastFace, true
}

// WaitForFace blocks until a face is observed after the call.
func (c *Client) WaitForFace(ctx context.Context, timeout time.Duration) (platform.Face, error) {
	done, err := c.streamDone()
	if err != nil {
		return platform.Face{}, err
	}

	ch := make(chan platform.Face, 1)
	c.mu.Lock()
	c.faceWaiters[ch] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.faceWaiters, ch)
		c.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case face := <-ch:
		return face, nil
	case <-timer.C:
		return platform.Face{}, fmt.Errorf("%w: no face observed after %s", platform.ErrTimeout, timeout)
	case <-ctx.Done():
		return platform.Face{}, ctx.Err()
	case <-done:
		return platform.Face{}, c.streamError()
	}
}

func (c *Client) faceWaiterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.faceWaiters)
}
