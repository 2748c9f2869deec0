package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/teslashibe/cube-action/internal/httpc"
	"github.com/teslashibe/cube-action/pkg/anim"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// maxFrameBytes bounds a camera frame download.
const maxFrameBytes = 8 << 20

func colorPayload(l platform.Light) map[string]uint8 {
	return map[string]uint8{"r": l.R, "g": l.G, "b": l.B}
}

// post sends a JSON command to the daemon.
func (c *Client) post(ctx context.Context, path string, body any) error {
	if err := httpc.PostJSON(ctx, c.http, c.baseURL+path, body); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", platform.ErrPlatform, err)
	}
	return nil
}

// runAction posts a long-running command and waits for its completion
// event. The action is registered before the request so a fast completion
// is never missed.
func (c *Client) runAction(ctx context.Context, path string, body map[string]any) error {
	done, err := c.streamDone()
	if err != nil {
		return err
	}

	id := uuid.NewString()
	ch := make(chan error, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	body["action_id"] = id
	if err := c.post(ctx, path, body); err != nil {
		return err
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		// A completion may have raced the stream shutdown.
		select {
		case err := <-ch:
			return err
		default:
			return c.streamError()
		}
	}
}

// Say speaks text and waits until the daemon reports it finished.
func (c *Client) Say(ctx context.Context, text string, durationScalar float64) error {
	c.log.Debug("say", "text", text)
	return c.runAction(ctx, "/api/speech/say", map[string]any{
		"text":            text,
		"duration_scalar": durationScalar,
	})
}

// GoToObject drives to obj, stopping distanceMM away.
func (c *Client) GoToObject(ctx context.Context, obj platform.Object, distanceMM float64) error {
	return c.runAction(ctx, "/api/move/go_to_object", map[string]any{
		"object_id":   obj.ID(),
		"distance_mm": distanceMM,
	})
}

// TurnTowardsFace rotates towards face.
func (c *Client) TurnTowardsFace(ctx context.Context, face platform.Face) error {
	x, y := face.Center()
	return c.runAction(ctx, "/api/move/turn_towards_face", map[string]any{
		"face_id": face.ID,
		"x":       x,
		"y":       y,
	})
}

// SetPose sends a direct head, antenna and body target. Used for local
// animation playback.
func (c *Client) SetPose(ctx context.Context, pose anim.Pose) error {
	return c.post(ctx, "/api/move/set_target", map[string]any{
		"target_head_pose": map[string]float64{
			"roll":  pose.Roll,
			"pitch": pose.Pitch,
			"yaw":   pose.Yaw,
		},
		"target_antennas": []float64{pose.Antennas[0], pose.Antennas[1]},
		"target_body_yaw": pose.BodyYaw,
	})
}

// PlayAnimation plays the named clip and blocks until it ends.
func (c *Client) PlayAnimation(ctx context.Context, name string) error {
	if c.anims != nil {
		if clip, err := c.anims.Get(name); err == nil {
			c.log.Debug("playing local clip", "clip", name, "duration", clip.Duration)
			if err := c.player.Play(ctx, clip, c); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("play %s: %w", name, err)
			}
			return nil
		}
	}
	return c.runAction(ctx, "/api/anim/play", map[string]any{"name": name})
}

// EnableImageStream turns the camera stream on or off.
func (c *Client) EnableImageStream(ctx context.Context, enabled bool) error {
	return c.post(ctx, "/api/camera/stream", map[string]any{"enabled": enabled})
}

// LatestJPEG returns the latest camera frame as JPEG bytes.
func (c *Client) LatestJPEG(ctx context.Context) ([]byte, error) {
	resp, err := httpc.Get(ctx, c.http, c.baseURL+"/api/camera/latest")
	if err != nil {
		var se *httpc.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, platform.ErrNoImage
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", platform.ErrPlatform, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read frame: %v", platform.ErrPlatform, err)
	}
	if len(data) == 0 {
		return nil, platform.ErrNoImage
	}
	return data, nil
}

// LatestImage returns the latest camera frame, decoded.
func (c *Client) LatestImage(ctx context.Context) (image.Image, error) {
	data, err := c.LatestJPEG(ctx)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", platform.ErrPlatform, err)
	}
	return img, nil
}

// SetBackpackLights sets the chassis light.
func (c *Client) SetBackpackLights(ctx context.Context, light platform.Light) error {
	return c.post(ctx, "/api/lights/backpack", map[string]any{"color": colorPayload(light)})
}

// behavior is a running daemon behavior.
type behavior struct {
	client *Client
	id     string
	kind   platform.BehaviorType

	once sync.Once
	err  error
}

func (b *behavior) Type() platform.BehaviorType { return b.kind }

// Stop stops the behavior. Later calls return the first result.
func (b *behavior) Stop(ctx context.Context) error {
	b.once.Do(func() {
		b.client.mu.Lock()
		delete(b.client.behaviors, b.id)
		b.client.mu.Unlock()

		b.err = b.client.post(ctx, "/api/behavior/stop", map[string]any{"behavior_id": b.id})
		b.client.log.Debug("behavior stopped", "behavior", b.kind, "id", b.id, "error", b.err)
	})
	return b.err
}

// StartBehavior starts a platform behavior.
func (c *Client) StartBehavior(ctx context.Context, kind platform.BehaviorType) (platform.Behavior, error) {
	b := &behavior{client: c, id: uuid.NewString(), kind: kind}
	if err := c.post(ctx, "/api/behavior/start", map[string]any{
		"behavior":    string(kind),
		"behavior_id": b.id,
	}); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.behaviors[b.id] = kind
	c.mu.Unlock()

	c.log.Debug("behavior started", "behavior", kind, "id", b.id)
	return b, nil
}

// BehaviorActive reports whether a behavior of kind is running.
func (c *Client) BehaviorActive(kind platform.BehaviorType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.behaviors {
		if k == kind {
			return true
		}
	}
	return false
}
