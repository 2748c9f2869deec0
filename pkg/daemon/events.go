package daemon

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// Event types on the daemon stream.
const (
	EventObjectObserved  = "object_observed"
	EventObjectTapped    = "object_tapped"
	EventFaceObserved    = "face_observed"
	EventActionCompleted = "action_completed"
)

// Action completion states.
const (
	ActionSucceeded = "succeeded"
	ActionFailed    = "failed"
)

// Event is one message on the daemon event stream.
type Event struct {
	Type string `json:"type"`

	// object_observed, object_tapped
	ObjectID   string `json:"object_id,omitempty"`
	CubeID     int    `json:"cube_id,omitempty"`
	ObjectType string `json:"object_type,omitempty"`

	// face_observed
	FaceID int     `json:"face_id,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	W      float64 `json:"w,omitempty"`
	H      float64 `json:"h,omitempty"`

	// action_completed
	ActionID string `json:"action_id,omitempty"`
	State    string `json:"state,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// tapKnownFields are consumed by the client; everything else on a tap
// event is passed through in TapEvent.Extra.
var tapKnownFields = []string{"type", "object_id"}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	var readErr error
	defer func() {
		streamErr := fmt.Errorf("%w: event stream closed: %v", platform.ErrPlatform, readErr)
		c.mu.Lock()
		c.streamErr = streamErr
		pending := c.pending
		c.pending = make(map[string]chan error)
		c.mu.Unlock()

		for _, ch := range pending {
			select {
			case ch <- streamErr:
			default:
			}
		}
		close(done)
		if c.ctx.Err() != nil {
			c.log.Debug("event stream closed")
			return
		}
		c.log.Warn("event stream ended", "error", readErr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		c.handleEvent(data)
	}
}

func (c *Client) handleEvent(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Warn("bad event", "error", err)
		return
	}

	switch ev.Type {
	case EventObjectObserved:
		c.observeObject(ev)

	case EventObjectTapped:
		var extra map[string]any
		if err := json.Unmarshal(data, &extra); err != nil {
			extra = map[string]any{}
		}
		for _, k := range tapKnownFields {
			delete(extra, k)
		}
		c.dispatchTap(ev.ObjectID, extra)

	case EventFaceObserved:
		c.ObserveFace(platform.Face{
			ID:         ev.FaceID,
			X:          ev.X,
			Y:          ev.Y,
			W:          ev.W,
			H:          ev.H,
			ObservedAt: time.Now(),
		})

	case EventActionCompleted:
		c.completeAction(ev)

	default:
		c.log.Debug("ignoring event", "type", ev.Type)
	}
}

func (c *Client) completeAction(ev Event) {
	c.mu.Lock()
	ch, ok := c.pending[ev.ActionID]
	delete(c.pending, ev.ActionID)
	c.mu.Unlock()

	if !ok {
		c.log.Debug("completion for unknown action", "action", ev.ActionID)
		return
	}

	var err error
	if ev.State != ActionSucceeded {
		err = fmt.Errorf("%w: action %s %s: %s", platform.ErrPlatform, ev.ActionID, ev.State, ev.Reason)
	}
	ch <- err // buffered, one completion per action
}
