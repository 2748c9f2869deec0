package viewer

import (
	"fmt"
	"sort"
	"time"

	"github.com/teslashibe/cube-action/pkg/cubeaction"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// maxLogs bounds the log backlog kept for new clients.
const maxLogs = 500

// Ensure Server can observe a controller session.
var _ cubeaction.Observer = (*Server)(nil)

// Status is the overlay's view of the session.
type Status struct {
	Session   string       `json:"session,omitempty"`
	State     string       `json:"state"`
	Cubes     []CubeStatus `json:"cubes"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CubeStatus is one cube's indicator and current behavior.
type CubeStatus struct {
	CubeID    int    `json:"cube_id"`
	Light     string `json:"light"`
	Color     string `json:"color"`
	Behavior  string `json:"behavior,omitempty"`
	Running   bool   `json:"running"`
	LastError string `json:"last_error,omitempty"`
	LastMS    int64  `json:"last_ms,omitempty"`
}

// LogEntry is one line in the overlay's log panel.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, behavior, error
	Message string `json:"message"`
}

// SetSession records the controller session id shown in the overlay.
func (s *Server) SetSession(id string) {
	s.updateStatus(func(st *Status) { st.Session = id })
}

// StateChanged implements cubeaction.Observer.
func (s *Server) StateChanged(state cubeaction.State) {
	s.updateStatus(func(st *Status) { st.State = state.String() })
	s.AddLog("info", "session "+state.String())
}

// CubeLight implements cubeaction.Observer.
func (s *Server) CubeLight(cubeID int, light platform.Light) {
	s.updateCube(cubeID, func(c *CubeStatus) {
		c.Light = light.Name
		c.Color = light.Hex()
	})
}

// BehaviorStarted implements cubeaction.Observer.
func (s *Server) BehaviorStarted(cubeID int, b cubeaction.Behavior) {
	s.updateCube(cubeID, func(c *CubeStatus) {
		c.Behavior = b.String()
		c.Running = true
	})
	s.AddLog("behavior", cubeLabel(cubeID)+" tapped: "+b.String())
}

// BehaviorFinished implements cubeaction.Observer.
func (s *Server) BehaviorFinished(cubeID int, b cubeaction.Behavior, elapsed time.Duration, err error) {
	s.updateCube(cubeID, func(c *CubeStatus) {
		c.Running = false
		c.LastMS = elapsed.Milliseconds()
		c.LastError = ""
		if err != nil {
			c.LastError = err.Error()
		}
	})
	if err != nil {
		s.AddLog("error", cubeLabel(cubeID)+" "+b.String()+" failed: "+err.Error())
		return
	}
	s.AddLog("behavior", cubeLabel(cubeID)+" "+b.String()+" done in "+elapsed.Round(time.Millisecond).String())
}

func cubeLabel(cubeID int) string {
	return fmt.Sprintf("cube %d", cubeID)
}

func (s *Server) updateStatus(update func(*Status)) {
	s.stateMu.Lock()
	update(&s.status)
	s.status.UpdatedAt = time.Now()
	snapshot := s.snapshotLocked()
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(snapshot)
}

func (s *Server) updateCube(cubeID int, update func(*CubeStatus)) {
	s.updateStatus(func(st *Status) {
		for i := range st.Cubes {
			if st.Cubes[i].CubeID == cubeID {
				update(&st.Cubes[i])
				return
			}
		}
		c := CubeStatus{CubeID: cubeID}
		update(&c)
		st.Cubes = append(st.Cubes, c)
		sort.Slice(st.Cubes, func(i, j int) bool { return st.Cubes[i].CubeID < st.Cubes[j].CubeID })
	})
}

// Snapshot returns a copy of the current status.
func (s *Server) Snapshot() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snapshotLocked()
}

func (s *Server) snapshotLocked() Status {
	st := s.status
	st.Cubes = append([]CubeStatus(nil), s.status.Cubes...)
	if st.Cubes == nil {
		st.Cubes = []CubeStatus{}
	}
	return st
}

// AddLog appends a log entry and broadcasts it.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// Logs returns the log backlog.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}
