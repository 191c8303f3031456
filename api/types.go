package api

import "time"

// PlaybackStatus is the transport state of the playback engine
type PlaybackStatus int32

const (
	StatusStopped PlaybackStatus = iota
	StatusPlaying
	StatusPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// PlaybackState is a point-in-time copy of the transport
type PlaybackState struct {
	Status        PlaybackStatus `json:"status"`
	Position      float64        `json:"position"`       // seconds
	TotalDuration float64        `json:"total_duration"` // seconds
}

// Player is the transport surface the editor drives
type Player interface {
	Play() error
	Pause() error
	Stop() error
	Seek(seconds float64) error
	GetState() PlaybackState
}

// EventType identifies what an Event carries
type EventType int

const (
	EventStateChange EventType = iota
	EventPositionUpdate
	EventPlaybackEnded
	EventError
	EventClipsChanged
	EventProjectLoaded
	EventSeparationStarted
	EventSeparationDone
	EventStemsDetected
)

// AllEventTypes lists every event type, in declaration order
func AllEventTypes() []EventType {
	return []EventType{
		EventStateChange,
		EventPositionUpdate,
		EventPlaybackEnded,
		EventError,
		EventClipsChanged,
		EventProjectLoaded,
		EventSeparationStarted,
		EventSeparationDone,
		EventStemsDetected,
	}
}

// Event is published on the event bus.
//
// Payload types by Type:
//   - EventStateChange: PlaybackState
//   - EventPositionUpdate: float64 (seconds)
//   - EventPlaybackEnded: nil
//   - EventError: error
//   - EventClipsChanged: int (clip count)
//   - EventProjectLoaded: ProjectInfo
//   - EventSeparationStarted: string (backend name)
//   - EventSeparationDone: []string (stem file paths)
//   - EventStemsDetected: string (source path)
type Event struct {
	Type    EventType
	Payload interface{}
	At      time.Time
}

// ProjectInfo describes the currently opened source
type ProjectInfo struct {
	SourcePath  string  `json:"source_path"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Duration    float64 `json:"duration"`
	StemsLoaded bool    `json:"stems_loaded"`
	ClipCount   int     `json:"clip_count"`
}
