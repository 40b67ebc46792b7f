// ABOUTME: Notifications posted from the audio callback to the control plane
// ABOUTME: Delivered with non-blocking sends; overflow is counted and dropped
package engine

import "fmt"

// EventKind identifies what happened on the audio thread
type EventKind int

const (
	PlaybackEnded EventKind = iota
	PlaybackFailed
	RecordingFailed
)

func (k EventKind) String() string {
	switch k {
	case PlaybackEnded:
		return "playback_ended"
	case PlaybackFailed:
		return "playback_failed"
	case RecordingFailed:
		return "recording_failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a session teardown notification
type Event struct {
	Kind EventKind
	ID   int    // Playback id, zero for recordings
	Path string // File involved
	Err  error
}

const eventBuffer = 16

// post never blocks the audio thread
func (e *Engine) post(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.droppedEvents.Add(1)
	}
}

// Events returns the notification channel
func (e *Engine) Events() <-chan Event {
	return e.events
}
