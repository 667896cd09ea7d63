package domain

import "time"

type StreamEventType int

const (
	EventOpen StreamEventType = iota
	EventMessage
	EventError
	EventClose
)

func (t StreamEventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// StreamEvent is what a transport handle reports back to its owner.
// HandleID identifies the handle that produced it so superseded handles
// can be told apart from the active one.
type StreamEvent struct {
	Type      StreamEventType
	HandleID  string
	RoomID    string
	Message   Message
	Error     error
	Timestamp time.Time
}

func NewOpenEvent(handleID, roomID string) StreamEvent {
	return StreamEvent{
		Type:      EventOpen,
		HandleID:  handleID,
		RoomID:    roomID,
		Timestamp: time.Now(),
	}
}

func NewMessageEvent(handleID, roomID string, message Message) StreamEvent {
	return StreamEvent{
		Type:      EventMessage,
		HandleID:  handleID,
		RoomID:    roomID,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewErrorEvent(handleID, roomID string, err error) StreamEvent {
	return StreamEvent{
		Type:      EventError,
		HandleID:  handleID,
		RoomID:    roomID,
		Error:     err,
		Timestamp: time.Now(),
	}
}

func NewCloseEvent(handleID, roomID string) StreamEvent {
	return StreamEvent{
		Type:      EventClose,
		HandleID:  handleID,
		RoomID:    roomID,
		Timestamp: time.Now(),
	}
}

func (e StreamEvent) IsValid() bool {
	switch e.Type {
	case EventOpen, EventClose, EventMessage:
		return e.HandleID != "" && e.RoomID != ""
	case EventError:
		return e.Error != nil
	default:
		return false
	}
}

func (e StreamEvent) String() string {
	switch e.Type {
	case EventError:
		return e.Type.String() + ": " + e.Error.Error()
	case EventMessage:
		return e.Type.String() + ": " + e.Message.Username + " - " + e.Message.Content
	default:
		return e.Type.String() + ": " + e.RoomID
	}
}

// StreamHandle is one push-stream connection scoped to a single room.
type StreamHandle interface {
	ID() string
	RoomID() string
	Send(content string) error
	// Close is idempotent and safe on a handle that never connected.
	Close() error
}
