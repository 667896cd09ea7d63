package domain

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticatedNoRoom
	StateAuthenticatedInRoom
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedNoRoom:
		return "authenticated-no-room"
	case StateAuthenticatedInRoom:
		return "authenticated-in-room"
	default:
		return "unknown"
	}
}

// Session is a point-in-time copy of what the session manager holds.
// Pointers are nil when the corresponding slot is empty.
type Session struct {
	User     *User
	Chatroom *Chatroom
	HandleID string
}

func (s Session) State() SessionState {
	switch {
	case s.User == nil:
		return StateUnauthenticated
	case s.Chatroom == nil:
		return StateAuthenticatedNoRoom
	default:
		return StateAuthenticatedInRoom
	}
}

func (s Session) String() string {
	out := s.State().String()
	if s.User != nil {
		out += " user=" + s.User.Username
	}
	if s.Chatroom != nil {
		out += " room=" + s.Chatroom.String()
	}
	return out
}
