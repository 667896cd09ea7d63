package domain

import "time"

type Chatroom struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func NewChatroom(id, name string) Chatroom {
	return Chatroom{
		ID:   id,
		Name: name,
	}
}

func (c Chatroom) IsValid() bool {
	return ValidRoomID(c.ID)
}

// ValidRoomID reports whether id can stand as a single URL path segment.
// Dot segments would be collapsed into a different endpoint.
func ValidRoomID(id string) bool {
	return id != "" && id != "." && id != ".."
}

func (c Chatroom) String() string {
	return "#" + c.Name
}
