package domain

import "time"

type MessageType string

const (
	MessageTypeChat   MessageType = "chat"
	MessageTypeStock  MessageType = "stock"
	MessageTypeSystem MessageType = "system"
)

// Message is a single entry pushed by the server over a room stream.
type Message struct {
	ID         string      `json:"id,omitempty"`
	Type       MessageType `json:"type"`
	UserID     string      `json:"user_id"`
	Username   string      `json:"username"`
	ChatroomID string      `json:"chatroom_id,omitempty"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
}

func NewChatMessage(user User, chatroomID, content string, createdAt time.Time) Message {
	return Message{
		Type:       MessageTypeChat,
		UserID:     user.ID,
		Username:   user.Username,
		ChatroomID: chatroomID,
		Content:    content,
		CreatedAt:  createdAt,
	}
}

func NewSystemMessage(chatroomID, content string, createdAt time.Time) Message {
	return Message{
		Type:       MessageTypeSystem,
		Username:   "System",
		ChatroomID: chatroomID,
		Content:    content,
		CreatedAt:  createdAt,
	}
}

// IsOwnedBy reports whether the message is a chat line written by userID.
func (m Message) IsOwnedBy(userID string) bool {
	return m.Type == MessageTypeChat && userID != "" && m.UserID == userID
}

// OutboundMessage is the only frame a client writes to a room stream.
type OutboundMessage struct {
	Content string `json:"content"`
}
