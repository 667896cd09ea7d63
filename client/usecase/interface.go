package usecase

import (
	"context"

	"github.com/ponyo877/roomchat/client/domain"
	"github.com/ponyo877/roomchat/client/render"
)

// Gateway is the REST side of the chat server.
type Gateway interface {
	CheckAuth(ctx context.Context) (domain.User, error)
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	ListRooms(ctx context.Context) ([]domain.Chatroom, error)
	GetRoom(ctx context.Context, roomID string) (domain.Chatroom, error)
	CreateRoom(ctx context.Context, name string) (domain.Chatroom, error)
}

// Transport opens push-stream handles. Open must not block on the
// network; the outcome is reported on events.
type Transport interface {
	Open(roomID string, events chan<- domain.StreamEvent) domain.StreamHandle
}

// View receives projected UI updates. Implementations must not call back
// into the session manager synchronously.
type View interface {
	ShowAuth()
	ShowChat(user domain.User)
	RenderRooms(items []render.RoomItem)
	HighlightRoom(roomID string)
	ClearMessages()
	AppendMessage(entry render.Entry)
	Alert(msg string)
}
