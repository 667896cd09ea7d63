package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionState(t *testing.T) {
	user := NewUser("u1", "alice")
	room := NewChatroom("r1", "general")

	tests := []struct {
		name    string
		session Session
		want    SessionState
	}{
		{"empty", Session{}, StateUnauthenticated},
		{"room without user", Session{Chatroom: &room}, StateUnauthenticated},
		{"user only", Session{User: &user}, StateAuthenticatedNoRoom},
		{"user and room", Session{User: &user, Chatroom: &room}, StateAuthenticatedInRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.State())
		})
	}
}

func TestValidRoomID(t *testing.T) {
	for id, want := range map[string]bool{
		"":              false,
		".":             false,
		"..":            false,
		"...":           true,
		"r1":            true,
		"a/b":           true,
		"0195c7b3-7d1e": true,
	} {
		assert.Equal(t, want, ValidRoomID(id), "room id %q", id)
		assert.Equal(t, want, NewChatroom(id, "x").IsValid(), "room id %q", id)
	}
}

func TestMessageIsOwnedBy(t *testing.T) {
	alice := NewUser("u1", "alice")
	chat := NewChatMessage(alice, "r1", "hi", time.Now())

	assert.True(t, chat.IsOwnedBy("u1"))
	assert.False(t, chat.IsOwnedBy("u2"))
	assert.False(t, chat.IsOwnedBy(""))

	system := NewSystemMessage("r1", "alice joined the chat", time.Now())
	assert.False(t, system.IsOwnedBy(""))

	stock := chat
	stock.Type = MessageTypeStock
	assert.False(t, stock.IsOwnedBy("u1"))
}

func TestMessageDecodesServerFrame(t *testing.T) {
	frame := `{"id":"m1","type":"chat","user_id":"u1","username":"alice","chatroom_id":"r1","content":"hi","created_at":"2025-01-02T03:04:05Z"}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(frame), &msg))
	assert.Equal(t, MessageTypeChat, msg.Type)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), msg.CreatedAt.UTC())
}

func TestErrorKinds(t *testing.T) {
	netErr := NewNetworkError("login", errors.New("connection refused"))
	assert.Equal(t, KindNetwork, KindOf(netErr))
	assert.Equal(t, KindNetwork, KindOf(fmt.Errorf("wrapped: %w", netErr)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	status := NewStatusError(KindAuth, "login", 401, "Invalid username or password")
	assert.Equal(t, "Invalid username or password", status.Error())
	assert.Equal(t, "unexpected status 500", NewStatusError(KindRequest, "x", 500, "").Error())
}

func TestSentinelMatching(t *testing.T) {
	assert.ErrorIs(t, fmt.Errorf("send: %w", ErrNotConnected), ErrNotConnected)
	assert.NotErrorIs(t, ErrEmptyMessage, ErrEmptyRoomName)

	withOp := &Error{Kind: KindValidation, Op: "send", Message: ErrEmptyMessage.Message}
	assert.ErrorIs(t, withOp, ErrEmptyMessage)
}

func TestStreamEventValid(t *testing.T) {
	assert.True(t, NewOpenEvent("h1", "r1").IsValid())
	assert.Equal(t, "message", EventMessage.String())
	assert.Equal(t, "close", NewCloseEvent("h1", "r1").Type.String())
}
