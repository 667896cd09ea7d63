package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ponyo877/roomchat/client/domain"
)

type harness struct {
	manager   *Manager
	gateway   *fakeGateway
	transport *fakeTransport
	view      *fakeView
	journal   *journal
}

func newHarness(t *testing.T, rooms ...domain.Chatroom) *harness {
	t.Helper()

	j := &journal{}
	gw := newFakeGateway(rooms...)
	tr := &fakeTransport{journal: j}
	view := &fakeView{journal: j}
	m := NewManager(gw, tr, view, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{manager: m, gateway: gw, transport: tr, view: view, journal: j}
}

func twoRooms() []domain.Chatroom {
	return []domain.Chatroom{
		domain.NewChatroom("ra", "general"),
		domain.NewChatroom("rb", "random"),
	}
}

// assertInvariants checks the session against the open transport count.
func assertInvariants(t *testing.T, h *harness) {
	t.Helper()
	s := h.manager.Snapshot()

	assert.LessOrEqual(t, h.transport.openCount(), 1, "at most one open transport")
	assert.LessOrEqual(t, h.transport.maxOpenCount(), 1, "never two transports at once")
	if s.User != nil {
		assert.Equal(t, s.Chatroom != nil, h.transport.openCount() == 1, "room set iff a transport is open")
	} else {
		assert.Nil(t, s.Chatroom)
		assert.Zero(t, h.transport.openCount())
	}
}

func TestCheckAuth_Unauthenticated(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	h.gateway.checkErr = domain.NewStatusError(domain.KindAuth, "check", 401, "Not authenticated")

	err := h.manager.CheckAuth(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	assert.Equal(t, domain.StateUnauthenticated, h.manager.Snapshot().State())
	assert.True(t, h.view.showingAuth())
	assert.Zero(t, h.gateway.listCount(), "rooms must not be fetched")
	assert.Empty(t, h.view.alertList(), "auth check failures are not alerted")
	assertInvariants(t, h)
}

func TestCheckAuth_NetworkErrorClosesTransport(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.CheckAuth(context.Background()))
	first := h.transport.handle(0)

	h.gateway.checkErr = domain.NewNetworkError("check", errors.New("connection refused"))
	err := h.manager.CheckAuth(context.Background())

	require.Error(t, err)
	assert.True(t, first.isClosed())
	assert.Equal(t, domain.StateUnauthenticated, h.manager.Snapshot().State())
	assert.True(t, h.view.showingAuth())
	assertInvariants(t, h)
}

func TestCheckAuth_RepeatedOnlyRefetchesRooms(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.CheckAuth(context.Background()))
	before := h.manager.Snapshot()

	require.NoError(t, h.manager.CheckAuth(context.Background()))

	after := h.manager.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, 1, h.transport.handleCount(), "no new transport")
	assert.Equal(t, 2, h.gateway.listCount())
}

func TestCheckAuth_IdentityChangeDropsRoom(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.CheckAuth(context.Background()))
	first := h.transport.handle(0)

	h.gateway.user = domain.NewUser("u2", "bob")
	require.NoError(t, h.manager.CheckAuth(context.Background()))

	s := h.manager.Snapshot()
	assert.True(t, first.isClosed())
	assert.Equal(t, "u2", s.User.ID)
	require.NotNil(t, s.Chatroom)
	assert.Equal(t, "ra", s.Chatroom.ID, "the default room is joined again")
	assertInvariants(t, h)
}

func TestLogin_JoinsFirstRoom(t *testing.T) {
	h := newHarness(t, twoRooms()...)

	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))

	s := h.manager.Snapshot()
	assert.Equal(t, []string{"alice"}, h.gateway.logins)
	assert.Equal(t, domain.StateAuthenticatedInRoom, s.State())
	assert.Equal(t, "alice", s.User.Username)
	assert.Equal(t, "ra", s.Chatroom.ID)
	assert.Equal(t, 1, h.transport.openCount())
	assert.Equal(t, "ra", h.transport.handle(0).RoomID())
	assert.Equal(t, s.HandleID, h.transport.handle(0).ID())
	assert.False(t, h.view.showingAuth())

	items := h.view.roomItems()
	require.Len(t, items, 2)
	assert.True(t, items[0].Active)
	assert.False(t, items[1].Active)
	assertInvariants(t, h)
}

func TestLogin_NoRooms(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))

	assert.Equal(t, domain.StateAuthenticatedNoRoom, h.manager.Snapshot().State())
	assert.Zero(t, h.transport.handleCount())
	assertInvariants(t, h)
}

func TestLogin_Failure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantAlert string
	}{
		{
			name:      "server rejects credentials",
			err:       domain.NewStatusError(domain.KindAuth, "login", 401, "Invalid username or password"),
			wantAlert: "Login failed: Invalid username or password",
		},
		{
			name:      "network failure",
			err:       domain.NewNetworkError("login", errors.New("dial tcp: connection refused")),
			wantAlert: "Error: dial tcp: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, twoRooms()...)
			h.gateway.loginErr = tt.err

			err := h.manager.Login(context.Background(), "alice", "bad")

			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, []string{tt.wantAlert}, h.view.alertList())
			assert.Equal(t, domain.StateUnauthenticated, h.manager.Snapshot().State())
			assert.Zero(t, h.gateway.listCount())
		})
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	h.gateway.registerErr = domain.NewStatusError(domain.KindAuth, "register", 409, "User already exists")

	err := h.manager.Register(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.Equal(t, []string{"Registration failed: User already exists"}, h.view.alertList())

	h.gateway.registerErr = nil
	require.NoError(t, h.manager.Register(context.Background(), "alice", "pw"))
	assert.Equal(t, domain.StateAuthenticatedInRoom, h.manager.Snapshot().State())
}

func TestLogout(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	handle := h.transport.handle(0)

	require.NoError(t, h.manager.Logout(context.Background()))

	s := h.manager.Snapshot()
	assert.Nil(t, s.User)
	assert.Nil(t, s.Chatroom)
	assert.Empty(t, s.HandleID)
	assert.True(t, handle.isClosed())
	assert.True(t, h.view.showingAuth())
	assertInvariants(t, h)
}

func TestLogout_ServerFailureKeepsSession(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	handle := h.transport.handle(0)
	h.gateway.logoutErr = domain.NewStatusError(domain.KindAuth, "logout", 500, "Failed to logout")

	err := h.manager.Logout(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.StateAuthenticatedInRoom, h.manager.Snapshot().State())
	assert.False(t, handle.isClosed())
	assert.Equal(t, []string{"Logout failed: Failed to logout"}, h.view.alertList())
}

func TestJoinRoom_SwitchOrder(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	first := h.transport.handle(0)
	mark := len(h.journal.all())

	require.NoError(t, h.manager.JoinRoom(context.Background(), "rb"))

	assert.Equal(t, []string{
		"close " + first.ID(),
		"clear",
		"open h2 rb",
		"highlight rb",
	}, h.journal.all()[mark:])
	assert.Equal(t, "rb", h.manager.Snapshot().Chatroom.ID)

	items := h.view.roomItems()
	assert.False(t, items[0].Active)
	assert.True(t, items[1].Active)
	assertInvariants(t, h)
}

func TestJoinRoom_SameRoomReopens(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	first := h.transport.handle(0)

	require.NoError(t, h.manager.JoinRoom(context.Background(), "ra"))

	assert.True(t, first.isClosed())
	require.Equal(t, 2, h.transport.handleCount())
	second := h.transport.handle(1)
	assert.False(t, second.isClosed())
	assert.Equal(t, "ra", second.RoomID())
	assert.Equal(t, second.ID(), h.manager.Snapshot().HandleID)
	assertInvariants(t, h)
}

func TestJoinRoom_DetailFailureKeepsCurrentRoom(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	first := h.transport.handle(0)
	h.gateway.roomErr["rb"] = domain.NewStatusError(domain.KindRequest, "room", 404, "Chatroom not found")
	mark := len(h.journal.all())

	err := h.manager.JoinRoom(context.Background(), "rb")

	require.Error(t, err)
	assert.False(t, first.isClosed())
	assert.Equal(t, "ra", h.manager.Snapshot().Chatroom.ID)
	assert.Empty(t, h.journal.all()[mark:], "nothing touched")
	assertInvariants(t, h)
}

func TestJoinRoom_RequiresAuth(t *testing.T) {
	h := newHarness(t, twoRooms()...)

	err := h.manager.JoinRoom(context.Background(), "ra")

	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Zero(t, h.transport.handleCount())
}

func TestJoinRoom_StaleResponseDiscarded(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))

	gate := h.gateway.gate("rb")
	slow := make(chan error, 1)
	go func() { slow <- h.manager.JoinRoom(context.Background(), "rb") }()

	// wait until the slow join has taken its sequence number
	require.Eventually(t, func() bool {
		h.manager.mu.Lock()
		defer h.manager.mu.Unlock()
		return h.manager.issuedJoin == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.manager.JoinRoom(context.Background(), "ra"))
	close(gate)

	require.ErrorIs(t, <-slow, domain.ErrSuperseded)
	assert.Equal(t, "ra", h.manager.Snapshot().Chatroom.ID)
	assert.Equal(t, 2, h.transport.handleCount())
	assertInvariants(t, h)
}

func TestJoinRoom_LogoutDuringFetch(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))

	gate := h.gateway.gate("rb")
	slow := make(chan error, 1)
	go func() { slow <- h.manager.JoinRoom(context.Background(), "rb") }()
	require.Eventually(t, func() bool {
		h.manager.mu.Lock()
		defer h.manager.mu.Unlock()
		return h.manager.issuedJoin == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.manager.Logout(context.Background()))
	close(gate)

	require.ErrorIs(t, <-slow, domain.ErrSuperseded)
	assert.Equal(t, domain.StateUnauthenticated, h.manager.Snapshot().State())
	assertInvariants(t, h)
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t, twoRooms()...)

	require.ErrorIs(t, h.manager.SendMessage("hello"), domain.ErrNotConnected)

	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	handle := h.transport.handle(0)

	require.ErrorIs(t, h.manager.SendMessage(""), domain.ErrEmptyMessage)
	require.ErrorIs(t, h.manager.SendMessage("  \t\n"), domain.ErrEmptyMessage)
	assert.Empty(t, handle.sentMessages(), "empty content is never sent")

	require.NoError(t, h.manager.SendMessage("  hello  "))
	assert.Equal(t, []string{"hello"}, handle.sentMessages())
	assert.Empty(t, h.view.messages(), "no local echo")
}

func TestSendMessage_TransportError(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	h.transport.handle(0).sendErr = domain.NewStreamError("send", errors.New("broken pipe"))

	err := h.manager.SendMessage("hello")

	assert.Equal(t, domain.KindStream, domain.KindOf(err))
	assert.Empty(t, h.view.alertList(), "stream errors are not alerted")
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	lists := h.gateway.listCount()

	require.NoError(t, h.manager.CreateRoom(context.Background(), "  golang "))

	assert.Equal(t, lists+1, h.gateway.listCount())
	items := h.view.roomItems()
	require.Len(t, items, 3)
	assert.Equal(t, "golang", items[2].Name)
	assert.False(t, items[2].Active)
	assert.True(t, items[0].Active)
	assert.Equal(t, "ra", h.manager.Snapshot().Chatroom.ID, "new room is not joined")
	assert.Equal(t, 1, h.transport.handleCount())
}

func TestCreateRoom_Validation(t *testing.T) {
	h := newHarness(t, twoRooms()...)

	require.ErrorIs(t, h.manager.CreateRoom(context.Background(), "   "), domain.ErrEmptyRoomName)
	assert.Zero(t, h.gateway.listCount())
	assert.Empty(t, h.view.alertList())
}

func TestCreateRoom_Failure(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	lists := h.gateway.listCount()
	h.gateway.createErr = domain.NewStatusError(domain.KindRequest, "create", 500, "Failed to create chatroom")

	require.Error(t, h.manager.CreateRoom(context.Background(), "golang"))
	assert.Equal(t, []string{"Failed to create chatroom: Failed to create chatroom"}, h.view.alertList())
	assert.Equal(t, lists, h.gateway.listCount())
}

func TestFetchRooms_Failure(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	h.gateway.listErr = domain.NewNetworkError("rooms", errors.New("timeout"))

	require.NoError(t, h.manager.CheckAuth(context.Background()))

	assert.Equal(t, domain.StateAuthenticatedNoRoom, h.manager.Snapshot().State())
	assert.Empty(t, h.view.alertList())
}

func TestRun_RendersMessages(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	handle := h.transport.handle(0)
	now := time.Now()

	h.transport.push(handle, domain.NewMessageEvent("", "", domain.Message{
		Type: domain.MessageTypeChat, UserID: "u1", Username: "alice", Content: "mine", CreatedAt: now,
	}))
	h.transport.push(handle, domain.NewMessageEvent("", "", domain.Message{
		Type: domain.MessageTypeChat, UserID: "u2", Username: "bob", Content: "theirs", CreatedAt: now,
	}))
	h.transport.push(handle, domain.NewMessageEvent("", "", domain.Message{
		Type: domain.MessageTypeSystem, Username: "System", Content: "bob joined the chat", CreatedAt: now,
	}))

	require.Eventually(t, func() bool { return len(h.view.messages()) == 3 }, time.Second, 5*time.Millisecond)
	entries := h.view.messages()

	assert.True(t, entries[0].Own)
	assert.Equal(t, "alice", entries[0].Username)
	assert.False(t, entries[1].Own)
	assert.Equal(t, "theirs", entries[1].Content)
	assert.False(t, entries[2].ShowUsername)
	assert.Empty(t, entries[2].Username)
}

func TestRun_DropsSupersededEvents(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	old := h.transport.handle(0)
	require.NoError(t, h.manager.JoinRoom(context.Background(), "rb"))
	current := h.transport.handle(1)

	h.transport.push(old, domain.NewMessageEvent("", "", domain.Message{Type: domain.MessageTypeChat, Content: "late"}))
	h.transport.push(current, domain.NewMessageEvent("", "", domain.Message{Type: domain.MessageTypeChat, Content: "fresh"}))

	require.Eventually(t, func() bool { return len(h.view.messages()) >= 1 }, time.Second, 5*time.Millisecond)
	entries := h.view.messages()
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Content)
}

func TestRun_StreamErrorsOnlyLogged(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	handle := h.transport.handle(0)

	h.transport.push(handle, domain.NewErrorEvent("", "", errors.New("unexpected EOF")))
	h.transport.push(handle, domain.NewCloseEvent("", ""))
	h.transport.push(handle, domain.NewMessageEvent("", "", domain.Message{Type: domain.MessageTypeChat, Content: "after"}))

	require.Eventually(t, func() bool { return len(h.view.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.view.alertList())
	assert.Equal(t, domain.StateAuthenticatedInRoom, h.manager.Snapshot().State(), "no automatic recovery or teardown")
}

func TestRun_DropsMalformedEvents(t *testing.T) {
	var logs bytes.Buffer
	j := &journal{}
	tr := &fakeTransport{journal: j}
	view := &fakeView{journal: j}
	m := NewManager(newFakeGateway(twoRooms()...), tr, view, zerolog.New(&logs))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()

	require.NoError(t, m.Login(context.Background(), "alice", "pw"))
	handle := tr.handle(0)

	tr.push(handle, domain.StreamEvent{Type: domain.EventError})
	tr.push(handle, domain.StreamEvent{Type: domain.StreamEventType(42)})
	tr.push(handle, domain.NewMessageEvent("", "", domain.Message{Type: domain.MessageTypeChat, Content: "ok"}))

	require.Eventually(t, func() bool { return len(view.messages()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 2, strings.Count(logs.String(), "Dropping malformed stream event"))
	assert.Empty(t, view.alertList())
}

func TestClose(t *testing.T) {
	h := newHarness(t, twoRooms()...)
	require.NoError(t, h.manager.Login(context.Background(), "alice", "pw"))
	handle := h.transport.handle(0)

	h.manager.Close()
	h.manager.Close()

	assert.True(t, handle.isClosed())
	assert.Equal(t, domain.StateAuthenticatedNoRoom, h.manager.Snapshot().State())
	assertInvariants(t, h)
}
