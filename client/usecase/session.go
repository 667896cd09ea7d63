package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ponyo877/roomchat/client/domain"
	"github.com/ponyo877/roomchat/client/logx"
	"github.com/ponyo877/roomchat/client/render"
)

const eventBufferSize = 256

// Manager owns the client session: the signed-in user, the joined room
// and the single live stream handle. All state changes go through its
// methods; network calls run outside the lock.
type Manager struct {
	gateway   Gateway
	transport Transport
	view      View
	logger    zerolog.Logger
	events    chan domain.StreamEvent

	mu     sync.Mutex
	user   *domain.User
	room   *domain.Chatroom
	handle domain.StreamHandle
	// issuedJoin numbers JoinRoom calls; appliedJoin is the newest one
	// whose result reached the session. Older results are discarded.
	issuedJoin  uint64
	appliedJoin uint64
}

func NewManager(gateway Gateway, transport Transport, view View, logger zerolog.Logger) *Manager {
	return &Manager{
		gateway:   gateway,
		transport: transport,
		view:      view,
		logger:    logx.Component(logger, "session"),
		events:    make(chan domain.StreamEvent, eventBufferSize),
	}
}

// CheckAuth asks the server who we are. Any failure, network errors
// included, leaves the session signed out.
func (m *Manager) CheckAuth(ctx context.Context) error {
	user, err := m.gateway.CheckAuth(ctx)
	if err != nil {
		m.logger.Info().Err(err).Msg("Not authenticated")
		m.mu.Lock()
		m.resetLocked()
		m.view.ShowAuth()
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if m.user != nil && m.user.ID != user.ID {
		m.logger.Info().Str("previous", m.user.ID).Str("user_id", user.ID).Msg("Identity changed, dropping room")
		m.resetLocked()
	}
	m.user = &user
	m.view.ShowChat(user)
	m.mu.Unlock()

	// room listing failures are logged by FetchRooms and do not undo auth
	_ = m.FetchRooms(ctx)
	return nil
}

func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := m.gateway.Login(ctx, username, password); err != nil {
		m.alert("Login failed", err)
		return err
	}
	return m.CheckAuth(ctx)
}

func (m *Manager) Register(ctx context.Context, username, password string) error {
	if err := m.gateway.Register(ctx, username, password); err != nil {
		m.alert("Registration failed", err)
		return err
	}
	return m.CheckAuth(ctx)
}

// Logout clears the session only when the server confirms the logout.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.gateway.Logout(ctx); err != nil {
		m.alert("Logout failed", err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.view.ShowAuth()
	m.logger.Info().Msg("Logged out")
	return nil
}

// FetchRooms renders the room list and joins the first room when none is
// joined yet.
func (m *Manager) FetchRooms(ctx context.Context) error {
	rooms, err := m.gateway.ListRooms(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to fetch chatrooms")
		return err
	}

	m.mu.Lock()
	activeID := ""
	if m.room != nil {
		activeID = m.room.ID
	}
	m.view.RenderRooms(render.Rooms(rooms, activeID))
	autoJoin := m.room == nil && m.user != nil && len(rooms) > 0
	m.mu.Unlock()

	if !autoJoin {
		return nil
	}
	return m.JoinRoom(ctx, rooms[0].ID)
}

// JoinRoom switches the session to roomID. The old stream is closed and
// the log cleared only after the room detail has been fetched, so a
// failed fetch leaves the current room untouched.
func (m *Manager) JoinRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	m.issuedJoin++
	seq := m.issuedJoin
	m.mu.Unlock()

	logger := m.logger.With().Str("room_id", roomID).Uint64("join_seq", seq).Logger()

	room, err := m.gateway.GetRoom(ctx, roomID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to join chatroom")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil || seq <= m.appliedJoin {
		logger.Debug().Uint64("applied_seq", m.appliedJoin).Msg("Discarding stale join")
		return domain.ErrSuperseded
	}
	m.appliedJoin = seq

	m.closeHandleLocked()
	m.view.ClearMessages()
	m.room = &room
	m.handle = m.transport.Open(room.ID, m.events)
	m.view.HighlightRoom(room.ID)

	logger.Info().Str("handle_id", m.handle.ID()).Msg("Joined chatroom")
	return nil
}

// SendMessage pushes content to the joined room. Nothing is echoed
// locally; the line shows up when the server sends it back.
func (m *Manager) SendMessage(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ErrEmptyMessage
	}

	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()

	if handle == nil {
		return domain.ErrNotConnected
	}
	if err := handle.Send(content); err != nil {
		m.logger.Warn().Err(err).Str("handle_id", handle.ID()).Msg("Failed to send message")
		return err
	}
	return nil
}

// CreateRoom creates a room and refreshes the list. The new room is not
// joined.
func (m *Manager) CreateRoom(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrEmptyRoomName
	}

	if _, err := m.gateway.CreateRoom(ctx, name); err != nil {
		m.alert("Failed to create chatroom", err)
		return err
	}
	return m.FetchRooms(ctx)
}

// Run delivers stream events to the view until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.events:
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(ev domain.StreamEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := m.logger.With().Str("handle_id", ev.HandleID).Str("room_id", ev.RoomID).Logger()

	if !ev.IsValid() {
		logger.Warn().Stringer("event", ev.Type).Msg("Dropping malformed stream event")
		return
	}
	if m.handle == nil || m.handle.ID() != ev.HandleID {
		logger.Debug().Stringer("event", ev.Type).Msg("Dropping event from superseded stream")
		return
	}

	switch ev.Type {
	case domain.EventOpen:
		logger.Info().Msg("Stream opened")
	case domain.EventMessage:
		userID := ""
		if m.user != nil {
			userID = m.user.ID
		}
		m.view.AppendMessage(render.Message(ev.Message, userID))
	case domain.EventError:
		logger.Warn().Err(ev.Error).Msg("Stream error")
	case domain.EventClose:
		// no reconnect; the room stays joined but silent until re-joined
		logger.Info().Msg("Stream closed")
	}
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s domain.Session
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	if m.room != nil {
		r := *m.room
		s.Chatroom = &r
	}
	if m.handle != nil {
		s.HandleID = m.handle.ID()
	}
	return s
}

// Close drops the live stream without telling the server anything.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeHandleLocked()
	m.room = nil
	m.appliedJoin = m.issuedJoin
}

func (m *Manager) resetLocked() {
	m.closeHandleLocked()
	m.user = nil
	m.room = nil
	m.appliedJoin = m.issuedJoin
}

func (m *Manager) closeHandleLocked() {
	if m.handle == nil {
		return
	}
	if err := m.handle.Close(); err != nil {
		m.logger.Warn().Err(err).Str("handle_id", m.handle.ID()).Msg("Failed to close stream")
	}
	m.handle = nil
}

func (m *Manager) alert(prefix string, err error) {
	if domain.KindOf(err) == domain.KindNetwork {
		m.view.Alert("Error: " + err.Error())
		return
	}
	m.view.Alert(prefix + ": " + err.Error())
}
