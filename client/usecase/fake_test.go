package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/ponyo877/roomchat/client/domain"
	"github.com/ponyo877/roomchat/client/render"
)

// journal records calls across fakes so tests can assert ordering.
type journal struct {
	mu    sync.Mutex
	lines []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lines = append(j.lines, fmt.Sprintf(format, args...))
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}

type fakeGateway struct {
	mu sync.Mutex

	user        domain.User
	checkErr    error
	loginErr    error
	registerErr error
	logoutErr   error
	listErr     error
	createErr   error
	rooms       []domain.Chatroom
	roomErr     map[string]error
	// gates block GetRoom for a room until the channel is closed.
	gates map[string]chan struct{}

	listCalls int
	logins    []string
}

func newFakeGateway(rooms ...domain.Chatroom) *fakeGateway {
	return &fakeGateway{
		user:    domain.NewUser("u1", "alice"),
		rooms:   rooms,
		roomErr: map[string]error{},
		gates:   map[string]chan struct{}{},
	}
}

func (g *fakeGateway) CheckAuth(ctx context.Context) (domain.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkErr != nil {
		return domain.User{}, g.checkErr
	}
	return g.user, nil
}

func (g *fakeGateway) Login(ctx context.Context, username, password string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logins = append(g.logins, username)
	return g.loginErr
}

func (g *fakeGateway) Register(ctx context.Context, username, password string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registerErr
}

func (g *fakeGateway) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logoutErr
}

func (g *fakeGateway) ListRooms(ctx context.Context) ([]domain.Chatroom, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]domain.Chatroom(nil), g.rooms...), nil
}

func (g *fakeGateway) GetRoom(ctx context.Context, roomID string) (domain.Chatroom, error) {
	g.mu.Lock()
	gate := g.gates[roomID]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.roomErr[roomID]; err != nil {
		return domain.Chatroom{}, err
	}
	for _, room := range g.rooms {
		if room.ID == roomID {
			return room, nil
		}
	}
	return domain.Chatroom{}, domain.NewStatusError(domain.KindRequest, "room", 404, "Chatroom not found")
}

func (g *fakeGateway) CreateRoom(ctx context.Context, name string) (domain.Chatroom, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return domain.Chatroom{}, g.createErr
	}
	room := domain.NewChatroom(fmt.Sprintf("r%d", len(g.rooms)+1), name)
	g.rooms = append(g.rooms, room)
	return room, nil
}

func (g *fakeGateway) gate(roomID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[roomID] = ch
	return ch
}

func (g *fakeGateway) listCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls
}

type fakeTransport struct {
	mu      sync.Mutex
	journal *journal
	handles []*fakeHandle
	open    int
	maxOpen int
	events  chan<- domain.StreamEvent
}

func (t *fakeTransport) Open(roomID string, events chan<- domain.StreamEvent) domain.StreamHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := &fakeHandle{id: fmt.Sprintf("h%d", len(t.handles)+1), roomID: roomID, transport: t}
	t.handles = append(t.handles, h)
	t.events = events
	t.open++
	if t.open > t.maxOpen {
		t.maxOpen = t.open
	}
	t.journal.add("open %s %s", h.id, roomID)
	return h
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *fakeTransport) maxOpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxOpen
}

func (t *fakeTransport) handle(i int) *fakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handles[i]
}

func (t *fakeTransport) handleCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// push delivers an event as if handle h had received it.
func (t *fakeTransport) push(h *fakeHandle, ev domain.StreamEvent) {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()
	ev.HandleID = h.id
	ev.RoomID = h.roomID
	events <- ev
}

type fakeHandle struct {
	id        string
	roomID    string
	transport *fakeTransport

	mu      sync.Mutex
	closed  bool
	sent    []string
	sendErr error
}

func (h *fakeHandle) ID() string     { return h.id }
func (h *fakeHandle) RoomID() string { return h.roomID }

func (h *fakeHandle) Send(content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return domain.ErrNotConnected
	}
	if h.sendErr != nil {
		return h.sendErr
	}
	h.sent = append(h.sent, content)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	h.transport.mu.Lock()
	h.transport.open--
	h.transport.mu.Unlock()
	h.transport.journal.add("close %s", h.id)
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) sentMessages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sent...)
}

type fakeView struct {
	mu       sync.Mutex
	journal  *journal
	authView bool
	chatUser *domain.User
	rooms    []render.RoomItem
	entries  []render.Entry
	alerts   []string
}

func (v *fakeView) ShowAuth() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authView = true
	v.chatUser = nil
	v.journal.add("show auth")
}

func (v *fakeView) ShowChat(user domain.User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authView = false
	v.chatUser = &user
	v.journal.add("show chat %s", user.Username)
}

func (v *fakeView) RenderRooms(items []render.RoomItem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rooms = items
	v.journal.add("rooms %d", len(items))
}

func (v *fakeView) HighlightRoom(roomID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rooms = render.Highlight(v.rooms, roomID)
	v.journal.add("highlight %s", roomID)
}

func (v *fakeView) ClearMessages() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = nil
	v.journal.add("clear")
}

func (v *fakeView) AppendMessage(entry render.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = append(v.entries, entry)
}

func (v *fakeView) Alert(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = append(v.alerts, msg)
}

func (v *fakeView) messages() []render.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]render.Entry(nil), v.entries...)
}

func (v *fakeView) alertList() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.alerts...)
}

func (v *fakeView) roomItems() []render.RoomItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]render.RoomItem(nil), v.rooms...)
}

func (v *fakeView) showingAuth() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.authView
}
