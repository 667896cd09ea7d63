package chattest

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/ponyo877/roomchat/client/domain"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
)

// peer is the server end of one client stream.
type peer struct {
	id     string
	conn   *websocket.Conn
	user   domain.User
	roomID string
	send   chan []byte

	once sync.Once
	done chan struct{}
}

func newPeer(conn *websocket.Conn, user domain.User, roomID string) *peer {
	return &peer{
		id:     ulid.Make().String(),
		conn:   conn,
		user:   user,
		roomID: roomID,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func (p *peer) enqueue(msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.enqueueRaw(data)
}

// enqueueRaw drops the frame when the peer is slow or gone.
func (p *peer) enqueueRaw(data []byte) {
	select {
	case <-p.done:
	case p.send <- data:
	default:
	}
}

func (p *peer) writePump() {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.shutdown()
				return
			}
		}
	}
}

func (p *peer) shutdown() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

type room struct {
	mu    sync.RWMutex
	peers map[string]*peer
}

type hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

func newHub() *hub {
	return &hub{rooms: make(map[string]*room)}
}

func (h *hub) join(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, exists := h.rooms[p.roomID]
	if !exists {
		r = &room{peers: make(map[string]*peer)}
		h.rooms[p.roomID] = r
	}
	r.mu.Lock()
	r.peers[p.id] = p
	r.mu.Unlock()
}

// leave reports whether p was still registered.
func (h *hub) leave(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, exists := h.rooms[p.roomID]
	if !exists {
		return false
	}
	r.mu.Lock()
	_, registered := r.peers[p.id]
	delete(r.peers, p.id)
	empty := len(r.peers) == 0
	r.mu.Unlock()

	if empty {
		delete(h.rooms, p.roomID)
	}
	return registered
}

func (h *hub) peers(roomID string) []*peer {
	h.mu.RLock()
	r, exists := h.rooms[roomID]
	h.mu.RUnlock()
	if !exists {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

func (h *hub) broadcast(roomID string, msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcastRaw(roomID, data)
}

func (h *hub) broadcastRaw(roomID string, data []byte) {
	for _, p := range h.peers(roomID) {
		p.enqueueRaw(data)
	}
}

func (h *hub) count(roomID string) int {
	return len(h.peers(roomID))
}

func (h *hub) total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, r := range h.rooms {
		r.mu.RLock()
		n += len(r.peers)
		r.mu.RUnlock()
	}
	return n
}

func (h *hub) drop(roomID string) {
	for _, p := range h.peers(roomID) {
		h.leave(p)
		p.shutdown()
	}
}

func (h *hub) closeAll() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.drop(id)
	}
}
