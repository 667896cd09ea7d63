// Package chattest runs an in-process chat server speaking the same REST
// and WebSocket API as the real one. It keeps everything in memory and
// lets tests inject failures and inspect open streams.
package chattest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/ponyo877/roomchat/client/domain"
)

const SessionCookie = "chat-session"

type account struct {
	user     domain.User
	password string
}

type failure struct {
	status int
	body   string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]account
	sessions map[string]domain.User
	rooms    []domain.Chatroom
	history  map[string][]domain.Message
	failures map[string]failure

	hub      *hub
	upgrader websocket.Upgrader
}

func NewServer() *Server {
	s := &Server{
		accounts: make(map[string]account),
		sessions: make(map[string]domain.User),
		history:  make(map[string][]domain.Message),
		failures: make(map[string]failure),
		hub:      newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/auth/check", s.check)
	mux.HandleFunc("GET /api/chatrooms", s.listRooms)
	mux.HandleFunc("POST /api/chatrooms", s.createRoom)
	mux.HandleFunc("GET /api/chatrooms/{id}", s.getRoom)
	mux.HandleFunc("GET /api/ws/{id}", s.stream)

	s.Server = httptest.NewServer(s.withFailures(mux))
	return s
}

// Close shuts down every stream and the HTTP server.
func (s *Server) Close() {
	s.hub.closeAll()
	s.Server.Close()
}

func (s *Server) AddUser(username, password string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := domain.NewUser(ulid.Make().String(), username)
	s.accounts[username] = account{user: user, password: password}
	return user
}

func (s *Server) AddRoom(name string) domain.Chatroom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRoomLocked(name)
}

// Fail makes every request matching method and path answer with status
// and body until Recover is called.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, body: body}
}

func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

// Broadcast pushes msg to every stream of roomID and records it in the
// room history.
func (s *Server) Broadcast(roomID string, msg domain.Message) {
	if msg.ChatroomID == "" {
		msg.ChatroomID = roomID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.history[roomID] = append(s.history[roomID], msg)
	s.mu.Unlock()
	s.hub.broadcast(roomID, msg)
}

// BroadcastRaw writes a frame as is, for malformed-payload tests.
func (s *Server) BroadcastRaw(roomID string, frame []byte) {
	s.hub.broadcastRaw(roomID, frame)
}

// StreamCount is the number of open streams for roomID.
func (s *Server) StreamCount(roomID string) int {
	return s.hub.count(roomID)
}

// TotalStreams is the number of open streams across all rooms.
func (s *Server) TotalStreams() int {
	return s.hub.total()
}

// DropStreams closes the server side of every stream in roomID without a
// close handshake.
func (s *Server) DropStreams(roomID string) {
	s.hub.drop(roomID)
}

// History returns the messages recorded for roomID.
func (s *Server) History(roomID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.history[roomID]...)
}

func (s *Server) withFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			http.Error(w, f.body, f.status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[req.Username]; exists {
		s.mu.Unlock()
		http.Error(w, "User already exists", http.StatusConflict)
		return
	}
	user := domain.NewUser(ulid.Make().String(), req.Username)
	s.accounts[req.Username] = account{user: user, password: req.Password}
	s.mu.Unlock()

	s.startSession(w, user)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || acc.password != req.Password {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	s.startSession(w, acc.user)
	writeJSON(w, http.StatusOK, acc.user)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticated(r)
	if !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticated(r); !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	rooms := append([]domain.Chatroom{}, s.rooms...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticated(r); !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Chatroom name is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	room := s.addRoomLocked(req.Name)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticated(r); !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	room, ok := s.findRoom(r.PathValue("id"))
	if !ok {
		http.Error(w, "Chatroom not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticated(r)
	if !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}
	room, ok := s.findRoom(r.PathValue("id"))
	if !ok {
		http.Error(w, "Chatroom not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newPeer(conn, user, room.ID)
	s.hub.join(c)
	go c.writePump()

	for _, msg := range s.History(room.ID) {
		c.enqueue(msg)
	}
	s.Broadcast(room.ID, domain.NewSystemMessage(room.ID, user.Username+" joined the chat", time.Now()))

	s.readPump(c)
}

func (s *Server) readPump(c *peer) {
	defer func() {
		if s.hub.leave(c) {
			s.Broadcast(c.roomID, domain.NewSystemMessage(c.roomID, c.user.Username+" left the chat", time.Now()))
		}
		c.shutdown()
	}()

	for {
		var payload domain.OutboundMessage
		if err := c.conn.ReadJSON(&payload); err != nil {
			return
		}
		msg := domain.NewChatMessage(c.user, c.roomID, payload.Content, time.Now())
		msg.ID = ulid.Make().String()
		s.Broadcast(c.roomID, msg)
	}
}

func (s *Server) authenticated(r *http.Request) (domain.User, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return domain.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.sessions[c.Value]
	return user, ok
}

func (s *Server) startSession(w http.ResponseWriter, user domain.User) {
	token := ulid.Make().String()
	s.mu.Lock()
	s.sessions[token] = user
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) findRoom(id string) (domain.Chatroom, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.ID == id {
			return room, true
		}
	}
	return domain.Chatroom{}, false
}

func (s *Server) addRoomLocked(name string) domain.Chatroom {
	now := time.Now()
	room := domain.Chatroom{ID: ulid.Make().String(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.rooms = append(s.rooms, room)
	return room
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
