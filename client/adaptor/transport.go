package adaptor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ponyo877/roomchat/client/domain"
	"github.com/ponyo877/roomchat/client/logx"
)

const (
	// timeout for a single frame write.
	writeWait = 10 * time.Second

	// timeout for the close handshake frame.
	closeWait = time.Second

	// largest inbound frame accepted from the server.
	maxMessageSize = 64 * 1024

	handshakeTimeout = 45 * time.Second
)

// StreamTransport opens WebSocket streams to /api/ws/{roomId} on the
// configured server.
type StreamTransport struct {
	baseURL *url.URL
	dialer  *websocket.Dialer
	logger  zerolog.Logger
}

// NewStreamTransport builds a transport for baseURL. Cookies from jar are
// sent on every upgrade request so the stream shares the REST session.
func NewStreamTransport(baseURL string, jar http.CookieJar, logger zerolog.Logger) (*StreamTransport, error) {
	u, err := parseServerURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &StreamTransport{
		baseURL: u,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			Jar:              jar,
		},
		logger: logx.Component(logger, "transport"),
	}, nil
}

// StreamURL derives the stream endpoint of roomID: https maps to wss,
// http to ws.
func StreamURL(base *url.URL, roomID string) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.JoinPath("api", "ws", url.PathEscape(roomID)).String()
}

// Open returns immediately; the dial runs in the background and its
// outcome is reported on events.
func (t *StreamTransport) Open(roomID string, events chan<- domain.StreamEvent) domain.StreamHandle {
	ctx, cancel := context.WithCancel(context.Background())
	id := ulid.Make().String()

	s := &Stream{
		id:     id,
		roomID: roomID,
		url:    StreamURL(t.baseURL, roomID),
		dialer: t.dialer,
		events: events,
		logger: t.logger.With().Str("handle_id", id).Str("room_id", roomID).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.run()
	return s
}

// Stream is a single WebSocket connection scoped to one room.
type Stream struct {
	id     string
	roomID string
	url    string
	dialer *websocket.Dialer
	events chan<- domain.StreamEvent
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex
}

func (s *Stream) ID() string     { return s.id }
func (s *Stream) RoomID() string { return s.roomID }

func (s *Stream) run() {
	if !domain.ValidRoomID(s.roomID) {
		s.emit(domain.NewErrorEvent(s.id, s.roomID, domain.ErrInvalidRoomID))
		s.emit(domain.NewCloseEvent(s.id, s.roomID))
		return
	}

	conn, resp, err := s.dialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		s.logger.Warn().Err(err).Msg("Failed to open stream")
		s.emit(domain.NewErrorEvent(s.id, s.roomID, domain.NewStreamError("dial", err)))
		s.emit(domain.NewCloseEvent(s.id, s.roomID))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Debug().Msg("Stream connected")
	s.emit(domain.NewOpenEvent(s.id, s.roomID))
	s.readLoop(conn)
}

func (s *Stream) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("Stream dropped")
				s.emit(domain.NewErrorEvent(s.id, s.roomID, domain.NewStreamError("read", err)))
			} else {
				s.logger.Info().Err(err).Msg("Stream closed by server")
			}
			_ = conn.Close()
			s.emit(domain.NewCloseEvent(s.id, s.roomID))
			return
		}

		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Bytes("frame", data).Msg("Server sent invalid JSON")
			s.emit(domain.NewErrorEvent(s.id, s.roomID, domain.NewStreamError("decode", err)))
			continue
		}
		s.emit(domain.NewMessageEvent(s.id, s.roomID, msg))
	}
}

// emit stops delivering as soon as the stream is closed.
func (s *Stream) emit(ev domain.StreamEvent) {
	if s.isClosed() {
		return
	}
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Stream) Send(content string) error {
	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()

	if closed || conn == nil {
		return domain.ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return domain.NewStreamError("send", err)
	}
	if err := conn.WriteJSON(domain.OutboundMessage{Content: content}); err != nil {
		return domain.NewStreamError("send", err)
	}
	return nil
}

// Close is idempotent and safe on a nil or never-connected stream.
func (s *Stream) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait)); err != nil {
		s.logger.Debug().Err(err).Msg("Close handshake failed")
	}
	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Connection already closed")
	}
	return nil
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
