package adaptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ponyo877/roomchat/client/domain"
	"github.com/ponyo877/roomchat/client/logx"
)

const maxResponseBytes = 1 << 20

// Gateway talks to the chat server's REST API. Each call is one round
// trip; nothing is retried.
type Gateway struct {
	baseURL *url.URL
	client  *http.Client
	logger  zerolog.Logger
}

func NewGateway(baseURL string, client *http.Client, logger zerolog.Logger) (*Gateway, error) {
	u, err := parseServerURL(baseURL)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{
		baseURL: u,
		client:  client,
		logger:  logx.Component(logger, "gateway"),
	}, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createRoomRequest struct {
	Name string `json:"name"`
}

func (g *Gateway) CheckAuth(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := g.do(ctx, "check", http.MethodGet, domain.KindAuth, nil, &user, "api", "auth", "check"); err != nil {
		return domain.User{}, err
	}
	if !user.IsValid() {
		return domain.User{}, &domain.Error{Kind: domain.KindAuth, Op: "check", Message: "server returned no identity"}
	}
	return user, nil
}

func (g *Gateway) Login(ctx context.Context, username, password string) error {
	return g.do(ctx, "login", http.MethodPost, domain.KindAuth, credentials{username, password}, nil, "api", "auth", "login")
}

func (g *Gateway) Register(ctx context.Context, username, password string) error {
	return g.do(ctx, "register", http.MethodPost, domain.KindAuth, credentials{username, password}, nil, "api", "auth", "register")
}

func (g *Gateway) Logout(ctx context.Context) error {
	return g.do(ctx, "logout", http.MethodPost, domain.KindAuth, nil, nil, "api", "auth", "logout")
}

func (g *Gateway) ListRooms(ctx context.Context) ([]domain.Chatroom, error) {
	var listed []domain.Chatroom
	if err := g.do(ctx, "list rooms", http.MethodGet, domain.KindRequest, nil, &listed, "api", "chatrooms"); err != nil {
		return nil, err
	}

	// rooms without a usable id cannot be joined
	rooms := listed[:0]
	for _, room := range listed {
		if !room.IsValid() {
			g.logger.Debug().Str("name", room.Name).Msg("Skipping chatroom without id")
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (g *Gateway) GetRoom(ctx context.Context, roomID string) (domain.Chatroom, error) {
	if !domain.ValidRoomID(roomID) {
		return domain.Chatroom{}, domain.ErrInvalidRoomID
	}
	var room domain.Chatroom
	if err := g.do(ctx, "get room", http.MethodGet, domain.KindRequest, nil, &room, "api", "chatrooms", url.PathEscape(roomID)); err != nil {
		return domain.Chatroom{}, err
	}
	if room.ID == "" {
		room.ID = roomID
	}
	return room, nil
}

// CreateRoom returns the created room when the server sends it back,
// otherwise a room carrying only the requested name.
func (g *Gateway) CreateRoom(ctx context.Context, name string) (domain.Chatroom, error) {
	var room domain.Chatroom
	if err := g.do(ctx, "create room", http.MethodPost, domain.KindRequest, createRoomRequest{name}, &room, "api", "chatrooms"); err != nil {
		return domain.Chatroom{}, err
	}
	if room.Name == "" {
		room.Name = name
	}
	return room, nil
}

func (g *Gateway) do(ctx context.Context, op, method string, kind domain.ErrorKind, in, out any, elem ...string) error {
	endpoint := g.baseURL.JoinPath(elem...)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug().Err(err).Str("op", op).Msg("Request failed")
		return domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.NewNetworkError(op, err)
	}

	g.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", endpoint.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			kind = domain.KindAuth
		}
		return domain.NewStatusError(kind, op, resp.StatusCode, strings.TrimRight(string(data), "\r\n"))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.Error{Kind: domain.KindRequest, Op: op, Status: resp.StatusCode, Message: "invalid response: " + err.Error(), Err: err}
	}
	return nil
}

func parseServerURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", raw)
	}
	return u, nil
}
