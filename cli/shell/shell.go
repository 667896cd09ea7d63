// Package shell is the line-mode chat client. Lines starting with a slash
// are commands; anything else, and server-side commands such as
// /stock=AAPL.US, is sent to the joined room.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"

	"github.com/ponyo877/roomchat/client/domain"
	"github.com/ponyo877/roomchat/client/logx"
	"github.com/ponyo877/roomchat/client/render"
	"github.com/ponyo877/roomchat/client/usecase"
)

// PasswordFunc reads a password without echoing it.
type PasswordFunc func(prompt string) (string, error)

type command struct {
	name  string
	usage string
	desc  string
	run   func(s *Shell, ctx context.Context, args []string)
}

// stockCommand is answered by the server's stock bot, so it goes to the
// room as plain content.
var stockCommand = regexp.MustCompile(`^/stock=[A-Za-z0-9.]+$`)

// commands is filled in init since /help walks it.
var commands []command

func init() {
	commands = []command{
		{"/login", "/login <username> [password]", "Sign in", (*Shell).login},
		{"/register", "/register <username> [password]", "Create an account and sign in", (*Shell).register},
		{"/logout", "/logout", "Sign out", (*Shell).logout},
		{"/whoami", "/whoami", "Show the signed-in user and room", (*Shell).whoami},
		{"/rooms", "/rooms", "List chatrooms", (*Shell).rooms},
		{"/join", "/join <room-id|name>", "Switch to a chatroom", (*Shell).join},
		{"/create", "/create <name>", "Create a chatroom", (*Shell).create},
		{"/help", "/help", "Show this help", (*Shell).help},
		{"/quit", "/quit", "Leave the shell", (*Shell).quit},
	}
}

type Shell struct {
	manager      *usecase.Manager
	view         *render.Writer
	out          io.Writer
	readPassword PasswordFunc
	logger       zerolog.Logger

	exited bool
}

func New(manager *usecase.Manager, view *render.Writer, out io.Writer, readPassword PasswordFunc, logger zerolog.Logger) *Shell {
	return &Shell{
		manager:      manager,
		view:         view,
		out:          out,
		readPassword: readPassword,
		logger:       logx.Component(logger, "shell"),
	}
}

// Run reads lines until /quit, Ctrl-D or ctx is done.
func (s *Shell) Run(ctx context.Context) {
	fmt.Fprintln(s.out, "entering interactive mode, type /help for commands and /quit to leave")

	p := prompt.New(
		func(line string) { s.Execute(ctx, line) },
		func(d prompt.Document) []prompt.Suggest { return s.Suggest(d.TextBeforeCursor()) },
		prompt.OptionTitle("roomchat"),
		prompt.OptionLivePrefix(s.livePrefix),
		prompt.OptionPrefixTextColor(prompt.Cyan),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			return s.exited || ctx.Err() != nil
		}),
	)
	p.Run()
}

func (s *Shell) Exited() bool {
	return s.exited
}

func (s *Shell) livePrefix() (string, bool) {
	snap := s.manager.Snapshot()
	switch snap.State() {
	case domain.StateAuthenticatedInRoom:
		return fmt.Sprintf("%s %s ❯❯❯ ", snap.User.Username, snap.Chatroom), true
	case domain.StateAuthenticatedNoRoom:
		return snap.User.Username + " ❯❯❯ ", true
	default:
		return "❯❯❯ ", true
	}
}

// Execute runs one input line.
func (s *Shell) Execute(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "/") || stockCommand.MatchString(line) {
		s.send(line)
		return
	}

	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintf(s.out, "! cannot parse %q: %v\n", line, err)
		return
	}
	if len(args) == 0 {
		return
	}

	for _, c := range commands {
		if c.name == args[0] {
			s.logger.Debug().Str("command", c.name).Int("args", len(args)-1).Msg("Running command")
			c.run(s, ctx, args[1:])
			return
		}
	}
	fmt.Fprintf(s.out, "! unknown command %s, try /help\n", args[0])
}

// Suggest completes command names and, after /join, room ids.
func (s *Shell) Suggest(text string) []prompt.Suggest {
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	name, rest, found := strings.Cut(text, " ")
	if !found {
		suggests := make([]prompt.Suggest, 0, len(commands))
		for _, c := range commands {
			suggests = append(suggests, prompt.Suggest{Text: c.name, Description: c.desc})
		}
		return prompt.FilterHasPrefix(suggests, name, true)
	}
	if name != "/join" || strings.Contains(rest, " ") {
		return nil
	}

	var suggests []prompt.Suggest
	for _, item := range s.view.Rooms() {
		if !strings.HasPrefix(item.ID, rest) && !strings.HasPrefix(strings.ToLower(item.Name), strings.ToLower(rest)) {
			continue
		}
		desc := "#" + item.Name
		if item.Active {
			desc += " (joined)"
		}
		suggests = append(suggests, prompt.Suggest{Text: item.ID, Description: desc})
	}
	return suggests
}

func (s *Shell) send(content string) {
	err := s.manager.SendMessage(content)
	switch {
	case err == nil, errors.Is(err, domain.ErrEmptyMessage):
	case errors.Is(err, domain.ErrNotConnected):
		fmt.Fprintln(s.out, "- not in a room; /join one first")
	default:
		fmt.Fprintf(s.out, "! Failed to send message: %v\n", err)
	}
}

func (s *Shell) credentials(args []string, usage string) (string, string, bool) {
	switch len(args) {
	case 1:
		password, err := s.readPassword("Password: ")
		if err != nil {
			fmt.Fprintf(s.out, "! Error reading password: %v\n", err)
			return "", "", false
		}
		return args[0], password, true
	case 2:
		return args[0], args[1], true
	default:
		fmt.Fprintf(s.out, "usage: %s\n", usage)
		return "", "", false
	}
}

// login and register report failures through the view alert.
func (s *Shell) login(ctx context.Context, args []string) {
	if username, password, ok := s.credentials(args, "/login <username> [password]"); ok {
		_ = s.manager.Login(ctx, username, password)
	}
}

func (s *Shell) register(ctx context.Context, args []string) {
	if username, password, ok := s.credentials(args, "/register <username> [password]"); ok {
		_ = s.manager.Register(ctx, username, password)
	}
}

func (s *Shell) logout(ctx context.Context, _ []string) {
	_ = s.manager.Logout(ctx)
}

func (s *Shell) whoami(_ context.Context, _ []string) {
	fmt.Fprintf(s.out, "- %s\n", s.manager.Snapshot())
}

func (s *Shell) rooms(ctx context.Context, _ []string) {
	if s.manager.Snapshot().User == nil {
		fmt.Fprintln(s.out, "- not logged in")
		return
	}
	if err := s.manager.FetchRooms(ctx); err != nil {
		fmt.Fprintf(s.out, "! Failed to fetch chatrooms: %v\n", err)
	}
}

func (s *Shell) join(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: /join <room-id|name>")
		return
	}

	roomID := s.resolveRoom(args[0])
	err := s.manager.JoinRoom(ctx, roomID)
	switch {
	case err == nil, errors.Is(err, domain.ErrSuperseded):
	case errors.Is(err, domain.ErrNotAuthenticated):
		fmt.Fprintln(s.out, "- not logged in")
	default:
		fmt.Fprintf(s.out, "! Failed to join chatroom: %v\n", err)
	}
}

// resolveRoom maps a room name from the last listing to its id.
func (s *Shell) resolveRoom(arg string) string {
	name := strings.TrimPrefix(arg, "#")
	for _, item := range s.view.Rooms() {
		if item.ID == arg {
			return item.ID
		}
	}
	for _, item := range s.view.Rooms() {
		if item.Name == name {
			return item.ID
		}
	}
	return arg
}

func (s *Shell) create(ctx context.Context, args []string) {
	err := s.manager.CreateRoom(ctx, strings.Join(args, " "))
	if errors.Is(err, domain.ErrEmptyRoomName) {
		fmt.Fprintln(s.out, "usage: /create <name>")
	}
}

func (s *Shell) help(_ context.Context, _ []string) {
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %-34s %s\n", c.usage, c.desc)
	}
	fmt.Fprintf(s.out, "  %-34s %s\n", "/stock=<code>", "Ask the stock bot for a quote")
	fmt.Fprintln(s.out, "  anything else is sent to the joined room")
}

func (s *Shell) quit(_ context.Context, _ []string) {
	s.exited = true
}
