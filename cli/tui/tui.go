// Package tui is the full-screen chat client built on tview.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/ponyo877/roomchat/client/domain"
	"github.com/ponyo877/roomchat/client/logx"
	"github.com/ponyo877/roomchat/client/render"
	"github.com/ponyo877/roomchat/client/usecase"
)

const (
	pageAuth  = "auth"
	pageChat  = "chat"
	pageAlert = "alert"

	maxInputLength = 1000
	updateBuffer   = 256
)

// App renders the session on screen. Its View methods may be called from
// any goroutine and never block on the event loop: changes go through an
// ordered queue and are dropped once the UI has stopped. Session calls
// made from key handlers run in their own goroutines.
type App struct {
	app    *tview.Application
	pages  *tview.Pages
	logger zerolog.Logger

	ctx     context.Context
	manager *usecase.Manager

	authForm *tview.Form
	header   *tview.TextView
	roomList *tview.List
	newRoom  *tview.InputField
	messages *tview.TextView
	input    *tview.InputField

	updates  chan func()
	stopped  chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	rooms []render.RoomItem
}

func New(logger zerolog.Logger) *App {
	a := &App{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		logger:  logx.Component(logger, "tui"),
		ctx:     context.Background(),
		updates: make(chan func(), updateBuffer),
		stopped: make(chan struct{}),
	}
	a.pages.AddPage(pageAuth, a.buildAuth(), true, true)
	a.pages.AddPage(pageChat, a.buildChat(), true, false)
	a.app.SetRoot(a.pages, true).SetFocus(a.authForm)
	a.app.SetInputCapture(a.captureKeys)
	go a.pump()
	return a
}

// pump hands queued changes to the event loop one at a time.
func (a *App) pump() {
	for {
		select {
		case <-a.stopped:
			return
		case f := <-a.updates:
			a.app.QueueUpdateDraw(f)
		}
	}
}

func (a *App) queue(f func()) {
	select {
	case a.updates <- f:
	case <-a.stopped:
	}
}

func (a *App) markStopped() {
	a.stopOnce.Do(func() { close(a.stopped) })
}

// Bind attaches the session manager. It must be called before Run.
func (a *App) Bind(manager *usecase.Manager) {
	a.manager = manager
}

// Run checks the stored session and blocks until the UI exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return errors.New("tui: no session manager bound")
	}
	a.ctx = ctx

	stop := context.AfterFunc(ctx, a.app.Stop)
	defer stop()

	go func() {
		if err := a.manager.CheckAuth(ctx); err != nil {
			a.logger.Debug().Err(err).Msg("No stored session")
		}
	}()
	defer a.markStopped()
	return a.app.Run()
}

func (a *App) buildAuth() tview.Primitive {
	a.authForm = tview.NewForm().
		AddInputField("Username", "", 24, nil, nil).
		AddPasswordField("Password", "", 24, '*', nil).
		AddButton("Login", func() { a.submitAuth(false) }).
		AddButton("Register", func() { a.submitAuth(true) }).
		AddButton("Quit", a.app.Stop)
	a.authForm.SetBorder(true).SetTitle(" roomchat ").SetTitleAlign(tview.AlignLeft)

	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(a.authForm, 9, 0, true).
			AddItem(nil, 0, 1, false), 44, 0, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) buildChat() tview.Primitive {
	a.header = tview.NewTextView().SetDynamicColors(true)

	a.roomList = tview.NewList().ShowSecondaryText(false).SetHighlightFullLine(true)
	a.roomList.SetBorder(true).SetTitle(" Rooms ")
	a.roomList.SetSelectedFunc(func(_ int, _ string, roomID string, _ rune) {
		a.join(roomID)
	})

	a.newRoom = tview.NewInputField().
		SetLabel("+ ").
		SetPlaceholder("new room").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(64))
	a.newRoom.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		name := a.newRoom.GetText()
		a.newRoom.SetText("")
		a.createRoom(name)
	})

	a.messages = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true).
		ScrollToEnd()
	a.messages.SetBorder(true).SetTitle(" Messages ")

	a.input = tview.NewInputField().
		SetLabel("❯❯ ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(maxInputLength))
	a.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := a.input.GetText()
		a.input.SetText("")
		a.send(text)
	})

	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetText("[gray]Tab[-] focus  [gray]Enter[-] send/join  [gray]Ctrl-L[-] logout  [gray]Ctrl-C[-] quit")

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.roomList, 0, 1, false).
		AddItem(a.newRoom, 1, 0, false)
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.messages, 0, 1, false).
		AddItem(a.input, 1, 0, true)

	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(tview.NewFlex().
			AddItem(left, 28, 0, false).
			AddItem(right, 0, 1, true), 0, 1, true).
		AddItem(footer, 1, 0, false)
}

func (a *App) captureKeys(event *tcell.EventKey) *tcell.EventKey {
	if front, _ := a.pages.GetFrontPage(); front != pageChat {
		return event
	}

	switch event.Key() {
	case tcell.KeyTab:
		a.cycleFocus()
		return nil
	case tcell.KeyCtrlL:
		a.logout()
		return nil
	}
	return event
}

func (a *App) cycleFocus() {
	order := []tview.Primitive{a.input, a.roomList, a.newRoom}
	current := a.app.GetFocus()
	for i, p := range order {
		if p == current {
			a.app.SetFocus(order[(i+1)%len(order)])
			return
		}
	}
	a.app.SetFocus(a.input)
}

func (a *App) fieldText(label string) string {
	if field, ok := a.authForm.GetFormItemByLabel(label).(*tview.InputField); ok {
		return field.GetText()
	}
	return ""
}

func (a *App) submitAuth(register bool) {
	username, password := a.fieldText("Username"), a.fieldText("Password")
	if username == "" || password == "" {
		a.Alert("Username and password are required")
		return
	}

	go func() {
		var err error
		if register {
			err = a.manager.Register(a.ctx, username, password)
		} else {
			err = a.manager.Login(a.ctx, username, password)
		}
		if err == nil {
			a.queue(func() {
				if field, ok := a.authForm.GetFormItemByLabel("Password").(*tview.InputField); ok {
					field.SetText("")
				}
			})
		}
	}()
}

func (a *App) join(roomID string) {
	go func() {
		err := a.manager.JoinRoom(a.ctx, roomID)
		if err != nil && !errors.Is(err, domain.ErrSuperseded) {
			a.Alert("Failed to join chatroom: " + err.Error())
		}
	}()
}

func (a *App) send(text string) {
	go func() {
		if err := a.manager.SendMessage(text); err != nil {
			a.logger.Debug().Err(err).Msg("Message not sent")
		}
	}()
}

func (a *App) createRoom(name string) {
	go func() {
		// server failures are alerted by the session manager
		_ = a.manager.CreateRoom(a.ctx, name)
	}()
}

func (a *App) logout() {
	go func() {
		_ = a.manager.Logout(a.ctx)
	}()
}

func (a *App) ShowAuth() {
	a.mu.Lock()
	a.rooms = nil
	a.mu.Unlock()

	a.queue(func() {
		a.roomList.Clear()
		a.messages.Clear()
		a.messages.SetTitle(" Messages ")
		a.pages.SwitchToPage(pageAuth)
		a.app.SetFocus(a.authForm)
	})
}

func (a *App) ShowChat(user domain.User) {
	a.queue(func() {
		a.header.SetText(fmt.Sprintf(" Signed in as [green]%s[-]", tview.Escape(user.Username)))
		if front, _ := a.pages.GetFrontPage(); front != pageChat {
			a.pages.SwitchToPage(pageChat)
			a.app.SetFocus(a.input)
		}
	})
}

func (a *App) RenderRooms(items []render.RoomItem) {
	a.mu.Lock()
	a.rooms = append([]render.RoomItem(nil), items...)
	a.mu.Unlock()

	a.queue(func() { a.redrawRooms(items) })
}

func (a *App) HighlightRoom(roomID string) {
	a.mu.Lock()
	a.rooms = render.Highlight(a.rooms, roomID)
	items := append([]render.RoomItem(nil), a.rooms...)
	a.mu.Unlock()

	a.queue(func() {
		a.redrawRooms(items)
		a.messages.SetTitle(" " + tview.Escape(RoomTitle(items, roomID)) + " ")
	})
}

// redrawRooms runs on the event loop.
func (a *App) redrawRooms(items []render.RoomItem) {
	a.roomList.Clear()
	for i, item := range items {
		a.roomList.AddItem(RoomLabel(item), item.ID, 0, nil)
		if item.Active {
			a.roomList.SetCurrentItem(i)
		}
	}
}

func (a *App) ClearMessages() {
	a.queue(func() {
		a.messages.Clear()
	})
}

func (a *App) AppendMessage(entry render.Entry) {
	line := FormatEntry(entry)
	a.queue(func() {
		fmt.Fprintln(a.messages, line)
		a.messages.ScrollToEnd()
	})
}

func (a *App) Alert(msg string) {
	a.queue(func() {
		focus := a.app.GetFocus()
		modal := tview.NewModal().
			SetText(msg).
			AddButtons([]string{"OK"}).
			SetDoneFunc(func(int, string) {
				a.pages.RemovePage(pageAlert)
				a.app.SetFocus(focus)
			})
		a.pages.AddPage(pageAlert, modal, false, true)
		a.app.SetFocus(modal)
	})
}

// FormatEntry renders a log entry with tview color tags.
func FormatEntry(entry render.Entry) string {
	ts := "[gray]" + tview.Escape("["+entry.Time+"]") + "[-]"
	if !entry.ShowUsername {
		return fmt.Sprintf("%s [yellow]* %s[-]", ts, tview.Escape(entry.Content))
	}
	color, name := "blue", entry.Username
	if entry.Own {
		color, name = "green", name+" (you)"
	}
	return fmt.Sprintf("%s [%s]%s[white]: %s", ts, color, tview.Escape(name), tview.Escape(entry.Content))
}

func RoomLabel(item render.RoomItem) string {
	if item.Active {
		return "[green]● #" + tview.Escape(item.Name) + "[-]"
	}
	return "  #" + tview.Escape(item.Name)
}

// RoomTitle names roomID for the message pane, falling back to the id.
func RoomTitle(items []render.RoomItem, roomID string) string {
	for _, item := range items {
		if item.ID == roomID {
			return "#" + item.Name
		}
	}
	return roomID
}
