package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ponyo877/roomchat/client/domain"
)

// Writer is a line-oriented view used by the shell and tail commands.
// It is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	out   io.Writer
	rooms []RoomItem
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) ShowAuth() {
	w.printf("- signed out; use login or register\n")
}

func (w *Writer) ShowChat(user domain.User) {
	w.printf("- signed in as %s\n", user.Username)
}

func (w *Writer) RenderRooms(items []RoomItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rooms = items
	w.writeRooms()
}

func (w *Writer) HighlightRoom(roomID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rooms = Highlight(w.rooms, roomID)
	for _, item := range w.rooms {
		if item.Active {
			fmt.Fprintf(w.out, "- joined #%s (%s)\n", item.Name, item.ID)
			return
		}
	}
	fmt.Fprintf(w.out, "- joined %s\n", roomID)
}

func (w *Writer) ClearMessages() {
	w.printf("%s\n", strings.Repeat("-", 40))
}

func (w *Writer) AppendMessage(entry Entry) {
	w.printf("%s\n", FormatLine(entry))
}

func (w *Writer) Alert(msg string) {
	w.printf("! %s\n", msg)
}

// Rooms returns the last rendered room list.
func (w *Writer) Rooms() []RoomItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]RoomItem(nil), w.rooms...)
}

func (w *Writer) writeRooms() {
	if len(w.rooms) == 0 {
		fmt.Fprintln(w.out, "- no rooms")
		return
	}
	for _, item := range w.rooms {
		marker := " "
		if item.Active {
			marker = "*"
		}
		fmt.Fprintf(w.out, "%s %-26s %s\n", marker, item.ID, item.Name)
	}
}

func (w *Writer) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

// FormatLine renders an entry as a single plain-text line.
func FormatLine(entry Entry) string {
	if !entry.ShowUsername {
		return fmt.Sprintf("[%s] * %s", entry.Time, entry.Content)
	}
	name := entry.Username
	if entry.Own {
		name += " (you)"
	}
	return fmt.Sprintf("[%s] %s: %s", entry.Time, name, entry.Content)
}
