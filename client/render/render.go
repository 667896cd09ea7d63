// Package render turns domain values into view items. Nothing here keeps
// state between calls; the same input always yields the same output.
package render

import (
	"time"

	"github.com/ponyo877/roomchat/client/domain"
)

const TimeLayout = "15:04:05"

type RoomItem struct {
	ID     string
	Name   string
	Active bool
}

// Rooms keeps server order and marks the item whose id is activeID.
func Rooms(rooms []domain.Chatroom, activeID string) []RoomItem {
	items := make([]RoomItem, 0, len(rooms))
	for _, room := range rooms {
		items = append(items, RoomItem{
			ID:     room.ID,
			Name:   room.Name,
			Active: activeID != "" && room.ID == activeID,
		})
	}
	return items
}

// Highlight returns a copy of items with only roomID marked active.
func Highlight(items []RoomItem, roomID string) []RoomItem {
	out := make([]RoomItem, len(items))
	for i, item := range items {
		item.Active = roomID != "" && item.ID == roomID
		out[i] = item
	}
	return out
}

type Entry struct {
	Type     domain.MessageType
	Username string
	// ShowUsername is false for system lines.
	ShowUsername bool
	Own          bool
	Content      string
	Time         string
}

func Message(msg domain.Message, currentUserID string) Entry {
	entry := Entry{
		Type:         msg.Type,
		ShowUsername: msg.Type != domain.MessageTypeSystem,
		Own:          msg.IsOwnedBy(currentUserID),
		Content:      msg.Content,
		Time:         formatTime(msg.CreatedAt),
	}
	if entry.ShowUsername {
		entry.Username = msg.Username
	}
	return entry
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Local().Format(TimeLayout)
}
