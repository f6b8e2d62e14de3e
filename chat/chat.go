// Package chat defines the boundary to the chat platform client. The core
// never assumes more than: create message, get a handle, edit/delete through
// the handle, plus typing indicators and attachment byte-fetching. Rich
// messages carry text, structured fields and interactive controls.
package chat

import (
	"context"
	"errors"
)

// ErrMessageDeleted is returned by handle operations after Delete.
var ErrMessageDeleted = errors.New("message deleted")

// ButtonStyle selects the visual style of a button.
type ButtonStyle int

const (
	StyleSecondary ButtonStyle = iota
	StylePrimary
	StyleSuccess
	StyleDanger
)

// Button is a clickable control. CustomID round-trips through the platform
// into an Action when clicked.
type Button struct {
	Label    string
	CustomID string
	Style    ButtonStyle
	Disabled bool
}

// SelectOption is one choice of a selection menu.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// SelectMenu is a dropdown control. Selected values round-trip through the
// platform into Action.Values.
type SelectMenu struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// Row is one horizontal row of controls: either buttons or a single menu.
type Row struct {
	Menu    *SelectMenu
	Buttons []Button
}

// Field is a structured name/value pair rendered alongside the content.
type Field struct {
	Name  string
	Value string
}

// Message is the outbound rich message shape.
type Message struct {
	Content string
	Fields  []Field
	Rows    []Row
}

// HasControls reports whether any interactive control is attached.
func (m Message) HasControls() bool {
	for _, row := range m.Rows {
		if row.Menu != nil || len(row.Buttons) > 0 {
			return true
		}
	}
	return false
}

// Handle is a reference to a delivered message.
type Handle interface {
	// ID returns the platform message identifier.
	ID() string

	// Edit replaces the message in place.
	Edit(ctx context.Context, msg Message) error

	// Delete removes the message.
	Delete(ctx context.Context) error
}

// Messenger is the outbound surface of the chat platform client.
type Messenger interface {
	// Send creates a message in a channel and returns its handle.
	Send(ctx context.Context, channelID string, msg Message) (Handle, error)

	// Typing signals a typing indicator in a channel. Best effort.
	Typing(ctx context.Context, channelID string) error

	// FetchAttachment downloads attachment bytes by URL.
	FetchAttachment(ctx context.Context, url string) ([]byte, error)
}

// Action is an inbound UI interaction: a button click or a menu selection.
// Values carries menu selections; Handle references the originating message
// so the core can update it in place.
type Action struct {
	Handle    Handle
	CustomID  string
	ChannelID string
	MessageID string
	UserID    string
	Values    []string
}
