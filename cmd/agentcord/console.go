package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/radu2lupu/agentcord/chat"
)

// consoleMessenger renders chat messages to a terminal. It exists for the
// serve loop's local frontend; the chat.Messenger contract is the same one
// a platform client implements.
type consoleMessenger struct {
	mu     sync.Mutex
	out    io.Writer
	nextID int
}

func newConsoleMessenger(out io.Writer) *consoleMessenger {
	return &consoleMessenger{out: out}
}

type consoleHandle struct {
	c  *consoleMessenger
	id string
}

func (h *consoleHandle) ID() string { return h.id }

func (h *consoleHandle) Edit(ctx context.Context, msg chat.Message) error {
	h.c.print("✎", h.id, msg)
	return nil
}

func (h *consoleHandle) Delete(ctx context.Context) error {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	fmt.Fprintf(h.c.out, "✕ [%s]\n", h.id)
	return nil
}

func (c *consoleMessenger) Send(ctx context.Context, channelID string, msg chat.Message) (chat.Handle, error) {
	c.mu.Lock()
	c.nextID++
	id := fmt.Sprintf("m%d", c.nextID)
	c.mu.Unlock()
	c.print("◆", id, msg)
	return &consoleHandle{c: c, id: id}, nil
}

func (c *consoleMessenger) Typing(ctx context.Context, channelID string) error { return nil }

// FetchAttachment treats the url as a local path, which is what the console
// frontend can attach.
func (c *consoleMessenger) FetchAttachment(ctx context.Context, url string) ([]byte, error) {
	return os.ReadFile(url)
}

func (c *consoleMessenger) print(mark, id string, msg chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s [%s] %s\n", mark, id, msg.Content)
	for _, f := range msg.Fields {
		fmt.Fprintf(c.out, "    %s: %s\n", f.Name, f.Value)
	}
	for _, row := range msg.Rows {
		if row.Menu != nil {
			fmt.Fprintf(c.out, "    menu %s:", row.Menu.CustomID)
			for _, opt := range row.Menu.Options {
				fmt.Fprintf(c.out, " [%s=%s]", opt.Value, opt.Label)
			}
			fmt.Fprintln(c.out)
			continue
		}
		for _, b := range row.Buttons {
			state := ""
			if b.Disabled {
				state = " (disabled)"
			}
			fmt.Fprintf(c.out, "    button %s → /click %s%s\n", b.Label, b.CustomID, state)
		}
	}
}
