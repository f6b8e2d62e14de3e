package chat

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Messenger for tests and dry runs. It records every
// send, edit and delete, and hands out handles with real edit/delete
// semantics so consumers can be exercised without a platform connection.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	messages map[string]*FakeMessage
	order    []string
	typing   map[string]int
}

// FakeMessage is the recorded state of one message.
type FakeMessage struct {
	ChannelID string
	ID        string
	Current   Message
	Edits     int
	Deleted   bool
}

// NewFake creates an empty fake messenger.
func NewFake() *Fake {
	return &Fake{
		messages: make(map[string]*FakeMessage),
		typing:   make(map[string]int),
	}
}

type fakeHandle struct {
	fake *Fake
	id   string
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Edit(ctx context.Context, msg Message) error {
	h.fake.mu.Lock()
	defer h.fake.mu.Unlock()

	m, ok := h.fake.messages[h.id]
	if !ok || m.Deleted {
		return ErrMessageDeleted
	}
	m.Current = msg
	m.Edits++
	return nil
}

func (h *fakeHandle) Delete(ctx context.Context) error {
	h.fake.mu.Lock()
	defer h.fake.mu.Unlock()

	m, ok := h.fake.messages[h.id]
	if !ok || m.Deleted {
		return ErrMessageDeleted
	}
	m.Deleted = true
	return nil
}

// Send implements Messenger.
func (f *Fake) Send(ctx context.Context, channelID string, msg Message) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.messages[id] = &FakeMessage{
		ChannelID: channelID,
		ID:        id,
		Current:   msg,
	}
	f.order = append(f.order, id)
	return &fakeHandle{fake: f, id: id}, nil
}

// Typing implements Messenger.
func (f *Fake) Typing(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing[channelID]++
	return nil
}

// FetchAttachment implements Messenger. The fake has no remote content.
func (f *Fake) FetchAttachment(ctx context.Context, url string) ([]byte, error) {
	return nil, fmt.Errorf("no attachment at %q", url)
}

// Message returns the recorded state for a message ID.
func (f *Fake) Message(id string) (FakeMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return FakeMessage{}, false
	}
	return *m, true
}

// Messages returns all recorded messages in send order, including deleted
// ones.
func (f *Fake) Messages() []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]FakeMessage, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.messages[id])
	}
	return out
}

// Live returns all non-deleted messages in send order.
func (f *Fake) Live() []FakeMessage {
	var out []FakeMessage
	for _, m := range f.Messages() {
		if !m.Deleted {
			out = append(out, m)
		}
	}
	return out
}

// Handle returns a handle for an existing message ID, for driving Action
// flows in tests.
func (f *Fake) Handle(id string) Handle {
	return &fakeHandle{fake: f, id: id}
}
