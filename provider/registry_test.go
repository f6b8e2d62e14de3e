package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubProvider struct {
	name string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) SendPrompt(ctx context.Context, prompt Prompt, opts Options) (<-chan Event, error) {
	ch := make(chan Event)
	close(ch)
	return ch, nil
}

func (p *stubProvider) ContinueSession(ctx context.Context, opts Options) (<-chan Event, error) {
	return nil, ErrNoContinue
}

func (p *stubProvider) Supports(feature string) bool { return false }

func TestRegistryEnsureCaches(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	var calls atomic.Int32
	r.Register("claude", func(ctx context.Context) (Provider, error) {
		calls.Add(1)
		return &stubProvider{name: "claude"}, nil
	})

	p1, err := r.Ensure(context.Background(), "claude")
	require.NoError(t, err)
	p2, err := r.Ensure(context.Background(), "claude")
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistryEnsureSingleFlight(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	var calls atomic.Int32
	release := make(chan struct{})
	r.Register("codex", func(ctx context.Context) (Provider, error) {
		calls.Add(1)
		<-release
		return &stubProvider{name: "codex"}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Ensure(context.Background(), "codex")
			assert.NoError(t, err)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistryEnsureUnknown(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	_, err := r.Ensure(context.Background(), "gemini")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryFactoryErrorNotCached(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	var calls atomic.Int32
	r.Register("codex", func(ctx context.Context) (Provider, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("binary missing")
		}
		return &stubProvider{name: "codex"}, nil
	})

	_, err := r.Ensure(context.Background(), "codex")
	require.Error(t, err)

	p, err := r.Ensure(context.Background(), "codex")
	require.NoError(t, err)
	assert.Equal(t, "codex", p.Name())
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.Register("codex", nil)
	r.Register("claude", nil)
	assert.Equal(t, []string{"claude", "codex"}, r.List())
}
