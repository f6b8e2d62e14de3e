package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/chat"
	"github.com/radu2lupu/agentcord/provider"
	"github.com/radu2lupu/agentcord/router"
	"github.com/radu2lupu/agentcord/session"
	"github.com/radu2lupu/agentcord/stream"
)

// bridge starts turns on the session registry and renders each turn's event
// stream through a streamer. It implements router.TurnRunner.
type bridge struct {
	logger       *zap.Logger
	msgr         chat.Messenger
	sessions     *session.Registry
	contents     *router.ContentStore
	asks         *router.AskRegistry
	editInterval time.Duration

	wg sync.WaitGroup
}

func (b *bridge) RunPrompt(ctx context.Context, sessionID string, prompt provider.Prompt) error {
	s, err := b.sessions.GetSession(sessionID)
	if err != nil {
		return err
	}
	events, err := b.sessions.SendPrompt(ctx, sessionID, prompt)
	if err != nil {
		return err
	}
	b.render(ctx, s, events)
	return nil
}

func (b *bridge) RunContinue(ctx context.Context, sessionID string) error {
	s, err := b.sessions.GetSession(sessionID)
	if err != nil {
		return err
	}
	events, err := b.sessions.ContinueSession(ctx, sessionID)
	if err != nil {
		return err
	}
	b.render(ctx, s, events)
	return nil
}

// render consumes the turn's events in the background. Each turn gets a
// fresh streamer; the registry rejects overlapping turns per session.
func (b *bridge) render(ctx context.Context, s *session.Session, events <-chan provider.Event) {
	st := stream.New(b.msgr, b.logger, b.contents, b.asks, stream.Config{
		ChannelID:    s.ChannelID,
		SessionID:    s.ID,
		Mode:         string(s.Mode),
		EditInterval: b.editInterval,
		Verbose:      s.Verbose,
		OnReset: func() {
			if err := b.sessions.ResetProviderSession(s.ID); err != nil {
				b.logger.Warn("resetting provider session failed",
					zap.String("session", s.ID), zap.Error(err))
			}
		},
	})
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		st.Run(ctx, events)
	}()
}

// Wait blocks until every in-flight turn has settled its output.
func (b *bridge) Wait() { b.wg.Wait() }
