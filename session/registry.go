package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/config"
	"github.com/radu2lupu/agentcord/provider"
	"github.com/radu2lupu/agentcord/store"
	"github.com/radu2lupu/agentcord/tmux"
)

const sessionsSnapshot = "sessions"

// Sentinel errors reported to callers.
var (
	ErrNotFound       = errors.New("session not found")
	ErrGenerating     = errors.New("session is already generating")
	ErrNameTaken      = errors.New("session name already in use")
	ErrUnknownMode    = errors.New("unknown mode")
	ErrUnknownPersona = errors.New("unknown persona")
	ErrDirNotAllowed  = errors.New("directory is not under an allowed root")
	ErrDirMissing     = errors.New("directory does not exist")
)

// CreateRequest are the inputs to CreateSession.
type CreateRequest struct {
	Name      string
	Directory string
	ChannelID string
	Provider  string
	Model     string

	// ResumeToken seeds the backend resume token (explicit "resume" flows).
	ResumeToken string

	// RecoverExisting reattaches an orphaned backend-native session under
	// its original name. A name collision is then a hard error instead of
	// triggering suffix deduplication.
	RecoverExisting bool
}

// Registry is the process-wide session registry. All state behind mu; the
// lock is never held across adapter calls, outbound I/O or persistence.
type Registry struct {
	logger    *zap.Logger
	cfg       *config.Config
	providers *provider.Registry
	projects  *Projects
	store     *store.Store
	tmux      *tmux.Client

	mu        sync.Mutex
	sessions  map[string]*Session
	byChannel map[string]string
	cancels   map[string]context.CancelFunc

	// persistMu serializes snapshot writes so concurrent mutations never
	// interleave partial writes.
	persistMu sync.Mutex
}

// NewRegistry wires a registry into its collaborators.
func NewRegistry(logger *zap.Logger, cfg *config.Config, providers *provider.Registry, projects *Projects, st *store.Store, tm *tmux.Client) *Registry {
	return &Registry{
		logger:    logger,
		cfg:       cfg,
		providers: providers,
		projects:  projects,
		store:     st,
		tmux:      tm,
		sessions:  map[string]*Session{},
		byChannel: map[string]string{},
		cancels:   map[string]context.CancelFunc{},
	}
}

// Load restores the persisted session list. Entries with a placeholder
// channel or a channel already claimed by an earlier entry are dropped with
// a warning; when anything was dropped the cleaned snapshot is re-saved.
// Entries with an empty channel id are kept but not indexed by channel.
// Missing terminal-mirror sessions are recreated.
func (r *Registry) Load(ctx context.Context) error {
	var persisted []*Session
	found, err := r.store.Read(sessionsSnapshot, &persisted)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	if !found {
		return nil
	}

	dropped := 0
	r.mu.Lock()
	for _, s := range persisted {
		switch {
		case s.ID == "" || IsPlaceholderChannel(s.ChannelID):
			r.logger.Warn("dropping session without durable identity", zap.String("session", s.ID))
			dropped++
		case s.ChannelID != "" && r.byChannel[s.ChannelID] != "":
			r.logger.Warn("dropping session with duplicate channel",
				zap.String("session", s.ID), zap.String("channel", s.ChannelID))
			dropped++
		default:
			s.IsGenerating = false
			r.sessions[s.ID] = s
			if s.ChannelID != "" {
				r.byChannel[s.ChannelID] = s.ID
			}
		}
	}
	loaded := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		loaded = append(loaded, s)
	}
	r.mu.Unlock()

	for _, s := range loaded {
		r.ensureMirror(ctx, s)
	}

	if dropped > 0 {
		r.persist()
	}
	return nil
}

// ensureMirror recreates a missing terminal-multiplexer session for
// providers that advertise the mirror capability.
func (r *Registry) ensureMirror(ctx context.Context, s *Session) {
	p, err := r.providers.Ensure(ctx, s.Provider)
	if err != nil {
		r.logger.Warn("provider unavailable on load",
			zap.String("session", s.ID), zap.String("provider", s.Provider), zap.Error(err))
		return
	}
	if !p.Supports(provider.FeatureTmux) || !r.tmux.Available() {
		return
	}
	name := tmux.SessionName(s.ID)
	if r.tmux.SessionExists(name) {
		return
	}
	if err := r.tmux.CreateSession(name, s.Directory); err != nil {
		r.logger.Warn("recreating terminal session failed",
			zap.String("session", s.ID), zap.Error(err))
	}
}

// CreateSession registers a new session. See CreateRequest for the knobs.
func (r *Registry) CreateSession(ctx context.Context, req CreateRequest) (*Session, error) {
	dir, err := r.validateDirectory(req.Directory)
	if err != nil {
		return nil, err
	}

	p, err := r.providers.Ensure(ctx, req.Provider)
	if err != nil {
		return nil, err
	}
	mirrored := p.Supports(provider.FeatureTmux) && r.tmux.Available()

	r.mu.Lock()
	id, err := r.resolveIDLocked(req.Name, mirrored, req.RecoverExisting)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	now := time.Now().UTC()
	s := &Session{
		ID:                id,
		ChannelID:         req.ChannelID,
		Directory:         dir,
		Provider:          req.Provider,
		ProviderSessionID: req.ResumeToken,
		Model:             req.Model,
		Mode:              ModeAuto,
		CreatedAt:         now,
		LastActivity:      now,
	}
	if req.Provider == "codex" {
		s.SandboxMode = r.cfg.Codex.SandboxMode
		s.ApprovalPolicy = r.cfg.Codex.ApprovalPolicy
		s.NetworkAccess = r.cfg.Codex.NetworkAccess
	}
	r.sessions[id] = s
	if req.ChannelID != "" && !IsPlaceholderChannel(req.ChannelID) {
		r.byChannel[req.ChannelID] = id
	}
	r.mu.Unlock()

	proj := r.projects.Ensure(dir)
	r.setProject(id, proj.Name)

	if mirrored {
		name := tmux.SessionName(id)
		if !r.tmux.SessionExists(name) {
			if err := r.tmux.CreateSession(name, dir); err != nil {
				r.logger.Warn("terminal session create failed", zap.String("session", id), zap.Error(err))
			}
		}
	}

	if !IsPlaceholderChannel(req.ChannelID) {
		r.persist()
	}
	return s.clone(), nil
}

// resolveIDLocked deduplicates a requested name against live sessions and,
// for mirrored providers, existing multiplexer session names.
func (r *Registry) resolveIDLocked(name string, mirrored, recoverExisting bool) (string, error) {
	base := slugify(name)
	if base == "" {
		base = "session"
	}
	taken := func(id string) bool {
		if _, ok := r.sessions[id]; ok {
			return true
		}
		return mirrored && r.tmux.SessionExists(tmux.SessionName(id))
	}
	if recoverExisting {
		if _, ok := r.sessions[base]; ok {
			return "", fmt.Errorf("%w: %s", ErrNameTaken, base)
		}
		return base, nil
	}
	if !taken(base) {
		return base, nil
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken(candidate) {
			return candidate, nil
		}
	}
}

func (r *Registry) validateDirectory(dir string) (string, error) {
	if dir == "" {
		dir = r.cfg.DefaultDir
	}
	if !r.cfg.DirAllowed(dir) {
		return "", fmt.Errorf("%w: %s", ErrDirNotAllowed, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrDirMissing, dir)
	}
	return dir, nil
}

// GetSession returns a copy of the session, or ErrNotFound.
func (r *Registry) GetSession(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.clone(), nil
}

// GetSessionByChannel returns a copy of the session bound to a channel.
func (r *Registry) GetSessionByChannel(channelID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byChannel[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: channel %s", ErrNotFound, channelID)
	}
	return r.sessions[id].clone(), nil
}

// GetAllSessions returns copies of all sessions, oldest first.
func (r *Registry) GetAllSessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// EndSession removes a session, killing its terminal mirror if any.
func (r *Registry) EndSession(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
	delete(r.sessions, id)
	if !IsPlaceholderChannel(s.ChannelID) {
		delete(r.byChannel, s.ChannelID)
	}
	r.mu.Unlock()

	if r.tmux.Available() {
		if err := r.tmux.KillSession(tmux.SessionName(id)); err != nil {
			r.logger.Warn("terminal session kill failed", zap.String("session", id), zap.Error(err))
		}
	}
	r.persist()
	return nil
}

// LinkChannel binds a session to its durable channel. The first transition
// off a placeholder triggers persistence.
func (r *Registry) LinkChannel(id, channelID string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !IsPlaceholderChannel(s.ChannelID) {
		delete(r.byChannel, s.ChannelID)
	}
	s.ChannelID = channelID
	if channelID != "" && !IsPlaceholderChannel(channelID) {
		r.byChannel[channelID] = id
	}
	r.mu.Unlock()

	if !IsPlaceholderChannel(channelID) {
		r.persist()
	}
	return nil
}

// UnlinkChannel removes the session bound to a deleted channel entirely.
// Returns false when no session was bound.
func (r *Registry) UnlinkChannel(channelID string) bool {
	r.mu.Lock()
	id, ok := r.byChannel[channelID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if err := r.EndSession(id); err != nil {
		return false
	}
	return true
}

// SetModel sets the model override.
func (r *Registry) SetModel(id, model string) error {
	return r.mutate(id, func(s *Session) error {
		s.Model = model
		return nil
	})
}

// SetVerbose toggles tool-call visibility.
func (r *Registry) SetVerbose(id string, verbose bool) error {
	return r.mutate(id, func(s *Session) error {
		s.Verbose = verbose
		return nil
	})
}

// SetMode switches the behavioral mode.
func (r *Registry) SetMode(id string, mode Mode) error {
	return r.mutate(id, func(s *Session) error {
		if !ValidMode(mode) {
			return fmt.Errorf("%w: %s", ErrUnknownMode, mode)
		}
		s.Mode = mode
		return nil
	})
}

// SetAgentPersona selects a named persona overlay; empty clears it.
func (r *Registry) SetAgentPersona(id, persona string) error {
	return r.mutate(id, func(s *Session) error {
		if persona != "" {
			if _, ok := personas[persona]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownPersona, persona)
			}
		}
		s.AgentPersona = persona
		return nil
	})
}

// ResetProviderSession clears the backend resume token so the next turn
// starts a fresh backend session.
func (r *Registry) ResetProviderSession(id string) error {
	return r.mutate(id, func(s *Session) error {
		s.ProviderSessionID = ""
		return nil
	})
}

func (r *Registry) mutate(id string, fn func(*Session) error) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(s); err != nil {
		r.mu.Unlock()
		return err
	}
	placeholder := IsPlaceholderChannel(s.ChannelID)
	r.mu.Unlock()
	if !placeholder {
		r.persist()
	}
	return nil
}

func (r *Registry) setProject(id, name string) {
	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.Project = name
	}
	r.mu.Unlock()
}

// SendPrompt starts a turn for a session, enforcing the single-flight
// invariant. The returned stream re-emits every adapter event; session-init
// events persist the resume token and result events accumulate cost.
func (r *Registry) SendPrompt(ctx context.Context, id string, prompt provider.Prompt) (<-chan provider.Event, error) {
	return r.startTurn(ctx, id, func(turnCtx context.Context, p provider.Provider, opts provider.Options) (<-chan provider.Event, error) {
		return p.SendPrompt(turnCtx, prompt, opts)
	})
}

// ContinueSession continues the previous turn without new user input.
func (r *Registry) ContinueSession(ctx context.Context, id string) (<-chan provider.Event, error) {
	return r.startTurn(ctx, id, func(turnCtx context.Context, p provider.Provider, opts provider.Options) (<-chan provider.Event, error) {
		if !p.Supports(provider.FeatureContinue) {
			return nil, provider.ErrNoContinue
		}
		return p.ContinueSession(turnCtx, opts)
	})
}

func (r *Registry) startTurn(ctx context.Context, id string, start func(context.Context, provider.Provider, provider.Options) (<-chan provider.Event, error)) (<-chan provider.Event, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.IsGenerating {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGenerating, id)
	}
	s.IsGenerating = true
	s.LastActivity = time.Now().UTC()
	turnCtx, cancel := context.WithCancel(ctx)
	r.cancels[id] = cancel
	opts := r.optionsLocked(s)
	providerName := s.Provider
	r.mu.Unlock()

	p, err := r.providers.Ensure(ctx, providerName)
	if err != nil {
		r.clearGenerating(id)
		cancel()
		return nil, err
	}

	events, err := start(turnCtx, p, opts)
	if err != nil {
		r.clearGenerating(id)
		cancel()
		return nil, err
	}

	out := make(chan provider.Event, 16)
	go func() {
		defer close(out)
		// State is force-cleared even if the adapter stream never settles
		// cleanly after cancellation.
		defer r.clearGenerating(id)
		defer cancel()
		for ev := range events {
			r.intercept(id, ev)
			select {
			case out <- ev:
			case <-turnCtx.Done():
				// Keep draining so the adapter can shut down.
			}
		}
	}()
	return out, nil
}

// optionsLocked assembles per-turn adapter options from session and project
// state. Caller holds r.mu.
func (r *Registry) optionsLocked(s *Session) provider.Options {
	opts := provider.Options{
		WorkDir:        s.Directory,
		ResumeToken:    s.ProviderSessionID,
		Model:          s.Model,
		SandboxMode:    s.SandboxMode,
		ApprovalPolicy: s.ApprovalPolicy,
		NetworkAccess:  s.NetworkAccess,
	}
	if personality := r.projects.Personality(s.Directory); personality != "" {
		opts.SystemPrompts = append(opts.SystemPrompts, personality)
	}
	if s.AgentPersona != "" {
		if overlay, ok := personas[s.AgentPersona]; ok {
			opts.SystemPrompts = append(opts.SystemPrompts, overlay)
		}
	}
	if constraint := s.Mode.constraint(); constraint != "" {
		opts.SystemPrompts = append(opts.SystemPrompts, constraint)
	}
	return opts
}

// intercept applies the side effects of session-init and result events.
func (r *Registry) intercept(id string, ev provider.Event) {
	switch e := ev.(type) {
	case provider.SessionInitEvent:
		r.mu.Lock()
		s, ok := r.sessions[id]
		if ok {
			s.ProviderSessionID = e.ResumeToken
		}
		placeholder := ok && IsPlaceholderChannel(s.ChannelID)
		r.mu.Unlock()
		if ok && !placeholder {
			r.persist()
		}
	case provider.ResultEvent:
		r.mu.Lock()
		s, ok := r.sessions[id]
		if ok {
			s.TotalCost += e.CostUSD
			s.MessageCount++
			s.LastActivity = time.Now().UTC()
		}
		placeholder := ok && IsPlaceholderChannel(s.ChannelID)
		r.mu.Unlock()
		if ok && !placeholder {
			r.persist()
		}
	}
}

func (r *Registry) clearGenerating(id string) {
	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		s.IsGenerating = false
	}
	delete(r.cancels, id)
	r.mu.Unlock()
}

// AbortSession signals the in-flight turn's cancellation handle and
// force-clears the generating flag. Returns whether any action was taken.
func (r *Registry) AbortSession(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	cancel, hadCancel := r.cancels[id]
	delete(r.cancels, id)
	wasGenerating := s.IsGenerating
	s.IsGenerating = false
	r.mu.Unlock()

	if hadCancel {
		cancel()
	}
	return hadCancel || wasGenerating
}

// Sync discovers orphaned terminal-mirror sessions carrying our prefix and
// reattaches them under their original names. Recovered sessions start with
// an empty channel id so they survive restarts until a channel is linked.
// Returns the recovered sessions.
func (r *Registry) Sync(ctx context.Context) []*Session {
	if !r.tmux.Available() {
		return nil
	}
	var recovered []*Session
	for _, info := range r.tmux.ListSessions() {
		id := strings.TrimPrefix(info.Name, tmux.Prefix)
		r.mu.Lock()
		_, known := r.sessions[id]
		r.mu.Unlock()
		if known {
			continue
		}
		s, err := r.CreateSession(ctx, CreateRequest{
			Name:            id,
			Directory:       info.Dir,
			Provider:        "claude",
			RecoverExisting: true,
		})
		if err != nil {
			r.logger.Warn("recovering orphaned session failed", zap.String("session", id), zap.Error(err))
			continue
		}
		recovered = append(recovered, s)
	}
	return recovered
}

// Flush writes the current snapshot synchronously, used on shutdown.
func (r *Registry) Flush() {
	r.persist()
}

// persist writes the session snapshot, skipping placeholder-channel entries.
// Serialized so concurrent mutations never interleave partial writes; errors
// are logged, never fatal.
func (r *Registry) persist() {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if IsPlaceholderChannel(s.ChannelID) {
			continue
		}
		snapshot = append(snapshot, s.clone())
	}
	r.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt) })
	if err := r.store.Write(sessionsSnapshot, snapshot); err != nil {
		r.logger.Warn("persist sessions failed", zap.Error(err))
	}
}

// slugify lowercases a name and squeezes it to [a-z0-9-].
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, ch := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
