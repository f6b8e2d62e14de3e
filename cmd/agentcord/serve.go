package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/chat"
	"github.com/radu2lupu/agentcord/config"
	"github.com/radu2lupu/agentcord/provider"
	"github.com/radu2lupu/agentcord/provider/claudecli"
	"github.com/radu2lupu/agentcord/provider/codexcli"
	"github.com/radu2lupu/agentcord/router"
	"github.com/radu2lupu/agentcord/session"
	"github.com/radu2lupu/agentcord/store"
	"github.com/radu2lupu/agentcord/tmux"
)

// consoleChannel is the channel id the serve loop's terminal frontend binds
// its session to.
const consoleChannel = "console"

var (
	serveDir      string
	serveProvider string
	serveModel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge with a terminal frontend",
	Long: `Serve binds one session to a local terminal channel: typed lines are
prompts, rendered buttons are pressed with /click <custom-id>. The same
wiring serves a platform client; the terminal is just the built-in
chat.Messenger implementation.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "Session working directory (default: default_dir or cwd)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "claude", "Backend provider (claude or codex)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "Model override")
	rootCmd.AddCommand(serveCmd)
}

// app bundles the wired process state shared by the subcommands.
type app struct {
	logger    *zap.Logger
	cfg       *config.Config
	store     *store.Store
	providers *provider.Registry
	projects  *session.Projects
	sessions  *session.Registry
}

// newApp wires config, snapshots, providers, projects and the session
// registry, in that order.
func newApp(ctx context.Context) (*app, error) {
	logger := newLogger()

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	providers := provider.NewRegistry(logger)
	providers.Register("claude", claudecli.Factory(logger))
	providers.Register("codex", codexcli.Factory(logger))

	projects := session.NewProjects(logger, st)
	if err := projects.Load(); err != nil {
		return nil, err
	}

	sessions := session.NewRegistry(logger, cfg, providers, projects, st, tmux.NewClient())
	if err := sessions.Load(ctx); err != nil {
		return nil, err
	}

	return &app{
		logger:    logger,
		cfg:       cfg,
		store:     st,
		providers: providers,
		projects:  projects,
		sessions:  sessions,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	msgr := newConsoleMessenger(os.Stdout)
	contents := router.NewContentStore(a.cfg.Retention.Std())
	asks := router.NewAskRegistry()
	b := &bridge{
		logger:       a.logger,
		msgr:         msgr,
		sessions:     a.sessions,
		contents:     contents,
		asks:         asks,
		editInterval: a.cfg.EditInterval.Std(),
	}
	rt := router.New(a.logger, msgr, a.sessions, b, contents, asks, a.cfg.UserAllowed)

	s, err := a.consoleSession(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("session %s in %s (provider %s) — type a prompt, /help for commands\n",
		s.ID, s.Directory, s.Provider)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if !a.handleLine(ctx, rt, b, s.ID, s.Directory, strings.TrimSpace(line)) {
				break loop
			}
		}
	}

	// Shutdown: abort in-flight turns, let their streamers settle, flush
	// both snapshots.
	for _, sess := range a.sessions.GetAllSessions() {
		a.sessions.AbortSession(sess.ID)
	}
	b.Wait()
	a.sessions.Flush()
	return nil
}

// consoleSession reuses the session already linked to the console channel or
// creates one.
func (a *app) consoleSession(ctx context.Context) (*session.Session, error) {
	if s, err := a.sessions.GetSessionByChannel(consoleChannel); err == nil {
		return s, nil
	} else if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}

	dir := serveDir
	if dir == "" {
		dir = a.cfg.DefaultDir
	}
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = cwd
	}
	return a.sessions.CreateSession(ctx, session.CreateRequest{
		Name:      filepath.Base(dir),
		Directory: dir,
		ChannelID: consoleChannel,
		Provider:  serveProvider,
		Model:     serveModel,
	})
}

// handleLine interprets one console line. Returns false to stop the loop.
func (a *app) handleLine(ctx context.Context, rt *router.Router, b *bridge, sessionID, dir, line string) bool {
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		if err := b.RunPrompt(ctx, sessionID, provider.TextPrompt(line)); err != nil {
			fmt.Println("⚠️", err)
		}
		return true
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	action := func(customID string, values ...string) {
		rt.HandleAction(ctx, chat.Action{
			CustomID:  customID,
			ChannelID: consoleChannel,
			Values:    values,
		})
	}

	switch cmd {
	case "quit", "exit":
		return false
	case "help":
		fmt.Println("/stop /continue /mode <auto|plan|normal> /model <m> /verbose <on|off>")
		fmt.Println("/persona <name> /skill <name> [arg] /click <custom-id> [value] /sessions /quit")
	case "stop":
		action("stop:" + sessionID)
	case "continue":
		action("continue:" + sessionID)
	case "mode":
		action("mode:" + sessionID + ":" + arg)
	case "click":
		id, value, hasValue := strings.Cut(arg, " ")
		if hasValue {
			action(id, value)
		} else {
			action(id)
		}
	case "model":
		if err := a.sessions.SetModel(sessionID, arg); err != nil {
			fmt.Println("⚠️", err)
		}
	case "verbose":
		if err := a.sessions.SetVerbose(sessionID, arg == "on"); err != nil {
			fmt.Println("⚠️", err)
		}
	case "persona":
		if err := a.sessions.SetAgentPersona(sessionID, arg); err != nil {
			fmt.Println("⚠️", err)
		}
	case "skill":
		name, skillArg, _ := strings.Cut(arg, " ")
		prompt, err := a.projects.ExpandSkill(dir, name, strings.TrimSpace(skillArg))
		if err != nil {
			fmt.Println("⚠️", err)
			return true
		}
		if err := b.RunPrompt(ctx, sessionID, provider.TextPrompt(prompt)); err != nil {
			fmt.Println("⚠️", err)
		}
	case "sessions":
		for _, s := range a.sessions.GetAllSessions() {
			fmt.Printf("%s  %s  %s  mode=%s  $%.4f\n",
				s.ID, s.Provider, s.Directory, s.Mode, s.TotalCost)
		}
	default:
		fmt.Println("unknown command; /help")
	}
	return true
}
