package codexcli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
)

// process is a running app-server. Lines delivers stdout lines until the
// process exits; Err reports the exit status afterwards.
type process interface {
	Lines() <-chan []byte
	WriteLine(v interface{}) error
	Err() error
	Stop()
}

// launcher spawns an app-server in the given directory. Injectable for tests.
type launcher func(ctx context.Context, workDir string) (process, error)

type appServerProcess struct {
	cmd    *exec.Cmd
	stdin  *json.Encoder
	lines  chan []byte
	stderr *bytes.Buffer

	mu      sync.Mutex
	waitErr error
	waited  bool
}

const maxLineSize = 10 * 1024 * 1024

// launchAppServer starts the backend in app-server mode.
func launchAppServer(ctx context.Context, workDir string) (process, error) {
	cmd := exec.CommandContext(ctx, "codex", "app-server")
	cmd.Dir = workDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start codex: %w", err)
	}

	p := &appServerProcess{
		cmd:    cmd,
		stdin:  json.NewEncoder(stdin),
		lines:  make(chan []byte, 64),
		stderr: &stderr,
	}

	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			cp := make([]byte, len(line))
			copy(cp, line)
			p.lines <- cp
		}
		p.wait()
	}()

	return p, nil
}

func (p *appServerProcess) Lines() <-chan []byte { return p.lines }

func (p *appServerProcess) WriteLine(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdin.Encode(v)
}

func (p *appServerProcess) wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.waited {
		return
	}
	p.waited = true
	err := p.cmd.Wait()
	if err != nil {
		msg := bytes.TrimSpace(p.stderr.Bytes())
		if len(msg) > 0 {
			err = fmt.Errorf("%w: %s", err, msg)
		}
	}
	p.waitErr = err
}

func (p *appServerProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *appServerProcess) Stop() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
