package claudecli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// process is one spawned CLI turn. Lines delivers stdout lines until EOF;
// after Lines is closed, Err reports the exit status.
type process interface {
	Lines() <-chan []byte
	WriteLine(v interface{}) error
	Err() error
	Stop()
}

// launchSpec describes one CLI invocation.
type launchSpec struct {
	WorkDir     string
	Model       string
	ResumeToken string
}

// launcher spawns a CLI process for a turn. Injectable for tests.
type launcher func(ctx context.Context, spec launchSpec) (process, error)

// cliProcess wraps a running CLI subprocess.
type cliProcess struct {
	cmd    *exec.Cmd
	stdin  *json.Encoder
	lines  chan []byte
	stderr *bytes.Buffer

	mu      sync.Mutex
	waitErr error
	waited  bool
}

// maxLineSize bounds a single protocol line. Tool results can carry large
// file contents, so this is generous.
const maxLineSize = 10 * 1024 * 1024

// launchCLI starts the CLI in streaming mode for a single turn.
func launchCLI(ctx context.Context, spec launchSpec) (process, error) {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--input-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
	}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.ResumeToken != "" {
		args = append(args, "--resume", spec.ResumeToken)
	}

	cmd := exec.CommandContext(ctx, "claude", args...)
	cmd.Dir = spec.WorkDir

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
		return nil, fmt.Errorf("start claude: %w", err)
	}

	p := &cliProcess{
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

func (p *cliProcess) Lines() <-chan []byte { return p.lines }

func (p *cliProcess) WriteLine(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdin.Encode(v)
}

func (p *cliProcess) wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.waited {
		return
	}
	p.waited = true
	err := p.cmd.Wait()
	if err != nil {
		msg := strings.TrimSpace(p.stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
	}
	p.waitErr = err
}

func (p *cliProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *cliProcess) Stop() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
