package claudecli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const instructionsFile = "CLAUDE.local.md"

// injectInstructions writes per-turn system prompt fragments into the working
// directory's local instructions file and returns a restore function that
// puts the previous contents back (or removes the file if it did not exist).
// The restore function must run on every exit path of the turn.
func injectInstructions(workDir string, fragments []string) (func(), error) {
	if len(fragments) == 0 {
		return func() {}, nil
	}

	path := filepath.Join(workDir, instructionsFile)

	prev, err := os.ReadFile(path)
	existed := err == nil
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", instructionsFile, err)
	}

	var b strings.Builder
	if existed && len(prev) > 0 {
		b.Write(prev)
		if !strings.HasSuffix(string(prev), "\n") {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	for i, f := range fragments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(f))
	}
	b.WriteByte('\n')

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", instructionsFile, err)
	}

	restore := func() {
		if existed {
			_ = os.WriteFile(path, prev, 0o644)
		} else {
			_ = os.Remove(path)
		}
	}
	return restore, nil
}
