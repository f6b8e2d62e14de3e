// Package config loads the process-level settings file. Settings are read
// once at startup; invalid required settings are fatal before anything else
// is initialized.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings like "700ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// CodexDefaults holds policy defaults for the sandboxed backend.
type CodexDefaults struct {
	SandboxMode    string `yaml:"sandbox_mode"`
	ApprovalPolicy string `yaml:"approval_policy"`
	NetworkAccess  bool   `yaml:"network_access"`
}

// Config is the fixed set of named settings the process runs with.
type Config struct {
	// AllowedUsers is the identity allow-list. Ignored when AllowAllUsers
	// is set.
	AllowedUsers  []string `yaml:"allowed_users"`
	AllowAllUsers bool     `yaml:"allow_all_users"`

	// AllowedDirs are the root directories sessions may be created under.
	AllowedDirs []string `yaml:"allowed_dirs"`

	// DefaultDir is the working directory used when a request names none.
	DefaultDir string `yaml:"default_dir"`

	// EditInterval is the debounce interval between outbound message edits.
	EditInterval Duration `yaml:"edit_interval"`

	// Retention is how long expandable content is kept before expiry.
	Retention Duration `yaml:"retention"`

	// DataDir overrides the snapshot directory (default ~/.agentcord).
	DataDir string `yaml:"data_dir"`

	// Codex holds policy defaults for the sandboxed backend.
	Codex CodexDefaults `yaml:"codex"`
}

// Default returns the configuration used when a setting is absent.
func Default() Config {
	return Config{
		EditInterval: Duration(700 * time.Millisecond),
		Retention:    Duration(10 * time.Minute),
		Codex: CodexDefaults{
			SandboxMode:    "workspace-write",
			ApprovalPolicy: "on-request",
		},
	}
}

// Load reads the settings file at path. A missing file yields defaults;
// a present but unreadable or invalid file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, cfg.Validate()
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

// DefaultPath returns the default config file location (~/.agentcord/config.yaml),
// overridable via AGENTCORD_CONFIG.
func DefaultPath() string {
	if p := os.Getenv("AGENTCORD_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".agentcord", "config.yaml")
}

// Validate checks required settings. Called once at startup; a non-nil
// error is fatal to the process.
func (c *Config) Validate() error {
	if !c.AllowAllUsers && len(c.AllowedUsers) == 0 {
		return fmt.Errorf("either allowed_users or allow_all_users must be set")
	}
	if c.EditInterval <= 0 {
		return fmt.Errorf("edit_interval must be positive")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	for _, dir := range append(append([]string{}, c.AllowedDirs...), c.DefaultDir) {
		if dir == "" {
			continue
		}
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("directory %q must be absolute", dir)
		}
	}
	if c.DefaultDir != "" && !c.DirAllowed(c.DefaultDir) {
		return fmt.Errorf("default_dir %q is not under any allowed_dirs entry", c.DefaultDir)
	}
	return nil
}

// UserAllowed reports whether a user identity may drive sessions.
func (c *Config) UserAllowed(userID string) bool {
	if c.AllowAllUsers {
		return true
	}
	for _, u := range c.AllowedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// DirAllowed reports whether dir is equal to or nested under an allowed
// root. An empty allow-list permits nothing.
func (c *Config) DirAllowed(dir string) bool {
	dir = filepath.Clean(dir)
	for _, root := range c.AllowedDirs {
		root = filepath.Clean(root)
		if dir == root {
			return true
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
