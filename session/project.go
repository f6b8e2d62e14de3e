package session

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/store"
)

const projectsSnapshot = "projects"

// skillPlaceholder is the marker a skill template substitutes its argument
// into.
const skillPlaceholder = "{}"

// ToolServer is an auxiliary tool server registered for a project.
type ToolServer struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ToolServerSchema returns the JSON schema for tool server registrations,
// surfaced by the doctor command so users can validate hand-written entries.
func ToolServerSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&ToolServer{})
}

// Project is directory-scoped configuration shared by every session rooted
// in that directory.
type Project struct {
	Name        string            `json:"name"`
	Directory   string            `json:"directory"`
	Personality string            `json:"personality,omitempty"`
	Skills      map[string]string `json:"skills,omitempty"`
	ToolServers []ToolServer      `json:"toolServers,omitempty"`
}

// Projects is the directory-keyed project registry. Projects are created
// lazily on first use and never auto-deleted.
type Projects struct {
	logger *zap.Logger
	store  *store.Store

	mu    sync.Mutex
	byDir map[string]*Project
}

// NewProjects returns an empty project registry.
func NewProjects(logger *zap.Logger, st *store.Store) *Projects {
	return &Projects{
		logger: logger,
		store:  st,
		byDir:  map[string]*Project{},
	}
}

// Load reads the persisted project map. A missing snapshot is not an error.
func (p *Projects) Load() error {
	var projects []*Project
	found, err := p.store.Read(projectsSnapshot, &projects)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	if !found {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, proj := range projects {
		if proj.Directory == "" {
			continue
		}
		p.byDir[proj.Directory] = proj
	}
	return nil
}

// Ensure returns the project for a directory, creating it when absent.
func (p *Projects) Ensure(directory string) *Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	if proj, ok := p.byDir[directory]; ok {
		return proj
	}
	proj := &Project{
		Name:      filepath.Base(directory),
		Directory: directory,
		Skills:    map[string]string{},
	}
	p.byDir[directory] = proj
	p.persistLocked()
	return proj
}

// Get returns the project for a directory, or nil.
func (p *Projects) Get(directory string) *Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byDir[directory]
}

// Personality returns the personality overlay for a directory, or "".
func (p *Projects) Personality(directory string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if proj, ok := p.byDir[directory]; ok {
		return proj.Personality
	}
	return ""
}

// SetPersonality replaces the personality overlay for a directory.
func (p *Projects) SetPersonality(directory, personality string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proj := p.ensureLocked(directory)
	proj.Personality = personality
	p.persistLocked()
}

// AddSkill registers a named prompt template. The template must contain the
// argument placeholder exactly once.
func (p *Projects) AddSkill(directory, name, template string) error {
	if strings.Count(template, skillPlaceholder) != 1 {
		return fmt.Errorf("skill %q: template must contain %s exactly once", name, skillPlaceholder)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	proj := p.ensureLocked(directory)
	if proj.Skills == nil {
		proj.Skills = map[string]string{}
	}
	proj.Skills[name] = template
	p.persistLocked()
	return nil
}

// ExpandSkill expands a named skill with the given argument.
func (p *Projects) ExpandSkill(directory, name, arg string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	proj, ok := p.byDir[directory]
	if !ok {
		return "", fmt.Errorf("unknown skill %q", name)
	}
	template, ok := proj.Skills[name]
	if !ok {
		return "", fmt.Errorf("unknown skill %q", name)
	}
	return strings.Replace(template, skillPlaceholder, arg, 1), nil
}

// SkillNames returns the skill names registered for a directory, sorted.
func (p *Projects) SkillNames(directory string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	proj, ok := p.byDir[directory]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(proj.Skills))
	for name := range proj.Skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterToolServer adds or replaces a tool server registration by name.
func (p *Projects) RegisterToolServer(directory string, ts ToolServer) error {
	if ts.Name == "" || ts.Command == "" {
		return fmt.Errorf("tool server: name and command are required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	proj := p.ensureLocked(directory)
	for i, existing := range proj.ToolServers {
		if existing.Name == ts.Name {
			proj.ToolServers[i] = ts
			p.persistLocked()
			return nil
		}
	}
	proj.ToolServers = append(proj.ToolServers, ts)
	p.persistLocked()
	return nil
}

func (p *Projects) ensureLocked(directory string) *Project {
	if proj, ok := p.byDir[directory]; ok {
		return proj
	}
	proj := &Project{
		Name:      filepath.Base(directory),
		Directory: directory,
		Skills:    map[string]string{},
	}
	p.byDir[directory] = proj
	return proj
}

// persistLocked writes the project snapshot. Failures are logged, never
// fatal: in-memory state stays authoritative.
func (p *Projects) persistLocked() {
	projects := make([]*Project, 0, len(p.byDir))
	for _, proj := range p.byDir {
		projects = append(projects, proj)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Directory < projects[j].Directory })
	if err := p.store.Write(projectsSnapshot, projects); err != nil {
		p.logger.Warn("persist projects failed", zap.Error(err))
	}
}
