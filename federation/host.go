package federation

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Host is the in-process Runtime. Instances are attached once the code
// that owns them has initialized.
type Host struct {
	mu        sync.RWMutex
	instances []Instance
}

var _ Runtime = (*Host)(nil)

func NewHost() *Host {
	return &Host{}
}

// Attach makes inst visible to Instances.
func (h *Host) Attach(inst Instance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.instances = append(h.instances, inst)
}

func (h *Host) Instances() []Instance {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Instance, len(h.instances))
	copy(out, h.instances)
	return out
}

// Container is a runtime instance holding the remotes wired in at build
// time, overridable by forced registrations.
type Container struct {
	name    string
	mu      sync.RWMutex
	remotes map[string]Remote
}

var _ Instance = (*Container)(nil)

// NewContainer creates an instance preloaded with build-time remotes.
func NewContainer(name string, buildTime ...Remote) *Container {
	c := &Container{name: name, remotes: make(map[string]Remote)}
	for _, r := range buildTime {
		c.remotes[r.Name] = r
	}
	return c
}

func (c *Container) Name() string {
	return c.name
}

func (c *Container) RegisterRemotes(remotes []Remote, force bool) error {
	for _, r := range remotes {
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Entry) == "" {
			return fmt.Errorf("[Container RegisterRemotes] remote %q: name and entry are required", r.Name)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range remotes {
		if _, exists := c.remotes[r.Name]; exists && !force {
			continue
		}
		c.remotes[r.Name] = r
	}
	return nil
}

// Remote looks up a registered remote by name.
func (c *Container) Remote(name string) (Remote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.remotes[name]
	return r, ok
}

// Remotes returns the registered remotes ordered by name.
func (c *Container) Remotes() []Remote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Remote, 0, len(c.remotes))
	for _, r := range c.remotes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
