package tool

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/parley-ai/parley/providers/ai"
)

// Catalog is a thread-safe registry of tools keyed by name. Names fold to
// lowercase on the way in, so lookups are case-insensitive and two tools
// whose names differ only in case are the same entry.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]GenericTool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]GenericTool)}
}

// NewCatalogWithTools returns a catalog seeded with tools, named by each
// tool's ToolInfo().Name.
func NewCatalogWithTools(tools ...GenericTool) *Catalog {
	c := NewCatalog()
	c.AddTools(tools...)
	return c
}

// AddTools registers tools under their ToolInfo names, replacing any
// existing entry with the same folded name.
func (c *Catalog) AddTools(tools ...GenericTool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tools {
		c.tools[strings.ToLower(t.ToolInfo().Name)] = t
	}
}

// Get looks a tool up by name, ignoring case.
func (c *Catalog) Get(name string) (GenericTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[strings.ToLower(name)]
	return t, ok
}

// Has reports whether a tool is registered under name, ignoring case.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Remove deletes the named tool and reports whether it was present.
func (c *Catalog) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := strings.ToLower(name)
	if _, ok := c.tools[k]; !ok {
		return false
	}
	delete(c.tools, k)
	return true
}

// Clear empties the catalog.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.tools)
}

// Tools returns a snapshot of the registry. Mutating the returned map does
// not touch the catalog.
func (c *Catalog) Tools() map[string]GenericTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.tools)
}

// Descriptions returns every tool's ToolInfo sorted by name, keeping
// advertised tool lists deterministic across requests.
func (c *Catalog) Descriptions() []ai.ToolDescription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	descriptions := make([]ai.ToolDescription, 0, len(c.tools))
	for _, t := range c.tools {
		descriptions = append(descriptions, t.ToolInfo())
	}
	slices.SortFunc(descriptions, func(a, b ai.ToolDescription) int {
		return strings.Compare(a.Name, b.Name)
	})
	return descriptions
}

// HasExecutable reports whether any registered tool runs in-process. A
// catalog of declaration-only tools reports false, which lets the client
// skip its tool-execution loop entirely.
func (c *Catalog) HasExecutable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tools {
		if t.IsExecutable() {
			return true
		}
	}
	return false
}

// Size returns the number of registered tools.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

// Merge copies every tool from other into c, preferring other's tool on a
// name conflict. The other catalog is left unchanged.
func (c *Catalog) Merge(other *Catalog) {
	if other == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	maps.Copy(c.tools, other.tools)
}

// Clone returns an independent catalog sharing the tool instances. The
// client clones its catalog per invocation so concurrent registrations
// cannot change the tool set mid-loop.
func (c *Catalog) Clone() *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Catalog{tools: maps.Clone(c.tools)}
}
