package shader

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrUnknownChunk is returned when an #include names a chunk that was never registered.
	ErrUnknownChunk = errors.New("unknown shader chunk")
	// ErrIncludeCycle is returned when chunks include each other.
	ErrIncludeCycle = errors.New("shader chunk include cycle")
)

// includeRegex matches a whole `#include <name>` line and captures the chunk name.
var includeRegex = regexp.MustCompile(`^\s*#include\s+<([\w./-]+)>\s*$`)

// Chunks is a registry of reusable WGSL snippets that material bodies pull in with
// `#include <name>` lines. Chunks may include other chunks.
//
// Usage pattern:
//
//	chunks := shader.NewChunks()
//	chunks.Register("lighting", lightingWGSL)
//	body, err := chunks.Expand(fragmentBody)
type Chunks struct {
	mu     sync.RWMutex
	chunks map[string]string
}

// NewChunks returns an empty chunk registry.
func NewChunks() *Chunks {
	return &Chunks{chunks: make(map[string]string)}
}

// Register adds or replaces a chunk.
//
// Parameters:
//   - name: the name used in `#include <name>`
//   - source: the WGSL text the include line expands to
func (c *Chunks) Register(name, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks[name] = source
}

// Expand replaces every include line in source with the registered chunk text, recursively.
//
// Parameters:
//   - source: WGSL source possibly containing include lines
//
// Returns:
//   - string: the expanded source
//   - error: ErrUnknownChunk or ErrIncludeCycle with the offending line number
func (c *Chunks) Expand(source string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expand(source, nil)
}

func (c *Chunks) expand(source string, stack []string) (string, error) {
	if !strings.Contains(source, "#include") {
		return source, nil
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		match := includeRegex.FindStringSubmatch(line)
		if match == nil {
			out = append(out, line)
			continue
		}

		name := match[1]
		if slices.Contains(stack, name) {
			return "", fmt.Errorf("line %d: %w: %s -> %s", i+1, ErrIncludeCycle, strings.Join(stack, " -> "), name)
		}
		chunk, ok := c.chunks[name]
		if !ok {
			return "", fmt.Errorf("line %d: %w %q", i+1, ErrUnknownChunk, name)
		}
		expanded, err := c.expand(chunk, append(stack, name))
		if err != nil {
			return "", fmt.Errorf("chunk %q: %w", name, err)
		}
		out = append(out, expanded)
	}
	return strings.Join(out, "\n"), nil
}
