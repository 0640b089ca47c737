package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	m "drq.dev/pkg/drq/internal/model"
)

// ReplayGenerator serves pre-built candidate suites from a directory, one
// file per generation in lexical order. It exists for offline runs and for
// exercising the engine without an LLM; the files are typically suites
// captured from an earlier run. Once the directory is exhausted every
// further request fails, so replay budgets should match the file count.
type ReplayGenerator struct {
	fs  SourceFSAdapter
	dir m.Path

	mu     sync.Mutex
	suites []m.Path
	next   int
	loaded bool
}

// NewReplayGenerator constructs a ReplayGenerator over the given directory.
func NewReplayGenerator(fs SourceFSAdapter, dir m.Path) *ReplayGenerator {
	return &ReplayGenerator{fs: fs, dir: dir}
}

// Generate returns the next suite from the directory.
func (g *ReplayGenerator) Generate(_ context.Context, _ GenerationRequest) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.loaded {
		if err := g.load(); err != nil {
			return nil, err
		}
	}

	if g.next >= len(g.suites) {
		return nil, fmt.Errorf("replay directory %s exhausted after %d suites", g.dir, len(g.suites))
	}

	suite, err := g.fs.ReadFile(g.suites[g.next])
	if err != nil {
		return nil, fmt.Errorf("failed to read replay suite: %w", err)
	}

	g.next++

	return suite, nil
}

// load lists the replay files once. ReadDir returns entries sorted by name,
// which fixes the replay order.
func (g *ReplayGenerator) load() error {
	entries, err := g.fs.ReadDir(g.dir)
	if err != nil {
		return fmt.Errorf("failed to list replay directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		g.suites = append(g.suites, g.fs.JoinPath(string(g.dir), entry.Name()))
	}

	if len(g.suites) == 0 {
		return fmt.Errorf("replay directory %s contains no suites", g.dir)
	}

	g.loaded = true

	return nil
}
