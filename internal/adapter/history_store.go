package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	m "drq.dev/pkg/drq/internal/model"
	"drq.dev/pkg/drq/pkg"
)

const (
	runRecordFileName   = "run.json"
	generationsFileName = "generations.json"
	generationsSpill    = "generations.gob"
	bestSuiteFileName   = "best_suite_test.go"
	suiteFilePattern    = "suite_gen_%03d.go.txt"
)

// HistoryStore is the append-only persistence boundary for runs. Generation
// records land on disk as soon as they are final, so an interrupted run
// remains inspectable; FinalizeRun seals the record once the run reaches a
// terminal status. The read side powers the history and select commands.
type HistoryStore interface {
	BeginRun(ctx context.Context, run *m.Run) error
	AppendGeneration(ctx context.Context, runID string, gen m.Generation) error
	FinalizeRun(ctx context.Context, run *m.Run) error
	ListRuns(ctx context.Context) ([]m.Run, error)
	LoadRun(ctx context.Context, runID string) (*m.Run, error)
	LoadSuite(ctx context.Context, runID string, generation int) ([]byte, error)
}

// LocalHistoryStore keeps one directory per run under a root output
// directory. Live generations stream into a gob spill and are exported to
// generations.json when the run finalizes; candidate suites are stored as
// plain files next to them.
type LocalHistoryStore struct {
	fs   SourceFSAdapter
	root string

	mu     sync.Mutex
	spills map[string]pkg.FileSpill[m.Generation]
}

// NewLocalHistoryStore constructs a LocalHistoryStore rooted at dir.
func NewLocalHistoryStore(fs SourceFSAdapter, root string) *LocalHistoryStore {
	return &LocalHistoryStore{
		fs:     fs,
		root:   root,
		spills: make(map[string]pkg.FileSpill[m.Generation]),
	}
}

func (s *LocalHistoryStore) runDir(runID string) m.Path {
	return s.fs.JoinPath(s.root, runID)
}

// BeginRun creates the run directory, opens the generation spill and writes
// the initial run record so the run is visible to history immediately.
func (s *LocalHistoryStore) BeginRun(ctx context.Context, run *m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if run == nil || run.ID == "" {
		return fmt.Errorf("missing run ID")
	}

	dir := s.runDir(run.ID)

	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		slog.Error("Failed to create run directory", "dir", dir, "error", err)
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	spill, err := pkg.NewFileSpill[m.Generation](string(s.fs.JoinPath(string(dir), generationsSpill)))
	if err != nil {
		return fmt.Errorf("failed to open generation spill: %w", err)
	}

	s.mu.Lock()
	s.spills[run.ID] = spill
	s.mu.Unlock()

	return s.writeRunRecord(dir, run)
}

// AppendGeneration persists one finished generation: the candidate suite as
// its own file and the record itself into the spill.
func (s *LocalHistoryStore) AppendGeneration(ctx context.Context, runID string, gen m.Generation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	spill, ok := s.spills[runID]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %s has no open generation spill", runID)
	}

	dir := s.runDir(runID)

	if gen.SuiteCode != "" {
		path := s.fs.JoinPath(string(dir), fmt.Sprintf(suiteFilePattern, gen.Index))
		if err := s.fs.WriteFile(path, []byte(gen.SuiteCode), 0o600); err != nil {
			slog.Error("Failed to write suite file", "path", path, "error", err)
			return fmt.Errorf("failed to write suite file: %w", err)
		}
	}

	// The suite already lives in its own file.
	gen.SuiteCode = ""

	return spill.Append(gen)
}

// FinalizeRun seals a terminal run: generations are exported as JSON, the
// best suite is copied to a stable name and the spill is retired.
func (s *LocalHistoryStore) FinalizeRun(ctx context.Context, run *m.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if run == nil || run.ID == "" {
		return fmt.Errorf("missing run ID")
	}

	dir := s.runDir(run.ID)

	s.mu.Lock()
	spill := s.spills[run.ID]
	delete(s.spills, run.ID)
	s.mu.Unlock()

	if spill != nil {
		if err := spill.Close(); err != nil {
			slog.Error("Failed to close generation spill", "run", run.ID, "error", err)
		}
	}

	data, err := json.MarshalIndent(run.Generations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode generations: %w", err)
	}

	if err := s.fs.WriteFile(s.fs.JoinPath(string(dir), generationsFileName), data, 0o600); err != nil {
		slog.Error("Failed to write generations file", "run", run.ID, "error", err)
		return fmt.Errorf("failed to write generations file: %w", err)
	}

	if best, ok := run.Best(); ok && best.SuiteCode != "" {
		path := s.fs.JoinPath(string(dir), bestSuiteFileName)
		if err := s.fs.WriteFile(path, []byte(best.SuiteCode), 0o600); err != nil {
			slog.Error("Failed to write best suite", "run", run.ID, "error", err)
			return fmt.Errorf("failed to write best suite: %w", err)
		}
	}

	if err := s.writeRunRecord(dir, run); err != nil {
		return err
	}

	// The JSON export supersedes the spill.
	if err := s.fs.RemoveAll(s.fs.JoinPath(string(dir), generationsSpill)); err != nil {
		slog.Warn("Failed to remove generation spill", "run", run.ID, "error", err)
	}

	return nil
}

// ListRuns returns every readable run, generation logs included, most
// recent first.
func (s *LocalHistoryStore) ListRuns(ctx context.Context) ([]m.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.fs.ReadDir(m.Path(s.root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read history root: %w", err)
	}

	runs := make([]m.Run, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		run, err := s.LoadRun(ctx, entry.Name())
		if err != nil {
			slog.Warn("Skipping unreadable run record", "run", entry.Name(), "error", err)
			continue
		}

		runs = append(runs, *run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

// LoadRun reads one run record together with its generation log. For a run
// that never finalized the live spill is replayed instead, so interrupted
// runs stay inspectable.
func (s *LocalHistoryStore) LoadRun(ctx context.Context, runID string) (*m.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := s.runDir(runID)

	run, err := s.readRunRecord(dir)
	if err != nil {
		return nil, err
	}

	generations, err := s.readGenerations(dir)
	if err != nil {
		return nil, err
	}

	run.Generations = generations

	return run, nil
}

// LoadSuite returns the candidate suite source of one generation.
func (s *LocalHistoryStore) LoadSuite(ctx context.Context, runID string, generation int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.fs.JoinPath(string(s.runDir(runID)), fmt.Sprintf(suiteFilePattern, generation))

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite for generation %d: %w", generation, err)
	}

	return data, nil
}

func (s *LocalHistoryStore) writeRunRecord(dir m.Path, run *m.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}

	path := s.fs.JoinPath(string(dir), runRecordFileName)

	if err := s.fs.WriteFile(path, data, 0o600); err != nil {
		slog.Error("Failed to write run record", "path", path, "error", err)
		return fmt.Errorf("failed to write run record: %w", err)
	}

	return nil
}

func (s *LocalHistoryStore) readRunRecord(dir m.Path) (*m.Run, error) {
	data, err := s.fs.ReadFile(s.fs.JoinPath(string(dir), runRecordFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}

	var run m.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run record: %w", err)
	}

	return &run, nil
}

func (s *LocalHistoryStore) readGenerations(dir m.Path) ([]m.Generation, error) {
	data, err := s.fs.ReadFile(s.fs.JoinPath(string(dir), generationsFileName))

	switch {
	case err == nil:
		var generations []m.Generation
		if err := json.Unmarshal(data, &generations); err != nil {
			return nil, fmt.Errorf("failed to decode generations: %w", err)
		}

		return generations, nil
	case errors.Is(err, os.ErrNotExist):
		return s.replaySpill(dir)
	default:
		return nil, fmt.Errorf("failed to read generations: %w", err)
	}
}

func (s *LocalHistoryStore) replaySpill(dir m.Path) ([]m.Generation, error) {
	generations, err := pkg.ReadFileSpill[m.Generation](string(s.fs.JoinPath(string(dir), generationsSpill)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// The run died before its first generation.
			return nil, nil
		}

		return nil, err
	}

	return generations, nil
}
