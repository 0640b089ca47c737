package domain

import (
	"context"
	"crypto/sha256"
	"fmt"
	"go/token"
	"math/rand"

	"drq.dev/pkg/drq/internal/adapter"
	"drq.dev/pkg/drq/internal/domain/faults"
	m "drq.dev/pkg/drq/internal/model"
)

// FaultOptions controls the mutant population derived for one run.
type FaultOptions struct {
	// Count caps the population size. Fewer mutants are returned when the
	// target does not offer enough distinct fault sites.
	Count int

	// Kinds restricts the fault transforms. Empty means all kinds.
	Kinds []m.FaultKind

	// Seed fixes the site selection order so identical inputs reproduce
	// the same population.
	Seed int64
}

// FaultInjector derives the fixed mutant population for a run.
type FaultInjector interface {
	Generate(ctx context.Context, target m.TargetSource, opts FaultOptions) ([]m.Mutant, error)
}

// faultInjector implements FaultInjector on top of the Go file adapter.
type faultInjector struct {
	adapter.GoFileAdapter
}

// NewFaultInjector creates a new FaultInjector instance.
func NewFaultInjector(goFiles adapter.GoFileAdapter) FaultInjector {
	return &faultInjector{GoFileAdapter: goFiles}
}

// Generate parses the target, collects candidate fault sites inside the
// target function body and splices them into mutant variants. Variants that
// no longer parse are discarded rather than counted, and an exhausted site
// pool yields fewer mutants than requested.
func (fi *faultInjector) Generate(ctx context.Context, target m.TargetSource, opts FaultOptions) ([]m.Mutant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := validateTarget(target); err != nil {
		return nil, err
	}

	kinds, err := resolveFaultKinds(opts.Kinds)
	if err != nil {
		return nil, err
	}

	if opts.Count <= 0 {
		return nil, nil
	}

	fset := token.NewFileSet()

	file, err := fi.Parse(fset, string(target.Path), target.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", target.Path, err)
	}

	lo, hi, err := fi.FunctionSpan(fset, file, target.Function)
	if err != nil {
		return nil, err
	}

	sites := faults.Collect(fset, file, target.Code, kinds, lo, hi)
	shuffleSites(sites, opts.Seed)

	// The unmodified source must never pose as a mutant.
	originalSum := sha256.Sum256(target.Code)
	seen := map[string]struct{}{string(originalSum[:]): {}}

	mutants := make([]m.Mutant, 0, opts.Count)

	for _, site := range sites {
		if len(mutants) == opts.Count {
			break
		}

		mutated := site.Apply(target.Code)
		if mutated == nil {
			continue
		}

		if _, err := fi.Parse(token.NewFileSet(), string(target.Path), mutated); err != nil {
			continue
		}

		sum := sha256.Sum256(mutated)
		if _, ok := seen[string(sum[:])]; ok {
			continue
		}

		seen[string(sum[:])] = struct{}{}

		mutants = append(mutants, m.Mutant{
			ID:   mutantID(target, site),
			Kind: site.Kind,
			Site: m.FaultSite{
				Line:     site.Line,
				Column:   site.Column,
				Original: site.Original,
				Mutated:  site.Mutated,
			},
			Code: mutated,
			Diff: faults.Diff(target.Code, mutated),
		})
	}

	return mutants, nil
}

func validateTarget(target m.TargetSource) error {
	if len(target.Code) == 0 {
		return fmt.Errorf("missing target source")
	}

	if target.Function == "" {
		return fmt.Errorf("missing target function")
	}

	return nil
}

func resolveFaultKinds(kinds []m.FaultKind) ([]m.FaultKind, error) {
	if len(kinds) == 0 {
		return m.AllFaultKinds(), nil
	}

	for _, kind := range kinds {
		if _, err := m.ParseFaultKind(string(kind)); err != nil {
			return nil, err
		}
	}

	return kinds, nil
}

// shuffleSites orders candidate sites for the given seed. Collect returns
// sites in a stable order, so the shuffled order is reproducible.
func shuffleSites(sites []faults.Site, seed int64) {
	rng := rand.New(rand.NewSource(seed))

	rng.Shuffle(len(sites), func(i, j int) {
		sites[i], sites[j] = sites[j], sites[i]
	})
}

// mutantID derives a stable identifier from the target and the fault site.
func mutantID(target m.TargetSource, site faults.Site) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%d-%s", target.Hash, site.Kind, site.Start, site.Mutated)))

	return fmt.Sprintf("%x", h)[:16]
}
