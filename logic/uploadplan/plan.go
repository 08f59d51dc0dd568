// Package uploadplan computes the order in which site assets are uploaded.
// The entry asset is always last so that, once it is visible remotely,
// every asset it references is already stored.
package uploadplan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gobwas/glob"
)

// ErrEntryMissing is returned when the listing does not contain the entry asset.
var ErrEntryMissing = errors.New("uploadplan: entry asset not found in listing")

// Plan is the upload order for one deploy.
type Plan struct {
	// Assets are the non-entry names to upload, sorted. They have no ordering
	// requirement among themselves.
	Assets []string
	// Excluded are the names dropped by an exclusion pattern, sorted.
	Excluded []string
	// Entry is uploaded after every name in Assets.
	Entry string
}

// Order returns the full upload order: Assets followed by Entry.
//
//	for _, name := range plan.Order() { ... }
func (p Plan) Order() []string {
	out := make([]string, 0, len(p.Assets)+1)
	out = append(out, p.Assets...)
	return append(out, p.Entry)
}

// Build partitions a directory listing into the entry asset and everything
// else minus exclusions. Exclusions are glob patterns ("*.map", "stats.json");
// they never apply to the entry asset. Duplicate names are collapsed.
//
//	plan, err := uploadplan.Build([]string{"app.js", "index.html"}, "index.html", []string{"bootstrap"})
//	// plan.Order() == ["app.js", "index.html"]
func Build(names []string, entry string, exclusions []string) (Plan, error) {
	if entry == "" {
		return Plan{}, fmt.Errorf("uploadplan: entry asset name is empty")
	}

	matchers, err := compile(exclusions)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Entry: entry}
	seen := make(map[string]bool, len(names))
	foundEntry := false

	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if name == entry {
			foundEntry = true
			continue
		}
		if excluded(name, matchers) {
			plan.Excluded = append(plan.Excluded, name)
			continue
		}
		plan.Assets = append(plan.Assets, name)
	}

	if !foundEntry {
		return Plan{}, fmt.Errorf("%w: %q", ErrEntryMissing, entry)
	}

	sort.Strings(plan.Assets)
	sort.Strings(plan.Excluded)
	return plan, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("uploadplan: exclusion %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func excluded(name string, matchers []glob.Glob) bool {
	for _, g := range matchers {
		if g.Match(name) {
			return true
		}
	}
	return false
}
