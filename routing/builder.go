// Package routing enumerates and scores multi-hop venue routes.
package routing

import (
	"fmt"
	"sort"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// EnumeratePaths returns every simple path (no repeated venue) of length
// 1..maxHops over the venue set. The order is deterministic for a fixed
// input: venues are visited in id order, depth-first, so shorter prefixes
// always precede their extensions.
//
// For N venues and bound H the result holds Σ_{k=1..H} P(N,k) paths.
func EnumeratePaths(venues []types.Venue, maxHops int) ([]types.RoutePath, error) {
	if maxHops < 1 {
		return nil, fmt.Errorf("%w: maxHops must be >= 1, got %d", types.ErrInvalidParameters, maxHops)
	}
	if len(venues) == 0 {
		return nil, fmt.Errorf("%w: empty venue set", types.ErrInvalidParameters)
	}

	ordered := make([]types.Venue, len(venues))
	copy(ordered, venues)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	// Iterative DFS with an explicit stack. Every frame owns its path slice,
	// so no visited state is shared between branches.
	type frame struct {
		path []int
	}

	var paths []types.RoutePath
	stack := make([]frame, 0, len(ordered))

	// Roots pushed in reverse so the smallest id pops first.
	for i := len(ordered) - 1; i >= 0; i-- {
		stack = append(stack, frame{path: []int{i}})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		paths = append(paths, materialize(ordered, f.path))

		if len(f.path) >= maxHops {
			continue
		}
		for i := len(ordered) - 1; i >= 0; i-- {
			if containsIndex(f.path, i) {
				continue
			}
			next := make([]int, len(f.path), len(f.path)+1)
			copy(next, f.path)
			stack = append(stack, frame{path: append(next, i)})
		}
	}

	return paths, nil
}

func materialize(venues []types.Venue, indices []int) types.RoutePath {
	hops := make([]types.Venue, len(indices))
	for i, idx := range indices {
		hops[i] = venues[idx]
	}
	return types.RoutePath{Venues: hops}
}

func containsIndex(path []int, i int) bool {
	for _, p := range path {
		if p == i {
			return true
		}
	}
	return false
}
