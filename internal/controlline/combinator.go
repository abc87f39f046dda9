package controlline

import (
	"cmp"

	"github.com/tramsim/consist/pkg/core"
)

// Combinator folds two line values into one. Combine must be idempotent,
// commutative and associative, and Identity must be its neutral element.
type Combinator[T any] struct {
	Name     string
	Identity T
	Combine  func(a, b T) T
}

// Or is the combinator for lines that are active if any car drives them.
var Or = Combinator[bool]{
	Name:     "or",
	Identity: false,
	Combine:  func(a, b bool) bool { return a || b },
}

// And is the combinator for lines that require every car's consent.
var And = Combinator[bool]{
	Name:     "and",
	Identity: true,
	Combine:  func(a, b bool) bool { return a && b },
}

// Max picks the larger value. The zero value is the identity, so Max is only
// meaningful for non-negative signals.
func Max[T cmp.Ordered]() Combinator[T] {
	var zero T
	return Combinator[T]{
		Name:     "max",
		Identity: zero,
		Combine: func(a, b T) T {
			return max(a, b)
		},
	}
}

// DoorMerge lets the strongest door command win.
var DoorMerge = Combinator[core.DoorTarget]{
	Name:     "door",
	Identity: core.DoorZu,
	Combine:  core.MergeDoorTarget,
}

// DirectionMerge ORs the reverser components.
var DirectionMerge = Combinator[core.DirectionOfDriving]{
	Name:     "direction",
	Identity: core.DirectionOfDriving{},
	Combine: func(a, b core.DirectionOfDriving) core.DirectionOfDriving {
		return a.Merge(b)
	},
}
