package hull

import "errors"

var (
	// ErrInsufficientEntries indicates the filtered pool cannot span the
	// composition space (fewer than dimension+1 independent entries).
	ErrInsufficientEntries = errors.New("hull: insufficient entries to form a hull")
	// ErrOutOfHullSpace indicates a query composition outside the convex span
	// of the hull's closed system.
	ErrOutOfHullSpace = errors.New("hull: composition outside hull space")
	// ErrHullInconsistency indicates a query energy more than epsilon below
	// the hull, which can only happen if the hull was built from a pool that
	// did not include an entry competitive with the target.
	ErrHullInconsistency = errors.New("hull: energy below hull beyond tolerance")
)
