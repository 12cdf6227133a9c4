// Package source provides the data-source boundary: fetching computed-energy
// entries for a chemical system from a remote materials database, with an
// optional SQLite fetch-through cache for reproducible offline runs.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/entry"
	"github.com/talgya/phasehull/internal/persistence"
)

// ErrDataSource marks unrecoverable fetch failures (network, auth,
// not-found). The core never retries; retry policy belongs to the caller.
var ErrDataSource = errors.New("source: data source failure")

// DataSource returns every entry for the requested chemical system.
type DataSource interface {
	FetchEntries(ctx context.Context, system []chem.Element) ([]entry.Entry, error)
}

// ChemsysKey renders a sorted canonical key for a chemical system ("Ba-O-Zr").
func ChemsysKey(system []chem.Element) string {
	syms := make([]string, 0, len(system))
	for _, el := range system {
		syms = append(syms, string(el))
	}
	sort.Strings(syms)
	return strings.Join(syms, "-")
}

// Unavailable is a DataSource that always fails. It backs cache-only runs:
// wrapped in a CachingSource, cached systems serve and anything else surfaces
// ErrDataSource with the configured reason.
type Unavailable struct {
	Reason string
}

// FetchEntries implements DataSource.
func (u Unavailable) FetchEntries(_ context.Context, system []chem.Element) ([]entry.Entry, error) {
	return nil, fmt.Errorf("%w: %s not cached and %s", ErrDataSource, ChemsysKey(system), u.Reason)
}

// CachingSource wraps a DataSource with the SQLite entry cache. Cache hits
// skip the network entirely; misses fetch and then populate the cache.
type CachingSource struct {
	Inner DataSource
	DB    *persistence.DB
}

// FetchEntries implements DataSource.
func (c *CachingSource) FetchEntries(ctx context.Context, system []chem.Element) ([]entry.Entry, error) {
	key := ChemsysKey(system)

	cached, err := c.DB.LoadEntries(key)
	if err != nil {
		return nil, fmt.Errorf("%w: cache read %s: %v", ErrDataSource, key, err)
	}
	if cached != nil {
		slog.Info("entry pool served from cache", "chemsys", key, "count", len(cached))
		return cached, nil
	}

	fetched, err := c.Inner.FetchEntries(ctx, system)
	if err != nil {
		return nil, err
	}
	if err := c.DB.SaveEntries(key, fetched); err != nil {
		// Cache write failure is not a fetch failure; log and serve the data.
		slog.Warn("entry cache write failed", "chemsys", key, "error", err)
	}
	return fetched, nil
}
