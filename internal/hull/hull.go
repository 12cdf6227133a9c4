// Package hull builds lower convex envelopes over composition-energy space
// and answers energy-above-hull queries, optionally in grand-potential form
// where designated elements are held at fixed chemical potential.
//
// Coordinates: for a closed system of d elements, a point is the fractional
// amount of elements[1:] (d-1 values; the first element's fraction is
// implied) plus energy per closed atom. Facets are d-vertex simplices of the
// lower envelope found by hyperplane support testing.
package hull

import (
	"fmt"
	"sort"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/entry"
)

// Epsilon is the energy tolerance (eV/atom) for every on-hull, containment
// and distance comparison in this package.
const Epsilon = 1e-7

// Vertex is one stable-candidate point of the hull. Entries holds every
// record at this composition whose energy ties the minimum within Epsilon
// (degenerate co-planar vertices are all retained); the first entry is the
// representative.
type Vertex struct {
	Entries  []entry.Entry
	Closed   chem.Composition // composition projected onto the closed system
	Coord    []float64        // fractions of Elements[1:]
	EnergyPA float64          // (grand) energy per closed atom
}

// Facet is a minimal-energy simplex of the lower envelope:
// E(x) = normal·x + offset over the simplex spanned by Verts.
type Facet struct {
	Verts  []int // indices into Hull.Vertices, len == len(Elements)
	normal []float64
	offset float64
}

// Hull is an immutable lower convex envelope for one (possibly reduced)
// chemical system.
type Hull struct {
	Elements   []chem.Element               // closed system, sorted
	Potentials map[chem.Element]float64     // open element → mu; empty for closed hulls
	Vertices   []Vertex
	Facets     []Facet
}

// Build constructs the lower envelope over the entry pool. A non-empty
// potentials map selects grand-potential mode: each entry's energy becomes
// E - sum(n_el * mu_el) over open elements and its composition is projected
// onto the remaining (closed) elements. Entries composed entirely of open
// elements define the reservoir, not hull vertices, and are skipped.
//
// Returns ErrInsufficientEntries when the pool cannot span the closed
// composition space.
func Build(pool []entry.Entry, potentials map[chem.Element]float64) (*Hull, error) {
	open := make(map[chem.Element]bool, len(potentials))
	for el := range potentials {
		open[el] = true
	}

	// Project every entry into the closed space.
	type point struct {
		e      entry.Entry
		closed chem.Composition
		epa    float64
	}
	var points []point
	elemSet := map[chem.Element]bool{}
	for _, e := range pool {
		closed := e.Composition.Without(open)
		if len(closed) == 0 {
			continue
		}
		g := grandEnergy(e, potentials)
		points = append(points, point{e: e, closed: closed, epa: g / closed.NumAtoms()})
		for el := range closed {
			elemSet[el] = true
		}
	}

	elements := make([]chem.Element, 0, len(elemSet))
	for el := range elemSet {
		elements = append(elements, el)
	}
	sort.Slice(elements, func(i, j int) bool { return elements[i] < elements[j] })
	d := len(elements)
	if d == 0 {
		return nil, fmt.Errorf("%w: no closed-system entries", ErrInsufficientEntries)
	}

	// One vertex per distinct closed composition, keeping the minimum energy
	// and every entry tied with it within Epsilon.
	groups := map[string][]point{}
	for _, p := range points {
		key := p.closed.Fingerprint()
		groups[key] = append(groups[key], p)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := &Hull{Elements: elements, Potentials: potentials}
	for _, k := range keys {
		g := groups[k]
		sort.Slice(g, func(i, j int) bool {
			if g[i].epa != g[j].epa {
				return g[i].epa < g[j].epa
			}
			return g[i].e.SourceID < g[j].e.SourceID
		})
		v := Vertex{
			Closed:   g[0].closed,
			Coord:    coordOf(g[0].closed, elements),
			EnergyPA: g[0].epa,
		}
		for _, p := range g {
			if p.epa-g[0].epa <= Epsilon {
				v.Entries = append(v.Entries, p.e)
			}
		}
		h.Vertices = append(h.Vertices, v)
	}

	if len(h.Vertices) < d {
		return nil, fmt.Errorf("%w: %d independent compositions in a %d-element system",
			ErrInsufficientEntries, len(h.Vertices), d)
	}

	h.buildFacets(d)
	if len(h.Facets) == 0 {
		return nil, fmt.Errorf("%w: no supporting facet in a %d-element system",
			ErrInsufficientEntries, d)
	}
	return h, nil
}

// buildFacets enumerates d-subsets of vertices and keeps those whose
// hyperplane supports the whole point set from below.
func (h *Hull) buildFacets(d int) {
	combinations(len(h.Vertices), d, func(idx []int) {
		// Hyperplane through the d points: normal·x + offset = E.
		a := make([][]float64, d)
		b := make([]float64, d)
		for i, vi := range idx {
			row := make([]float64, d)
			copy(row, h.Vertices[vi].Coord)
			row[d-1] = 1
			a[i] = row
			b[i] = h.Vertices[vi].EnergyPA
		}
		sol, ok := solveLinear(a, b)
		if !ok {
			return // affinely dependent compositions
		}
		normal, offset := sol[:d-1], sol[d-1]

		for _, v := range h.Vertices {
			if v.EnergyPA < planeAt(normal, offset, v.Coord)-Epsilon {
				return // some point lies below: not a lower facet
			}
		}

		verts := make([]int, d)
		copy(verts, idx)
		h.Facets = append(h.Facets, Facet{Verts: verts, normal: normal, offset: offset})
	})
}

// grandEnergy returns the entry's corrected energy minus the open-element
// reservoir terms.
func grandEnergy(e entry.Entry, potentials map[chem.Element]float64) float64 {
	g := e.Energy()
	for el, mu := range potentials {
		if n, ok := e.Composition[el]; ok {
			g -= n * mu
		}
	}
	return g
}

// coordOf maps a closed composition to its (d-1)-dim fraction vector.
func coordOf(closed chem.Composition, elements []chem.Element) []float64 {
	norm := closed.Normalize()
	coord := make([]float64, len(elements)-1)
	for i, el := range elements[1:] {
		coord[i] = norm[el]
	}
	return coord
}

func planeAt(normal []float64, offset float64, x []float64) float64 {
	v := offset
	for i, n := range normal {
		v += n * x[i]
	}
	return v
}

// energyAt interpolates the hull energy at the given coordinate and returns
// the containing facet's barycentric weights. ErrOutOfHullSpace if no facet's
// composition simplex contains the coordinate.
func (h *Hull) energyAt(coord []float64) (float64, *Facet, []float64, error) {
	d := len(h.Elements)
	for fi := range h.Facets {
		f := &h.Facets[fi]
		// Solve sum(lambda_i * v_i) = coord, sum(lambda_i) = 1.
		a := make([][]float64, d)
		b := make([]float64, d)
		for row := 0; row < d-1; row++ {
			a[row] = make([]float64, d)
			for col, vi := range f.Verts {
				a[row][col] = h.Vertices[vi].Coord[row]
			}
			b[row] = coord[row]
		}
		a[d-1] = make([]float64, d)
		for col := range f.Verts {
			a[d-1][col] = 1
		}
		b[d-1] = 1

		lambda, ok := solveLinear(a, b)
		if !ok {
			continue
		}
		contained := true
		for _, l := range lambda {
			if l < -Epsilon {
				contained = false
				break
			}
		}
		if !contained {
			continue
		}
		var e float64
		for i, vi := range f.Verts {
			e += lambda[i] * h.Vertices[vi].EnergyPA
		}
		return e, f, lambda, nil
	}
	return 0, nil, nil, ErrOutOfHullSpace
}

// Lies checks the lower-envelope invariant: no vertex sits below the hull's
// interpolated energy at its own composition. Exposed for tests and the
// post-build self-check.
func (h *Hull) Lies() error {
	for _, v := range h.Vertices {
		e, _, _, err := h.energyAt(v.Coord)
		if err != nil {
			return fmt.Errorf("vertex %s: %w", v.Closed.ReducedFormula(), err)
		}
		if v.EnergyPA < e-Epsilon {
			return fmt.Errorf("%w: vertex %s at %.9f below hull %.9f",
				ErrHullInconsistency, v.Closed.ReducedFormula(), v.EnergyPA, e)
		}
	}
	return nil
}

// Stable returns the vertices that sit on the hull (energy equal to the
// envelope within Epsilon) — the stable phases of the system.
func (h *Hull) Stable() []Vertex {
	var out []Vertex
	for _, v := range h.Vertices {
		e, _, _, err := h.energyAt(v.Coord)
		if err == nil && v.EnergyPA <= e+Epsilon {
			out = append(out, v)
		}
	}
	return out
}
