// Package chem provides compositions and formula parsing for phase-stability
// calculations. A Composition maps element symbols to (positive) amounts; all
// transforms return new values rather than mutating in place.
package chem

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrUnknownSpecies indicates a formula referencing an unrecognized element.
	ErrUnknownSpecies = errors.New("chem: unknown species")
	// ErrBadFormula indicates a formula that could not be parsed.
	ErrBadFormula = errors.New("chem: malformed formula")
)

// fingerprintScale rounds normalized fractions for composition identity checks.
// Two compositions closer than ~1e-9 per fraction are treated as identical.
const fingerprintScale = 1e9

// Composition maps elements to amounts. Amounts are always > 0; a zero amount
// means the element is absent from the map entirely.
type Composition map[Element]float64

// ParseFormula parses a plain chemical formula such as "Ba8Zr8O24", "H2O" or
// "Li0.5CoO2". Element symbols are one capital letter optionally followed by a
// lowercase letter; counts are integers or decimals, defaulting to 1.
func ParseFormula(formula string) (Composition, error) {
	s := strings.TrimSpace(formula)
	if s == "" {
		return nil, fmt.Errorf("%w: empty formula", ErrBadFormula)
	}

	comp := Composition{}
	i := 0
	for i < len(s) {
		c := s[i]
		if c < 'A' || c > 'Z' {
			return nil, fmt.Errorf("%w: %q at position %d", ErrBadFormula, formula, i)
		}
		j := i + 1
		if j < len(s) && s[j] >= 'a' && s[j] <= 'z' {
			j++
		}
		sym := Element(s[i:j])
		if !sym.Valid() {
			// Two-letter grab failed; fall back to the one-letter symbol so the
			// trailing lowercase letter is reported at its own position.
			if j == i+2 {
				short := Element(s[i : i+1])
				if short.Valid() {
					sym = short
					j = i + 1
				}
			}
			if !sym.Valid() {
				return nil, fmt.Errorf("%w: %q in %q", ErrUnknownSpecies, s[i:j], formula)
			}
		}
		i = j

		// Optional count.
		k := i
		for k < len(s) && (s[k] >= '0' && s[k] <= '9' || s[k] == '.') {
			k++
		}
		amt := 1.0
		if k > i {
			v, err := strconv.ParseFloat(s[i:k], 64)
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("%w: bad count %q in %q", ErrBadFormula, s[i:k], formula)
			}
			amt = v
		}
		i = k

		comp[sym] += amt
	}
	return comp, nil
}

// MustParse is ParseFormula for known-good formulas; it panics on error.
// Intended for test fixtures and built-in tables.
func MustParse(formula string) Composition {
	c, err := ParseFormula(formula)
	if err != nil {
		panic(err)
	}
	return c
}

// NumAtoms returns the total atom count.
func (c Composition) NumAtoms() float64 {
	var n float64
	for _, amt := range c {
		n += amt
	}
	return n
}

// Elements returns the elements present, sorted by symbol.
func (c Composition) Elements() []Element {
	els := make([]Element, 0, len(c))
	for el := range c {
		els = append(els, el)
	}
	sort.Slice(els, func(i, j int) bool { return els[i] < els[j] })
	return els
}

// Normalize returns the fractional composition (amounts summing to 1).
func (c Composition) Normalize() Composition {
	total := c.NumAtoms()
	out := make(Composition, len(c))
	for el, amt := range c {
		out[el] = amt / total
	}
	return out
}

// Clone returns an independent copy.
func (c Composition) Clone() Composition {
	out := make(Composition, len(c))
	for el, amt := range c {
		out[el] = amt
	}
	return out
}

// Without returns the composition with the given elements removed.
func (c Composition) Without(drop map[Element]bool) Composition {
	out := Composition{}
	for el, amt := range c {
		if !drop[el] {
			out[el] = amt
		}
	}
	return out
}

// Fingerprint returns a canonical key for the normalized composition, stable
// under amount scaling and small (<1e-9) numeric noise. Used for duplicate
// detection and open-species matching.
func (c Composition) Fingerprint() string {
	norm := c.Normalize()
	els := norm.Elements()
	var b strings.Builder
	for _, el := range els {
		fmt.Fprintf(&b, "%s:%d;", el, int64(math.Round(norm[el]*fingerprintScale)))
	}
	return b.String()
}

// ReducedFormula returns a canonical human-readable formula: integer amounts
// divided by their GCD where possible, elements in alphabetical order.
// Ba8Zr8O24 renders as "BaO3Zr".
func (c Composition) ReducedFormula() string {
	els := c.Elements()

	// Try an integer reduction first.
	ints := make([]int64, len(els))
	integral := true
	for i, el := range els {
		v := c[el]
		r := math.Round(v)
		if math.Abs(v-r) > 1e-6*math.Max(1, math.Abs(v)) || r <= 0 {
			integral = false
			break
		}
		ints[i] = int64(r)
	}

	var b strings.Builder
	if integral {
		g := ints[0]
		for _, v := range ints[1:] {
			g = gcd(g, v)
		}
		for i, el := range els {
			n := ints[i] / g
			b.WriteString(string(el))
			if n != 1 {
				fmt.Fprintf(&b, "%d", n)
			}
		}
		return b.String()
	}

	// Fractional amounts: render normalized fractions.
	norm := c.Normalize()
	for _, el := range els {
		fmt.Fprintf(&b, "%s%.4g", el, norm[el])
	}
	return b.String()
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Subset reports whether every element of c is contained in the given system.
func (c Composition) Subset(system []Element) bool {
	in := make(map[Element]bool, len(system))
	for _, el := range system {
		in[el] = true
	}
	for el := range c {
		if !in[el] {
			return false
		}
	}
	return true
}
