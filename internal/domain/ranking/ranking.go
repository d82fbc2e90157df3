// Package ranking orders class probabilities and picks the primary
// recommendation and a shortlist.
package ranking

import (
	"cmp"
	"slices"
)

// DefaultTopN is the shortlist length used when none is requested.
const DefaultTopN = 3

// Entry is one class with its probability.
type Entry struct {
	Class       int
	Probability float64
}

// Ranking is a probability vector sorted descending, ties broken by the
// lower class index.
type Ranking struct {
	entries []Entry
}

// New ranks a probability vector indexed by class.
func New(probs []float64) Ranking {
	entries := make([]Entry, len(probs))
	for k, p := range probs {
		entries[k] = Entry{Class: k, Probability: p}
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Probability, a.Probability); c != 0 {
			return c
		}
		return cmp.Compare(a.Class, b.Class)
	})
	return Ranking{entries: entries}
}

// Len is the number of ranked classes.
func (r Ranking) Len() int { return len(r.entries) }

// Primary is the highest ranked class. It panics on an empty ranking.
func (r Ranking) Primary() int { return r.entries[0].Class }

// Confidence is the probability of the primary class.
func (r Ranking) Confidence() float64 { return r.entries[0].Probability }

// Top returns the first n entries; n <= 0 means DefaultTopN and n larger than
// the class count returns every class.
func (r Ranking) Top(n int) []Entry {
	if n <= 0 {
		n = DefaultTopN
	}
	n = min(n, len(r.entries))
	return append([]Entry(nil), r.entries[:n]...)
}
