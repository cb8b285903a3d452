// Package coinselect picks which unspent notes fund a transfer.
package coinselect

import (
	"errors"
	"math/big"
	"sort"

	"github.com/payy-network/payy-wallet/note"
)

// MaxInputs is the number of input notes the transfer circuit accepts. It
// is a protocol constant, not a selection preference: a transfer that would
// need more inputs fails even when the wallet's total balance covers it.
const MaxInputs = 2

var (
	ErrInsufficientFunds = errors.New("balance does not cover the requested amount")
	ErrTooManyInputs     = errors.New("covering the amount would need more input notes than the circuit allows")
)

// Selection is the outcome of a successful pick: the chosen notes and their
// exact total in micro-units.
type Selection struct {
	Notes []note.Note
	Total *big.Int
}

// Commitments returns the commitments of the selected notes, in selection
// order.
func (s Selection) Commitments() []string {
	out := make([]string, len(s.Notes))
	for i, n := range s.Notes {
		out[i] = n.Commitment
	}
	return out
}

// Select picks notes covering target using greedy largest-first: fewer,
// bigger inputs mean smaller proofs, at the price of small notes lingering.
// Ties keep the candidates' original order. Because the largest maxInputs
// notes maximize any maxInputs-sized subset sum, greedy is also exact for
// the circuit cap: if it cannot cover the target within maxInputs picks, no
// subset of that size can.
func Select(candidates []note.Note, target *big.Int, maxInputs int) (Selection, error) {
	// A non-positive target is covered by picking nothing.
	if target == nil || target.Sign() <= 0 {
		return Selection{Total: new(big.Int)}, nil
	}

	type cand struct {
		n note.Note
		v *big.Int
	}

	sorted := make([]cand, 0, len(candidates))
	for _, n := range candidates {
		v, err := n.Amount()
		if err != nil {
			return Selection{}, err
		}
		sorted = append(sorted, cand{n: n, v: v})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].v.Cmp(sorted[j].v) > 0
	})

	sel := Selection{Total: new(big.Int)}
	for _, c := range sorted {
		if len(sel.Notes) == maxInputs {
			break
		}
		sel.Notes = append(sel.Notes, c.n)
		sel.Total.Add(sel.Total, c.v)
		if sel.Total.Cmp(target) >= 0 {
			return sel, nil
		}
	}

	// Not covered within the cap. Distinguish "not enough money" from
	// "enough money, too fragmented".
	grand := new(big.Int).Set(sel.Total)
	for _, c := range sorted[len(sel.Notes):] {
		grand.Add(grand, c.v)
	}
	if grand.Cmp(target) >= 0 {
		return Selection{}, ErrTooManyInputs
	}
	return Selection{}, ErrInsufficientFunds
}
