// Package ledger is the authoritative store of the wallet's private notes.
// All note mutation funnels through it; every mutation persists the full
// collection before the in-memory view is updated, so a storage failure
// leaves prior state untouched.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/payy-network/payy-wallet/coinselect"
	"github.com/payy-network/payy-wallet/database"
	"github.com/payy-network/payy-wallet/note"
)

// ErrStorage wraps any persistence failure. The in-memory collection is
// guaranteed unchanged when a mutating call returns it.
var ErrStorage = errors.New("note storage failure")

// ErrAlreadyLeased means a note is already held by a different in-flight
// transfer attempt. Re-leasing under the same attempt ID is a no-op.
var ErrAlreadyLeased = errors.New("note already leased by another transfer")

type Ledger struct {
	mu     sync.Mutex
	db     *database.DB
	encKey []byte
	notes  []note.Note
}

// Open loads the persisted note collection, or starts empty for a fresh
// wallet.
func Open(db *database.DB, encryptionKey []byte) (*Ledger, error) {
	blob, err := db.FetchNotes(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStorage, err)
	}

	var notes []note.Note
	if blob != nil {
		if err := json.Unmarshal(blob, &notes); err != nil {
			return nil, fmt.Errorf("%w: corrupt note collection: %s", ErrStorage, err)
		}
	}

	return &Ledger{db: db, encKey: encryptionKey, notes: notes}, nil
}

// Add appends a new unspent note. ReceivedAt is stamped here; Spent and
// Pending are forced clear regardless of what the caller passed.
func (l *Ledger) Add(n note.Note) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	n.Spent = false
	n.Pending = false
	n.LockedBy = nil
	n.ReceivedAt = time.Now().UTC()

	next := append(l.snapshot(), n)
	return l.commit(next)
}

// Spend marks the note with the given commitment as spent. Spent is
// terminal: the pending lease is dropped and the note never becomes
// selectable again. Unknown commitments are a no-op, not an error.
func (l *Ledger) Spend(commitment string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.snapshot()
	changed := false
	for i := range next {
		if next[i].Commitment == commitment && !next[i].Spent {
			next[i].Spent = true
			next[i].Pending = false
			next[i].LockedBy = nil
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.commit(next)
}

// Unspent returns the notes usable for a new transfer: not spent and not
// leased to an in-flight transaction. Order is insertion order; callers must
// not read any selection policy into it.
func (l *Ledger) Unspent() []note.Note {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]note.Note, 0, len(l.notes))
	for _, n := range l.notes {
		if n.Usable() {
			out = append(out, n)
		}
	}
	return out
}

// SelectAndLease picks notes covering target and leases them to the given
// transfer attempt in one critical section, so two concurrent transfers can
// never observe the same note as available. Selection policy is
// coinselect's.
func (l *Ledger) SelectAndLease(lease uuid.UUID, target *big.Int, maxInputs int) (coinselect.Selection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	usable := make([]note.Note, 0, len(l.notes))
	for _, n := range l.notes {
		if n.Usable() {
			usable = append(usable, n)
		}
	}
	sel, err := coinselect.Select(usable, target, maxInputs)
	if err != nil {
		return coinselect.Selection{}, err
	}
	if err := l.lease(lease, sel.Commitments()); err != nil {
		return coinselect.Selection{}, err
	}
	return sel, nil
}

// MarkPending leases the given notes to one in-flight transfer attempt.
// The lease is taken synchronously, before any network call, which is what
// keeps two concurrent transfers on this device from spending the same
// note. Idempotent for notes already held by the same attempt; a note held
// by a different attempt fails the whole call with ErrAlreadyLeased and
// changes nothing.
func (l *Ledger) MarkPending(lease uuid.UUID, commitments []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lease(lease, commitments)
}

// lease applies the pending flag. Callers must hold l.mu.
func (l *Ledger) lease(lease uuid.UUID, commitments []string) error {
	next := l.snapshot()
	changed := false
	for i := range next {
		if next[i].Spent || !containsStr(commitments, next[i].Commitment) {
			continue
		}
		if next[i].Pending {
			if next[i].LockedBy != nil && *next[i].LockedBy == lease {
				continue
			}
			return fmt.Errorf("%w: %s", ErrAlreadyLeased, next[i].Commitment)
		}
		id := lease
		next[i].Pending = true
		next[i].LockedBy = &id
		changed = true
	}
	if !changed {
		return nil
	}
	return l.commit(next)
}

// UnmarkPending releases the lease the given attempt holds on these notes,
// making them selectable again. Notes held by a different attempt are left
// untouched, so a failed transfer's compensation can never free inputs that
// another in-flight transfer still depends on. Idempotent: a second call
// with the same arguments is a no-op. Spent notes are never resurrected.
func (l *Ledger) UnmarkPending(lease uuid.UUID, commitments []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.snapshot()
	changed := false
	for i := range next {
		if next[i].Spent || !containsStr(commitments, next[i].Commitment) {
			continue
		}
		if !next[i].Pending {
			continue
		}
		if next[i].LockedBy == nil || *next[i].LockedBy != lease {
			continue
		}
		next[i].Pending = false
		next[i].LockedBy = nil
		changed = true
	}
	if !changed {
		return nil
	}
	return l.commit(next)
}

// Clear empties the ledger. Used on wallet removal.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commit([]note.Note{})
}

// Balance returns the spendable total (unspent, not pending) and the total
// currently locked under pending leases, in micro-units.
func (l *Ledger) Balance() (spendable, pending *big.Int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	spendable, pending = new(big.Int), new(big.Int)
	for _, n := range l.notes {
		if n.Spent {
			continue
		}
		v, err := n.Amount()
		if err != nil {
			return nil, nil, err
		}
		if n.Pending {
			pending.Add(pending, v)
		} else {
			spendable.Add(spendable, v)
		}
	}
	return spendable, pending, nil
}

// All returns a copy of every note, spent ones included.
func (l *Ledger) All() []note.Note {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// snapshot copies the collection so a failed commit cannot have mutated the
// live view. Callers must hold l.mu.
func (l *Ledger) snapshot() []note.Note {
	out := make([]note.Note, len(l.notes))
	copy(out, l.notes)
	return out
}

// commit persists the candidate collection and only then installs it as the
// in-memory view. Callers must hold l.mu.
func (l *Ledger) commit(next []note.Note) error {
	blob, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStorage, err)
	}
	if err := l.db.PutNotes(l.encKey, blob); err != nil {
		return fmt.Errorf("%w: %s", ErrStorage, err)
	}
	l.notes = next
	return nil
}

func containsStr(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
