package wallet

import (
	"errors"
	"fmt"
)

// Kind classifies a transfer failure by what the caller should do about it:
// fix the input, top up, wait and retry, or retry now.
type Kind int

const (
	// KindValidation is bad user input. Nothing was locked, no network
	// call was made.
	KindValidation Kind = iota
	// KindInsufficientFunds: the spendable balance does not cover the
	// amount. Surfaced before locking.
	KindInsufficientFunds
	// KindTooManyInputs: the balance covers the amount but not within the
	// circuit's input cap. Surfaced before locking.
	KindTooManyInputs
	// KindStaleState: a selected note is not in the node's merkle tree
	// yet. Retry after a short delay; inputs were unlocked.
	KindStaleState
	// KindRemote: the prover or node failed or was unreachable. Inputs
	// were unlocked.
	KindRemote
	// KindStorage: the local secure store failed.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindTooManyInputs:
		return "too_many_inputs"
	case KindStaleState:
		return "stale_state"
	case KindRemote:
		return "remote"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

var (
	// ErrNoteNotFound: a selected commitment is absent from the node's
	// tree, usually because the note has not confirmed yet.
	ErrNoteNotFound = errors.New("note not found in merkle tree")
	// ErrProofGeneration: the remote prover failed to produce a snark.
	ErrProofGeneration = errors.New("proof generation failed")
	// ErrSubmission: the node rejected the submitted transaction.
	ErrSubmission = errors.New("transaction submission rejected")
)

// TransferError is what Transfer returns on any failure: the taxonomy kind,
// whether an immediate retry is sensible, and the original cause.
type TransferError struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed (%s): %s", e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func transferErr(kind Kind, retryable bool, err error) *TransferError {
	return &TransferError{Kind: kind, Retryable: retryable, Err: err}
}
