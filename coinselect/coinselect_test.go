package coinselect

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payy-network/payy-wallet/note"
)

func newNote(t *testing.T, id string, value int64) note.Note {
	t.Helper()
	hex, err := note.EncodeValue(big.NewInt(value))
	require.NoError(t, err)
	return note.Note{Commitment: id, Value: hex}
}

func TestSelectLargestFirst(t *testing.T) {
	// $0.70 and $0.30 in the wallet, sending $0.50: the $0.70 note alone
	// covers it.
	notes := []note.Note{
		newNote(t, "a", 700000),
		newNote(t, "b", 300000),
	}

	sel, err := Select(notes, big.NewInt(500000), MaxInputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, sel.Commitments())
	assert.Equal(t, big.NewInt(700000), sel.Total)
}

func TestSelectTwoInputsWhenNeeded(t *testing.T) {
	notes := []note.Note{
		newNote(t, "a", 700000),
		newNote(t, "b", 600000),
	}

	sel, err := Select(notes, big.NewInt(1200000), MaxInputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sel.Commitments())
	assert.Equal(t, big.NewInt(1300000), sel.Total)
}

func TestSelectEmptyWallet(t *testing.T) {
	_, err := Select(nil, big.NewInt(1), MaxInputs)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectZeroTargetPicksNothing(t *testing.T) {
	// Zero is covered by picking nothing, even from an empty wallet.
	sel, err := Select(nil, big.NewInt(0), MaxInputs)
	require.NoError(t, err)
	assert.Empty(t, sel.Notes)
	assert.Equal(t, big.NewInt(0), sel.Total)

	sel, err = Select([]note.Note{newNote(t, "a", 100000)}, big.NewInt(0), MaxInputs)
	require.NoError(t, err)
	assert.Empty(t, sel.Notes)
}

func TestSelectInsufficientFunds(t *testing.T) {
	notes := []note.Note{
		newNote(t, "a", 100000),
		newNote(t, "b", 100000),
	}
	_, err := Select(notes, big.NewInt(300000), MaxInputs)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectTooFragmented(t *testing.T) {
	// Three $0.10 notes, sending $0.25: the balance covers it but no
	// 2-note subset does.
	notes := []note.Note{
		newNote(t, "a", 100000),
		newNote(t, "b", 100000),
		newNote(t, "c", 100000),
	}
	_, err := Select(notes, big.NewInt(250000), MaxInputs)
	assert.ErrorIs(t, err, ErrTooManyInputs)
}

func TestSelectNeverOverSelects(t *testing.T) {
	// A single covering note exists; the selector must not add a second.
	notes := []note.Note{
		newNote(t, "small", 100000),
		newNote(t, "big", 900000),
	}
	sel, err := Select(notes, big.NewInt(900000), MaxInputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"big"}, sel.Commitments())
}

func TestSelectTiesKeepSourceOrder(t *testing.T) {
	notes := []note.Note{
		newNote(t, "first", 500000),
		newNote(t, "second", 500000),
		newNote(t, "third", 500000),
	}
	sel, err := Select(notes, big.NewInt(1000000), MaxInputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, sel.Commitments())
}

func TestSelectExactCover(t *testing.T) {
	notes := []note.Note{newNote(t, "a", 500000)}
	sel, err := Select(notes, big.NewInt(500000), MaxInputs)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500000), sel.Total)
}

func TestSelectManyCandidates(t *testing.T) {
	var notes []note.Note
	for i := 0; i < 20; i++ {
		notes = append(notes, newNote(t, fmt.Sprintf("n%d", i), int64(10000*(i+1))))
	}
	// Largest two are 200000 and 190000.
	sel, err := Select(notes, big.NewInt(350000), MaxInputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"n19", "n18"}, sel.Commitments())
	assert.Equal(t, big.NewInt(390000), sel.Total)
}
