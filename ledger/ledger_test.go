package ledger

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payy-network/payy-wallet/coinselect"
	"github.com/payy-network/payy-wallet/database"
	"github.com/payy-network/payy-wallet/note"
)

func openLedger(t *testing.T) (*Ledger, *database.DB) {
	t.Helper()
	db, err := database.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l, err := Open(db, database.DeriveKey([]byte("test secret")))
	require.NoError(t, err)
	return l, db
}

func testNote(t *testing.T, commitment string, value int64) note.Note {
	t.Helper()
	hex, err := note.EncodeValue(big.NewInt(value))
	require.NoError(t, err)
	return note.Note{
		Address:    "addr",
		Psi:        "psi-" + commitment,
		Value:      hex,
		Token:      "USDC",
		Source:     "src",
		Commitment: commitment,
	}
}

func TestAddAndUnspent(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 700000)))
	require.NoError(t, l.Add(testNote(t, "c2", 300000)))

	unspent := l.Unspent()
	require.Len(t, unspent, 2)
	assert.Equal(t, "c1", unspent[0].Commitment)
	assert.False(t, unspent[0].ReceivedAt.IsZero())
}

func TestAddForcesFlagsClear(t *testing.T) {
	l, _ := openLedger(t)

	n := testNote(t, "c1", 100)
	n.Spent = true
	n.Pending = true
	require.NoError(t, l.Add(n))

	require.Len(t, l.Unspent(), 1)
}

func TestSpendIsTerminal(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 100)))
	require.NoError(t, l.Spend("c1"))
	assert.Empty(t, l.Unspent())

	// Unmarking pending must never resurrect a spent note.
	require.NoError(t, l.UnmarkPending(uuid.New(), []string{"c1"}))
	assert.Empty(t, l.Unspent())

	all := l.All()
	require.Len(t, all, 1)
	assert.True(t, all[0].Spent)
	assert.False(t, all[0].Pending)
}

func TestSpendUnknownCommitmentIsNoop(t *testing.T) {
	l, _ := openLedger(t)
	require.NoError(t, l.Add(testNote(t, "c1", 100)))
	require.NoError(t, l.Spend("nope"))
	assert.Len(t, l.Unspent(), 1)
}

func TestPendingLease(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 700000)))
	require.NoError(t, l.Add(testNote(t, "c2", 300000)))

	lease := uuid.New()
	require.NoError(t, l.MarkPending(lease, []string{"c1"}))

	unspent := l.Unspent()
	require.Len(t, unspent, 1)
	assert.Equal(t, "c2", unspent[0].Commitment)

	all := l.All()
	assert.Equal(t, &lease, all[0].LockedBy)

	require.NoError(t, l.UnmarkPending(lease, []string{"c1"}))
	assert.Len(t, l.Unspent(), 2)
}

func TestMarkPendingSameLeaseIsIdempotent(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 100)))
	lease := uuid.New()
	require.NoError(t, l.MarkPending(lease, []string{"c1"}))
	require.NoError(t, l.MarkPending(lease, []string{"c1"}))

	all := l.All()
	require.Len(t, all, 1)
	assert.Equal(t, &lease, all[0].LockedBy)
}

func TestMarkPendingRejectsForeignLease(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 100)))
	first := uuid.New()
	require.NoError(t, l.MarkPending(first, []string{"c1"}))

	// A second transfer attempt must not silently ride on the first
	// attempt's lease.
	second := uuid.New()
	err := l.MarkPending(second, []string{"c1"})
	assert.ErrorIs(t, err, ErrAlreadyLeased)

	all := l.All()
	require.Len(t, all, 1)
	assert.Equal(t, &first, all[0].LockedBy)
}

func TestUnmarkPendingIgnoresForeignLease(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 100)))
	holder := uuid.New()
	require.NoError(t, l.MarkPending(holder, []string{"c1"}))

	// Another attempt's compensating unlock must not free the holder's
	// inputs mid-flight.
	require.NoError(t, l.UnmarkPending(uuid.New(), []string{"c1"}))
	assert.Empty(t, l.Unspent())
	all := l.All()
	require.Len(t, all, 1)
	assert.True(t, all[0].Pending)
	assert.Equal(t, &holder, all[0].LockedBy)

	require.NoError(t, l.UnmarkPending(holder, []string{"c1"}))
	assert.Len(t, l.Unspent(), 1)
}

func TestUnmarkPendingIsIdempotent(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 100)))
	lease := uuid.New()
	require.NoError(t, l.MarkPending(lease, []string{"c1"}))

	require.NoError(t, l.UnmarkPending(lease, []string{"c1"}))
	before := l.All()
	require.NoError(t, l.UnmarkPending(lease, []string{"c1"}))
	assert.Equal(t, before, l.All())
}

func TestSelectAndLease(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 700000)))
	require.NoError(t, l.Add(testNote(t, "c2", 300000)))

	first := uuid.New()
	sel, err := l.SelectAndLease(first, big.NewInt(500000), coinselect.MaxInputs)
	require.NoError(t, err)
	require.Len(t, sel.Notes, 1)
	assert.Equal(t, "c1", sel.Notes[0].Commitment)

	// The winner's inputs are out of reach before any other attempt can
	// look at the ledger.
	_, err = l.SelectAndLease(uuid.New(), big.NewInt(500000), coinselect.MaxInputs)
	assert.ErrorIs(t, err, coinselect.ErrInsufficientFunds)

	unspent := l.Unspent()
	require.Len(t, unspent, 1)
	assert.Equal(t, "c2", unspent[0].Commitment)
}

func TestBalanceSplitsPending(t *testing.T) {
	l, _ := openLedger(t)

	require.NoError(t, l.Add(testNote(t, "c1", 700000)))
	require.NoError(t, l.Add(testNote(t, "c2", 300000)))
	require.NoError(t, l.MarkPending(uuid.New(), []string{"c2"}))

	spendable, pending, err := l.Balance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(700000), spendable)
	assert.Equal(t, big.NewInt(300000), pending)

	// Total unspent == spendable + pending.
	require.NoError(t, l.Spend("c1"))
	spendable, pending, err = l.Balance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), spendable)
	assert.Equal(t, big.NewInt(300000), pending)
}

func TestClear(t *testing.T) {
	l, _ := openLedger(t)
	require.NoError(t, l.Add(testNote(t, "c1", 100)))
	require.NoError(t, l.Clear())
	assert.Empty(t, l.All())
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := t.TempDir()
	encKey := database.DeriveKey([]byte("test secret"))

	db, err := database.New(path)
	require.NoError(t, err)
	l, err := Open(db, encKey)
	require.NoError(t, err)

	require.NoError(t, l.Add(testNote(t, "c1", 700000)))
	require.NoError(t, l.MarkPending(uuid.New(), []string{"c1"}))
	require.NoError(t, db.Close())

	db, err = database.New(path)
	require.NoError(t, err)
	defer db.Close()
	l, err = Open(db, encKey)
	require.NoError(t, err)

	// The lease survives a restart: an in-flight transfer at crash time
	// keeps its inputs locked rather than risking a double spend.
	assert.Empty(t, l.Unspent())
	all := l.All()
	require.Len(t, all, 1)
	assert.True(t, all[0].Pending)
}

func TestMutationRollsBackOnStorageFailure(t *testing.T) {
	db, err := database.New(t.TempDir())
	require.NoError(t, err)

	l, err := Open(db, database.DeriveKey([]byte("test secret")))
	require.NoError(t, err)
	require.NoError(t, l.Add(testNote(t, "c1", 100)))

	// Closing the store makes every write fail; the in-memory view must
	// stay untouched.
	require.NoError(t, db.Close())

	err = l.Add(testNote(t, "c2", 200))
	assert.ErrorIs(t, err, ErrStorage)
	assert.Len(t, l.Unspent(), 1)

	err = l.Spend("c1")
	assert.ErrorIs(t, err, ErrStorage)
	assert.Len(t, l.Unspent(), 1)

	err = l.MarkPending(uuid.New(), []string{"c1"})
	assert.ErrorIs(t, err, ErrStorage)
	assert.Len(t, l.Unspent(), 1)
}
