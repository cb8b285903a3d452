package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/payy-network/payy-wallet/coinselect"
	"github.com/payy-network/payy-wallet/ledger"
	"github.com/payy-network/payy-wallet/note"
	"github.com/payy-network/payy-wallet/rpc"
	"github.com/payy-network/payy-wallet/transactions"
	"github.com/payy-network/payy-wallet/txrecords"
)

// Receipt is what a successful transfer returns to the UI.
type Receipt struct {
	TxnHash          string
	Height           uint64
	Amount           *big.Int
	Change           *big.Int
	ChangeCommitment string
	Inputs           []string // consumed note commitments
}

// TransferDecimal is the UI-facing entry point: the amount is a decimal
// currency string ("0.50") converted exactly to micro-units.
func (s *Session) TransferDecimal(ctx context.Context, recipient, amount string) (*Receipt, error) {
	v, err := note.ParseAmount(amount)
	if err != nil {
		return nil, transferErr(KindValidation, false, err)
	}
	return s.Transfer(ctx, recipient, v)
}

// Transfer builds, proves, submits and finalizes one confidential transfer.
//
// The selected input notes are leased (marked pending) synchronously before
// the first network call; any failure between the lease and ledger
// finalization releases it. After the node has accepted the transaction the
// lease is never released: the inputs are spent on-chain, and a local
// storage failure at that point must not make them selectable again.
func (s *Session) Transfer(ctx context.Context, recipient string, amount *big.Int) (*Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, transferErr(KindValidation, false, note.ErrInvalidAmount)
	}
	to, err := note.NormalizeAddress(recipient)
	if err != nil {
		return nil, transferErr(KindValidation, false, err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"op":     "transfer",
		"amount": amount.String(),
	})

	// Selection and lease happen in one ledger critical section, before
	// any suspension point. This is the only thing stopping a second
	// transfer on this device from picking the same notes.
	attempt := uuid.New()
	sel, err := s.ledger.SelectAndLease(attempt, amount, coinselect.MaxInputs)
	switch {
	case errors.Is(err, coinselect.ErrInsufficientFunds):
		return nil, transferErr(KindInsufficientFunds, false, err)
	case errors.Is(err, coinselect.ErrTooManyInputs):
		return nil, transferErr(KindTooManyInputs, false, err)
	case errors.Is(err, ledger.ErrStorage):
		return nil, transferErr(KindStorage, true, err)
	case err != nil:
		// A note whose stored value no longer decodes. Not the store's
		// fault and not fixable by retrying.
		return nil, transferErr(KindValidation, false, fmt.Errorf("ledger holds an undecodable note: %w", err))
	}
	commitments := sel.Commitments()
	log = log.WithField("attempt", attempt.String())
	log.WithField("inputs", len(commitments)).Debug("input notes leased")

	finalized := false
	defer func() {
		if finalized {
			return
		}
		if uerr := s.ledger.UnmarkPending(attempt, commitments); uerr != nil {
			log.WithError(uerr).Error("could not release input lease; notes stay locked until the store recovers")
		} else {
			log.Debug("input lease released")
		}
	}()

	// Merkle paths for every input, against the current root.
	paths, err := s.client.MerklePathsForNotes(ctx, commitments)
	if err != nil {
		return nil, s.remoteErr("fetch merkle paths", err)
	}
	pathFor := make(map[string][]string, len(paths.Paths))
	for _, p := range paths.Paths {
		if p.Found {
			pathFor[p.Commitment] = p.Path
		}
	}
	for _, c := range commitments {
		if _, ok := pathFor[c]; !ok {
			log.WithField("commitment", c).Warn("note not yet in merkle tree")
			return nil, transferErr(KindStaleState, true, fmt.Errorf("%w: %s", ErrNoteNotFound, c))
		}
	}

	sender, err := s.client.DeriveAddress(ctx, s.secret)
	if err != nil {
		return nil, s.remoteErr("derive sender address", err)
	}
	recipientPsi, err := s.client.GeneratePsi(ctx)
	if err != nil {
		return nil, s.remoteErr("generate recipient psi", err)
	}
	changePsi, err := s.client.GeneratePsi(ctx)
	if err != nil {
		return nil, s.remoteErr("generate change psi", err)
	}

	tx, change, err := transactions.Build(transactions.BuildParams{
		SecretKey:    s.secret,
		Root:         paths.Root,
		Inputs:       sel.Notes,
		Paths:        pathFor,
		Sender:       sender,
		Recipient:    to,
		Amount:       amount,
		Token:        s.token,
		RecipientPsi: recipientPsi,
		ChangePsi:    changePsi,
	})
	if err != nil {
		return nil, transferErr(KindValidation, false, err)
	}

	// The change commitment is computed before submission so finalization
	// needs no remote call after the transaction is irrevocably in.
	changeFields := tx.ChangeFields()
	changeCommitment, err := s.client.CalculateCommitment(ctx, changeFields)
	if err != nil {
		return nil, s.remoteErr("calculate change commitment", err)
	}

	log.Info("requesting transfer proof")
	snark, err := s.client.GenerateTransferProof(ctx, tx)
	if err != nil {
		return nil, s.remoteErr("generate proof", fmt.Errorf("%w: %w", ErrProofGeneration, err))
	}

	res, err := s.client.SubmitTransaction(ctx, snark)
	if err != nil {
		return nil, s.remoteErr("submit transaction", fmt.Errorf("%w: %w", ErrSubmission, err))
	}
	// Point of no return: the inputs are spent on-chain.
	finalized = true
	log.WithField("txn_hash", res.TxnHash).WithField("height", res.Height).Info("transfer accepted")

	for _, c := range commitments {
		if err := s.ledger.Spend(c); err != nil {
			return nil, transferErr(KindStorage, true,
				fmt.Errorf("transaction %s was accepted but spending inputs locally failed: %w", res.TxnHash, err))
		}
	}
	if err := s.ledger.Add(note.Note{
		Address:    changeFields.Address,
		Psi:        changeFields.Psi,
		Value:      changeFields.Value,
		Token:      changeFields.Token,
		Source:     changeFields.Source,
		Commitment: changeCommitment,
	}); err != nil {
		return nil, transferErr(KindStorage, true,
			fmt.Errorf("transaction %s was accepted but recording the change note failed: %w", res.TxnHash, err))
	}

	if err := s.records.Append(txrecords.TxRecord{
		Direction: txrecords.Out,
		Amount:    amountHexOrEmpty(amount),
		Token:     s.token,
		Recipient: to,
		TxnHash:   res.TxnHash,
		Height:    res.Height,
	}); err != nil {
		// Display enrichment only; the ledger is already consistent.
		log.WithError(err).Warn("could not append history record")
	}

	return &Receipt{
		TxnHash:          res.TxnHash,
		Height:           res.Height,
		Amount:           new(big.Int).Set(amount),
		Change:           change,
		ChangeCommitment: changeCommitment,
		Inputs:           commitments,
	}, nil
}

// remoteErr classifies a failed node call: transport failures are worth an
// immediate retry, node rejections are not.
func (s *Session) remoteErr(step string, err error) *TransferError {
	retryable := errors.Is(err, rpc.ErrUnreachable)
	return transferErr(KindRemote, retryable, fmt.Errorf("%s: %w", step, err))
}

func amountHexOrEmpty(v *big.Int) string {
	hex, err := note.EncodeValue(v)
	if err != nil {
		return ""
	}
	return hex
}
