// Package wallet drives confidential transfers against a remote Payy
// rollup node: it owns the note ledger, selects and leases inputs, has the
// node prove and accept the transfer, and finalizes the local ledger.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/payy-network/payy-wallet/database"
	"github.com/payy-network/payy-wallet/ledger"
	"github.com/payy-network/payy-wallet/note"
	"github.com/payy-network/payy-wallet/rpc"
	"github.com/payy-network/payy-wallet/txrecords"
)

// Config is everything a session needs. There is no ambient global state:
// the session handle is constructed once at startup and passed around.
type Config struct {
	NodeURL   string
	SecretKey string
	Token     string
	DBPath    string
	Logger    *logrus.Logger
}

// Session is the wallet handle the UI talks to.
type Session struct {
	db      *database.DB
	ledger  *ledger.Ledger
	records *txrecords.Store
	client  *rpc.Client
	secret  string
	token   string
	logger  *logrus.Entry
}

func NewSession(cfg Config) (*Session, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("wallet secret key is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	entry := log.WithField("component", "wallet")

	db, err := database.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	encKey := database.DeriveKey([]byte(cfg.SecretKey))
	led, err := ledger.Open(db, encKey)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Session{
		db:      db,
		ledger:  led,
		records: txrecords.NewStore(db, encKey),
		client:  rpc.NewClient(cfg.NodeURL, log.WithField("component", "rpc")),
		secret:  cfg.SecretKey,
		token:   cfg.Token,
		logger:  entry,
	}, nil
}

func (s *Session) Close() error {
	return s.db.Close()
}

// Ledger exposes the note ledger, mainly so the UI can render note-level
// detail and so incoming payments can be recorded.
func (s *Session) Ledger() *ledger.Ledger {
	return s.ledger
}

// Balance returns the spendable and pending-locked totals in micro-units.
func (s *Session) Balance() (spendable, pending *big.Int, err error) {
	return s.ledger.Balance()
}

// History returns the transfer history, oldest first.
func (s *Session) History() ([]txrecords.TxRecord, error) {
	return s.records.All()
}

// Address asks the node for this wallet's shielded address.
func (s *Session) Address(ctx context.Context) (string, error) {
	return s.client.DeriveAddress(ctx, s.secret)
}

// NodeHeight reports the node's block height. Gated by the read-path
// circuit breaker; a down backend answers rpc.ErrBreakerOpen instead of
// timing out on every refresh.
func (s *Session) NodeHeight(ctx context.Context) (uint64, error) {
	return s.client.Height(ctx)
}

// Claim records an incoming note. The commitment is computed by the node
// from the note's plaintext fields, then the note is added to the ledger
// and an In record appended to the history.
func (s *Session) Claim(ctx context.Context, address, psi string, value *big.Int, source string) error {
	valueHex, err := note.EncodeValue(value)
	if err != nil {
		return transferErr(KindValidation, false, err)
	}
	commitment, err := s.client.CalculateCommitment(ctx, rpc.NoteFields{
		Address: address,
		Psi:     psi,
		Value:   valueHex,
		Token:   s.token,
		Source:  source,
	})
	if err != nil {
		return s.remoteErr("calculate claim commitment", err)
	}

	if err := s.ledger.Add(note.Note{
		Address:    address,
		Psi:        psi,
		Value:      valueHex,
		Token:      s.token,
		Source:     source,
		Commitment: commitment,
	}); err != nil {
		return transferErr(KindStorage, true, err)
	}

	if err := s.records.Append(txrecords.TxRecord{
		Direction: txrecords.In,
		Amount:    valueHex,
		Token:     s.token,
		Recipient: address,
	}); err != nil {
		// History is display enrichment; the note itself is safe.
		s.logger.WithError(err).Warn("claimed note but could not append history record")
	}
	return nil
}
