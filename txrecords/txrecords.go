// Package txrecords keeps the wallet's transfer history.
package txrecords

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/payy-network/payy-wallet/database"
)

// Direction is an enum which tells us whether a transaction is
// incoming or outgoing.
type Direction uint8

const (
	In Direction = iota
	Out
)

type TxRecord struct {
	Direction Direction `json:"direction"`
	Timestamp int64     `json:"timestamp"`
	Amount    string    `json:"amount"` // micro-units, hex
	Token     string    `json:"token"`
	Recipient string    `json:"recipient"`
	TxnHash   string    `json:"txn_hash"`
	Height    uint64    `json:"height"`
}

// Store persists the history through the wallet database, full blob per
// write like the note collection.
type Store struct {
	mu     sync.Mutex
	db     *database.DB
	encKey []byte
}

func NewStore(db *database.DB, encryptionKey []byte) *Store {
	return &Store{db: db, encKey: encryptionKey}
}

// Append stamps and persists a record.
func (s *Store) Append(r TxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	r.Timestamp = time.Now().Unix()
	records = append(records, r)

	blob, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.db.PutTxRecords(s.encKey, blob)
}

// All returns the history, oldest first.
func (s *Store) All() ([]TxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]TxRecord, error) {
	blob, err := s.db.FetchTxRecords(s.encKey)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	var records []TxRecord
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("corrupt tx history: %w", err)
	}
	return records, nil
}
