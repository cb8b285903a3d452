package database

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// DB is the wallet's local secure store. Values are encrypted blobs; each
// logical collection (notes, tx records) lives under a single fixed key and
// is fully rewritten on every mutation.
type DB struct {
	storage *leveldb.DB
}

var (
	notesKey     = []byte("notes")
	txRecordsKey = []byte("txRecords")

	// Writes are flushed synchronously: a mutation that has returned must
	// survive a crash.
	writeOptions = &opt.WriteOptions{NoWriteMerge: false, Sync: true}
)

func New(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet cannot be used without database: %s", err)
	}
	return &DB{storage: db}, nil
}

// PutNotes encrypts and stores the full serialized note collection.
func (db *DB) PutNotes(encryptionKey, blob []byte) error {
	return db.putEncrypted(notesKey, encryptionKey, blob)
}

// FetchNotes returns the decrypted note collection, or (nil, nil) when the
// wallet has never stored one.
func (db *DB) FetchNotes(decryptionKey []byte) ([]byte, error) {
	return db.getEncrypted(notesKey, decryptionKey)
}

// PutTxRecords encrypts and stores the full transaction history.
func (db *DB) PutTxRecords(encryptionKey, blob []byte) error {
	return db.putEncrypted(txRecordsKey, encryptionKey, blob)
}

// FetchTxRecords returns the decrypted transaction history, or (nil, nil)
// when none has been stored.
func (db *DB) FetchTxRecords(decryptionKey []byte) ([]byte, error) {
	return db.getEncrypted(txRecordsKey, decryptionKey)
}

func (db *DB) putEncrypted(key, encryptionKey, plaintext []byte) error {
	encrypted, err := encrypt(plaintext, encryptionKey)
	if err != nil {
		return err
	}
	return db.storage.Put(key, encrypted, writeOptions)
}

func (db *DB) getEncrypted(key, decryptionKey []byte) ([]byte, error) {
	val, err := db.storage.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decrypt(val, decryptionKey)
}

func (db *DB) Put(key, value []byte) error {
	return db.storage.Put(key, value, writeOptions)
}

func (db *DB) Get(key []byte) ([]byte, error) {
	return db.storage.Get(key, nil)
}

func (db *DB) Delete(key []byte) error {
	return db.storage.Delete(key, writeOptions)
}

func (db *DB) Close() error {
	return db.storage.Close()
}
