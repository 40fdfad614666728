package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	config "github.com/evmstream/processor/configs"
)

var badgerProgressKey = []byte("progress:height")

type BadgerConnector struct {
	db *badger.DB
}

func NewBadgerConnector(cfg *config.BadgerConfig) (*BadgerConnector, error) {
	path := cfg.Path
	if path == "" {
		path = filepath.Join(os.TempDir(), "processor-progress-badger")
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger's internal logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opened badger progress store")
	return &BadgerConnector{db: db}, nil
}

func (bc *BadgerConnector) Connect() (int64, error) {
	var height int64 = -1
	err := bc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerProgressKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt progress value of %d bytes", len(val))
			}
			height = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read persisted height: %w", err)
	}
	return height, nil
}

// Transact hands the handler a *badger.Txn inside an update transaction.
// Badger commits on return and discards when the handler fails.
func (bc *BadgerConnector) Transact(from int64, to int64, fn func(store Store) error) error {
	var handlerErr error
	err := bc.db.Update(func(txn *badger.Txn) error {
		handlerErr = fn(txn)
		return handlerErr
	})
	if err != nil {
		if err == handlerErr {
			return err
		}
		return fmt.Errorf("failed to commit blocks %d-%d: %w", from, to, err)
	}
	return nil
}

func (bc *BadgerConnector) Advance(height int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	return bc.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerProgressKey, buf[:])
	})
}

func (bc *BadgerConnector) Close() error {
	return bc.db.Close()
}
