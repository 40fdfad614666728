package storage

import (
	"fmt"

	config "github.com/evmstream/processor/configs"
)

// Store is the opaque handle passed to the user handler inside a progress
// transaction. Its concrete type depends on the configured backend (*sql.Tx
// for postgres, *badger.Txn for badger, and so on); the processor never looks
// inside it.
type Store interface{}

// IProgressStorage tracks how far the processor has advanced. Connect returns
// the last persisted height, or -1 when nothing was persisted yet. Transact
// wraps the user handler atomically; Advance commits progress only.
type IProgressStorage interface {
	Connect() (int64, error)
	Transact(from int64, to int64, fn func(store Store) error) error
	Advance(height int64) error
	Close() error
}

func NewProgressConnector(cfg *config.StorageConnectionConfig) (IProgressStorage, error) {
	return NewConnector[IProgressStorage](cfg)
}

func NewConnector[T any](cfg *config.StorageConnectionConfig) (T, error) {
	var conn interface{}
	var err error
	if cfg.Clickhouse != nil {
		conn, err = NewClickHouseConnector(cfg.Clickhouse)
	} else if cfg.Postgres != nil {
		conn, err = NewPostgresConnector(cfg.Postgres)
	} else if cfg.Redis != nil {
		conn, err = NewRedisConnector(cfg.Redis)
	} else if cfg.Pebble != nil {
		conn, err = NewPebbleConnector(cfg.Pebble)
	} else if cfg.Badger != nil {
		conn, err = NewBadgerConnector(cfg.Badger)
	} else {
		conn, err = NewMemoryConnector(&config.MemoryConfig{})
	}

	if err != nil {
		return *new(T), err
	}

	typedConn, ok := conn.(T)
	if !ok {
		return *new(T), fmt.Errorf("connector does not implement the required interface")
	}

	return typedConn, nil
}
