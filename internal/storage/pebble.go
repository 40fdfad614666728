package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"

	config "github.com/evmstream/processor/configs"
)

var pebbleProgressKey = []byte("progress:height")

type PebbleConnector struct {
	db *pebble.DB
}

func NewPebbleConnector(cfg *config.PebbleConfig) (*PebbleConnector, error) {
	path := cfg.Path
	if path == "" {
		path = filepath.Join(os.TempDir(), "processor-progress-pebble")
	}

	opts := &pebble.Options{}
	opts.Logger = nil

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opened pebble progress store")
	return &PebbleConnector{db: db}, nil
}

func (pc *PebbleConnector) Connect() (int64, error) {
	val, closer, err := pc.db.Get(pebbleProgressKey)
	if err == pebble.ErrNotFound {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read persisted height: %w", err)
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt progress value of %d bytes", len(val))
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}

// Transact hands the handler a *pebble.Batch. The batch commits with a
// synced WAL write after the handler returns; a handler error drops it.
func (pc *PebbleConnector) Transact(from int64, to int64, fn func(store Store) error) error {
	batch := pc.db.NewBatch()

	if err := fn(batch); err != nil {
		batch.Close()
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit blocks %d-%d: %w", from, to, err)
	}
	return nil
}

func (pc *PebbleConnector) Advance(height int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	return pc.db.Set(pebbleProgressKey, buf[:], pebble.Sync)
}

func (pc *PebbleConnector) Close() error {
	return pc.db.Close()
}
