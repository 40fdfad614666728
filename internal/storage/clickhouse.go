package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	config "github.com/evmstream/processor/configs"
	"github.com/evmstream/processor/db"
)

type ClickHouseConnector struct {
	conn clickhouse.Conn
	cfg  *config.ClickhouseConfig
}

func NewClickHouseConnector(cfg *config.ClickhouseConfig) (*ClickHouseConnector, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
			Database: cfg.Database,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	log.Debug().Msg("Connected to Clickhouse")
	return &ClickHouseConnector{
		conn: conn,
		cfg:  cfg,
	}, nil
}

func (c *ClickHouseConnector) Connect() (int64, error) {
	ctx := context.Background()
	if err := db.MigrateClickhouse(ctx, c.conn); err != nil {
		return 0, fmt.Errorf("failed to bootstrap progress schema: %w", err)
	}

	// ReplacingMergeTree deduplicates in the background, so read through FINAL.
	var height int64
	var found uint8
	query := `SELECT count() > 0, coalesce(max(height), 0) FROM processor_progress FINAL WHERE id = 1`
	if err := c.conn.QueryRow(ctx, query).Scan(&found, &height); err != nil {
		return 0, fmt.Errorf("failed to read persisted height: %w", err)
	}
	if found == 0 {
		return -1, nil
	}
	return height, nil
}

// Transact hands the handler the raw clickhouse connection. Clickhouse has no
// multi-statement transactions; each insert is atomic on its own and replays
// after a crash are absorbed by ReplacingMergeTree ordering.
func (c *ClickHouseConnector) Transact(from int64, to int64, fn func(store Store) error) error {
	if err := fn(c.conn); err != nil {
		return err
	}
	return nil
}

func (c *ClickHouseConnector) Advance(height int64) error {
	query := `INSERT INTO processor_progress (id, height) VALUES (1, ?)`
	if err := c.conn.Exec(context.Background(), query, height); err != nil {
		return fmt.Errorf("failed to persist height %d: %w", height, err)
	}
	return nil
}

func (c *ClickHouseConnector) Close() error {
	return c.conn.Close()
}
