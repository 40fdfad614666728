package db

import (
	"context"
	"database/sql"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"
)

// The progress schema is a single table per backend, so the connectors run
// their own DDL on connect instead of driving an external migration engine.

const postgresProgressDDL = `
CREATE TABLE IF NOT EXISTS processor_progress (
	id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	height BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const clickhouseProgressDDL = `
CREATE TABLE IF NOT EXISTS processor_progress (
	id UInt8,
	height Int64,
	updated_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY id`

func MigratePostgres(conn *sql.DB) error {
	if _, err := conn.Exec(postgresProgressDDL); err != nil {
		return err
	}
	log.Debug().Msg("Postgres progress schema is up to date")
	return nil
}

func MigrateClickhouse(ctx context.Context, conn clickhouse.Conn) error {
	if err := conn.Exec(ctx, clickhouseProgressDDL); err != nil {
		return err
	}
	log.Debug().Msg("Clickhouse progress schema is up to date")
	return nil
}
