package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	config "github.com/evmstream/processor/configs"
	"github.com/evmstream/processor/db"
)

type PostgresConnector struct {
	db  *sql.DB
	cfg *config.PostgresConfig
}

func NewPostgresConnector(cfg *config.PostgresConfig) (*PostgresConnector, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	// Default to "require" for security if SSL mode not specified
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
		log.Info().Msg("No SSL mode specified, defaulting to 'require' for secure connection")
	}
	connStr += fmt.Sprintf(" sslmode=%s", sslMode)

	if cfg.ConnectTimeout > 0 {
		connStr += fmt.Sprintf(" connect_timeout=%d", cfg.ConnectTimeout)
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresConnector{
		db:  conn,
		cfg: cfg,
	}, nil
}

func (p *PostgresConnector) Connect() (int64, error) {
	if err := db.MigratePostgres(p.db); err != nil {
		return 0, fmt.Errorf("failed to bootstrap progress schema: %w", err)
	}

	var height int64
	err := p.db.QueryRow(`SELECT height FROM processor_progress WHERE id = 1`).Scan(&height)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read persisted height: %w", err)
	}
	return height, nil
}

// Transact hands the handler a *sql.Tx; everything the handler writes commits
// or rolls back as one unit.
func (p *PostgresConnector) Transact(from int64, to int64, fn func(store Store) error) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to open transaction for blocks %d-%d: %w", from, to, err)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error().Err(rollbackErr).Msgf("Failed to roll back transaction for blocks %d-%d", from, to)
		}
		return err
	}

	return tx.Commit()
}

func (p *PostgresConnector) Advance(height int64) error {
	query := `INSERT INTO processor_progress (id, height)
	          VALUES (1, $1)
	          ON CONFLICT (id)
	          DO UPDATE SET height = EXCLUDED.height, updated_at = NOW()`

	_, err := p.db.Exec(query, height)
	return err
}

func (p *PostgresConnector) Close() error {
	return p.db.Close()
}
