package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityDesk/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tx_history (
	chain_id      BIGINT      NOT NULL,
	tx_hash       TEXT        NOT NULL,
	account       TEXT        NOT NULL,
	kind          TEXT        NOT NULL,
	token0_symbol TEXT        NOT NULL DEFAULT '',
	token1_symbol TEXT        NOT NULL DEFAULT '',
	amount0       TEXT        NOT NULL DEFAULT '',
	amount1       TEXT        NOT NULL DEFAULT '',
	position_id   TEXT        NOT NULL DEFAULT '',
	status        TEXT        NOT NULL,
	ts            TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, tx_hash)
);
CREATE INDEX IF NOT EXISTS tx_history_account_ts ON tx_history (lower(account), ts DESC);
`

const upsertHistorySQL = `
	INSERT INTO tx_history (
		chain_id, tx_hash, account, kind, token0_symbol, token1_symbol,
		amount0, amount1, position_id, status, ts, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
	ON CONFLICT (chain_id, tx_hash)
	DO UPDATE SET
		status = EXCLUDED.status,
		ts = EXCLUDED.ts,
		updated_at = now()
`

// Store provides Postgres persistence for transaction history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the history table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutHistory inserts a record or refreshes its status.
func (s *Store) PutHistory(ctx context.Context, record model.HistoryRecord) error {
	_, err := s.pool.Exec(ctx, upsertHistorySQL, historyArgs(record)...)
	return err
}

// PutHistoryBatch upserts records in one round trip.
func (s *Store) PutHistoryBatch(ctx context.Context, records []model.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(upsertHistorySQL, historyArgs(record)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListHistory returns records of account, newest first.
func (s *Store) ListHistory(ctx context.Context, account string, limit int) ([]model.HistoryRecord, error) {
	query := `
		SELECT chain_id, tx_hash, account, kind, token0_symbol, token1_symbol,
			amount0, amount1, position_id, status, ts
		FROM tx_history
		WHERE ($1 = '' OR lower(account) = $1)
		ORDER BY ts DESC`
	args := []interface{}{strings.ToLower(account)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var (
			record  model.HistoryRecord
			chainID int64
			kind    string
		)
		if err := rows.Scan(
			&chainID,
			&record.TxHash,
			&record.Account,
			&kind,
			&record.Token0Symbol,
			&record.Token1Symbol,
			&record.Amount0,
			&record.Amount1,
			&record.PositionID,
			&record.Status,
			&record.Timestamp,
		); err != nil {
			return nil, err
		}
		record.ChainID = uint64(chainID)
		record.Kind = model.IntentKind(kind)
		records = append(records, record)
	}
	return records, rows.Err()
}

func historyArgs(record model.HistoryRecord) []interface{} {
	return []interface{}{
		int64(record.ChainID),
		record.TxHash,
		record.Account,
		string(record.Kind),
		record.Token0Symbol,
		record.Token1Symbol,
		record.Amount0,
		record.Amount1,
		record.PositionID,
		record.Status,
		record.Timestamp,
	}
}
