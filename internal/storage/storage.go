package storage

import (
	"context"

	"liquidityDesk/internal/model"
)

// HistoryStore persists settled transactions.
type HistoryStore interface {
	PutHistory(ctx context.Context, record model.HistoryRecord) error
	// ListHistory returns records of account, newest first. A limit of zero
	// or less returns everything.
	ListHistory(ctx context.Context, account string, limit int) ([]model.HistoryRecord, error)
}
