package ports

import (
	"context"
	"time"

	"spotbot/internal/domain"
)

// TradeRepository stores trade records. Save is an upsert: it assigns an ID
// on first save and overwrites on subsequent saves.
type TradeRepository interface {
	Save(ctx context.Context, trade *domain.Trade) (int64, error)
	FindByID(ctx context.Context, id int64) (*domain.Trade, error)
	// FindAll returns every trade ordered by entry time descending.
	FindAll(ctx context.Context) ([]*domain.Trade, error)
	// FindOpen returns every trade with status OPEN.
	FindOpen(ctx context.Context) ([]*domain.Trade, error)
	// DeleteClosed purges closed trade records in bulk.
	DeleteClosed(ctx context.Context) (int64, error)
}

// SettingsRepository stores the BotSettings singleton.
type SettingsRepository interface {
	// Get returns the settings record, or defaults if none is persisted yet.
	Get(ctx context.Context) (*domain.BotSettings, error)
	Save(ctx context.Context, settings *domain.BotSettings) error
}

// SnapshotRepository stores balance snapshots.
type SnapshotRepository interface {
	Save(ctx context.Context, snap *domain.BalanceSnapshot) error
	// FindSince returns snapshots taken at or after the given time,
	// oldest first.
	FindSince(ctx context.Context, since time.Time) ([]*domain.BalanceSnapshot, error)
}
