package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spotbot/internal/domain"
	"spotbot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository owns the SQLite connection and hands out the per-aggregate
// stores. The three store interfaces all declare a Save method, so each is
// implemented by its own view type sharing this connection.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/spotbot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode: readers do not block the writer goroutines.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; a single Go connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT 0,
		quantity REAL NOT NULL,
		notional_usdt REAL NOT NULL,
		best_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		profit_usdt REAL DEFAULT 0,
		status TEXT NOT NULL,
		close_reason TEXT DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS bot_settings (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		assets TEXT NOT NULL,
		risk_percent REAL NOT NULL,
		max_open_positions INTEGER NOT NULL,
		baseline_equity REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balance_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		balance REAL NOT NULL,
		snapshot_time TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_asset_status ON trades (asset, status);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);
	CREATE INDEX IF NOT EXISTS idx_balance_history_time ON balance_history (snapshot_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// Trades returns the trade store backed by this connection.
func (r *Repository) Trades() ports.TradeRepository { return &tradeRepo{r} }

// Settings returns the settings store backed by this connection.
func (r *Repository) Settings() ports.SettingsRepository { return &settingsRepo{r} }

// Snapshots returns the balance snapshot store backed by this connection.
func (r *Repository) Snapshots() ports.SnapshotRepository { return &snapshotRepo{r} }

// --- TradeRepository Implementation ---

type tradeRepo struct {
	r *Repository
}

const tradeColumns = `id, asset, direction, entry_price, COALESCE(exit_price, 0), quantity, notional_usdt,
	best_price, stop_loss, entry_time, exit_time, COALESCE(profit_usdt, 0), status, close_reason`

// Save inserts the trade when it has no ID yet, otherwise overwrites the
// existing row. The assigned ID is returned and set on the trade.
func (t *tradeRepo) Save(ctx context.Context, trade *domain.Trade) (int64, error) {
	if trade.ID == 0 {
		return t.insert(ctx, trade)
	}
	return trade.ID, t.update(ctx, trade)
}

func (t *tradeRepo) insert(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (asset, direction, entry_price, exit_price, quantity, notional_usdt,
	                    best_price, stop_loss, entry_time, exit_time, profit_usdt, status, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := t.r.db.ExecContext(ctx, query,
		trade.Asset, trade.Direction, trade.EntryPrice, trade.ExitPrice, trade.Quantity, trade.NotionalUSDT,
		trade.BestPrice, trade.StopLoss, trade.EntryTime, nullTime(trade.ExitTime), trade.ProfitUSDT,
		trade.Status, nullString(string(trade.CloseReason)))
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for %s: %w: %w", trade.Asset, ports.ErrQueryFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Asset, err)
	}
	trade.ID = id
	t.r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "asset": trade.Asset, "status": trade.Status})
	return id, nil
}

func (t *tradeRepo) update(ctx context.Context, trade *domain.Trade) error {
	const query = `
	UPDATE trades
	SET asset = ?, direction = ?, entry_price = ?, exit_price = ?, quantity = ?, notional_usdt = ?,
	    best_price = ?, stop_loss = ?, entry_time = ?, exit_time = ?, profit_usdt = ?, status = ?, close_reason = ?
	WHERE id = ?`

	result, err := t.r.db.ExecContext(ctx, query,
		trade.Asset, trade.Direction, trade.EntryPrice, trade.ExitPrice, trade.Quantity, trade.NotionalUSDT,
		trade.BestPrice, trade.StopLoss, trade.EntryTime, nullTime(trade.ExitTime), trade.ProfitUSDT,
		trade.Status, nullString(string(trade.CloseReason)),
		trade.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade ID %d: %w: %w", trade.ID, ports.ErrUpdateFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade ID %d: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %d not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	t.r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": trade.ID, "asset": trade.Asset, "status": trade.Status})
	return nil
}

// FindByID retrieves a trade by its unique ID. Returns (nil, nil) when no
// such trade exists.
func (t *tradeRepo) FindByID(ctx context.Context, id int64) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`
	row := t.r.db.QueryRowContext(ctx, query, id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trade by ID %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return trade, nil
}

// FindAll retrieves every trade, newest entries first.
func (t *tradeRepo) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY entry_time DESC`
	return t.queryTrades(ctx, query)
}

// FindOpen retrieves every trade with status OPEN, oldest entries first.
func (t *tradeRepo) FindOpen(ctx context.Context) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE status = ? ORDER BY entry_time ASC`
	return t.queryTrades(ctx, query, domain.StatusOpen)
}

func (t *tradeRepo) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := t.r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// DeleteClosed purges closed trade records and reports how many were removed.
func (t *tradeRepo) DeleteClosed(ctx context.Context) (int64, error) {
	result, err := t.r.db.ExecContext(ctx, `DELETE FROM trades WHERE status = ?`, domain.StatusClosed)
	if err != nil {
		return 0, fmt.Errorf("failed to delete closed trades: %w: %w", ports.ErrQueryFailed, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for closed-trade purge: %w", err)
	}
	t.r.logger.Info(ctx, "Purged closed trades", map[string]interface{}{"deleted": deleted})
	return deleted, nil
}

// --- SettingsRepository Implementation ---

type settingsRepo struct {
	r *Repository
}

// Get returns the persisted settings singleton, or the defaults (without
// persisting them) when none exists yet.
func (s *settingsRepo) Get(ctx context.Context) (*domain.BotSettings, error) {
	const query = `
	SELECT id, state, assets, risk_percent, max_open_positions, baseline_equity
	FROM bot_settings WHERE id = ?`

	out := &domain.BotSettings{}
	var state string
	err := s.r.db.QueryRowContext(ctx, query, domain.SettingsID).Scan(
		&out.ID, &state, &out.Assets, &out.RiskPercent, &out.MaxOpenPositions, &out.BaselineEquity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return nil, fmt.Errorf("failed to query bot settings: %w: %w", ports.ErrQueryFailed, err)
	}
	out.State = domain.OperationalState(state)
	return out, nil
}

// Save upserts the settings singleton.
func (s *settingsRepo) Save(ctx context.Context, settings *domain.BotSettings) error {
	const query = `
	INSERT INTO bot_settings (id, state, assets, risk_percent, max_open_positions, baseline_equity)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		state = excluded.state,
		assets = excluded.assets,
		risk_percent = excluded.risk_percent,
		max_open_positions = excluded.max_open_positions,
		baseline_equity = excluded.baseline_equity`

	if settings.ID == "" {
		settings.ID = domain.SettingsID
	}
	_, err := s.r.db.ExecContext(ctx, query,
		settings.ID, settings.State, settings.Assets, settings.RiskPercent,
		settings.MaxOpenPositions, settings.BaselineEquity)
	if err != nil {
		return fmt.Errorf("failed to save bot settings: %w: %w", ports.ErrUpdateFailed, err)
	}
	s.r.logger.Debug(ctx, "Bot settings saved", map[string]interface{}{"state": settings.State, "assets": settings.Assets})
	return nil
}

// --- SnapshotRepository Implementation ---

type snapshotRepo struct {
	r *Repository
}

// Save persists a balance snapshot.
func (s *snapshotRepo) Save(ctx context.Context, snap *domain.BalanceSnapshot) error {
	const query = `INSERT INTO balance_history (balance, snapshot_time) VALUES (?, ?)`
	result, err := s.r.db.ExecContext(ctx, query, snap.Balance, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert balance snapshot: %w: %w", ports.ErrQueryFailed, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		snap.ID = id
	}
	return nil
}

// FindSince returns snapshots taken at or after the given time, oldest first.
func (s *snapshotRepo) FindSince(ctx context.Context, since time.Time) ([]*domain.BalanceSnapshot, error) {
	const query = `
	SELECT id, balance, snapshot_time FROM balance_history
	WHERE snapshot_time >= ? ORDER BY snapshot_time ASC`

	rows, err := s.r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance snapshots: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	snaps := make([]*domain.BalanceSnapshot, 0)
	for rows.Next() {
		snap := &domain.BalanceSnapshot{}
		if err := rows.Scan(&snap.ID, &snap.Balance, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan balance snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance snapshot rows: %w", err)
	}
	return snaps, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	trade := &domain.Trade{}
	var direction, status string
	var exitTime sql.NullTime
	var closeReason sql.NullString
	err := s.Scan(
		&trade.ID, &trade.Asset, &direction, &trade.EntryPrice, &trade.ExitPrice, &trade.Quantity,
		&trade.NotionalUSDT, &trade.BestPrice, &trade.StopLoss, &trade.EntryTime, &exitTime,
		&trade.ProfitUSDT, &status, &closeReason)
	if err != nil {
		return nil, err // sql.ErrNoRows handled by the caller
	}
	trade.Direction = domain.Direction(direction)
	trade.Status = domain.TradeStatus(status)
	if exitTime.Valid {
		trade.ExitTime = exitTime.Time
	}
	if closeReason.Valid {
		trade.CloseReason = domain.CloseReason(closeReason.String)
	}
	return trade, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
