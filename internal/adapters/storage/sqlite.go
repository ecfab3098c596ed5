package storage

// sqlite.go: persistencia del estado de las cuentas.
//
// Tablas:
//   - `accounts`: portfolio de cada cuenta, UNA fila (UPSERT).
//   - `risk_state`: estado del risk gate, UNA fila por cuenta.
//   - `trades`: una fila por trade. Cache en memoria del último status
//     guardado: un trade CLOSED ya persistido no se reescribe.
//   - `account_daily`: resumen diario por cuenta, upsert en cada guardado.
//   - Prune automático al arrancar: trades cerrados > 90d, dailies > 365d.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/fxbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id                 TEXT PRIMARY KEY,
    balance            REAL    NOT NULL DEFAULT 0,
    total_profit       REAL    NOT NULL DEFAULT 0,
    today_profit       REAL    NOT NULL DEFAULT 0,
    open_positions     INTEGER NOT NULL DEFAULT 0,
    total_trades       INTEGER NOT NULL DEFAULT 0,
    deployed_capital   REAL    NOT NULL DEFAULT 0,
    daily_volume       REAL    NOT NULL DEFAULT 0,
    day                TEXT    NOT NULL DEFAULT '',
    updated_at         TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_state (
    account_id          TEXT PRIMARY KEY,
    last_trade_at       TEXT,
    daily_realized_pnl  REAL NOT NULL DEFAULT 0,
    daily_start_balance REAL NOT NULL DEFAULT 0,
    day                 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trades (
    id          TEXT PRIMARY KEY,   -- UUIDv7
    account_id  TEXT NOT NULL,
    pair        TEXT NOT NULL,
    type        TEXT NOT NULL,      -- BUY / SELL
    amount      REAL NOT NULL,
    margin      REAL NOT NULL,
    entry_price REAL NOT NULL,
    exit_price  REAL,
    status      TEXT NOT NULL,
    profit      REAL NOT NULL DEFAULT 0,
    opened_at   TEXT NOT NULL,
    closed_at   TEXT
);

CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id, opened_at);
CREATE INDEX IF NOT EXISTS idx_trades_status  ON trades(status);

CREATE TABLE IF NOT EXISTS account_daily (
    account_id    TEXT    NOT NULL,
    date          TEXT    NOT NULL,
    trades_opened INTEGER NOT NULL DEFAULT 0,
    trades_closed INTEGER NOT NULL DEFAULT 0,
    volume        REAL    NOT NULL DEFAULT 0,
    realized_pnl  REAL    NOT NULL DEFAULT 0,
    balance       REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (account_id, date)
);
`

const (
	retentionTrades  = 90 * 24 * time.Hour  // trades cerrados: 90 días
	retentionDailies = 365 * 24 * time.Hour // resúmenes diarios: 1 año
	timeLayout       = time.RFC3339Nano
)

// SQLiteStorage implementa ports.AccountStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db    *sql.DB
	mu    sync.Mutex
	saved map[string]domain.TradeStatus // tradeID → status persistido
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		saved: make(map[string]domain.TradeStatus),
	}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveAccount persiste portfolio, risk state, los trades que cambiaron y el
// resumen del día en una sola transacción.
func (s *SQLiteStorage) SaveAccount(ctx context.Context, state domain.AccountState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	p := state.Portfolio

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveAccount: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts
			(id, balance, total_profit, today_profit, open_positions, total_trades,
			 deployed_capital, daily_volume, day, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			balance          = excluded.balance,
			total_profit     = excluded.total_profit,
			today_profit     = excluded.today_profit,
			open_positions   = excluded.open_positions,
			total_trades     = excluded.total_trades,
			deployed_capital = excluded.deployed_capital,
			daily_volume     = excluded.daily_volume,
			day              = excluded.day,
			updated_at       = excluded.updated_at`,
		state.AccountID, p.Balance, p.TotalProfit, p.TodayProfit, p.OpenPositions, p.TotalTrades,
		p.DeployedCapital, p.DailyTradingVolume, p.Day, formatTime(updatedAt),
	); err != nil {
		return fmt.Errorf("storage.SaveAccount: upsert account %s: %w", state.AccountID, err)
	}

	r := state.Risk
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO risk_state (account_id, last_trade_at, daily_realized_pnl, daily_start_balance, day)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			last_trade_at       = excluded.last_trade_at,
			daily_realized_pnl  = excluded.daily_realized_pnl,
			daily_start_balance = excluded.daily_start_balance,
			day                 = excluded.day`,
		state.AccountID, nullTimeVal(r.LastTradeAt), r.DailyRealizedPnL, r.DailyStartBalance, r.Day,
	); err != nil {
		return fmt.Errorf("storage.SaveAccount: upsert risk state %s: %w", state.AccountID, err)
	}

	written, err := s.upsertTrades(ctx, tx, state.Trades)
	if err != nil {
		return err
	}

	if err := upsertDaily(ctx, tx, state, updatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveAccount: commit: %w", err)
	}
	for _, t := range written {
		s.saved[t.ID] = t.Status
	}
	return nil
}

// upsertTrades escribe solo los trades cuyo status difiere del persistido.
func (s *SQLiteStorage) upsertTrades(ctx context.Context, tx *sql.Tx, trades []domain.Trade) ([]domain.Trade, error) {
	var toWrite []domain.Trade
	for _, t := range trades {
		if st, ok := s.saved[t.ID]; ok && st == t.Status {
			continue
		}
		toWrite = append(toWrite, t)
	}
	if len(toWrite) == 0 {
		return nil, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
			(id, account_id, pair, type, amount, margin, entry_price, exit_price,
			 status, profit, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			exit_price = excluded.exit_price,
			status     = excluded.status,
			profit     = excluded.profit,
			closed_at  = excluded.closed_at`)
	if err != nil {
		return nil, fmt.Errorf("storage.SaveAccount: prepare trades: %w", err)
	}
	defer stmt.Close()

	for _, t := range toWrite {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.AccountID, t.Pair, string(t.Type), t.Amount, t.Margin, t.EntryPrice, nullFloat(t.ExitPrice),
			string(t.Status), t.Profit, formatTime(t.OpenedAt), nullTime(t.ClosedAt),
		); err != nil {
			return nil, fmt.Errorf("storage.SaveAccount: upsert trade %s: %w", t.ID, err)
		}
	}
	return toWrite, nil
}

// upsertDaily recalcula la fila del día de la cuenta a partir del estado.
func upsertDaily(ctx context.Context, tx *sql.Tx, state domain.AccountState, at time.Time) error {
	day := state.Portfolio.Day
	if day == "" {
		day = domain.DayOf(at)
	}

	var opened, closed int
	var realized float64
	for _, t := range state.Trades {
		if domain.DayOf(t.OpenedAt) == day {
			opened++
		}
		if t.ClosedAt != nil && domain.DayOf(*t.ClosedAt) == day {
			closed++
			realized += t.Profit
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_daily
			(account_id, date, trades_opened, trades_closed, volume, realized_pnl, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, date) DO UPDATE SET
			trades_opened = excluded.trades_opened,
			trades_closed = excluded.trades_closed,
			volume        = excluded.volume,
			realized_pnl  = excluded.realized_pnl,
			balance       = excluded.balance`,
		state.AccountID, day, opened, closed, state.Portfolio.DailyTradingVolume, realized, state.Portfolio.Balance,
	); err != nil {
		return fmt.Errorf("storage.SaveAccount: upsert daily %s/%s: %w", state.AccountID, day, err)
	}
	return nil
}

// LoadAccount devuelve el estado guardado de la cuenta; ok=false si no existe.
func (s *SQLiteStorage) LoadAccount(ctx context.Context, accountID string) (domain.AccountState, bool, error) {
	state := domain.AccountState{AccountID: accountID}
	p := &state.Portfolio

	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, total_profit, today_profit, open_positions, total_trades,
		       deployed_capital, daily_volume, day, updated_at
		FROM accounts WHERE id = ?`, accountID,
	).Scan(&p.Balance, &p.TotalProfit, &p.TodayProfit, &p.OpenPositions, &p.TotalTrades,
		&p.DeployedCapital, &p.DailyTradingVolume, &p.Day, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AccountState{}, false, nil
	}
	if err != nil {
		return domain.AccountState{}, false, fmt.Errorf("storage.LoadAccount: %s: %w", accountID, err)
	}
	state.UpdatedAt = parseTime(updatedAt)

	var lastTrade sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT last_trade_at, daily_realized_pnl, daily_start_balance, day
		FROM risk_state WHERE account_id = ?`, accountID,
	).Scan(&lastTrade, &state.Risk.DailyRealizedPnL, &state.Risk.DailyStartBalance, &state.Risk.Day)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.AccountState{}, false, fmt.Errorf("storage.LoadAccount: risk state %s: %w", accountID, err)
	}
	if lastTrade.Valid {
		state.Risk.LastTradeAt = parseTime(lastTrade.String)
	}

	trades, err := s.loadTrades(ctx, accountID)
	if err != nil {
		return domain.AccountState{}, false, err
	}
	state.Trades = trades

	s.mu.Lock()
	for _, t := range trades {
		s.saved[t.ID] = t.Status
	}
	s.mu.Unlock()
	return state, true, nil
}

func (s *SQLiteStorage) loadTrades(ctx context.Context, accountID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pair, type, amount, margin, entry_price, exit_price,
		       status, profit, opened_at, closed_at
		FROM trades
		WHERE account_id = ?
		ORDER BY opened_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadAccount: query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t := domain.Trade{AccountID: accountID}
		var side, status, openedAt string
		var exit sql.NullFloat64
		var closedAt sql.NullString

		if err := rows.Scan(
			&t.ID, &t.Pair, &side, &t.Amount, &t.Margin, &t.EntryPrice, &exit,
			&status, &t.Profit, &openedAt, &closedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.LoadAccount: scan trade: %w", err)
		}

		t.Type = domain.Side(side)
		t.Status = domain.TradeStatus(status)
		t.OpenedAt = parseTime(openedAt)
		if exit.Valid {
			v := exit.Float64
			t.ExitPrice = &v
		}
		if closedAt.Valid {
			ct := parseTime(closedAt.String)
			t.ClosedAt = &ct
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetDailies devuelve los resúmenes diarios de la cuenta en [from, to], más
// antiguo primero.
func (s *SQLiteStorage) GetDailies(ctx context.Context, accountID string, from, to time.Time) ([]domain.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, trades_opened, trades_closed, volume, realized_pnl, balance
		FROM account_daily
		WHERE account_id = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC`,
		accountID, domain.DayOf(from), domain.DayOf(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetDailies: query: %w", err)
	}
	defer rows.Close()

	var out []domain.DailySummary
	for rows.Next() {
		d := domain.DailySummary{AccountID: accountID}
		var dateStr string
		if err := rows.Scan(&dateStr, &d.TradesOpened, &d.TradesClosed, &d.Volume, &d.RealizedPnL, &d.Balance); err != nil {
			return nil, fmt.Errorf("storage.GetDailies: scan row: %w", err)
		}
		d.Date, _ = time.Parse(domain.DayKey, dateStr)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListAccounts devuelve los ids de las cuentas guardadas, ordenados.
func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListAccounts: query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.ListAccounts: scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina datos antiguos para mantener la DB ligera. Los trades
// abiertos nunca se borran.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	now := time.Now().UTC()
	s.db.ExecContext(ctx, `DELETE FROM trades WHERE status = ? AND closed_at < ?`,
		string(domain.TradeStatusClosed), formatTime(now.Add(-retentionTrades)))
	s.db.ExecContext(ctx, `DELETE FROM account_daily WHERE date < ?`,
		domain.DayOf(now.Add(-retentionDailies)))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func nullTimeVal(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
