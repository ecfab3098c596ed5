// Package account serializes every mutation of one trading account.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/ledger"
	"github.com/alejandrodnm/fxbot/internal/metrics"
	"github.com/alejandrodnm/fxbot/internal/ports"
	"github.com/alejandrodnm/fxbot/internal/risk"
)

// Config holds what is needed to create a fresh account.
type Config struct {
	ID             string
	InitialBalance float64
	Limits         risk.Limits
	Policy         ledger.DebitPolicy
}

// Account owns the risk gate and the ledger of one account. A single mutex
// makes every open and close all-or-nothing.
type Account struct {
	id    string
	store ports.AccountStore // nil → in memory only
	now   func() time.Time

	mu     sync.Mutex
	gate   *risk.Gate
	ledger *ledger.Ledger
}

// New creates an empty account with InitialBalance.
func New(cfg Config, store ports.AccountStore) *Account {
	return Restore(cfg, domain.AccountState{
		AccountID: cfg.ID,
		Portfolio: domain.Portfolio{Balance: cfg.InitialBalance},
	}, store)
}

// Restore rebuilds an account from persisted state.
func Restore(cfg Config, state domain.AccountState, store ports.AccountStore) *Account {
	a := &Account{
		id:    cfg.ID,
		store: store,
		now:   time.Now,
		gate:  risk.NewGate(cfg.Limits, state.Risk),
		ledger: ledger.New(ledger.Config{
			Policy:         cfg.Policy,
			MinimumBalance: cfg.Limits.MinimumBalance,
		}, state.Portfolio, state.Trades),
	}
	a.ledger.Reconcile()
	a.publish()
	return a
}

// Load restores the account from store, or creates it when nothing was saved.
func Load(ctx context.Context, cfg Config, store ports.AccountStore) (*Account, error) {
	state, ok, err := store.LoadAccount(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("account.Load: %s: %w", cfg.ID, err)
	}
	if !ok {
		slog.Info("account: creating", "account", cfg.ID, "balance", cfg.InitialBalance)
		return New(cfg, store), nil
	}
	slog.Info("account: restored", "account", cfg.ID,
		"balance", state.Portfolio.Balance, "trades", len(state.Trades))
	return Restore(cfg, state, store), nil
}

// SetClock replaces the wall clock. Tests only.
func (a *Account) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// ID returns the account id.
func (a *Account) ID() string {
	return a.id
}

// OpenTrade gates the proposal and, when admitted, opens the trade.
func (a *Account) OpenTrade(ctx context.Context, pair string, side domain.Side, amount, price float64) (domain.Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.rollDay(now)

	if !(amount > 0) || math.IsInf(amount, 0) {
		return a.reject(&domain.LedgerError{Code: domain.CodeInvalidAmount, Detail: fmt.Sprintf("amount %.2f", amount)})
	}

	p := a.ledger.Portfolio()
	proposal := risk.Proposal{
		Amount:        amount,
		Debit:         a.ledger.Policy().Debit(amount),
		OpenPositions: p.OpenPositions,
		Balance:       p.Balance,
		DailyVolume:   p.DailyTradingVolume,
		Now:           now,
	}
	if err := a.gate.Check(proposal); err != nil {
		return a.reject(err)
	}

	trade, err := a.ledger.Open(a.id, pair, side, amount, price, now)
	if err != nil {
		return a.reject(err)
	}
	a.gate.RecordAdmission(now)

	metrics.Admissions.WithLabelValues(a.id).Inc()
	slog.Info("account: trade opened", "account", a.id, "trade", trade.ID,
		"pair", pair, "type", side, "amount", amount, "price", price)
	a.persist(ctx)
	return trade, nil
}

// CloseTrade realizes a trade at price and feeds its P&L to the risk gate.
func (a *Account) CloseTrade(ctx context.Context, tradeID string, price float64) (domain.Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.rollDay(now)

	trade, err := a.ledger.Close(tradeID, price, now)
	if err != nil {
		return a.reject(err)
	}
	a.gate.RecordRealized(trade.Profit)

	metrics.TradesClosed.WithLabelValues(a.id).Inc()
	slog.Info("account: trade closed", "account", a.id, "trade", trade.ID,
		"exit", price, "profit", fmt.Sprintf("%+.2f", trade.Profit))
	a.persist(ctx)
	return trade, nil
}

// Reconcile corrects counter drift in the ledger.
func (a *Account) Reconcile(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollDay(a.now())
	if !a.ledger.Reconcile() {
		return false
	}
	slog.Warn("account: ledger drift corrected", "account", a.id)
	a.persist(ctx)
	return true
}

// Portfolio returns a copy of the current portfolio.
func (a *Account) Portfolio() domain.Portfolio {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollDay(a.now())
	return a.ledger.Portfolio()
}

// Trade returns a copy of one trade.
func (a *Account) Trade(id string) (domain.Trade, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Trade(id)
}

// Snapshot returns a consistent read-only copy of the account. The daily
// counters are rolled first, so a new day reads as zero volume.
func (a *Account) Snapshot() domain.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.rollDay(now)
	return domain.Snapshot{
		AccountID:  a.id,
		Portfolio:  a.ledger.Portfolio(),
		OpenTrades: a.ledger.OpenTrades(),
		Risk:       a.gate.State(),
		TakenAt:    now,
	}
}

// State returns the full persistable state.
func (a *Account) State() domain.AccountState {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollDay(a.now())
	return a.stateLocked()
}

func (a *Account) stateLocked() domain.AccountState {
	return domain.AccountState{
		AccountID: a.id,
		Portfolio: a.ledger.Portfolio(),
		Trades:    a.ledger.Trades(),
		Risk:      a.gate.State(),
		UpdatedAt: a.now(),
	}
}

// rollDay resets the daily counters of both the gate and the ledger together.
// Callers hold a.mu.
func (a *Account) rollDay(now time.Time) {
	balance := a.ledger.Portfolio().Balance
	gateRolled := a.gate.RollDay(now, balance)
	ledgerRolled := a.ledger.RollDay(now)
	if gateRolled || ledgerRolled {
		slog.Debug("account: new trading day", "account", a.id,
			"day", domain.DayOf(now), "start_balance", balance)
	}
}

func (a *Account) reject(err error) (domain.Trade, error) {
	kind, code := domain.RejectionKind(err)
	metrics.Rejections.WithLabelValues(a.id, kind, code).Inc()
	slog.Debug("account: rejected", "account", a.id, "kind", kind, "reason", code, "err", err)
	return domain.Trade{}, err
}

// persist writes the state after an in-memory commit. A storage failure is
// logged; the committed ledger is never rolled back.
func (a *Account) persist(ctx context.Context) {
	a.publish()
	if a.store == nil {
		return
	}
	if err := a.store.SaveAccount(ctx, a.stateLocked()); err != nil {
		slog.Warn("account: error saving state", "account", a.id, "err", err)
	}
}

func (a *Account) publish() {
	p := a.ledger.Portfolio()
	metrics.Balance.WithLabelValues(a.id).Set(p.Balance)
	metrics.OpenPositions.WithLabelValues(a.id).Set(float64(p.OpenPositions))
}
