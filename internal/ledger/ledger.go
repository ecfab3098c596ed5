// Package ledger owns the trades of one account and the portfolio totals
// derived from them.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/google/uuid"
)

// DebitMode selects how much of a trade's notional leaves the balance.
type DebitMode string

const (
	DebitFull   DebitMode = "full"
	DebitMargin DebitMode = "margin"
)

const defaultMarginFraction = 0.01

// DebitPolicy converts a notional into the amount debited at open.
type DebitPolicy struct {
	Mode           DebitMode
	MarginFraction float64 // used by DebitMargin
}

// FullNotional debits the whole amount.
func FullNotional() DebitPolicy {
	return DebitPolicy{Mode: DebitFull}
}

// Margin debits fraction × amount.
func Margin(fraction float64) DebitPolicy {
	if fraction <= 0 {
		fraction = defaultMarginFraction
	}
	return DebitPolicy{Mode: DebitMargin, MarginFraction: fraction}
}

// Debit returns what opening amount would take from the balance.
func (p DebitPolicy) Debit(amount float64) float64 {
	if p.Mode == DebitMargin {
		return amount * p.MarginFraction
	}
	return amount
}

// Config configures a ledger.
type Config struct {
	Policy         DebitPolicy
	MinimumBalance float64
}

// Ledger is not safe for concurrent use; the owning account serializes
// access.
type Ledger struct {
	cfg       Config
	portfolio domain.Portfolio
	trades    map[string]*domain.Trade
	order     []string // ids by creation
	newID     func() string
}

// New creates a ledger resuming the given portfolio and trades.
func New(cfg Config, portfolio domain.Portfolio, trades []domain.Trade) *Ledger {
	l := &Ledger{
		cfg:       cfg,
		portfolio: portfolio,
		trades:    make(map[string]*domain.Trade, len(trades)),
		newID:     newTradeID,
	}
	sorted := append([]domain.Trade(nil), trades...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OpenedAt.Before(sorted[j].OpenedAt) })
	for i := range sorted {
		t := sorted[i]
		l.trades[t.ID] = &t
		l.order = append(l.order, t.ID)
	}
	return l
}

// newTradeID returns a time-ordered UUIDv7 so ids sort by generation.
func newTradeID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Policy returns the configured debit policy.
func (l *Ledger) Policy() DebitPolicy {
	return l.cfg.Policy
}

// RollDay resets the daily counters when now falls on a new calendar date.
func (l *Ledger) RollDay(now time.Time) bool {
	day := domain.DayOf(now)
	if l.portfolio.Day == day {
		return false
	}
	l.portfolio.Day = day
	l.portfolio.DailyTradingVolume = 0
	l.portfolio.TodayProfit = 0
	return true
}

// Open creates an OPEN trade and debits the balance.
func (l *Ledger) Open(accountID, pair string, side domain.Side, amount, entryPrice float64, now time.Time) (domain.Trade, error) {
	if !finitePositive(amount) {
		return domain.Trade{}, &domain.LedgerError{Code: domain.CodeInvalidAmount, Detail: fmt.Sprintf("amount %.2f", amount)}
	}
	if !finitePositive(entryPrice) {
		return domain.Trade{}, &domain.LedgerError{Code: domain.CodeInvalidPrice, Detail: fmt.Sprintf("entry price %v", entryPrice)}
	}
	if !side.Valid() {
		return domain.Trade{}, &domain.LedgerError{Code: domain.CodeInvalidSide, Detail: fmt.Sprintf("side %q", side)}
	}

	debit := l.cfg.Policy.Debit(amount)
	if l.portfolio.Balance-debit < l.cfg.MinimumBalance {
		return domain.Trade{}, &domain.LedgerError{
			Code:   domain.CodeBelowMinimumBalance,
			Detail: fmt.Sprintf("balance %.2f - %.2f < %.2f", l.portfolio.Balance, debit, l.cfg.MinimumBalance),
		}
	}

	t := &domain.Trade{
		ID:         l.newID(),
		AccountID:  accountID,
		Pair:       pair,
		Type:       side,
		Amount:     amount,
		Margin:     debit,
		EntryPrice: entryPrice,
		Status:     domain.TradeStatusOpen,
		OpenedAt:   now,
	}
	l.trades[t.ID] = t
	l.order = append(l.order, t.ID)

	l.portfolio.Balance -= debit
	l.portfolio.OpenPositions++
	l.portfolio.TotalTrades++
	l.portfolio.DeployedCapital += amount
	l.portfolio.DailyTradingVolume += amount
	return *t, nil
}

// Close realizes the trade at exitPrice and credits margin + profit.
func (l *Ledger) Close(id string, exitPrice float64, now time.Time) (domain.Trade, error) {
	t, ok := l.trades[id]
	if !ok {
		return domain.Trade{}, &domain.LedgerError{Code: domain.CodeTradeNotFound, TradeID: id}
	}
	if !t.IsOpen() {
		return domain.Trade{}, &domain.LedgerError{Code: domain.CodeTradeNotOpen, TradeID: id, Detail: string(t.Status)}
	}
	if !finitePositive(exitPrice) {
		return domain.Trade{}, &domain.LedgerError{Code: domain.CodeInvalidPrice, TradeID: id, Detail: fmt.Sprintf("exit price %v", exitPrice)}
	}

	profit := t.ProfitAt(exitPrice)
	newBalance := l.portfolio.Balance + t.Margin + profit
	if newBalance < l.cfg.MinimumBalance {
		return domain.Trade{}, &domain.LedgerError{
			Code:    domain.CodeBelowMinimumBalance,
			TradeID: id,
			Detail:  fmt.Sprintf("balance would be %.2f, minimum %.2f", newBalance, l.cfg.MinimumBalance),
		}
	}

	closedAt := now
	exit := exitPrice
	t.Status = domain.TradeStatusClosed
	t.ExitPrice = &exit
	t.Profit = profit
	t.ClosedAt = &closedAt

	l.portfolio.Balance = newBalance
	l.portfolio.TotalProfit += profit
	l.portfolio.TodayProfit += profit
	l.portfolio.OpenPositions = max(0, l.portfolio.OpenPositions-1)
	l.portfolio.DeployedCapital -= t.Amount
	return copyTrade(*t), nil
}

// Reconcile recomputes the position counters from the trade records and
// reports whether they had drifted.
func (l *Ledger) Reconcile() bool {
	open := 0
	deployed := 0.0
	for _, t := range l.trades {
		if t.IsOpen() {
			open++
			deployed += t.Amount
		}
	}
	drift := open != l.portfolio.OpenPositions || !nearlyEqual(deployed, l.portfolio.DeployedCapital)
	l.portfolio.OpenPositions = open
	l.portfolio.DeployedCapital = deployed
	return drift
}

// Portfolio returns a copy of the aggregate state.
func (l *Ledger) Portfolio() domain.Portfolio {
	return l.portfolio
}

// Trade returns a copy of one trade.
func (l *Ledger) Trade(id string) (domain.Trade, bool) {
	t, ok := l.trades[id]
	if !ok {
		return domain.Trade{}, false
	}
	return copyTrade(*t), true
}

// Trades returns copies of every trade in creation order.
func (l *Ledger) Trades() []domain.Trade {
	out := make([]domain.Trade, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, copyTrade(*l.trades[id]))
	}
	return out
}

// OpenTrades returns copies of the OPEN trades in creation order.
func (l *Ledger) OpenTrades() []domain.Trade {
	var out []domain.Trade
	for _, id := range l.order {
		if t := l.trades[id]; t.IsOpen() {
			out = append(out, copyTrade(*t))
		}
	}
	return out
}

func copyTrade(t domain.Trade) domain.Trade {
	if t.ExitPrice != nil {
		v := *t.ExitPrice
		t.ExitPrice = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		t.ClosedAt = &v
	}
	return t
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func nearlyEqual(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}
