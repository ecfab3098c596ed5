// Package risk gates proposed executions against cooldown, exposure and
// capital limits.
package risk

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/fxbot/internal/domain"
)

// Limits configures the gate.
type Limits struct {
	Cooldown            time.Duration
	MaxOpenTrades       int
	MaxDailyLossPercent float64
	DailyTradingLimit   float64
	MinimumBalance      float64
}

// DefaultLimits returns the limits used by the trading desk.
func DefaultLimits() Limits {
	return Limits{
		Cooldown:            30 * time.Second,
		MaxOpenTrades:       3,
		MaxDailyLossPercent: 2,
		DailyTradingLimit:   10_000_000,
		MinimumBalance:      1_000_000,
	}
}

// Proposal is one execution the controller wants to make.
type Proposal struct {
	Amount        float64 // notional, counts against the daily volume
	Debit         float64 // what the ledger would take from the balance
	OpenPositions int
	Balance       float64
	DailyVolume   float64
	Now           time.Time
}

// Gate holds the risk state of one account. It is not safe for concurrent
// use; the owning account serializes access.
type Gate struct {
	limits Limits
	state  domain.RiskGateState
}

// NewGate creates a gate, optionally resuming a persisted state.
func NewGate(limits Limits, state domain.RiskGateState) *Gate {
	return &Gate{limits: limits, state: state}
}

// Limits returns the configured limits.
func (g *Gate) Limits() Limits {
	return g.limits
}

// State returns a copy of the current state.
func (g *Gate) State() domain.RiskGateState {
	return g.state
}

// RollDay resets the daily counters the first time it sees a new calendar
// date, carrying balance forward as the day's starting balance.
func (g *Gate) RollDay(now time.Time, balance float64) bool {
	day := domain.DayOf(now)
	if g.state.Day == day {
		return false
	}
	g.state.Day = day
	g.state.DailyRealizedPnL = 0
	g.state.DailyStartBalance = balance
	return true
}

// Check evaluates every predicate in order and returns the first failure.
// It never mutates the gate.
func (g *Gate) Check(p Proposal) error {
	if !g.state.LastTradeAt.IsZero() {
		if elapsed := p.Now.Sub(g.state.LastTradeAt); elapsed < g.limits.Cooldown {
			return &domain.RiskRejection{
				Reason: domain.ReasonCooldownActive,
				Detail: fmt.Sprintf("%s left", (g.limits.Cooldown - elapsed).Round(time.Millisecond)),
			}
		}
	}

	if p.OpenPositions >= g.limits.MaxOpenTrades {
		return &domain.RiskRejection{
			Reason: domain.ReasonMaxPositionsReached,
			Detail: fmt.Sprintf("%d/%d open", p.OpenPositions, g.limits.MaxOpenTrades),
		}
	}

	maxLoss := g.state.DailyStartBalance * g.limits.MaxDailyLossPercent / 100
	if !(g.state.DailyRealizedPnL > -maxLoss) {
		return &domain.RiskRejection{
			Reason: domain.ReasonDailyLossLimitBreached,
			Detail: fmt.Sprintf("realized %.2f, limit -%.2f", g.state.DailyRealizedPnL, maxLoss),
		}
	}

	if p.DailyVolume+p.Amount > g.limits.DailyTradingLimit {
		return &domain.RiskRejection{
			Reason: domain.ReasonDailyVolumeExceeded,
			Detail: fmt.Sprintf("remaining %.2f", max(0, g.limits.DailyTradingLimit-p.DailyVolume)),
		}
	}

	if p.Balance-p.Debit < g.limits.MinimumBalance {
		return &domain.RiskRejection{
			Reason: domain.ReasonInsufficientBalance,
			Detail: fmt.Sprintf("need %.2f (%.2f + %.2f minimum)", p.Debit+g.limits.MinimumBalance, p.Debit, g.limits.MinimumBalance),
		}
	}
	return nil
}

// RecordAdmission stamps the time of an executed proposal.
func (g *Gate) RecordAdmission(now time.Time) {
	g.state.LastTradeAt = now
}

// Admit checks the proposal and records it when every predicate passes.
func (g *Gate) Admit(p Proposal) error {
	if err := g.Check(p); err != nil {
		return err
	}
	g.RecordAdmission(p.Now)
	return nil
}

// RecordRealized adds a closed trade's P&L to the daily tally.
func (g *Gate) RecordRealized(pnl float64) {
	g.state.DailyRealizedPnL += pnl
}
