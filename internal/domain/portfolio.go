package domain

import "time"

// DayKey is the layout used to tag daily counters with their calendar date.
const DayKey = "2006-01-02"

// DayOf returns the UTC calendar date of t. Every daily counter is keyed
// with it, so trades reloaded from storage land on the same day.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayKey)
}

// Portfolio is the aggregate derived state of one account.
type Portfolio struct {
	Balance            float64 `json:"balance"`
	TotalProfit        float64 `json:"total_profit"`
	TodayProfit        float64 `json:"today_profit"`
	OpenPositions      int     `json:"open_positions"`
	TotalTrades        int     `json:"total_trades"`
	DeployedCapital    float64 `json:"deployed_capital"`
	DailyTradingVolume float64 `json:"daily_trading_volume"`
	Day                string  `json:"day"` // date the daily counters belong to
}

// RiskGateState is owned by the risk gate and reset once per calendar day.
type RiskGateState struct {
	LastTradeAt       time.Time `json:"last_trade_at"`
	DailyRealizedPnL  float64   `json:"daily_realized_pnl"`
	DailyStartBalance float64   `json:"daily_start_balance"`
	Day               string    `json:"day"`
}

// AccountState is the persisted layout of one account.
type AccountState struct {
	AccountID string
	Portfolio Portfolio
	Trades    []Trade
	Risk      RiskGateState
	UpdatedAt time.Time
}

// Snapshot is the read-only projection handed to reporting and the HTTP API.
type Snapshot struct {
	AccountID  string        `json:"account_id"`
	Portfolio  Portfolio     `json:"portfolio"`
	OpenTrades []Trade       `json:"open_trades"`
	Risk       RiskGateState `json:"risk"`
	TakenAt    time.Time     `json:"taken_at"`
}

// DailySummary is the per-day activity row of an account.
type DailySummary struct {
	AccountID    string
	Date         time.Time
	TradesOpened int
	TradesClosed int
	Volume       float64
	RealizedPnL  float64
	Balance      float64
}

// TickResult contains everything produced by one controller tick.
type TickResult struct {
	AccountID  string
	Pair       string
	At         time.Time
	Samples    int
	Prediction Prediction
	Fallback   bool   // external predictor failed and the local strategy answered
	Skipped    string // why no proposal was made, empty when one was
	Trade      *Trade // opened trade, nil otherwise
	Rejection  error  // risk or ledger rejection of the proposal
	Reconciled bool   // ledger drift was corrected this tick
}
