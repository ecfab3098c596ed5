package domain

import "time"

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Direction returns +1 for BUY and -1 for SELL.
func (s Side) Direction() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TradeStatus represents the lifecycle of a simulated trade.
type TradeStatus string

const (
	// TradeStatusPending is reserved; the ledger never produces it.
	TradeStatusPending TradeStatus = "PENDING"
	TradeStatusOpen    TradeStatus = "OPEN"
	TradeStatusClosed  TradeStatus = "CLOSED"
)

// Trade is a position owned by the ledger.
type Trade struct {
	ID         string      `json:"id"`
	AccountID  string      `json:"account_id"`
	Pair       string      `json:"pair"` // "EUR/USD"
	Type       Side        `json:"type"`
	Amount     float64     `json:"amount"` // notional
	Margin     float64     `json:"margin"` // what was debited from the balance at open
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  *float64    `json:"exit_price,omitempty"`
	Status     TradeStatus `json:"status"`
	Profit     float64     `json:"profit"` // 0 while OPEN
	OpenedAt   time.Time   `json:"opened_at"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
}

// IsOpen reports whether the trade still holds capital.
func (t Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// ProfitAt returns the P&L the trade would realize at exitPrice.
func (t Trade) ProfitAt(exitPrice float64) float64 {
	return ((exitPrice - t.EntryPrice) / t.EntryPrice) * t.Amount * t.Type.Direction()
}
