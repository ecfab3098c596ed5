package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/fxbot/internal/adapters/notify"
	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 10, 9, 30, 15, 0, time.UTC)

func tick() domain.TickResult {
	return domain.TickResult{
		AccountID: "org-1",
		Pair:      "EUR/USD",
		At:        at,
		Samples:   50,
		Prediction: domain.Prediction{
			Signal: domain.SignalBuy, Confidence: 0.82, Reason: "rf votes:BUY,BUY,BUY,HOLD", Source: "forest",
		},
	}
}

func TestConsole_NotifyTick_Opened(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	r := tick()
	r.Trade = &domain.Trade{ID: "0190aaaa-bbbb-7ccc-8ddd-0123456789ab", Type: domain.SideBuy, Amount: 10000, EntryPrice: 1.0847}
	require.NoError(t, n.NotifyTick(context.Background(), r))

	out := buf.String()
	assert.Contains(t, out, "[09:30:15] org-1 EUR/USD n=50")
	assert.Contains(t, out, "BUY 0.82 (forest)")
	assert.Contains(t, out, "OPEN 456789ab BUY 10000 @ 1.08470")
	assert.NotContains(t, out, "rf votes", "reason only in verbose mode")
}

func TestConsole_NotifyTick_RejectedVerbose(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	r := tick()
	r.Fallback = true
	r.Rejection = &domain.RiskRejection{Reason: domain.ReasonCooldownActive, Detail: "12s left"}
	require.NoError(t, n.NotifyTick(context.Background(), r))

	out := buf.String()
	assert.Contains(t, out, "(forest*)")
	assert.Contains(t, out, "rf votes:BUY,BUY,BUY,HOLD")
	assert.Contains(t, out, "rejected risk:CooldownActive")
}

func TestConsole_NotifyTick_Skipped(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	r := domain.TickResult{AccountID: "org-1", Pair: "EUR/USD", At: at, Skipped: "invalid prices", Reconciled: true}
	require.NoError(t, n.NotifyTick(context.Background(), r))

	out := buf.String()
	assert.Contains(t, out, "skip: invalid prices")
	assert.Contains(t, out, "ledger reconciled")
}

func TestConsole_PrintSnapshots(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintSnapshots([]domain.Snapshot{{
		AccountID: "org-1",
		Portfolio: domain.Portfolio{Balance: 4_990_000, TotalProfit: -12.5, OpenPositions: 1, TotalTrades: 3},
		OpenTrades: []domain.Trade{{
			ID: "t-000000001", AccountID: "org-1", Pair: "EUR/USD", Type: domain.SideSell,
			Amount: 10000, EntryPrice: 1.0851, OpenedAt: at,
		}},
	}})

	out := buf.String()
	assert.Contains(t, out, "PORTFOLIO")
	assert.Contains(t, out, "org-1")
	assert.Contains(t, out, "$4990000.00")
	assert.Contains(t, out, "-$12.50")
	assert.Contains(t, out, "OPEN TRADES")
	assert.Contains(t, out, "1.08510")
}

func TestConsole_PrintSnapshots_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, false).PrintSnapshots(nil)
	assert.Contains(t, buf.String(), "No accounts")
}

func TestConsole_PrintDailies(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintDailies("org-1", []domain.DailySummary{
		{Date: at.Add(-24 * time.Hour), TradesOpened: 2, TradesClosed: 2, Volume: 20000, RealizedPnL: 5, Balance: 5_000_005},
		{Date: at, TradesOpened: 1, TradesClosed: 0, Volume: 10000, RealizedPnL: 0, Balance: 4_990_005},
	})

	out := buf.String()
	assert.Contains(t, out, "2026-03-09 to 2026-03-10")
	assert.Contains(t, out, "+$5.00 over 2 days")
}

func TestConsole_PrintDailies_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, false).PrintDailies("org-1", nil)
	assert.Contains(t, buf.String(), "No daily data yet for org-1")
}
