package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out     io.Writer
	verbose bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(verbose bool) *Console {
	return &Console{out: os.Stdout, verbose: verbose}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose}
}

// NotifyTick imprime el tick en una línea: señal y ejecución, rechazo o skip.
func (c *Console) NotifyTick(_ context.Context, r domain.TickResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s n=%d", r.At.Format("15:04:05"), r.AccountID, r.Pair, r.Samples)

	if r.Prediction.Signal != "" {
		src := r.Prediction.Source
		if r.Fallback {
			src += "*"
		}
		fmt.Fprintf(&sb, " | %s %.2f (%s)", r.Prediction.Signal, r.Prediction.Confidence, src)
		if c.verbose && r.Prediction.Reason != "" {
			fmt.Fprintf(&sb, " %s", r.Prediction.Reason)
		}
	}

	switch {
	case r.Trade != nil:
		fmt.Fprintf(&sb, " | OPEN %s %s %.0f @ %.5f",
			shortID(r.Trade.ID), r.Trade.Type, r.Trade.Amount, r.Trade.EntryPrice)
	case r.Rejection != nil:
		kind, code := domain.RejectionKind(r.Rejection)
		if kind == "" {
			fmt.Fprintf(&sb, " | rejected: %v", r.Rejection)
		} else {
			fmt.Fprintf(&sb, " | rejected %s:%s", kind, code)
		}
	case r.Skipped != "":
		fmt.Fprintf(&sb, " | skip: %s", r.Skipped)
	}

	if r.Reconciled {
		sb.WriteString(" | ledger reconciled")
	}

	fmt.Fprintln(c.out, sb.String())
	return nil
}

// PrintSnapshots imprime el portfolio de cada cuenta y sus trades abiertos.
func (c *Console) PrintSnapshots(snaps []domain.Snapshot) {
	if len(snaps) == 0 {
		fmt.Fprintln(c.out, "\n  No accounts.")
		return
	}

	fmt.Fprintf(c.out, "\n=== PORTFOLIO ===\n")
	table := tablewriter.NewWriter(c.out)
	table.Header("Account", "Balance", "Total P&L", "Today", "Open", "Trades", "Deployed", "Volume")
	for _, s := range snaps {
		p := s.Portfolio
		table.Append(
			s.AccountID,
			money(p.Balance),
			signedMoney(p.TotalProfit),
			signedMoney(p.TodayProfit),
			fmt.Sprintf("%d", p.OpenPositions),
			fmt.Sprintf("%d", p.TotalTrades),
			money(p.DeployedCapital),
			money(p.DailyTradingVolume),
		)
	}
	table.Render()

	var open []domain.Trade
	for _, s := range snaps {
		open = append(open, s.OpenTrades...)
	}
	if len(open) == 0 {
		fmt.Fprintln(c.out)
		return
	}

	fmt.Fprintf(c.out, "\n=== OPEN TRADES ===\n")
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Trade", "Account", "Pair", "Type", "Amount", "Entry", "Opened")
	for _, t := range open {
		tbl.Append(
			shortID(t.ID),
			t.AccountID,
			t.Pair,
			string(t.Type),
			money(t.Amount),
			fmt.Sprintf("%.5f", t.EntryPrice),
			t.OpenedAt.Format("01-02 15:04:05"),
		)
	}
	tbl.Render()
	fmt.Fprintln(c.out)
}

// PrintDailies imprime el histórico diario de una cuenta.
func (c *Console) PrintDailies(accountID string, dailies []domain.DailySummary) {
	if len(dailies) == 0 {
		fmt.Fprintf(c.out, "\n  No daily data yet for %s.\n", accountID)
		return
	}

	fmt.Fprintf(c.out, "\n=== DAILY %s (%s to %s) ===\n", accountID,
		dailies[0].Date.Format(domain.DayKey), dailies[len(dailies)-1].Date.Format(domain.DayKey))

	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Date", "Opened", "Closed", "Volume", "P&L", "Balance")
	var total float64
	for _, d := range dailies {
		total += d.RealizedPnL
		tbl.Append(
			d.Date.Format("01-02"),
			fmt.Sprintf("%d", d.TradesOpened),
			fmt.Sprintf("%d", d.TradesClosed),
			money(d.Volume),
			signedMoney(d.RealizedPnL),
			money(d.Balance),
		)
	}
	tbl.Render()
	fmt.Fprintf(c.out, "  Realized P&L: %s over %d days\n\n", signedMoney(total), len(dailies))
}

// --- helpers ---

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func signedMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}
