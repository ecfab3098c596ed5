package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/fxbot/internal/adapters/notify"
	"github.com/alejandrodnm/fxbot/internal/adapters/storage"
	"github.com/alejandrodnm/fxbot/internal/domain"
)

func runReport(ctx context.Context, store *storage.SQLiteStorage, notifier *notify.Console, days int) error {
	ids, err := store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("runReport: %w", err)
	}
	if len(ids) == 0 {
		slog.Warn("no stored accounts yet, run the bot first")
		return nil
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)

	snaps := make([]domain.Snapshot, 0, len(ids))
	type history struct {
		id      string
		dailies []domain.DailySummary
	}
	var histories []history

	for _, id := range ids {
		state, ok, err := store.LoadAccount(ctx, id)
		if err != nil {
			return fmt.Errorf("runReport: %w", err)
		}
		if !ok {
			continue
		}
		snaps = append(snaps, snapshotOf(state))

		dailies, err := store.GetDailies(ctx, id, from, to)
		if err != nil {
			return fmt.Errorf("runReport: %w", err)
		}
		histories = append(histories, history{id: id, dailies: dailies})
	}

	notifier.PrintSnapshots(snaps)
	for _, h := range histories {
		notifier.PrintDailies(h.id, h.dailies)
	}
	return nil
}

// snapshotOf proyecta un estado persistido sin reconstruir la cuenta.
func snapshotOf(state domain.AccountState) domain.Snapshot {
	var open []domain.Trade
	for _, t := range state.Trades {
		if t.IsOpen() {
			open = append(open, t)
		}
	}
	return domain.Snapshot{
		AccountID:  state.AccountID,
		Portfolio:  state.Portfolio,
		OpenTrades: open,
		Risk:       state.Risk,
		TakenAt:    state.UpdatedAt,
	}
}
