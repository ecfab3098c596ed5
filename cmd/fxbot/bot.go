package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/fxbot/config"
	"github.com/alejandrodnm/fxbot/internal/adapters/agent"
	"github.com/alejandrodnm/fxbot/internal/adapters/feed"
	"github.com/alejandrodnm/fxbot/internal/adapters/httpapi"
	"github.com/alejandrodnm/fxbot/internal/application/account"
	"github.com/alejandrodnm/fxbot/internal/application/controller"
	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/ledger"
	"github.com/alejandrodnm/fxbot/internal/ports"
	"github.com/alejandrodnm/fxbot/internal/risk"
	"github.com/alejandrodnm/fxbot/internal/strategy"
	"golang.org/x/sync/errgroup"
)

// bot agrupa el feed, los controllers de cada cuenta y el API HTTP.
type bot struct {
	cfg         *config.Config
	feed        *feed.Simulator
	predictor   ports.Predictor
	strategies  strategy.Registry
	controllers []*controller.Controller
}

func newBot(ctx context.Context, cfg *config.Config, store ports.AccountStore, notifier ports.Notifier) (*bot, error) {
	sim, err := feed.NewSimulator(feed.Config{
		Pairs:      cfg.Feed.Pairs,
		Volatility: cfg.Feed.Volatility,
		Drift:      cfg.Feed.Drift,
		Interval:   cfg.FeedInterval(),
		WindowSize: cfg.Feed.WindowSize,
		Warmup:     cfg.Feed.Warmup,
		Seed:       cfg.Feed.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("newBot: %w", err)
	}

	var predictor ports.Predictor
	if cfg.Predictor.URL != "" {
		predictor = agent.NewClient(agent.Config{
			BaseURL:    cfg.Predictor.URL,
			RatePerSec: cfg.Predictor.RatePerSec,
			MaxRetries: cfg.Predictor.MaxRetries,
			Timeout:    cfg.PredictorTimeout(),
		})
		slog.Info("external predictor enabled", "url", cfg.Predictor.URL)
	}

	b := &bot{cfg: cfg, feed: sim, predictor: predictor, strategies: strategy.Default()}

	limits := risk.Limits{
		Cooldown:            cfg.Cooldown(),
		MaxOpenTrades:       cfg.Risk.MaxOpenTrades,
		MaxDailyLossPercent: cfg.Risk.MaxDailyLossPercent,
		DailyTradingLimit:   cfg.Risk.DailyTradingLimit,
		MinimumBalance:      cfg.MinimumBalance(),
	}
	policy := ledger.FullNotional()
	if cfg.Ledger.DebitMode == string(ledger.DebitMargin) {
		policy = ledger.Margin(cfg.Ledger.MarginFraction)
	}

	for _, a := range cfg.Accounts {
		local, err := b.strategies.Lookup(cfg.StrategyFor(a))
		if err != nil {
			return nil, fmt.Errorf("newBot: account %s: %w", a.ID, err)
		}

		acct, err := account.Load(ctx, account.Config{
			ID:             a.ID,
			InitialBalance: a.InitialBalance,
			Limits:         limits,
			Policy:         policy,
		}, store)
		if err != nil {
			return nil, fmt.Errorf("newBot: %w", err)
		}

		b.controllers = append(b.controllers, controller.New(controller.Config{
			Pair:                a.Pair,
			Interval:            cfg.TickInterval(),
			ConfidenceThreshold: cfg.Trading.ConfidenceThreshold,
			TradeAmount:         cfg.Trading.TradeAmount,
			PositionFraction:    cfg.Trading.PositionFraction,
			PredictorTimeout:    cfg.PredictorTimeout(),
			TakeProfit:          cfg.Trading.TakeProfit,
			StopLoss:            cfg.Trading.StopLoss,
		}, acct, sim, predictor, local, notifier))
	}
	return b, nil
}

// run arranca feed, controllers y (opcional) el API hasta que ctx se cancele
// o alguno falle.
func (b *bot) run(ctx context.Context, serve bool) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.feed.Run(gctx) })
	for _, c := range b.controllers {
		g.Go(func() error { return c.Run(gctx) })
	}
	if serve {
		model, _ := strategy.ParseName(b.cfg.Trading.Strategy)
		srv := httpapi.NewServer(httpapi.Config{
			Addr:             b.cfg.HTTP.Addr,
			DefaultModel:     model,
			PredictorTimeout: b.cfg.PredictorTimeout(),
		}, b.controllers, b.predictor, b.strategies)
		g.Go(func() error { return srv.Run(gctx) })
	}

	return g.Wait()
}

// tickOnce ejecuta un tick por cuenta, en paralelo.
func (b *bot) tickOnce(ctx context.Context) {
	var g errgroup.Group
	for _, c := range b.controllers {
		g.Go(func() error {
			start := time.Now()
			res, err := c.Tick(ctx)
			if err != nil {
				slog.Error("tick failed", "account", c.Account().ID(), "err", err)
				return nil
			}
			slog.Debug("tick complete", "account", res.AccountID,
				"signal", res.Prediction.Signal, "duration", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	_ = g.Wait()
}

func (b *bot) snapshots() []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(b.controllers))
	for _, c := range b.controllers {
		out = append(out, c.Account().Snapshot())
	}
	return out
}
