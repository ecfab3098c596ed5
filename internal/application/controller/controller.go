// Package controller drives one account: every tick it reads the price
// window, asks for a prediction and submits actionable signals to the
// account's risk-gated ledger.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/fxbot/internal/application/account"
	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/features"
	"github.com/alejandrodnm/fxbot/internal/metrics"
	"github.com/alejandrodnm/fxbot/internal/ports"
	"github.com/alejandrodnm/fxbot/internal/strategy"
)

// Motivos por los que un tick no genera propuesta.
const (
	SkipNoData        = "no data"
	SkipInvalidPrices = "invalid prices"
	SkipHold          = "hold"
	SkipLowConfidence = "below confidence threshold"
	SkipNoAmount      = "no trade amount"
)

// Config contiene la configuración de un controller.
type Config struct {
	Pair                string
	Interval            time.Duration
	ConfidenceThreshold float64
	TradeAmount         float64 // fixed notional; 0 → PositionFraction × balance
	PositionFraction    float64
	PredictorTimeout    time.Duration

	// Reservados: se cargan de la config pero ningún tick los consulta.
	TakeProfit float64
	StopLoss   float64
}

// DefaultConfig devuelve valores sensatos para EUR/USD.
func DefaultConfig() Config {
	return Config{
		Pair:                "EUR/USD",
		Interval:            5 * time.Second,
		ConfidenceThreshold: 0.7,
		TradeAmount:         10_000,
		PositionFraction:    0.1,
		PredictorTimeout:    2 * time.Second,
		TakeProfit:          0.02,
		StopLoss:            0.01,
	}
}

// Controller is the tick loop of one account.
type Controller struct {
	cfg       Config
	account   *account.Account
	prices    ports.PriceSource
	predictor ports.Predictor // nil → local strategy only
	local     strategy.Strategy
	notifier  ports.Notifier // nil → silent
	now       func() time.Time
}

// New crea un Controller con todas las dependencias inyectadas.
func New(
	cfg Config,
	acct *account.Account,
	prices ports.PriceSource,
	predictor ports.Predictor,
	local strategy.Strategy,
	notifier ports.Notifier,
) *Controller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PredictorTimeout <= 0 {
		cfg.PredictorTimeout = def.PredictorTimeout
	}
	return &Controller{
		cfg:       cfg,
		account:   acct,
		prices:    prices,
		predictor: predictor,
		local:     local,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SetClock replaces the wall clock used to stamp tick results. Tests only.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// Account returns the controlled account.
func (c *Controller) Account() *account.Account {
	return c.account
}

// Pair returns the traded currency pair.
func (c *Controller) Pair() string {
	return c.cfg.Pair
}

// Run ejecuta ticks a intervalo fijo hasta que el contexto se cancele.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("controller starting",
		"account", c.account.ID(),
		"pair", c.cfg.Pair,
		"strategy", c.local.Name(),
		"interval", c.cfg.Interval,
	)

	c.runTick(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("controller stopped", "account", c.account.ID())
			return nil
		case <-ticker.C:
			c.runTick(ctx)
		}
	}
}

func (c *Controller) runTick(ctx context.Context) {
	if _, err := c.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("controller: tick failed", "account", c.account.ID(), "err", err)
	}
}

// Tick runs one evaluation cycle. Skipped ticks and rejections are reported
// in the result, not as errors; only a failing price source is an error.
func (c *Controller) Tick(ctx context.Context) (domain.TickResult, error) {
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	prices, err := c.prices.Prices(ctx, c.cfg.Pair)
	if err != nil {
		return domain.TickResult{}, fmt.Errorf("controller.Tick: prices %s: %w", c.cfg.Pair, err)
	}

	result := domain.TickResult{
		AccountID: c.account.ID(),
		Pair:      c.cfg.Pair,
		At:        c.now(),
		Samples:   len(prices),
	}

	switch {
	case len(prices) == 0:
		result.Skipped = SkipNoData
	case features.Validate(prices) != nil:
		result.Skipped = SkipInvalidPrices
		slog.Warn("controller: tick skipped", "account", result.AccountID, "reason", result.Skipped)
	default:
		c.evaluate(ctx, prices, &result)
	}

	result.Reconciled = c.account.Reconcile(ctx)
	c.notify(ctx, result)
	return result, nil
}

// evaluate obtiene la predicción y, si es accionable, envía la propuesta.
func (c *Controller) evaluate(ctx context.Context, prices []float64, result *domain.TickResult) {
	pred, fallback := c.predict(ctx, prices)
	result.Prediction = pred
	result.Fallback = fallback
	metrics.Signals.WithLabelValues(pred.Source, string(pred.Signal)).Inc()

	side, ok := pred.Signal.Side()
	if !ok {
		result.Skipped = SkipHold
		return
	}
	if !pred.Actionable(c.cfg.ConfidenceThreshold) {
		result.Skipped = SkipLowConfidence
		return
	}

	amount := c.tradeAmount()
	if !(amount > 0) {
		result.Skipped = SkipNoAmount
		return
	}

	trade, err := c.account.OpenTrade(ctx, c.cfg.Pair, side, amount, prices[len(prices)-1])
	if err != nil {
		result.Rejection = err
		return
	}
	result.Trade = &trade
}

// predict asks the external predictor first, bounded by PredictorTimeout,
// and falls back to the local strategy on any failure.
func (c *Controller) predict(ctx context.Context, prices []float64) (domain.Prediction, bool) {
	if c.predictor == nil {
		return c.local.Predict(prices), false
	}

	pctx, cancel := context.WithTimeout(ctx, c.cfg.PredictorTimeout)
	pred, err := c.predictor.Predict(pctx, prices, string(c.local.Name()))
	cancel()
	if err == nil {
		if pred.Source == "" {
			pred.Source = "agent"
		}
		return pred, false
	}

	metrics.PredictorFallbacks.Inc()
	slog.Warn("controller: predictor unavailable, using local strategy",
		"account", c.account.ID(), "strategy", c.local.Name(), "err", err)
	return c.local.Predict(prices), true
}

func (c *Controller) tradeAmount() float64 {
	if c.cfg.TradeAmount > 0 {
		return c.cfg.TradeAmount
	}
	return c.account.Portfolio().Balance * c.cfg.PositionFraction
}

func (c *Controller) notify(ctx context.Context, result domain.TickResult) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyTick(ctx, result); err != nil {
		slog.Warn("notifier error", "err", err)
	}
}

// ─── Execution commands ───────────────────────────────────────────────────

// OpenTrade opens a trade at the latest window price, gated like a tick.
func (c *Controller) OpenTrade(ctx context.Context, side domain.Side, amount float64) (domain.Trade, error) {
	price, err := c.latestPrice(ctx, c.cfg.Pair)
	if err != nil {
		return domain.Trade{}, err
	}
	return c.account.OpenTrade(ctx, c.cfg.Pair, side, amount, price)
}

// CloseTrade closes a trade at the latest price of the trade's own pair,
// which may differ from the controller's after a config change.
func (c *Controller) CloseTrade(ctx context.Context, tradeID string) (domain.Trade, error) {
	trade, ok := c.account.Trade(tradeID)
	if !ok {
		return domain.Trade{}, &domain.LedgerError{Code: domain.CodeTradeNotFound, TradeID: tradeID}
	}
	price, err := c.latestPrice(ctx, trade.Pair)
	if err != nil {
		return domain.Trade{}, err
	}
	return c.account.CloseTrade(ctx, tradeID, price)
}

func (c *Controller) latestPrice(ctx context.Context, pair string) (float64, error) {
	prices, err := c.prices.Prices(ctx, pair)
	if err != nil {
		return 0, fmt.Errorf("controller.latestPrice: %s: %w", pair, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("controller.latestPrice: %s: %w", pair, features.ErrInsufficientData)
	}
	return prices[len(prices)-1], nil
}
