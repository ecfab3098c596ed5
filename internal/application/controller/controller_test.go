package controller_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/fxbot/internal/application/account"
	"github.com/alejandrodnm/fxbot/internal/application/controller"
	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/ledger"
	"github.com/alejandrodnm/fxbot/internal/ports"
	"github.com/alejandrodnm/fxbot/internal/risk"
	"github.com/alejandrodnm/fxbot/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type staticPrices struct {
	mu     sync.Mutex
	prices []float64
	err    error
}

func (s *staticPrices) Prices(_ context.Context, _ string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(s.prices))
	copy(out, s.prices)
	return out, nil
}

func (s *staticPrices) set(prices ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = prices
}

type mockPredictor struct {
	pred   domain.Prediction
	err    error
	block  bool
	models []string
}

func (m *mockPredictor) Predict(ctx context.Context, _ []float64, model string) (domain.Prediction, error) {
	m.models = append(m.models, model)
	if m.block {
		<-ctx.Done()
		return domain.Prediction{}, errors.Join(domain.ErrCollaboratorUnavailable, ctx.Err())
	}
	return m.pred, m.err
}

type fixedStrategy struct {
	pred domain.Prediction
}

func (f fixedStrategy) Name() strategy.Name { return "fixed" }
func (f fixedStrategy) MinSamples() int { return 1 }
func (f fixedStrategy) Predict(_ []float64) domain.Prediction {
	p := f.pred
	p.Source = "fixed"
	return p
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []domain.TickResult
}

func (r *recordingNotifier) NotifyTick(_ context.Context, res domain.TickResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newAccount(now *time.Time) *account.Account {
	a := account.New(account.Config{
		ID:             "org-1",
		InitialBalance: 5_000_000,
		Limits:         risk.DefaultLimits(),
		Policy:         ledger.FullNotional(),
	}, nil)
	a.SetClock(func() time.Time { return *now })
	return a
}

type fixture struct {
	ctrl     *controller.Controller
	acct     *account.Account
	prices   *staticPrices
	notifier *recordingNotifier
	now      *time.Time
}

func newFixture(cfg controller.Config, predictor *mockPredictor, local domain.Prediction) fixture {
	now := t0
	acct := newAccount(&now)
	prices := &staticPrices{prices: []float64{1.10, 1.101, 1.102, 1.103, 1.104}}
	n := &recordingNotifier{}
	// un *mockPredictor nil no debe llegar como interfaz no nil
	var p ports.Predictor
	if predictor != nil {
		p = predictor
	}
	ctrl := controller.New(cfg, acct, prices, p, fixedStrategy{pred: local}, n)
	ctrl.SetClock(func() time.Time { return now })
	return fixture{ctrl: ctrl, acct: acct, prices: prices, notifier: n, now: &now}
}

func TestTick_ExternalPredictionOpensTrade(t *testing.T) {
	pred := &mockPredictor{pred: domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.9}}
	f := newFixture(controller.DefaultConfig(), pred, domain.Hold("unused"))

	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Fallback)
	assert.Equal(t, "agent", res.Prediction.Source)
	require.NotNil(t, res.Trade)
	assert.Equal(t, domain.SideBuy, res.Trade.Type)
	assert.Equal(t, 10_000.0, res.Trade.Amount)
	assert.Equal(t, 1.104, res.Trade.EntryPrice, "latest window price")
	assert.Equal(t, []string{"fixed"}, pred.models)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, 5, res.Samples)
}

func TestTick_PredictorFailureFallsBackToLocal(t *testing.T) {
	pred := &mockPredictor{err: domain.ErrCollaboratorUnavailable}
	f := newFixture(controller.DefaultConfig(), pred,
		domain.Prediction{Signal: domain.SignalSell, Confidence: 0.8})

	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, "fixed", res.Prediction.Source)
	require.NotNil(t, res.Trade)
	assert.Equal(t, domain.SideSell, res.Trade.Type)
}

func TestTick_PredictorTimeoutFallsBack(t *testing.T) {
	cfg := controller.DefaultConfig()
	cfg.PredictorTimeout = 20 * time.Millisecond
	pred := &mockPredictor{block: true}
	f := newFixture(cfg, pred, domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.75})

	start := time.Now()
	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Fallback)
	assert.NotNil(t, res.Trade)
}

func TestTick_NoPredictorUsesLocal(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil,
		domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.95})

	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.NotNil(t, res.Trade)
}

func TestTick_ConfidenceMustExceedThreshold(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil,
		domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.7})

	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Trade)
	assert.Equal(t, controller.SkipLowConfidence, res.Skipped)
	assert.Zero(t, f.acct.Portfolio().TotalTrades)
}

func TestTick_HoldIsSkipped(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil,
		domain.Prediction{Signal: domain.SignalHold, Confidence: 1})

	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, controller.SkipHold, res.Skipped)
	assert.Nil(t, res.Trade)
}

func TestTick_InvalidPricesSkipTick(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil,
		domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.99})
	f.prices.set(1.1, 0, 1.2)

	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, controller.SkipInvalidPrices, res.Skipped)
	assert.Nil(t, res.Trade)
	assert.Equal(t, 1, f.notifier.count())
}

func TestTick_EmptyWindowSkipsTick(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil,
		domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.99})
	f.prices.set()

	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, controller.SkipNoData, res.Skipped)
}

func TestTick_PriceSourceErrorIsReturned(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil, domain.Hold(""))
	f.prices.err = errors.New("feed down")

	_, err := f.ctrl.Tick(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "feed down")
}

func TestTick_CooldownRejectionIsReported(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil,
		domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.9})

	first, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first.Trade)

	*f.now = f.now.Add(5 * time.Second)
	second, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, second.Trade)
	assert.ErrorIs(t, second.Rejection, domain.ErrCooldownActive)
	assert.Equal(t, 1, f.acct.Portfolio().OpenPositions)
}

func TestTick_PositionFractionSizing(t *testing.T) {
	cfg := controller.DefaultConfig()
	cfg.TradeAmount = 0
	cfg.PositionFraction = 0.1
	f := newFixture(cfg, nil, domain.Prediction{Signal: domain.SignalBuy, Confidence: 0.9})

	res, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Trade)
	assert.InDelta(t, 500_000, res.Trade.Amount, 1e-6)
}

func TestCommands_OpenAndCloseAtLatestPrice(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil, domain.Hold(""))
	ctx := context.Background()

	tr, err := f.ctrl.OpenTrade(ctx, domain.SideBuy, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1.104, tr.EntryPrice)

	f.prices.set(1.104, 1.2144)
	closed, err := f.ctrl.CloseTrade(ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.ExitPrice)
	assert.Equal(t, 1.2144, *closed.ExitPrice)
	assert.InDelta(t, 100, closed.Profit, 1e-6)
}

func TestCommands_EmptyWindow(t *testing.T) {
	f := newFixture(controller.DefaultConfig(), nil, domain.Hold(""))
	f.prices.set()
	_, err := f.ctrl.OpenTrade(context.Background(), domain.SideBuy, 1000)
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := controller.DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	f := newFixture(cfg, nil, domain.Hold(""))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.GreaterOrEqual(t, f.notifier.count(), 2)
}

func TestRun_ZeroIntervalUsesDefault(t *testing.T) {
	cfg := controller.DefaultConfig()
	cfg.Interval = 0
	f := newFixture(cfg, nil, domain.Hold(""))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx) }()

	// el primer tick es inmediato; después cancelamos antes del siguiente
	require.Eventually(t, func() bool { return f.notifier.count() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 1, f.notifier.count())
}

type pairPrices struct {
	mu     sync.Mutex
	byPair map[string][]float64
	asked  []string
}

func (p *pairPrices) Prices(_ context.Context, pair string) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, pair)
	return append([]float64(nil), p.byPair[pair]...), nil
}

func TestCloseTrade_UsesTradePair(t *testing.T) {
	opened := t0.Add(-time.Hour)
	acct := account.Restore(account.Config{
		ID:             "org-1",
		InitialBalance: 5_000_000,
		Limits:         risk.DefaultLimits(),
		Policy:         ledger.FullNotional(),
	}, domain.AccountState{
		AccountID: "org-1",
		Portfolio: domain.Portfolio{Balance: 4_990_000, OpenPositions: 1, TotalTrades: 1, DeployedCapital: 10_000},
		Trades: []domain.Trade{{
			ID: "gbp-1", AccountID: "org-1", Pair: "GBP/USD", Type: domain.SideBuy,
			Amount: 10_000, Margin: 10_000, EntryPrice: 1.2650,
			Status: domain.TradeStatusOpen, OpenedAt: opened,
		}},
	}, nil)
	acct.SetClock(func() time.Time { return t0 })

	prices := &pairPrices{byPair: map[string][]float64{
		"EUR/USD": {1.0847},
		"GBP/USD": {1.2650},
	}}
	ctrl := controller.New(controller.DefaultConfig(), acct, prices, nil, fixedStrategy{}, nil)

	tr, err := ctrl.CloseTrade(context.Background(), "gbp-1")
	require.NoError(t, err)
	require.NotNil(t, tr.ExitPrice)
	assert.Equal(t, 1.2650, *tr.ExitPrice)
	assert.InDelta(t, 0, tr.Profit, 1e-9)
	assert.Equal(t, []string{"GBP/USD"}, prices.asked)
}

func TestCloseTrade_UnknownTradeSkipsPriceSource(t *testing.T) {
	now := t0
	acct := newAccount(&now)
	prices := &pairPrices{byPair: map[string][]float64{"EUR/USD": {1.1}}}
	ctrl := controller.New(controller.DefaultConfig(), acct, prices, nil, fixedStrategy{}, nil)

	_, err := ctrl.CloseTrade(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
	assert.Empty(t, prices.asked)
}
