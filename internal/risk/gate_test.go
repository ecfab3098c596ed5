package risk_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"github.com/alejandrodnm/fxbot/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func proposal(now time.Time) risk.Proposal {
	return risk.Proposal{
		Amount:      100_000,
		Debit:       100_000,
		Balance:     5_000_000,
		DailyVolume: 0,
		Now:         now,
	}
}

func newGate() *risk.Gate {
	g := risk.NewGate(risk.DefaultLimits(), domain.RiskGateState{})
	g.RollDay(t0, 5_000_000)
	return g
}

func TestGate_AdmitsValidProposal(t *testing.T) {
	g := newGate()
	require.NoError(t, g.Admit(proposal(t0)))
	assert.Equal(t, t0, g.State().LastTradeAt)
}

func TestGate_Cooldown(t *testing.T) {
	g := newGate()
	require.NoError(t, g.Admit(proposal(t0)))

	err := g.Admit(proposal(t0.Add(29 * time.Second)))
	assert.ErrorIs(t, err, domain.ErrCooldownActive)
	// el rechazo no mueve el timestamp
	assert.Equal(t, t0, g.State().LastTradeAt)

	assert.NoError(t, g.Admit(proposal(t0.Add(30*time.Second))))
}

func TestGate_NeverAdmitsTwiceWithinCooldown(t *testing.T) {
	g := newGate()
	var admitted []time.Time
	for i := 0; i < 300; i++ {
		now := t0.Add(time.Duration(i) * 1700 * time.Millisecond)
		if g.Admit(proposal(now)) == nil {
			admitted = append(admitted, now)
		}
	}
	require.NotEmpty(t, admitted)
	for i := 1; i < len(admitted); i++ {
		assert.GreaterOrEqual(t, admitted[i].Sub(admitted[i-1]), 30*time.Second)
	}
}

func TestGate_MaxPositions(t *testing.T) {
	g := newGate()
	p := proposal(t0)
	p.OpenPositions = 3
	assert.ErrorIs(t, g.Check(p), domain.ErrMaxPositionsReached)
}

func TestGate_DailyLossLimit(t *testing.T) {
	g := risk.NewGate(risk.DefaultLimits(), domain.RiskGateState{
		Day:               t0.Format(domain.DayKey),
		DailyStartBalance: 100_000,
		DailyRealizedPnL:  -2100,
	})

	p := proposal(t0)
	p.Amount, p.Debit = 1, 1
	err := g.Check(p)
	assert.ErrorIs(t, err, domain.ErrDailyLossLimitBreached)

	var rr *domain.RiskRejection
	require.ErrorAs(t, err, &rr)
	assert.Equal(t, domain.ReasonDailyLossLimitBreached, rr.Reason)
}

func TestGate_DailyLossAtExactLimitRejects(t *testing.T) {
	g := risk.NewGate(risk.DefaultLimits(), domain.RiskGateState{
		Day:               t0.Format(domain.DayKey),
		DailyStartBalance: 100_000,
		DailyRealizedPnL:  -2000,
	})
	assert.ErrorIs(t, g.Check(proposal(t0)), domain.ErrDailyLossLimitBreached)
}

func TestGate_DailyVolume(t *testing.T) {
	g := newGate()
	p := proposal(t0)
	p.DailyVolume = 9_950_000
	assert.ErrorIs(t, g.Check(p), domain.ErrDailyVolumeExceeded)

	p.DailyVolume = 9_900_000 // justo en el límite
	assert.NoError(t, g.Check(p))
}

func TestGate_MinimumBalance(t *testing.T) {
	g := newGate()
	p := proposal(t0)
	p.Balance = 1_050_000
	assert.ErrorIs(t, g.Check(p), domain.ErrInsufficientBalance)

	p.Balance = 1_100_000
	assert.NoError(t, g.Check(p))
}

func TestGate_FirstFailingPredicateWins(t *testing.T) {
	g := newGate()
	require.NoError(t, g.Admit(proposal(t0)))

	p := proposal(t0.Add(time.Second))
	p.OpenPositions = 3
	p.Balance = 0
	assert.ErrorIs(t, g.Check(p), domain.ErrCooldownActive)
}

func TestGate_RollDay(t *testing.T) {
	g := newGate()
	g.RecordRealized(-500)
	assert.False(t, g.RollDay(t0.Add(time.Hour), 4_000_000), "same date does not reset")
	assert.Equal(t, -500.0, g.State().DailyRealizedPnL)

	// 23:59 → 00:01 is a new date even though only minutes elapsed
	late := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	next := late.Add(2 * time.Minute)
	assert.False(t, g.RollDay(late, 4_000_000))
	assert.True(t, g.RollDay(next, 4_200_000))

	st := g.State()
	assert.Zero(t, st.DailyRealizedPnL)
	assert.Equal(t, 4_200_000.0, st.DailyStartBalance)
	assert.Equal(t, "2026-03-11", st.Day)
}
