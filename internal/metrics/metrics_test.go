package metrics

import (
	"math"
	"testing"

	"stratlab/internal/signal"
	"stratlab/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	t.Run("empty run", func(t *testing.T) {
		s := Compute(nil, nil, 1000)
		assert.Zero(t, s.Trades)
		assert.Zero(t, s.TotalReturnPct)
		assert.Zero(t, s.SharpeRatio)
		assert.Zero(t, s.MaxDrawdownPct)
		assert.InDelta(t, 1000.0, s.FinalValue, 1e-9)
	})

	t.Run("realized returns from sell entries", func(t *testing.T) {
		trades := []sim.TradeLogEntry{
			{Action: signal.ActionBuy, Price: 100, CostBasis: 100},
			{Action: signal.ActionSell, Price: 110, CostBasis: 100}, // +10%
			{Action: signal.ActionBuy, Price: 50, CostBasis: 50},
			{Action: signal.ActionSell, Price: 45, CostBasis: 50}, // -10%
		}
		equity := []sim.EquityPoint{
			{Timestamp: 1, Value: 1000},
			{Timestamp: 2, Value: 1100},
			{Timestamp: 3, Value: 990},
			{Timestamp: 4, Value: 1050},
		}
		s := Compute(trades, equity, 1000)
		assert.Equal(t, 4, s.Trades)
		assert.Equal(t, 2, s.RoundTrips)
		assert.Equal(t, 1, s.Wins)
		assert.Equal(t, 1, s.Losses)
		assert.InDelta(t, 0.5, s.WinRate, 1e-9)
		assert.InDelta(t, 5.0, s.TotalReturnPct, 1e-9)
		// 收益序列 ±10%，均值 0 → Sharpe 0
		assert.InDelta(t, 0.0, s.SharpeRatio, 1e-9)
		// 峰值 1100 → 990，回撤 10%
		assert.InDelta(t, 10.0, s.MaxDrawdownPct, 1e-9)
	})

	t.Run("sharpe annualized", func(t *testing.T) {
		trades := []sim.TradeLogEntry{
			{Action: signal.ActionSell, Price: 102, CostBasis: 100}, // +2%
			{Action: signal.ActionSell, Price: 104, CostBasis: 100}, // +4%
		}
		s := Compute(trades, nil, 1000)
		// mean=0.03, std=0.01, sharpe=3*sqrt(252)
		assert.InDelta(t, 3*math.Sqrt(252), s.SharpeRatio, 1e-9)
		assert.InDelta(t, 1.0, s.WinRate, 1e-9)
	})

	t.Run("drawdown uses initial cash as first peak", func(t *testing.T) {
		equity := []sim.EquityPoint{{Timestamp: 1, Value: 800}}
		s := Compute(nil, equity, 1000)
		assert.InDelta(t, 20.0, s.MaxDrawdownPct, 1e-9)
	})
}

func TestScoreSummary(t *testing.T) {
	t.Run("qualifying run", func(t *testing.T) {
		sc := ScoreSummary(Summary{
			TotalReturnPct: 10,  // → 22.5
			SharpeRatio:    1.0, // → 17.5
			MaxDrawdownPct: 5,   // → 15
			RoundTrips:     4,
		})
		assert.InDelta(t, 22.5, sc.Profitability, 1e-9)
		assert.InDelta(t, 17.5, sc.Sharpe, 1e-9)
		assert.InDelta(t, 15.0, sc.Drawdown, 1e-9)
		assert.InDelta(t, 55.0, sc.Total, 1e-9)
		assert.True(t, sc.Qualifies)
		assert.False(t, sc.LowActivity)
	})

	t.Run("caps and floors", func(t *testing.T) {
		sc := ScoreSummary(Summary{TotalReturnPct: 100, SharpeRatio: 10, MaxDrawdownPct: 50})
		assert.InDelta(t, 45.0, sc.Profitability, 1e-9)
		assert.InDelta(t, 35.0, sc.Sharpe, 1e-9)
		assert.InDelta(t, 0.0, sc.Drawdown, 1e-9)

		sc = ScoreSummary(Summary{TotalReturnPct: -50, SharpeRatio: -2, MaxDrawdownPct: 0})
		assert.InDelta(t, 0.0, sc.Profitability, 1e-9)
		assert.InDelta(t, 0.0, sc.Sharpe, 1e-9)
		assert.InDelta(t, 20.0, sc.Drawdown, 1e-9)
		assert.False(t, sc.Qualifies)
	})

	t.Run("low activity flag", func(t *testing.T) {
		sc := ScoreSummary(Summary{RoundTrips: 1})
		assert.True(t, sc.LowActivity)
	})

	require.True(t, MinRoundTrips >= 1)
}
