package store

import (
	"context"
	"path/filepath"
	"testing"

	"stratlab/internal/signal"
	"stratlab/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResultStore(t *testing.T) *ResultStore {
	t.Helper()
	s, err := NewResultStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResultStore(t *testing.T) {
	ctx := context.Background()
	s := newResultStore(t)

	rec := RunRecord{
		RunID:       "run-1",
		Submission:  "alpha",
		InitialCash: 1000,
		FeeRate:     0.001,
		Timeframe:   "1h",
		Signals:     3,
	}
	require.NoError(t, s.InsertRun(ctx, rec))

	t.Run("get run defaults to pending", func(t *testing.T) {
		got, ok, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, RunStatusPending, got.Status)
		assert.Equal(t, "alpha", got.Submission)
		assert.False(t, got.StartedAt.IsZero())
	})

	t.Run("unknown run", func(t *testing.T) {
		_, ok, err := s.GetRun(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("status transitions", func(t *testing.T) {
		require.NoError(t, s.UpdateRunStatus(ctx, "run-1", RunStatusRunning, ""))
		require.NoError(t, s.UpdateRunStatus(ctx, "run-1", RunStatusFinished, ""))
		got, _, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, RunStatusFinished, got.Status)
		assert.False(t, got.FinishedAt.IsZero())

		assert.Error(t, s.UpdateRunStatus(ctx, "absent", RunStatusFailed, "boom"))
	})

	t.Run("save and read back result", func(t *testing.T) {
		result := &sim.Result{
			TradeLog: []sim.TradeLogEntry{
				{Timestamp: 1, Action: signal.ActionBuy, Symbol: "LDO", Shares: 4.995, Price: 100, Fees: 0.5, CostBasis: 100, CashAfter: 500, PortfolioValueAfter: 999.5},
				{Timestamp: 2, Action: signal.ActionSell, Symbol: "LDO", Shares: 4.995, Price: 110, Fees: 0.54945, CostBasis: 100, CashAfter: 1048.9, PortfolioValueAfter: 1048.9},
			},
			EquityCurve: []sim.EquityPoint{{Timestamp: 1, Value: 999.5}, {Timestamp: 2, Value: 1048.9}},
			Rejections:  []sim.Rejection{{Timestamp: 3, Symbol: "LDO", Action: signal.ActionBuy, Reason: "no cash available"}},
		}
		require.NoError(t, s.SaveResult(ctx, "run-1", result))

		trades, err := s.ListTrades(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, signal.ActionBuy, trades[0].Action)
		assert.InDelta(t, 4.995, trades[0].Shares, 1e-9)

		equity, err := s.ListEquity(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, equity, 2)
		assert.InDelta(t, 1048.9, equity[1].Value, 1e-9)

		rejections, err := s.ListRejections(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, rejections, 1)
		assert.Equal(t, "no cash available", rejections[0].Reason)
	})

	t.Run("summary and score json columns", func(t *testing.T) {
		summary := map[string]any{"total_return_pct": 4.89}
		score := map[string]any{"total": 42.0}
		require.NoError(t, s.UpdateRunSummary(ctx, "run-1", summary, score))
		got, _, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"total_return_pct":4.89}`, string(got.Summary))
		assert.JSONEq(t, `{"total":42}`, string(got.Score))
	})

	t.Run("list runs newest first", func(t *testing.T) {
		require.NoError(t, s.InsertRun(ctx, RunRecord{RunID: "run-2", Submission: "beta"}))
		runs, err := s.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].RunID)
	})
}
