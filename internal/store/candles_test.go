package store

import (
	"context"
	"testing"

	"stratlab/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hour = int64(3600_000)

func testCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			OpenTime:  int64(i) * hour,
			CloseTime: int64(i+1)*hour - 1,
			Open:      100,
			High:      110,
			Low:       90,
			Close:     100 + float64(i),
			Volume:    1000,
			Trades:    10,
		}
	}
	return out
}

func TestCandleStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewCandleStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	t.Run("insert and range", func(t *testing.T) {
		n, err := s.InsertCandles(ctx, "ldo", "1H", testCandles(5))
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		got, err := s.RangeCandles(ctx, "LDO", "1h", 0, 4*hour)
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.InDelta(t, 100.0, got[0].Close, 1e-9)
		assert.InDelta(t, 104.0, got[4].Close, 1e-9)
	})

	t.Run("upsert overwrites same open_time", func(t *testing.T) {
		updated := []market.Candle{{OpenTime: 0, CloseTime: hour - 1, Close: 55}}
		_, err := s.InsertCandles(ctx, "LDO", "1h", updated)
		require.NoError(t, err)
		got, err := s.RangeCandles(ctx, "LDO", "1h", 0, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 55.0, got[0].Close, 1e-9)
	})

	t.Run("manifest tracks bounds", func(t *testing.T) {
		m, err := s.Manifest(ctx, "LDO", "1h")
		require.NoError(t, err)
		assert.Equal(t, "LDO", m.Symbol)
		assert.Equal(t, int64(0), m.MinTime)
		assert.Equal(t, 4*hour, m.MaxTime)
		assert.Equal(t, int64(5), m.Rows)
	})

	t.Run("frame wraps range", func(t *testing.T) {
		f, err := s.Frame(ctx, "ldo", "1H", 0, 4*hour)
		require.NoError(t, err)
		assert.Equal(t, "LDO", f.Symbol)
		assert.Equal(t, "1h", f.Timeframe)
		assert.Len(t, f.Candles, 5)
	})

	t.Run("integrity reports gaps", func(t *testing.T) {
		tf, err := market.ParseTimeframe("1h")
		require.NoError(t, err)

		report, err := s.CheckIntegrity(ctx, "LDO", "1h", tf, 0, 4*hour)
		require.NoError(t, err)
		assert.True(t, report.Complete())
		assert.Equal(t, int64(5), report.Expected)
		assert.Equal(t, int64(5), report.Present)

		// 扩大区间制造尾部缺口
		report, err = s.CheckIntegrity(ctx, "LDO", "1h", tf, 0, 7*hour)
		require.NoError(t, err)
		assert.False(t, report.Complete())
		require.Len(t, report.Gaps, 1)
		assert.Equal(t, 5*hour, report.Gaps[0].Start)
		assert.Equal(t, 7*hour, report.Gaps[0].End)
	})

	t.Run("empty symbol rejected", func(t *testing.T) {
		_, err := s.RangeCandles(ctx, "", "1h", 0, hour)
		assert.Error(t, err)
	})
}
