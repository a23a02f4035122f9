package sim

import (
	"math"
	"testing"

	"stratlab/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameWith(symbol, tf string, candles ...market.Candle) *market.FrameSet {
	fs := market.NewFrameSet()
	_ = fs.Put(market.Frame{Symbol: symbol, Timeframe: tf, Candles: candles})
	return fs
}

func TestPriceResolver(t *testing.T) {
	hour := int64(3600_000)

	t.Run("exact hit in execution timeframe", func(t *testing.T) {
		fs := frameWith("LDO", "1h",
			market.Candle{OpenTime: hour, Close: 2.5},
			market.Candle{OpenTime: 2 * hour, Close: 2.6},
		)
		r := NewPriceResolver(fs, "1h", nil)

		price, err := r.Resolve("LDO", 2*hour)
		require.NoError(t, err)
		assert.InDelta(t, 2.6, price, 1e-12)
	})

	t.Run("nearest prior on miss", func(t *testing.T) {
		fs := frameWith("LDO", "1h",
			market.Candle{OpenTime: hour, Close: 2.5},
			market.Candle{OpenTime: 3 * hour, Close: 2.7},
		)
		r := NewPriceResolver(fs, "1h", nil)

		price, err := r.Resolve("LDO", 2*hour)
		require.NoError(t, err)
		assert.InDelta(t, 2.5, price, 1e-12)
	})

	t.Run("falls back to coarser timeframe", func(t *testing.T) {
		fs := market.NewFrameSet()
		require.NoError(t, fs.Put(market.Frame{Symbol: "BTC", Timeframe: "4h", Candles: []market.Candle{
			{OpenTime: 4 * hour, Close: 60000},
		}}))
		r := NewPriceResolver(fs, "1h", []string{"4h"})

		price, err := r.Resolve("BTC", 5*hour)
		require.NoError(t, err)
		assert.InDelta(t, 60000, price, 1e-9)
	})

	t.Run("exhausted fallbacks", func(t *testing.T) {
		fs := frameWith("LDO", "1h", market.Candle{OpenTime: 5 * hour, Close: 2.5})
		r := NewPriceResolver(fs, "1h", []string{"4h"})

		_, err := r.Resolve("LDO", hour) // 最早一根之前没有任何数据
		assert.ErrorIs(t, err, ErrPriceNotFound)

		_, err = r.Resolve("ETH", 5*hour) // 未知 symbol
		assert.ErrorIs(t, err, ErrPriceNotFound)
	})

	t.Run("non-finite close", func(t *testing.T) {
		fs := frameWith("LDO", "1h", market.Candle{OpenTime: hour, Close: math.NaN()})
		r := NewPriceResolver(fs, "1h", nil)

		_, err := r.Resolve("LDO", hour)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("negative close", func(t *testing.T) {
		fs := frameWith("LDO", "1h", market.Candle{OpenTime: hour, Close: -1})
		r := NewPriceResolver(fs, "1h", nil)

		_, err := r.Resolve("LDO", hour)
		assert.ErrorIs(t, err, ErrNegativePrice)
	})
}
