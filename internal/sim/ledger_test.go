package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	t.Run("buy then partial sell", func(t *testing.T) {
		l := NewLedger(1000)
		l.ApplyBuy("X", 10, 50, 500)
		assert.InDelta(t, 500.0, l.Cash(), 1e-9)

		pos, ok := l.Position("X")
		require.True(t, ok)
		assert.InDelta(t, 10.0, pos.Shares, 1e-9)
		assert.InDelta(t, 50.0, pos.AvgCost, 1e-9)

		l.ApplySell("X", 4, 240)
		assert.InDelta(t, 740.0, l.Cash(), 1e-9)
		pos, ok = l.Position("X")
		require.True(t, ok)
		assert.InDelta(t, 6.0, pos.Shares, 1e-9)
		assert.InDelta(t, 50.0, pos.AvgCost, 1e-9)
	})

	t.Run("sell to zero removes the entry", func(t *testing.T) {
		l := NewLedger(0)
		l.ApplyBuy("X", 3, 10, 0)
		l.ApplySell("X", 3, 30)
		_, ok := l.Position("X")
		assert.False(t, ok)
	})

	t.Run("weighted average across lots", func(t *testing.T) {
		l := NewLedger(0)
		l.ApplyBuy("X", 2, 100, 0)
		l.ApplyBuy("X", 6, 20, 0)
		pos, _ := l.Position("X")
		assert.InDelta(t, 40.0, pos.AvgCost, 1e-9) // (2*100+6*20)/8
	})

	t.Run("portfolio value marks positions at last price", func(t *testing.T) {
		l := NewLedger(100)
		l.ApplyBuy("A", 2, 10, 20)
		l.ApplyBuy("B", 1, 5, 5)
		l.MarkPrice("A", 12)
		l.MarkPrice("B", 4)
		// 75 cash + 2*12 + 1*4
		assert.InDelta(t, 103.0, l.PortfolioValue(), 1e-9)
	})

	t.Run("portfolio value without marks counts cash only", func(t *testing.T) {
		l := NewLedger(50)
		l.ApplyBuy("A", 2, 10, 20)
		assert.InDelta(t, 30.0, l.PortfolioValue(), 1e-9)
	})
}
