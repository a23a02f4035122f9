package sim

import (
	"math"
	"testing"

	"stratlab/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buySignal(ts int64, symbol string, size float64) signal.Signal {
	return signal.Signal{Timestamp: ts, Symbol: symbol, Action: signal.ActionBuy, PositionSize: size}
}

func sellSignal(ts int64, symbol string, size float64) signal.Signal {
	return signal.Signal{Timestamp: ts, Symbol: symbol, Action: signal.ActionSell, PositionSize: size}
}

func TestExecutorBuy(t *testing.T) {
	t.Run("half position at fee 0.001", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)

		entry, err := exec.Execute(buySignal(1700000000000, "X", 0.5), ledger, 100)
		require.NoError(t, err)
		require.NotNil(t, entry)

		// allocated=500, target=499.5, shares=4.995, fees=0.5, total=500
		assert.InDelta(t, 4.995, entry.Shares, 1e-9)
		assert.InDelta(t, 0.5, entry.Fees, 1e-9)
		assert.InDelta(t, 500.0, entry.CashAfter, 1e-9)
		assert.InDelta(t, 500.0, ledger.Cash(), 1e-9)

		pos, ok := ledger.Position("X")
		require.True(t, ok)
		assert.InDelta(t, 4.995, pos.Shares, 1e-9)
		assert.InDelta(t, 100.0, pos.AvgCost, 1e-9)
	})

	t.Run("full position allocates all cash before fees", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)

		entry, err := exec.Execute(buySignal(1, "X", 1.0), ledger, 100)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, ledger.Cash(), 1e-9)
		assert.InDelta(t, 9.99, entry.Shares, 1e-9)
	})

	t.Run("zero position size rejected", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)

		entry, err := exec.Execute(buySignal(1, "X", 0), ledger, 100)
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, ErrZeroPositionSize)
		assert.InDelta(t, 1000.0, ledger.Cash(), 1e-9)
	})

	t.Run("no cash rejected", func(t *testing.T) {
		ledger := NewLedger(0)
		exec := NewExecutor(0.001)

		_, err := exec.Execute(buySignal(1, "X", 0.5), ledger, 100)
		assert.ErrorIs(t, err, ErrNoCashAvailable)
	})

	t.Run("fee rate consuming whole allocation rejected", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(1.0)

		_, err := exec.Execute(buySignal(1, "X", 0.5), ledger, 100)
		assert.ErrorIs(t, err, ErrFeesExceedAllocation)
		assert.InDelta(t, 1000.0, ledger.Cash(), 1e-9)
		_, ok := ledger.Position("X")
		assert.False(t, ok)
	})

	t.Run("insufficient funds reports both amounts to five decimals", func(t *testing.T) {
		ledger := NewLedger(100)
		exec := NewExecutor(0)

		// 越过校验边界直接塞超过 1.0 的仓位比例，触发资金闸门。
		_, err := exec.Execute(buySignal(1, "X", 1.5), ledger, 10)
		require.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Contains(t, err.Error(), "required 150.00000")
		assert.Contains(t, err.Error(), "available 100.00000")
	})

	t.Run("invalid prices rejected", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)

		_, err := exec.Execute(buySignal(1, "X", 0.5), ledger, math.NaN())
		assert.ErrorIs(t, err, ErrInvalidPrice)

		_, err = exec.Execute(buySignal(1, "X", 0.5), ledger, -5)
		assert.ErrorIs(t, err, ErrNegativePrice)

		_, err = exec.Execute(buySignal(1, "X", 0.5), ledger, 0)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("accumulation recomputes weighted average cost", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0)

		_, err := exec.Execute(buySignal(1, "X", 0.5), ledger, 100) // 5 shares @100
		require.NoError(t, err)
		_, err = exec.Execute(buySignal(2, "X", 0.5), ledger, 50) // 5 shares @50
		require.NoError(t, err)

		pos, ok := ledger.Position("X")
		require.True(t, ok)
		assert.InDelta(t, 10.0, pos.Shares, 1e-9)
		assert.InDelta(t, 75.0, pos.AvgCost, 1e-9) // (5*100+5*50)/10
	})

	t.Run("rejection carries symbol and timestamp", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)

		_, err := exec.Execute(buySignal(1700000000000, "LDO", 0), ledger, 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LDO@1700000000000")
	})
}

func TestExecutorSell(t *testing.T) {
	t.Run("no position rejected and ledger untouched", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)

		entry, err := exec.Execute(sellSignal(1, "X", 0.5), ledger, 100)
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, ErrNoPosition)
		assert.InDelta(t, 1000.0, ledger.Cash(), 1e-9)
	})

	t.Run("partial sell keeps cost basis", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0)

		_, err := exec.Execute(buySignal(1, "X", 1.0), ledger, 100) // 10 shares
		require.NoError(t, err)

		entry, err := exec.Execute(sellSignal(2, "X", 0.5), ledger, 120)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, entry.Shares, 1e-9)
		assert.InDelta(t, 600.0, entry.CashAfter, 1e-9)
		assert.InDelta(t, 100.0, entry.CostBasis, 1e-9)

		pos, ok := ledger.Position("X")
		require.True(t, ok)
		assert.InDelta(t, 5.0, pos.Shares, 1e-9)
		assert.InDelta(t, 100.0, pos.AvgCost, 1e-9)
	})

	t.Run("full sell clears the position", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)

		_, err := exec.Execute(buySignal(1, "X", 1.0), ledger, 100)
		require.NoError(t, err)

		_, err = exec.Execute(sellSignal(2, "X", 1.0), ledger, 100)
		require.NoError(t, err)

		_, ok := ledger.Position("X")
		assert.False(t, ok)

		// 清仓后再买是全新一笔，成本从新价起算。
		_, err = exec.Execute(buySignal(3, "X", 1.0), ledger, 40)
		require.NoError(t, err)
		pos, ok := ledger.Position("X")
		require.True(t, ok)
		assert.InDelta(t, 40.0, pos.AvgCost, 1e-9)
	})

	t.Run("sell credits net proceeds", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)

		_, err := exec.Execute(buySignal(1, "X", 1.0), ledger, 100) // 9.99 shares, cash 0
		require.NoError(t, err)

		entry, err := exec.Execute(sellSignal(2, "X", 1.0), ledger, 100)
		require.NoError(t, err)
		// gross = 999, net = 999*0.999 = 998.001
		assert.InDelta(t, 998.001, entry.CashAfter, 1e-9)
		assert.InDelta(t, 0.999, entry.Fees, 1e-9)
	})

	t.Run("fee rate consuming all proceeds rejected", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(1.0)
		ledger.ApplyBuy("X", 10, 100, 0)

		_, err := exec.Execute(sellSignal(2, "X", 1.0), ledger, 100)
		assert.ErrorIs(t, err, ErrFeesExceedProceeds)
	})

	t.Run("zero cost basis is a hard rejection", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)
		ledger.ApplyBuy("X", 10, 0, 0) // 构造退化持仓

		_, err := exec.Execute(sellSignal(2, "X", 1.0), ledger, 50)
		assert.ErrorIs(t, err, ErrZeroCostBasis)
		pos, ok := ledger.Position("X")
		require.True(t, ok)
		assert.InDelta(t, 10.0, pos.Shares, 1e-9)
	})

	t.Run("zero price yields zero gross proceeds", func(t *testing.T) {
		ledger := NewLedger(1000)
		exec := NewExecutor(0.001)
		ledger.ApplyBuy("X", 10, 100, 0)

		_, err := exec.Execute(sellSignal(2, "X", 1.0), ledger, 0)
		assert.ErrorIs(t, err, ErrInvalidGrossProceeds)
	})
}

func TestIsRejection(t *testing.T) {
	ledger := NewLedger(0)
	exec := NewExecutor(0.001)
	_, err := exec.Execute(buySignal(1, "X", 0.5), ledger, 100)
	assert.True(t, IsRejection(err))
	assert.False(t, IsRejection(ErrIntegrity))
	assert.False(t, IsRejection(nil))
}
