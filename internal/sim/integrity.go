package sim

import (
	"fmt"
	"math"

	"stratlab/internal/signal"
)

// CheckTradeLog 运行结束后的完整性检查：cash/portfolio_value 出现 NaN/Inf
// 或必备字段缺失都是致命错误，向调用方抛出而不是悄悄修复。
func CheckTradeLog(entries []TradeLogEntry) error {
	for i, e := range entries {
		if e.Timestamp <= 0 {
			return fmt.Errorf("%w: entry %d has no timestamp", ErrIntegrity, i)
		}
		if e.Symbol == "" {
			return fmt.Errorf("%w: entry %d has no symbol", ErrIntegrity, i)
		}
		if e.Action != signal.ActionBuy && e.Action != signal.ActionSell {
			return fmt.Errorf("%w: entry %d has action %q", ErrIntegrity, i, string(e.Action))
		}
		if !finite(e.CashAfter) {
			return fmt.Errorf("%w: entry %d cash is %v", ErrIntegrity, i, e.CashAfter)
		}
		if !finite(e.PortfolioValueAfter) {
			return fmt.Errorf("%w: entry %d portfolio_value is %v", ErrIntegrity, i, e.PortfolioValueAfter)
		}
	}
	return nil
}

// CheckEquityCurve 检查资金曲线无 NaN/Inf 且时间戳单调不减。
func CheckEquityCurve(points []EquityPoint) error {
	var prev int64
	for i, p := range points {
		if !finite(p.Value) {
			return fmt.Errorf("%w: equity point %d value is %v", ErrIntegrity, i, p.Value)
		}
		if p.Timestamp < prev {
			return fmt.Errorf("%w: equity point %d out of order (%d < %d)", ErrIntegrity, i, p.Timestamp, prev)
		}
		prev = p.Timestamp
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
