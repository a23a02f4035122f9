package metrics

import (
	"math"

	"stratlab/internal/signal"
	"stratlab/internal/sim"
)

// annualization 年化系数按 252 个交易日。
const annualization = 252

// Summary 一次模拟的绩效汇总，只依赖交易日志与资金曲线的公开形态。
type Summary struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	WinRate        float64 `json:"win_rate"`
	Trades         int     `json:"trades"`
	RoundTrips     int     `json:"round_trips"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	FinalValue     float64 `json:"final_value"`
}

// Compute 从交易日志和资金曲线推导绩效指标。
// 已实现收益按 SELL 记录的 (price-cost_basis)/cost_basis 计算。
func Compute(trades []sim.TradeLogEntry, equity []sim.EquityPoint, initialCash float64) Summary {
	s := Summary{Trades: len(trades), FinalValue: initialCash}
	if len(equity) > 0 {
		s.FinalValue = equity[len(equity)-1].Value
	}
	if initialCash > 0 {
		s.TotalReturnPct = (s.FinalValue - initialCash) / initialCash * 100
	}

	var returns []float64
	for _, tr := range trades {
		if tr.Action != signal.ActionSell || tr.CostBasis <= 0 {
			continue
		}
		returns = append(returns, (tr.Price-tr.CostBasis)/tr.CostBasis)
	}
	s.RoundTrips = len(returns)
	for _, r := range returns {
		if r > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if len(returns) > 0 {
		s.WinRate = float64(s.Wins) / float64(len(returns))
		if sd := stddev(returns); sd > 0 {
			s.SharpeRatio = mean(returns) / sd * math.Sqrt(annualization)
		}
	}

	s.MaxDrawdownPct = maxDrawdown(equity, initialCash) * 100
	return s
}

// maxDrawdown 资金曲线相对运行峰值的最大回撤（比例，非负）。
func maxDrawdown(equity []sim.EquityPoint, initialCash float64) float64 {
	peak := initialCash
	worst := 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Value) / peak
		if dd > worst {
			worst = dd
		}
	}
	return worst
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
