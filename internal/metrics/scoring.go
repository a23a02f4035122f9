package metrics

// 提交评分的三个维度与及格线。
const (
	profitabilityMax = 45.0
	sharpeMax        = 35.0
	drawdownMax      = 20.0

	profitabilityCutoff = 9.0
	sharpeCutoff        = 10.0
	drawdownCutoff      = 5.0
	totalCutoff         = 50.0

	// MinRoundTrips 低于该笔数的提交标记为交易量不足（仅提示，不判负）。
	MinRoundTrips = 2
)

// Score 提交评分：盈利 0–45、Sharpe 0–35、回撤 0–20。
type Score struct {
	Profitability float64 `json:"profitability"`
	Sharpe        float64 `json:"sharpe"`
	Drawdown      float64 `json:"drawdown"`
	Total         float64 `json:"total"`
	Qualifies     bool    `json:"qualifies"`
	LowActivity   bool    `json:"low_activity"`
}

// ScoreSummary 把绩效指标映射到评分区间：
// 收益 20% 拿满盈利分，Sharpe 2.0 拿满 Sharpe 分，回撤每 1% 扣 1 分。
func ScoreSummary(s Summary) Score {
	sc := Score{
		Profitability: clamp(s.TotalReturnPct*2.25, 0, profitabilityMax),
		Sharpe:        clamp(s.SharpeRatio*17.5, 0, sharpeMax),
		Drawdown:      clamp(drawdownMax-s.MaxDrawdownPct, 0, drawdownMax),
		LowActivity:   s.RoundTrips < MinRoundTrips,
	}
	sc.Total = sc.Profitability + sc.Sharpe + sc.Drawdown
	sc.Qualifies = sc.Profitability >= profitabilityCutoff &&
		sc.Sharpe >= sharpeCutoff &&
		sc.Drawdown >= drawdownCutoff &&
		sc.Total >= totalCutoff
	return sc
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
