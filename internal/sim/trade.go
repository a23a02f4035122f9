package sim

import "stratlab/internal/signal"

// TradeLogEntry 一笔已执行交易的审计记录。HOLD 与被拒绝的信号不产生记录。
type TradeLogEntry struct {
	Timestamp int64         `json:"timestamp"`
	Action    signal.Action `json:"action"`
	Symbol    string        `json:"symbol"`
	Shares    float64       `json:"shares"`
	Price     float64       `json:"price"`
	Fees      float64       `json:"fees"`
	// CostBasis BUY 为成交后的加权平均成本，SELL 为卖出时使用的成本。
	CostBasis           float64 `json:"cost_basis"`
	CashAfter           float64 `json:"cash"`
	PortfolioValueAfter float64 `json:"portfolio_value"`
}

// EquityPoint 资金曲线上的一个点：处理完某条信号后的组合总值。
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Rejection 被跳过的信号及原因。
type Rejection struct {
	Timestamp int64         `json:"timestamp"`
	Symbol    string        `json:"symbol"`
	Action    signal.Action `json:"action"`
	Reason    string        `json:"reason"`
	Err       error         `json:"-"`
}

// Result 一次模拟的全部产出。
type Result struct {
	TradeLog    []TradeLogEntry `json:"trade_log"`
	EquityCurve []EquityPoint   `json:"equity_curve"`
	Rejections  []Rejection     `json:"rejections"`
	FinalCash   float64         `json:"final_cash"`
	FinalValue  float64         `json:"final_value"`
}
