package signal

import "sort"

// Action 信号动作。
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Valid 判断动作是否在允许的域内。
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

// Signal 一条策略决策：某时刻对某 symbol 的 BUY/SELL/HOLD 及仓位比例。
type Signal struct {
	Timestamp    int64   `json:"timestamp"`
	Symbol       string  `json:"symbol"`
	Action       Action  `json:"signal"`
	PositionSize float64 `json:"position_size"`
}

// SortByTimestamp 按时间戳稳定排序（同一时间戳保持输入顺序）。
func SortByTimestamp(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Timestamp < signals[j].Timestamp
	})
}
