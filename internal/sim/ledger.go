package sim

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

const epsilon = 1e-9

// Position 某 symbol 的持仓：股数 + 加权平均成本。
type Position struct {
	Shares  float64
	AvgCost float64
}

// Ledger 一次模拟独占的资金账本：现金 + 持仓 + 最近标记价。
// 数值策略集中在 Executor，这里只做状态变更，信任调用方。
type Ledger struct {
	cash      float64
	positions map[string]Position
	marks     map[string]float64
}

func NewLedger(initialCash float64) *Ledger {
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]Position),
		marks:     make(map[string]float64),
	}
}

// Cash 当前现金。
func (l *Ledger) Cash() float64 { return l.cash }

// Position 返回 symbol 的持仓。
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

// MarkPrice 记录 symbol 最近一次成功解析的价格，用于估值。
func (l *Ledger) MarkPrice(symbol string, price float64) {
	l.marks[symbol] = price
}

// ApplyBuy 入账一笔买入：扣减现金、累加持仓并重算加权平均成本。
func (l *Ledger) ApplyBuy(symbol string, shares, price, totalCost float64) {
	l.cash -= totalCost
	old := l.positions[symbol]
	newShares := old.Shares + shares
	avgCost := price
	if old.Shares > epsilon {
		avgCost = weightedAvgCost(old.Shares, old.AvgCost, shares, price)
	}
	l.positions[symbol] = Position{Shares: newShares, AvgCost: avgCost}
}

// ApplySell 入账一笔卖出：入账净收益、扣减持仓，清零时删除持仓（重开视为全新一笔）。
func (l *Ledger) ApplySell(symbol string, sharesSold, netProceeds float64) {
	l.cash += netProceeds
	pos := l.positions[symbol]
	remaining := pos.Shares - sharesSold
	if remaining <= epsilon {
		delete(l.positions, symbol)
		return
	}
	l.positions[symbol] = Position{Shares: remaining, AvgCost: pos.AvgCost}
}

// PortfolioValue 现金 + Σ(股数 × 最近标记价)。symbol 排序后累加，保证结果可复现。
func (l *Ledger) PortfolioValue() float64 {
	total := l.cash
	symbols := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		pos := l.positions[sym]
		mark := l.marks[sym]
		if math.IsNaN(mark) || math.IsInf(mark, 0) {
			continue
		}
		total += pos.Shares * mark
	}
	return total
}

// weightedAvgCost 按股数加权合并两笔成本，走 decimal 避免大持仓下的累积误差。
func weightedAvgCost(oldShares, oldCost, newShares, newPrice float64) float64 {
	oldQty := decimal.NewFromFloat(oldShares)
	newQty := decimal.NewFromFloat(newShares)
	total := oldQty.Add(newQty)
	if total.IsZero() {
		return 0
	}
	weighted := oldQty.Mul(decimal.NewFromFloat(oldCost)).
		Add(newQty.Mul(decimal.NewFromFloat(newPrice)))
	out, _ := weighted.Div(total).Float64()
	return out
}
