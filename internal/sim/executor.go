package sim

import (
	"math"

	"stratlab/internal/signal"

	"github.com/shopspring/decimal"
)

// Executor 把单条信号变成账本变更。所有数值闸门按固定顺序执行，
// 任何一道不过就返回行级拒绝且账本保持原样。
type Executor struct {
	feeRate decimal.Decimal
}

func NewExecutor(feeRate float64) *Executor {
	return &Executor{feeRate: decimal.NewFromFloat(feeRate)}
}

// Execute 执行 BUY/SELL。成功时原子地变更 ledger 并返回审计记录
// （PortfolioValueAfter 由调用方在估值后填写）。HOLD 不应到达这里。
func (e *Executor) Execute(sig signal.Signal, ledger *Ledger, price float64) (*TradeLogEntry, error) {
	switch sig.Action {
	case signal.ActionBuy:
		return e.executeBuy(sig, ledger, price)
	case signal.ActionSell:
		return e.executeSell(sig, ledger, price)
	default:
		return nil, nil
	}
}

func (e *Executor) executeBuy(sig signal.Signal, ledger *Ledger, price float64) (*TradeLogEntry, error) {
	sym, ts := sig.Symbol, sig.Timestamp

	if sig.PositionSize == 0 {
		return nil, rejectf(ErrZeroPositionSize, sym, ts, "")
	}
	cash := ledger.Cash()
	if cash == 0 {
		return nil, rejectf(ErrNoCashAvailable, sym, ts, "")
	}

	cashDec := decimal.NewFromFloat(cash)
	allocated := cashDec.Mul(decimal.NewFromFloat(sig.PositionSize))
	if !allocated.IsPositive() {
		return nil, rejectf(ErrInvalidAllocation, sym, ts, "allocated %s from cash %.5f", allocated.String(), cash)
	}
	target := allocated.Mul(decimal.NewFromInt(1).Sub(e.feeRate))
	if !target.IsPositive() {
		return nil, rejectf(ErrFeesExceedAllocation, sym, ts, "allocation %s at fee rate %s", allocated.String(), e.feeRate.String())
	}

	if err := validatePrice(sym, ts, price); err != nil {
		return nil, err
	}
	if price == 0 {
		// 零价格无法换算股数（除数为零），按非法价格拒绝。
		return nil, rejectf(ErrInvalidPrice, sym, ts, "price is zero")
	}

	shares := target.Div(decimal.NewFromFloat(price))
	if !shares.IsPositive() {
		return nil, rejectf(ErrInvalidShareCount, sym, ts, "computed %s shares at price %v", shares.String(), price)
	}

	fees := allocated.Sub(target)
	totalCost := shares.Mul(decimal.NewFromFloat(price)).Add(fees)
	if totalCost.GreaterThan(cashDec) {
		required, _ := totalCost.Float64()
		return nil, rejectf(ErrInsufficientFunds, sym, ts, "required %.5f, available %.5f", required, cash)
	}

	sharesF, _ := shares.Float64()
	old, _ := ledger.Position(sym)
	if old.Shares+sharesF == 0 {
		return nil, rejectf(ErrZeroTotalShares, sym, ts, "nothing to average over")
	}
	totalCostF, _ := totalCost.Float64()
	feesF, _ := fees.Float64()
	ledger.ApplyBuy(sym, sharesF, price, totalCostF)

	pos, _ := ledger.Position(sym)
	return &TradeLogEntry{
		Timestamp: ts,
		Action:    signal.ActionBuy,
		Symbol:    sym,
		Shares:    sharesF,
		Price:     price,
		Fees:      feesF,
		CostBasis: pos.AvgCost,
		CashAfter: ledger.Cash(),
	}, nil
}

func (e *Executor) executeSell(sig signal.Signal, ledger *Ledger, price float64) (*TradeLogEntry, error) {
	sym, ts := sig.Symbol, sig.Timestamp

	pos, ok := ledger.Position(sym)
	if !ok {
		return nil, rejectf(ErrNoPosition, sym, ts, "")
	}
	if err := validatePrice(sym, ts, price); err != nil {
		return nil, err
	}

	sharesToSell := decimal.NewFromFloat(pos.Shares).Mul(decimal.NewFromFloat(sig.PositionSize))
	if !sharesToSell.IsPositive() {
		return nil, rejectf(ErrInvalidShareCount, sym, ts, "position %v shares at size %v", pos.Shares, sig.PositionSize)
	}
	gross := sharesToSell.Mul(decimal.NewFromFloat(price))
	if !gross.IsPositive() {
		return nil, rejectf(ErrInvalidGrossProceeds, sym, ts, "gross %s at price %v", gross.String(), price)
	}
	net := gross.Mul(decimal.NewFromInt(1).Sub(e.feeRate))
	if !net.IsPositive() {
		return nil, rejectf(ErrFeesExceedProceeds, sym, ts, "gross %s at fee rate %s", gross.String(), e.feeRate.String())
	}
	// 计算已实现盈亏要除以成本，成本为零的持仓卖出是硬错误而不是白捡利润。
	if pos.AvgCost == 0 {
		return nil, rejectf(ErrZeroCostBasis, sym, ts, "position has zero average cost basis")
	}

	sharesF, _ := sharesToSell.Float64()
	netF, _ := net.Float64()
	feesF, _ := gross.Sub(net).Float64()
	ledger.ApplySell(sym, sharesF, netF)

	return &TradeLogEntry{
		Timestamp: ts,
		Action:    signal.ActionSell,
		Symbol:    sym,
		Shares:    sharesF,
		Price:     price,
		Fees:      feesF,
		CostBasis: pos.AvgCost,
		CashAfter: ledger.Cash(),
	}, nil
}

// validatePrice 在使用点复查价格（解析与消费是两个环节，双保险）。
func validatePrice(symbol string, ts int64, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return rejectf(ErrInvalidPrice, symbol, ts, "price %v is not finite", price)
	}
	if price < 0 {
		return rejectf(ErrNegativePrice, symbol, ts, "price %v", price)
	}
	return nil
}
