package sim

import (
	"fmt"

	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/signal"
)

// Config 一次模拟的全部参数，显式传入，没有任何全局默认。
type Config struct {
	InitialCash        float64
	FeeRate            float64
	ExecutionTimeframe string
	FallbackTimeframes []string
}

func (c Config) validate() error {
	if c.InitialCash <= 0 {
		return fmt.Errorf("initial cash must be positive, got %v", c.InitialCash)
	}
	if c.FeeRate < 0 || c.FeeRate > 1 {
		return fmt.Errorf("fee rate must be within [0, 1], got %v", c.FeeRate)
	}
	if _, err := market.ParseTimeframe(c.ExecutionTimeframe); err != nil {
		return fmt.Errorf("execution timeframe: %w", err)
	}
	for _, tf := range c.FallbackTimeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("fallback timeframe: %w", err)
		}
	}
	return nil
}

// Driver 按时间顺序重放信号：解析价格 → 执行 → 记账。
// 行级失败只跳过当前信号；只有结构/完整性错误会中止整个 run。
type Driver struct {
	cfg      Config
	auditTag string
}

func NewDriver(cfg Config) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Driver{cfg: cfg}, nil
}

// SetAuditTag 设置审计日志的 run 标识（引擎本身不感知 submission id）。
func (d *Driver) SetAuditTag(tag string) { d.auditTag = tag }

// Simulate 对一组已校验的信号做确定性重放。signals 为空或全部被拒绝
// 也会返回结果（空交易日志是合法产出）。
func (d *Driver) Simulate(signals []signal.Signal, frames *market.FrameSet) (*Result, error) {
	if frames == nil || frames.Empty() {
		return nil, fmt.Errorf("candle dataset is empty: nothing to resolve prices against")
	}

	ordered := append([]signal.Signal(nil), signals...)
	signal.SortByTimestamp(ordered)

	ledger := NewLedger(d.cfg.InitialCash)
	resolver := NewPriceResolver(frames, d.cfg.ExecutionTimeframe, d.cfg.FallbackTimeframes)
	executor := NewExecutor(d.cfg.FeeRate)

	result := &Result{
		TradeLog:    make([]TradeLogEntry, 0, len(ordered)),
		EquityCurve: make([]EquityPoint, 0, len(ordered)),
	}

	for _, sig := range ordered {
		d.processSignal(sig, ledger, resolver, executor, result)
		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Timestamp: sig.Timestamp,
			Value:     ledger.PortfolioValue(),
		})
	}

	result.FinalCash = ledger.Cash()
	result.FinalValue = ledger.PortfolioValue()

	if err := CheckTradeLog(result.TradeLog); err != nil {
		return nil, err
	}
	if err := CheckEquityCurve(result.EquityCurve); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Driver) processSignal(sig signal.Signal, ledger *Ledger, resolver *PriceResolver, executor *Executor, result *Result) {
	price, err := resolver.Resolve(sig.Symbol, sig.Timestamp)

	if sig.Action == signal.ActionHold {
		// HOLD 不进执行器，只在能解析时刷新标记价。
		if err == nil {
			ledger.MarkPrice(sig.Symbol, price)
		}
		return
	}

	if err != nil {
		d.reject(sig, err, result)
		return
	}
	ledger.MarkPrice(sig.Symbol, price)

	entry, err := executor.Execute(sig, ledger, price)
	if err != nil {
		d.reject(sig, err, result)
		return
	}
	if entry == nil {
		return
	}
	entry.PortfolioValueAfter = ledger.PortfolioValue()
	result.TradeLog = append(result.TradeLog, *entry)
	logger.Auditf(d.auditTag, "trade", "%s %s shares=%v price=%v fees=%v cash=%v",
		entry.Action, entry.Symbol, entry.Shares, entry.Price, entry.Fees, entry.CashAfter)
}

func (d *Driver) reject(sig signal.Signal, err error, result *Result) {
	result.Rejections = append(result.Rejections, Rejection{
		Timestamp: sig.Timestamp,
		Symbol:    sig.Symbol,
		Action:    sig.Action,
		Reason:    err.Error(),
		Err:       err,
	})
	logger.Auditf(d.auditTag, "skip", "%s %s@%d: %v", sig.Action, sig.Symbol, sig.Timestamp, err)
	logger.Debugf("[sim] 信号被跳过: %v", err)
}
