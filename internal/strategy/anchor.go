package strategy

import (
	"encoding/json"
	"fmt"

	"stratlab/internal/market"
	"stratlab/internal/signal"

	talib "github.com/markcheno/go-talib"
)

// AnchorPumpConfig 锚定动量参考策略的参数。
type AnchorPumpConfig struct {
	PumpThresholdPct float64 // 锚定币单根 ROC 超过该值触发买入
	TakeProfitPct    float64 // 相对入场价的止盈幅度
	StopLossPct      float64 // 相对入场价的止损幅度（正数）
	PositionSize     float64
}

func (c AnchorPumpConfig) withDefaults() AnchorPumpConfig {
	if c.PumpThresholdPct <= 0 {
		c.PumpThresholdPct = 2.0
	}
	if c.TakeProfitPct <= 0 {
		c.TakeProfitPct = 5.0
	}
	if c.StopLossPct <= 0 {
		c.StopLossPct = 3.0
	}
	if c.PositionSize <= 0 || c.PositionSize > 1 {
		c.PositionSize = 0.5
	}
	return c
}

// AnchorPump 内置参考策略：锚定币放量拉升时买入目标币，
// 到达止盈或止损位平仓。产出与外部提交走同一套校验。
type AnchorPump struct {
	cfg AnchorPumpConfig
}

func NewAnchorPump(cfg AnchorPumpConfig) *AnchorPump {
	return &AnchorPump{cfg: cfg.withDefaults()}
}

// Generate 按目标币 K 线逐根推进，返回按时间排序的信号序列。
// 锚定币序列与目标币按 OpenTime 对齐，缺根时跳过该时点。
func (s *AnchorPump) Generate(target market.Frame, anchors []market.Frame) ([]signal.Signal, error) {
	if len(target.Candles) == 0 {
		return nil, fmt.Errorf("target frame %s is empty", target.Symbol)
	}
	if len(anchors) == 0 {
		return nil, fmt.Errorf("at least one anchor frame required for %s", target.Symbol)
	}
	target = target.Sorted()

	// 每个锚定币预先算好单根 ROC，并建 OpenTime 索引。
	anchorRocs := make([]map[int64]float64, 0, len(anchors))
	for _, a := range anchors {
		a = a.Sorted()
		if len(a.Candles) < 2 {
			continue
		}
		closes := make([]float64, len(a.Candles))
		for i, c := range a.Candles {
			closes[i] = c.Close
		}
		roc := talib.Roc(closes, 1)
		idx := make(map[int64]float64, len(a.Candles))
		for i, c := range a.Candles {
			idx[c.OpenTime] = roc[i]
		}
		anchorRocs = append(anchorRocs, idx)
	}
	if len(anchorRocs) == 0 {
		return nil, fmt.Errorf("no usable anchor series for %s", target.Symbol)
	}

	var out []signal.Signal
	inPosition := false
	entryPrice := 0.0
	for _, candle := range target.Candles {
		price := candle.Close
		if price <= 0 {
			continue
		}
		if inPosition {
			change := (price - entryPrice) / entryPrice * 100
			if change >= s.cfg.TakeProfitPct || change <= -s.cfg.StopLossPct {
				out = append(out, signal.Signal{
					Timestamp:    candle.OpenTime,
					Symbol:       target.Symbol,
					Action:       signal.ActionSell,
					PositionSize: 1.0,
				})
				inPosition = false
				entryPrice = 0
			}
			continue
		}
		if s.anchorPumped(candle.OpenTime, anchorRocs) {
			out = append(out, signal.Signal{
				Timestamp:    candle.OpenTime,
				Symbol:       target.Symbol,
				Action:       signal.ActionBuy,
				PositionSize: s.cfg.PositionSize,
			})
			inPosition = true
			entryPrice = price
		}
	}
	return out, nil
}

func (s *AnchorPump) anchorPumped(ts int64, anchorRocs []map[int64]float64) bool {
	for _, idx := range anchorRocs {
		if roc, ok := idx[ts]; ok && roc > s.cfg.PumpThresholdPct {
			return true
		}
	}
	return false
}

// Document 把信号序列编码成标准提交文档（JSON 数组）。
func Document(signals []signal.Signal) ([]byte, error) {
	if signals == nil {
		signals = []signal.Signal{}
	}
	return json.Marshal(signals)
}
