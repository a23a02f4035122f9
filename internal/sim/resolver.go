package sim

import (
	"math"

	"stratlab/internal/market"
)

// PriceResolver 按 执行周期精确命中 → 执行周期向前最近 → 各备用周期 的顺序解析价格。
type PriceResolver struct {
	frames     *market.FrameSet
	timeframes []string
}

// NewPriceResolver primary 为执行周期，fallbacks 为按优先级排列的备用周期。
func NewPriceResolver(frames *market.FrameSet, primary string, fallbacks []string) *PriceResolver {
	tfs := make([]string, 0, len(fallbacks)+1)
	tfs = append(tfs, primary)
	for _, tf := range fallbacks {
		if tf == primary {
			continue
		}
		tfs = append(tfs, tf)
	}
	return &PriceResolver{frames: frames, timeframes: tfs}
}

// Resolve 返回 symbol 在 ts 的有效价格（有限且非负）。所有周期都未命中时
// 返回 ErrPriceNotFound；命中但数值非法时返回 ErrInvalidPrice/ErrNegativePrice。
func (r *PriceResolver) Resolve(symbol string, ts int64) (float64, error) {
	for _, tf := range r.timeframes {
		frame, ok := r.frames.Get(symbol, tf)
		if !ok || len(frame.Candles) == 0 {
			continue
		}
		candle, ok := frame.At(ts)
		if !ok {
			candle, ok = frame.Before(ts)
		}
		if !ok {
			continue
		}
		price := candle.Close
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return 0, rejectf(ErrInvalidPrice, symbol, ts, "resolved close %v in timeframe %s", price, tf)
		}
		if price < 0 {
			return 0, rejectf(ErrNegativePrice, symbol, ts, "resolved close %v in timeframe %s", price, tf)
		}
		return price, nil
	}
	return 0, rejectf(ErrPriceNotFound, symbol, ts, "tried timeframes %v", r.timeframes)
}
