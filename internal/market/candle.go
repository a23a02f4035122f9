package market

import (
	"fmt"
	"sort"
	"strings"
)

// Candle 单根 K 线，时间为毫秒时间戳。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Frame 某 symbol@timeframe 的 K 线序列（按 open_time 升序）。
type Frame struct {
	Symbol    string
	Timeframe string
	Candles   []Candle
}

// Sorted 返回按 open_time 升序排列的副本，重放前统一调用保证确定性。
func (f Frame) Sorted() Frame {
	out := Frame{Symbol: f.Symbol, Timeframe: f.Timeframe}
	out.Candles = append([]Candle(nil), f.Candles...)
	sort.SliceStable(out.Candles, func(i, j int) bool {
		return out.Candles[i].OpenTime < out.Candles[j].OpenTime
	})
	return out
}

// At 返回 open_time 精确等于 ts 的 K 线。
func (f Frame) At(ts int64) (Candle, bool) {
	idx := sort.Search(len(f.Candles), func(i int) bool {
		return f.Candles[i].OpenTime >= ts
	})
	if idx < len(f.Candles) && f.Candles[idx].OpenTime == ts {
		return f.Candles[idx], true
	}
	return Candle{}, false
}

// Before 返回 open_time 不超过 ts 的最后一根 K 线。
func (f Frame) Before(ts int64) (Candle, bool) {
	idx := sort.Search(len(f.Candles), func(i int) bool {
		return f.Candles[i].OpenTime > ts
	})
	if idx == 0 {
		return Candle{}, false
	}
	return f.Candles[idx-1], true
}

// FrameSet 一次模拟可见的全部行情数据，按 symbol@timeframe 索引。
type FrameSet struct {
	frames map[string]Frame
}

func NewFrameSet() *FrameSet {
	return &FrameSet{frames: make(map[string]Frame)}
}

func frameKey(symbol, timeframe string) string {
	return strings.ToUpper(symbol) + "@" + strings.ToLower(timeframe)
}

// Put 登记一个序列（内部保存排序后的副本）。
func (s *FrameSet) Put(f Frame) error {
	if f.Symbol == "" || f.Timeframe == "" {
		return fmt.Errorf("frame 的 symbol/timeframe 不能为空")
	}
	s.frames[frameKey(f.Symbol, f.Timeframe)] = f.Sorted()
	return nil
}

// Get 按 symbol+timeframe 取序列。
func (s *FrameSet) Get(symbol, timeframe string) (Frame, bool) {
	f, ok := s.frames[frameKey(symbol, timeframe)]
	return f, ok
}

// Len 返回登记的序列数。
func (s *FrameSet) Len() int { return len(s.frames) }

// Empty 判断是否没有任何 K 线数据。
func (s *FrameSet) Empty() bool {
	for _, f := range s.frames {
		if len(f.Candles) > 0 {
			return false
		}
	}
	return true
}
