package strategy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Coin 一个可评测标的：目标币加它的锚定币。
// 目标币的买卖信号由锚定币的动量驱动。
type Coin struct {
	Symbol    string   `json:"symbol"`
	Anchors   []string `json:"anchors"`
	Timeframe string   `json:"timeframe"`
}

// Universe 评测标的集合。
type Universe struct {
	coins map[string]Coin
	order []string
}

// NormalizeSymbols 标准化币种列表：去重、转大写、添加 USDT 后缀
func NormalizeSymbols(symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, errors.New("symbol list is empty")
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if !strings.HasSuffix(s, "USDT") {
			s += "USDT"
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("symbol list is empty after normalization")
	}
	return out, nil
}

// NewUniverse 构建标的集合；每个目标币至少要有一个锚定币。
func NewUniverse(coins []Coin) (*Universe, error) {
	if len(coins) == 0 {
		return nil, errors.New("universe is empty")
	}
	u := &Universe{coins: make(map[string]Coin, len(coins))}
	for _, c := range coins {
		sym := strings.ToUpper(strings.TrimSpace(c.Symbol))
		if sym == "" {
			return nil, errors.New("coin symbol is empty")
		}
		if len(c.Anchors) == 0 {
			return nil, fmt.Errorf("coin %s has no anchors", sym)
		}
		anchors, err := NormalizeSymbols(c.Anchors)
		if err != nil {
			return nil, fmt.Errorf("coin %s: %w", sym, err)
		}
		tf := strings.ToLower(strings.TrimSpace(c.Timeframe))
		if tf == "" {
			tf = "1h"
		}
		if _, dup := u.coins[sym]; dup {
			continue
		}
		u.coins[sym] = Coin{Symbol: sym, Anchors: anchors, Timeframe: tf}
		u.order = append(u.order, sym)
	}
	return u, nil
}

// Get 按目标币查询。
func (u *Universe) Get(symbol string) (Coin, bool) {
	c, ok := u.coins[strings.ToUpper(strings.TrimSpace(symbol))]
	return c, ok
}

// Symbols 目标币列表（保持插入顺序）。
func (u *Universe) Symbols() []string {
	return append([]string{}, u.order...)
}

// LoadUniverse 从 YAML 文件读取标的表：
//
//	coins:
//	  - symbol: LDO
//	    anchors: [ETH, BTC]
//	    timeframe: 1h
func LoadUniverse(path string) (*Universe, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Coins []Coin `yaml:"coins"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing universe file %s: %w", path, err)
	}
	return NewUniverse(doc.Coins)
}

// DefaultUniverse 内置标的表，来自最初的评测样例。
func DefaultUniverse() *Universe {
	u, err := NewUniverse([]Coin{
		{Symbol: "LDO", Anchors: []string{"ETH", "BTC"}, Timeframe: "1h"},
		{Symbol: "ARB", Anchors: []string{"ETH"}, Timeframe: "1h"},
		{Symbol: "OP", Anchors: []string{"ETH"}, Timeframe: "1h"},
		{Symbol: "SOL", Anchors: []string{"BTC"}, Timeframe: "1h"},
	})
	if err != nil {
		panic(err)
	}
	return u
}
