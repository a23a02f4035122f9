package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stratlab/internal/market"

	"github.com/adshao/go-binance/v2"
)

const maxKlineLimit = 1000

// FetchRequest 一次 K 线拉取请求（毫秒时间戳，闭区间）。
type FetchRequest struct {
	Symbol   string
	Interval string
	Start    int64
	End      int64
	Limit    int
}

// CandleSource 历史 K 线数据源。
type CandleSource interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error)
}

// BinanceConfig REST 数据源配置。
type BinanceConfig struct {
	BaseURL     string
	ProxyURL    string
	HTTPTimeout time.Duration
}

// BinanceSource 基于 go-binance 现货 REST 接口实现 CandleSource。
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource(cfg BinanceConfig) (*BinanceSource, error) {
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	if proxy := strings.TrimSpace(cfg.ProxyURL); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &BinanceSource{client: client}, nil
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval := strings.ToLower(strings.TrimSpace(req.Interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	limit := req.Limit
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	svc := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if req.Start > 0 {
		svc = svc.StartTime(req.Start)
	}
	if req.End > 0 {
		svc = svc.EndTime(req.End)
	}
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return dropUnclosed(out), nil
}

// dropUnclosed 丢掉尚未收盘的最后一根 K 线，避免半成品数据入库。
func dropUnclosed(candles []market.Candle) []market.Candle {
	if len(candles) == 0 {
		return candles
	}
	now := time.Now().UnixMilli()
	last := candles[len(candles)-1]
	if last.CloseTime >= now {
		return candles[:len(candles)-1]
	}
	return candles
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
