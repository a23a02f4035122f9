package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/metrics"
	"stratlab/internal/report"
	"stratlab/internal/schema"
	"stratlab/internal/signal"
	"stratlab/internal/sim"
	"stratlab/internal/source"
	"stratlab/internal/store"

	"github.com/google/uuid"
)

// RunRequest 一次提交评测请求。
type RunRequest struct {
	Submission         string   `json:"submission"`
	Symbol             string   `json:"symbol" binding:"required"`
	Signals            []byte   `json:"signals" binding:"required"`
	InitialCash        float64  `json:"initial_cash"`
	FeeRate            float64  `json:"fee_rate"`
	ExecutionTimeframe string   `json:"execution_timeframe"`
	FallbackTimeframes []string `json:"fallback_timeframes"`
}

// Outcome 一次评测的完整产物。
type Outcome struct {
	Record  store.RunRecord `json:"record"`
	Result  *sim.Result     `json:"result"`
	Summary metrics.Summary `json:"summary"`
	Score   metrics.Score   `json:"score"`
	Report  string          `json:"report,omitempty"`
}

// Config 运行器配置。
type Config struct {
	Results *store.ResultStore
	Candles *store.CandleStore
	Fetch   *source.Service  // 可选，缺失时只用本地数据
	Schema  *schema.Registry // 可选，缺失时只做结构与域校验

	DefaultInitialCash float64
	DefaultFeeRate     float64
	DefaultTimeframe   string
	FallbackTimeframes []string
	MaxConcurrent      int
	ReportDir          string // 为空时不落报告文件
}

// Runner 串起校验、数据准备、模拟、指标、落库与报告。
type Runner struct {
	cfg Config

	sem     chan struct{}
	baseCtx context.Context
}

func New(cfg Config) (*Runner, error) {
	if cfg.Results == nil {
		return nil, fmt.Errorf("result store 不能为空")
	}
	if cfg.Candles == nil {
		return nil, fmt.Errorf("candle store 不能为空")
	}
	if cfg.DefaultInitialCash <= 0 {
		cfg.DefaultInitialCash = 10000
	}
	if cfg.DefaultFeeRate <= 0 {
		cfg.DefaultFeeRate = 0.001
	}
	if cfg.DefaultTimeframe == "" {
		cfg.DefaultTimeframe = "1h"
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Runner{
		cfg:     cfg,
		sem:     make(chan struct{}, maxConcurrent),
		baseCtx: context.Background(),
	}, nil
}

// SetContext 注入宿主 ctx，用于后台任务取消。
func (r *Runner) SetContext(ctx context.Context) {
	if ctx != nil {
		r.baseCtx = ctx
	}
}

func (r *Runner) ctx() context.Context {
	if r.baseCtx == nil {
		return context.Background()
	}
	return r.baseCtx
}

func (r *Runner) normalize(req RunRequest) (RunRequest, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return req, fmt.Errorf("symbol 不能为空")
	}
	if len(req.Signals) == 0 {
		return req, fmt.Errorf("signals 不能为空")
	}
	if req.InitialCash <= 0 {
		req.InitialCash = r.cfg.DefaultInitialCash
	}
	if req.FeeRate <= 0 {
		req.FeeRate = r.cfg.DefaultFeeRate
	}
	if req.ExecutionTimeframe == "" {
		req.ExecutionTimeframe = r.cfg.DefaultTimeframe
	}
	req.ExecutionTimeframe = strings.ToLower(strings.TrimSpace(req.ExecutionTimeframe))
	if len(req.FallbackTimeframes) == 0 {
		req.FallbackTimeframes = append([]string{}, r.cfg.FallbackTimeframes...)
	}
	if _, err := market.ParseTimeframe(req.ExecutionTimeframe); err != nil {
		return req, err
	}
	for _, tf := range req.FallbackTimeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return req, err
		}
	}
	return req, nil
}

// decode 校验提交文档并解出排好序的信号序列。
func (r *Runner) decode(raw []byte) ([]signal.Signal, error) {
	if err := signal.ValidateDocument(raw); err != nil {
		return nil, err
	}
	if r.cfg.Schema != nil {
		if err := r.cfg.Schema.ValidateJSON(raw); err != nil {
			return nil, fmt.Errorf("schema validation: %w", err)
		}
	}
	return signal.Decode(raw)
}

// StartRun 登记评测任务并立即返回，模拟在后台进行。
func (r *Runner) StartRun(req RunRequest) (store.RunRecord, error) {
	req, err := r.normalize(req)
	if err != nil {
		return store.RunRecord{}, err
	}
	signals, err := r.decode(req.Signals)
	if err != nil {
		return store.RunRecord{}, err
	}
	rec := store.RunRecord{
		RunID:       uuid.NewString(),
		Submission:  req.Submission,
		Status:      store.RunStatusPending,
		InitialCash: req.InitialCash,
		FeeRate:     req.FeeRate,
		Timeframe:   req.ExecutionTimeframe,
		Signals:     len(signals),
		StartedAt:   time.Now(),
	}
	if err := r.cfg.Results.InsertRun(r.ctx(), rec); err != nil {
		return store.RunRecord{}, err
	}
	go r.runLoop(rec.RunID, req, signals)
	return rec, nil
}

func (r *Runner) runLoop(runID string, req RunRequest, signals []signal.Signal) {
	select {
	case r.sem <- struct{}{}:
	default:
		logger.Warnf("[runner] run %s 等待可用 worker", runID)
		r.sem <- struct{}{}
	}
	defer func() { <-r.sem }()

	ctx := r.ctx()
	if err := r.cfg.Results.UpdateRunStatus(ctx, runID, store.RunStatusRunning, ""); err != nil {
		logger.Warnf("[runner] run %s 状态更新失败: %v", runID, err)
	}
	if _, err := r.evaluate(ctx, runID, req, signals); err != nil {
		logger.Warnf("[runner] run %s 失败: %v", runID, err)
		_ = r.cfg.Results.UpdateRunStatus(ctx, runID, store.RunStatusFailed, err.Error())
	}
}

// Evaluate 同步评测一份提交：CLI 单次模拟走这里。
func (r *Runner) Evaluate(ctx context.Context, req RunRequest) (Outcome, error) {
	req, err := r.normalize(req)
	if err != nil {
		return Outcome{}, err
	}
	signals, err := r.decode(req.Signals)
	if err != nil {
		return Outcome{}, err
	}
	rec := store.RunRecord{
		RunID:       uuid.NewString(),
		Submission:  req.Submission,
		Status:      store.RunStatusRunning,
		InitialCash: req.InitialCash,
		FeeRate:     req.FeeRate,
		Timeframe:   req.ExecutionTimeframe,
		Signals:     len(signals),
		StartedAt:   time.Now(),
	}
	if err := r.cfg.Results.InsertRun(ctx, rec); err != nil {
		return Outcome{}, err
	}
	outcome, err := r.evaluate(ctx, rec.RunID, req, signals)
	if err != nil {
		_ = r.cfg.Results.UpdateRunStatus(ctx, rec.RunID, store.RunStatusFailed, err.Error())
		return Outcome{}, err
	}
	return outcome, nil
}

func (r *Runner) evaluate(ctx context.Context, runID string, req RunRequest, signals []signal.Signal) (Outcome, error) {
	frames, err := r.loadFrames(ctx, req, signals)
	if err != nil {
		return Outcome{}, err
	}

	driver, err := sim.NewDriver(sim.Config{
		InitialCash:        req.InitialCash,
		FeeRate:            req.FeeRate,
		ExecutionTimeframe: req.ExecutionTimeframe,
		FallbackTimeframes: req.FallbackTimeframes,
	})
	if err != nil {
		return Outcome{}, err
	}
	driver.SetAuditTag(runID)
	result, err := driver.Simulate(signals, frames)
	if err != nil {
		return Outcome{}, err
	}

	summary := metrics.Compute(result.TradeLog, result.EquityCurve, req.InitialCash)
	score := metrics.ScoreSummary(summary)
	if score.LowActivity {
		logger.Infof("[runner] run %s 完整回合 %d 笔，低于 %d，评分仅供参考", runID, summary.RoundTrips, metrics.MinRoundTrips)
	}

	if err := r.cfg.Results.SaveResult(ctx, runID, result); err != nil {
		return Outcome{}, err
	}
	if err := r.cfg.Results.UpdateRunSummary(ctx, runID, summary, score); err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Result: result, Summary: summary, Score: score}
	if r.cfg.ReportDir != "" {
		path := filepath.Join(r.cfg.ReportDir, runID+".html")
		if err := report.RenderFile(path, report.Input{
			RunID:       runID,
			Submission:  req.Submission,
			InitialCash: req.InitialCash,
			Result:      result,
			Summary:     summary,
			Score:       score,
		}); err != nil {
			logger.Warnf("[runner] run %s 报告生成失败: %v", runID, err)
		} else {
			outcome.Report = path
		}
	}

	if err := r.cfg.Results.UpdateRunStatus(ctx, runID, store.RunStatusFinished, ""); err != nil {
		return Outcome{}, err
	}
	rec, ok, err := r.cfg.Results.GetRun(ctx, runID)
	if err != nil {
		return Outcome{}, err
	}
	if ok {
		outcome.Record = rec
	}
	logger.Infof("[runner] run %s 完成：trades=%d rejections=%d return=%.2f%% score=%.1f",
		runID, len(result.TradeLog), len(result.Rejections), summary.TotalReturnPct, score.Total)
	return outcome, nil
}

// loadFrames 为一次模拟准备行情：执行周期 + 回退周期，覆盖信号时间范围。
func (r *Runner) loadFrames(ctx context.Context, req RunRequest, signals []signal.Signal) (*market.FrameSet, error) {
	if len(signals) == 0 {
		// 空信号序列是合法输入，但仍需要至少一个行情序列；留给驱动器拒绝。
		return market.NewFrameSet(), nil
	}
	start := signals[0].Timestamp
	end := signals[len(signals)-1].Timestamp
	for _, sig := range signals {
		if sig.Timestamp < start {
			start = sig.Timestamp
		}
		if sig.Timestamp > end {
			end = sig.Timestamp
		}
	}

	timeframes := append([]string{req.ExecutionTimeframe}, req.FallbackTimeframes...)
	symbols := make(map[string]struct{})
	for _, sig := range signals {
		symbols[strings.ToUpper(sig.Symbol)] = struct{}{}
	}

	frames := market.NewFrameSet()
	for sym := range symbols {
		for _, tfKey := range timeframes {
			tf, err := market.ParseTimeframe(tfKey)
			if err != nil {
				return nil, err
			}
			// 回退周期向前多取一根，保证 nearest-prior 查找有落点。
			lo, hi := tf.AlignRange(start-tf.DurationMillis(), end)
			if r.cfg.Fetch != nil {
				if _, err := r.cfg.Fetch.EnsureRange(ctx, sym, tf.Key, lo, hi); err != nil {
					logger.Warnf("[runner] %s %s 数据补齐失败: %v", sym, tf.Key, err)
				}
			}
			frame, err := r.cfg.Candles.Frame(ctx, sym, tf.Key, lo, hi)
			if err != nil {
				return nil, err
			}
			if len(frame.Candles) == 0 {
				continue
			}
			if err := frames.Put(frame); err != nil {
				return nil, err
			}
		}
	}
	return frames, nil
}
