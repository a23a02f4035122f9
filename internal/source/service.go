package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/store"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// 拉取任务状态。
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusPartial = "partial"
	JobStatusFailed  = "failed"
)

// FetchParams 一次历史数据拉取请求。
type FetchParams struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	Exchange  string `json:"exchange,omitempty"`
}

// FetchJob 后台拉取任务的进度快照。
type FetchJob struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Params    FetchParams `json:"params"`
	Total     int64       `json:"total"`
	Completed int64       `json:"completed"`
	Message   string      `json:"message,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
	Missing   []store.Gap `json:"missing,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (j *FetchJob) copy() FetchJob {
	out := *j
	out.Warnings = append([]string{}, j.Warnings...)
	out.Missing = append([]store.Gap{}, j.Missing...)
	return out
}

// ServiceConfig 数据服务配置。
type ServiceConfig struct {
	Store           *store.CandleStore
	Sources         map[string]CandleSource
	DefaultExchange string
	RateLimitPerMin int
	MaxBatch        int
	MaxConcurrent   int
}

// Service 管理 K 线拉取任务：限速、并发闸门、缺口补齐。
type Service struct {
	store           *store.CandleStore
	sources         map[string]CandleSource
	defaultExchange string
	maxBatch        int

	limiter *rate.Limiter
	sem     chan struct{}

	mu   sync.RWMutex
	jobs map[string]*FetchJob

	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("至少需要一个数据源")
	}
	ratePerSec := rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	if cfg.RateLimitPerMin <= 0 {
		ratePerSec = 8
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = maxKlineLimit
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	svc := &Service{
		store:           cfg.Store,
		sources:         make(map[string]CandleSource),
		defaultExchange: strings.ToLower(cfg.DefaultExchange),
		maxBatch:        maxBatch,
		limiter:         rate.NewLimiter(ratePerSec, maxBatch),
		sem:             make(chan struct{}, maxConcurrent),
		jobs:            make(map[string]*FetchJob),
		baseCtx:         context.Background(),
	}
	for k, v := range cfg.Sources {
		svc.sources[strings.ToLower(k)] = v
	}
	if svc.defaultExchange == "" {
		for k := range svc.sources {
			svc.defaultExchange = k
			break
		}
	}
	return svc, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// SubmitFetch 提交后台拉取任务；若区间已完整只做一致性检查。
func (s *Service) SubmitFetch(params FetchParams) (FetchJob, error) {
	if params.Symbol == "" {
		return FetchJob{}, fmt.Errorf("symbol 不能为空")
	}
	tf, err := market.ParseTimeframe(params.Timeframe)
	if err != nil {
		return FetchJob{}, err
	}
	src, err := s.source(params.Exchange)
	if err != nil {
		return FetchJob{}, err
	}
	start, end := tf.AlignRange(params.Start, params.End)
	if start == end {
		return FetchJob{}, fmt.Errorf("start 与 end 需要构成区间")
	}
	params.Start = start
	params.End = end

	report, err := s.store.CheckIntegrity(s.ctx(), params.Symbol, params.Timeframe, tf, start, end)
	if err != nil {
		return FetchJob{}, err
	}
	total := report.Expected
	completed := report.Present
	if completed > total {
		completed = total
	}
	job := &FetchJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    params,
		Total:     total,
		Completed: completed,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		Missing:   append([]store.Gap{}, report.Gaps...),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	logger.Infof("[source] 任务 %s 提交：%s %s [%d,%d] 预计=%d 缺口=%d", job.ID, params.Symbol, params.Timeframe, params.Start, params.End, total, len(report.Gaps))

	if total == 0 || report.Complete() {
		s.setJobStatus(job.ID, JobStatusDone, "数据已完整，无需重新拉取", report.Gaps)
		return job.copy(), nil
	}

	go s.runJob(job.ID, tf, report, src)
	return job.copy(), nil
}

// EnsureRange 同步补齐区间缺口，评测前调用。返回补齐后的完整性报告。
func (s *Service) EnsureRange(ctx context.Context, symbol, timeframe string, start, end int64) (store.IntegrityReport, error) {
	tf, err := market.ParseTimeframe(timeframe)
	if err != nil {
		return store.IntegrityReport{}, err
	}
	src, err := s.source("")
	if err != nil {
		return store.IntegrityReport{}, err
	}
	start, end = tf.AlignRange(start, end)
	report, err := s.store.CheckIntegrity(ctx, symbol, timeframe, tf, start, end)
	if err != nil {
		return report, err
	}
	if report.Complete() {
		return report, nil
	}
	for _, gap := range report.Gaps {
		if err := s.fillGap(ctx, src, symbol, timeframe, tf, gap); err != nil {
			return report, err
		}
	}
	return s.store.CheckIntegrity(ctx, symbol, timeframe, tf, start, end)
}

func (s *Service) source(exchange string) (CandleSource, error) {
	name := strings.ToLower(strings.TrimSpace(exchange))
	if name == "" {
		name = s.defaultExchange
	}
	src := s.sources[name]
	if src == nil {
		return nil, fmt.Errorf("未知数据源: %s", name)
	}
	return src, nil
}

func (s *Service) fillGap(ctx context.Context, src CandleSource, symbol, timeframe string, tf market.Timeframe, gap store.Gap) error {
	step := tf.DurationMillis()
	cursor := gap.Start
	for cursor <= gap.End {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		remaining := int((gap.End-cursor)/step) + 1
		if remaining < 1 {
			remaining = 1
		}
		if remaining > s.maxBatch {
			remaining = s.maxBatch
		}
		data, err := src.Fetch(ctx, FetchRequest{
			Symbol:   symbol,
			Interval: tf.SourceInterval,
			Start:    cursor,
			End:      gap.End,
			Limit:    remaining,
		})
		if err != nil {
			return fmt.Errorf("%s 拉取失败: %w", src.Name(), err)
		}
		if len(data) == 0 {
			logger.Warnf("[source] %s %s 区间 [%d,%d] 拉取为空", symbol, timeframe, cursor, gap.End)
			return nil
		}
		inserted, err := s.store.InsertCandles(ctx, symbol, timeframe, data)
		if err != nil {
			return fmt.Errorf("写入失败: %w", err)
		}
		cursor = data[len(data)-1].OpenTime + step
		if inserted == 0 {
			return nil
		}
	}
	return nil
}

func (s *Service) runJob(jobID string, tf market.Timeframe, report store.IntegrityReport, src CandleSource) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		s.setJobStatus(jobID, JobStatusFailed, "服务已关闭", nil)
		return
	}
	defer func() { <-s.sem }()

	job := s.getJob(jobID)
	if job == nil {
		return
	}
	logger.Infof("[source] 任务 %s 开始，缺口=%d", jobID, len(report.Gaps))
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = JobStatusRunning
		j.Message = ""
	})

	params := job.Params
	ctx := s.ctx()
	var warnings []string
	for _, gap := range report.Gaps {
		before, err := s.store.Manifest(ctx, params.Symbol, params.Timeframe)
		if err != nil {
			s.setJobStatus(jobID, JobStatusFailed, err.Error(), nil)
			return
		}
		if err := s.fillGap(ctx, src, params.Symbol, params.Timeframe, tf, gap); err != nil {
			s.setJobStatus(jobID, JobStatusFailed, err.Error(), nil)
			return
		}
		after, err := s.store.Manifest(ctx, params.Symbol, params.Timeframe)
		if err != nil {
			s.setJobStatus(jobID, JobStatusFailed, err.Error(), nil)
			return
		}
		added := after.Rows - before.Rows
		if added <= 0 {
			warnings = append(warnings, fmt.Sprintf("区间 [%d,%d] 未补到数据", gap.Start, gap.End))
		}
		s.updateJob(jobID, func(j *FetchJob) {
			j.Completed += added
			j.UpdatedAt = time.Now()
			if warnings != nil {
				j.Warnings = warnings
			}
		})
	}

	finalReport, err := s.store.CheckIntegrity(ctx, params.Symbol, params.Timeframe, tf, params.Start, params.End)
	status := JobStatusDone
	if err != nil {
		status = JobStatusFailed
		warnings = append(warnings, "完整性检查失败: "+err.Error())
	}
	message := "拉取完成"
	if !finalReport.Complete() && status != JobStatusFailed {
		status = JobStatusPartial
		message = "已完成，但仍存在缺口"
	}
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = status
		j.Message = message
		j.Missing = append([]store.Gap{}, finalReport.Gaps...)
		j.UpdatedAt = time.Now()
		if len(warnings) > 0 {
			j.Warnings = append([]string{}, warnings...)
		}
	})
	logger.Infof("[source] 任务 %s 完成，状态=%s，缺口=%d", jobID, status, len(finalReport.Gaps))
}

func (s *Service) setJobStatus(jobID, status, message string, gaps []store.Gap) {
	s.updateJob(jobID, func(j *FetchJob) {
		j.Status = status
		j.Message = message
		j.Missing = append([]store.Gap{}, gaps...)
		j.UpdatedAt = time.Now()
	})
}

func (s *Service) updateJob(jobID string, fn func(*FetchJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		fn(j)
	}
}

func (s *Service) getJob(jobID string) *FetchJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[jobID]
}

// Job 返回任务快照。
func (s *Service) Job(jobID string) (FetchJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if j, ok := s.jobs[jobID]; ok {
		return j.copy(), true
	}
	return FetchJob{}, false
}

// Jobs 返回全部任务快照（无排序保证）。
func (s *Service) Jobs() []FetchJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FetchJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.copy())
	}
	return out
}
