package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stratlab/internal/signal"
	"stratlab/internal/sim"

	"gorm.io/datatypes"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RunStatus 一次评测的生命周期状态。
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// RunRecord 一次策略提交评测的落库记录。
type RunRecord struct {
	RunID       string          `json:"run_id"`
	Submission  string          `json:"submission"`
	Status      RunStatus       `json:"status"`
	InitialCash float64         `json:"initial_cash"`
	FeeRate     float64         `json:"fee_rate"`
	Timeframe   string          `json:"timeframe"`
	Signals     int             `json:"signals"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Score       json.RawMessage `json:"score,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

type runModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	RunID       string         `gorm:"column:run_id;uniqueIndex"`
	Submission  string         `gorm:"column:submission;index"`
	Status      string         `gorm:"column:status;index"`
	InitialCash float64        `gorm:"column:initial_cash"`
	FeeRate     float64        `gorm:"column:fee_rate"`
	Timeframe   string         `gorm:"column:timeframe"`
	Signals     int            `gorm:"column:signals"`
	Summary     datatypes.JSON `gorm:"column:summary;type:TEXT"`
	Score       datatypes.JSON `gorm:"column:score;type:TEXT"`
	Error       string         `gorm:"column:error"`
	StartedAt   int64          `gorm:"column:started_at"`
	FinishedAt  int64          `gorm:"column:finished_at"`
}

func (runModel) TableName() string { return "runs" }

type tradeModel struct {
	ID             int64   `gorm:"column:id;primaryKey"`
	RunID          string  `gorm:"column:run_id;index"`
	Seq            int     `gorm:"column:seq"`
	Timestamp      int64   `gorm:"column:timestamp"`
	Action         string  `gorm:"column:action"`
	Symbol         string  `gorm:"column:symbol;index"`
	Shares         float64 `gorm:"column:shares"`
	Price          float64 `gorm:"column:price"`
	Fees           float64 `gorm:"column:fees"`
	CostBasis      float64 `gorm:"column:cost_basis"`
	CashAfter      float64 `gorm:"column:cash_after"`
	PortfolioValue float64 `gorm:"column:portfolio_value"`
}

func (tradeModel) TableName() string { return "run_trades" }

type equityModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	RunID     string  `gorm:"column:run_id;index"`
	Seq       int     `gorm:"column:seq"`
	Timestamp int64   `gorm:"column:timestamp"`
	Value     float64 `gorm:"column:value"`
}

func (equityModel) TableName() string { return "run_equity" }

type rejectionModel struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	RunID     string `gorm:"column:run_id;index"`
	Seq       int    `gorm:"column:seq"`
	Timestamp int64  `gorm:"column:timestamp"`
	Symbol    string `gorm:"column:symbol"`
	Action    string `gorm:"column:action"`
	Reason    string `gorm:"column:reason"`
}

func (rejectionModel) TableName() string { return "run_rejections" }

// ResultStore 评测结果落库（gorm + sqlite 单文件）。
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store 路径不能为空")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &tradeModel{}, &equityModel{}, &rejectionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL 下留一点并发给 HTTP 查询
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &ResultStore{db: db}, nil
}

func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *ResultStore) InsertRun(ctx context.Context, rec RunRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	if strings.TrimSpace(rec.RunID) == "" {
		return fmt.Errorf("run_id 必填")
	}
	if rec.Status == "" {
		rec.Status = RunStatusPending
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	model := runModel{
		RunID:       strings.TrimSpace(rec.RunID),
		Submission:  strings.TrimSpace(rec.Submission),
		Status:      string(rec.Status),
		InitialCash: rec.InitialCash,
		FeeRate:     rec.FeeRate,
		Timeframe:   strings.ToLower(strings.TrimSpace(rec.Timeframe)),
		Signals:     rec.Signals,
		Summary:     datatypes.JSON(rec.Summary),
		Score:       datatypes.JSON(rec.Score),
		Error:       rec.Error,
		StartedAt:   rec.StartedAt.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *ResultStore) UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errMsg string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	payload := map[string]interface{}{"status": string(status), "error": errMsg}
	if status == RunStatusFinished || status == RunStatusFailed {
		payload["finished_at"] = time.Now().UnixMilli()
	}
	res := s.db.WithContext(ctx).Model(&runModel{}).Where("run_id = ?", runID).Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateRunSummary 写入绩效汇总与评分（两者都按 JSON 文本落库）。
func (s *ResultStore) UpdateRunSummary(ctx context.Context, runID string, summary, score any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	scoreJSON, err := json.Marshal(score)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&runModel{}).Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"summary": datatypes.JSON(summaryJSON),
			"score":   datatypes.JSON(scoreJSON),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveResult 一次性写入交易日志、资金曲线与拒单记录。
func (s *ResultStore) SaveResult(ctx context.Context, runID string, result *sim.Result) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("result store 未初始化")
	}
	if result == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(result.TradeLog) > 0 {
			models := make([]tradeModel, 0, len(result.TradeLog))
			for i, tr := range result.TradeLog {
				models = append(models, tradeModel{
					RunID:          runID,
					Seq:            i,
					Timestamp:      tr.Timestamp,
					Action:         string(tr.Action),
					Symbol:         tr.Symbol,
					Shares:         tr.Shares,
					Price:          tr.Price,
					Fees:           tr.Fees,
					CostBasis:      tr.CostBasis,
					CashAfter:      tr.CashAfter,
					PortfolioValue: tr.PortfolioValueAfter,
				})
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
		}
		if len(result.EquityCurve) > 0 {
			models := make([]equityModel, 0, len(result.EquityCurve))
			for i, p := range result.EquityCurve {
				models = append(models, equityModel{RunID: runID, Seq: i, Timestamp: p.Timestamp, Value: p.Value})
			}
			if err := tx.CreateInBatches(&models, 500).Error; err != nil {
				return err
			}
		}
		if len(result.Rejections) > 0 {
			models := make([]rejectionModel, 0, len(result.Rejections))
			for i, r := range result.Rejections {
				models = append(models, rejectionModel{
					RunID:     runID,
					Seq:       i,
					Timestamp: r.Timestamp,
					Symbol:    r.Symbol,
					Action:    string(r.Action),
					Reason:    r.Reason,
				})
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ResultStore) GetRun(ctx context.Context, runID string) (RunRecord, bool, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, false, fmt.Errorf("result store 未初始化")
	}
	var model runModel
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	return runModelToRecord(model), true, nil
}

func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("result store 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var models []runModel
	if err := s.db.WithContext(ctx).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		out = append(out, runModelToRecord(m))
	}
	return out, nil
}

func (s *ResultStore) ListTrades(ctx context.Context, runID string) ([]sim.TradeLogEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("result store 未初始化")
	}
	var models []tradeModel
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]sim.TradeLogEntry, 0, len(models))
	for _, m := range models {
		out = append(out, sim.TradeLogEntry{
			Timestamp:           m.Timestamp,
			Action:              actionFromString(m.Action),
			Symbol:              m.Symbol,
			Shares:              m.Shares,
			Price:               m.Price,
			Fees:                m.Fees,
			CostBasis:           m.CostBasis,
			CashAfter:           m.CashAfter,
			PortfolioValueAfter: m.PortfolioValue,
		})
	}
	return out, nil
}

func (s *ResultStore) ListEquity(ctx context.Context, runID string) ([]sim.EquityPoint, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("result store 未初始化")
	}
	var models []equityModel
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]sim.EquityPoint, 0, len(models))
	for _, m := range models {
		out = append(out, sim.EquityPoint{Timestamp: m.Timestamp, Value: m.Value})
	}
	return out, nil
}

func (s *ResultStore) ListRejections(ctx context.Context, runID string) ([]sim.Rejection, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("result store 未初始化")
	}
	var models []rejectionModel
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]sim.Rejection, 0, len(models))
	for _, m := range models {
		out = append(out, sim.Rejection{
			Timestamp: m.Timestamp,
			Symbol:    m.Symbol,
			Action:    actionFromString(m.Action),
			Reason:    m.Reason,
		})
	}
	return out, nil
}

func actionFromString(s string) signal.Action {
	return signal.Action(strings.ToUpper(strings.TrimSpace(s)))
}

func runModelToRecord(m runModel) RunRecord {
	rec := RunRecord{
		RunID:       m.RunID,
		Submission:  m.Submission,
		Status:      RunStatus(m.Status),
		InitialCash: m.InitialCash,
		FeeRate:     m.FeeRate,
		Timeframe:   m.Timeframe,
		Signals:     m.Signals,
		Error:       m.Error,
	}
	if len(m.Summary) > 0 {
		rec.Summary = json.RawMessage(m.Summary)
	}
	if len(m.Score) > 0 {
		rec.Score = json.RawMessage(m.Score)
	}
	if m.StartedAt > 0 {
		rec.StartedAt = time.UnixMilli(m.StartedAt)
	}
	if m.FinishedAt > 0 {
		rec.FinishedAt = time.UnixMilli(m.FinishedAt)
	}
	return rec
}
