package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"stratlab/internal/runner"
	"stratlab/internal/source"
	"stratlab/internal/store"

	"github.com/gin-gonic/gin"
)

// Server 提供评测与数据管理的 Gin 接口。
type Server struct {
	addr    string
	runner  *runner.Runner
	fetch   *source.Service
	results *store.ResultStore
	candles *store.CandleStore
	router  *gin.Engine
}

type Config struct {
	Addr    string
	Runner  *runner.Runner
	Fetch   *source.Service
	Results *store.ResultStore
	Candles *store.CandleStore
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("runner 不能为空")
	}
	if cfg.Results == nil {
		return nil, errors.New("结果存储不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		runner:  cfg.Runner,
		fetch:   cfg.Fetch,
		results: cfg.Results,
		candles: cfg.Candles,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/equity", s.handleRunEquity)
	api.GET("/runs/:id/rejections", s.handleRunRejections)
	api.GET("/runs/:id/metrics", s.handleRunMetrics)
	api.POST("/fetch", s.handleFetch)
	api.GET("/fetch/:id", s.handleFetchStatus)
	api.GET("/jobs", s.handleJobs)
	api.GET("/data", s.handleManifest)
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req struct {
		Submission         string          `json:"submission"`
		Symbol             string          `json:"symbol" binding:"required"`
		Signals            json.RawMessage `json:"signals" binding:"required"`
		InitialCash        float64         `json:"initial_cash"`
		FeeRate            float64         `json:"fee_rate"`
		ExecutionTimeframe string          `json:"execution_timeframe"`
		FallbackTimeframes []string        `json:"fallback_timeframes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.runner.StartRun(runner.RunRequest{
		Submission:         req.Submission,
		Symbol:             req.Symbol,
		Signals:            []byte(req.Signals),
		InitialCash:        req.InitialCash,
		FeeRate:            req.FeeRate,
		ExecutionTimeframe: req.ExecutionTimeframe,
		FallbackTimeframes: req.FallbackTimeframes,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": rec})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	rec, ok, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": rec})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	trades, err := s.results.ListTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleRunEquity(c *gin.Context) {
	equity, err := s.results.ListEquity(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"equity": equity})
}

func (s *Server) handleRunRejections(c *gin.Context) {
	rejections, err := s.results.ListRejections(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejections": rejections})
}

func (s *Server) handleRunMetrics(c *gin.Context) {
	rec, ok, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":  rec.RunID,
		"status":  rec.Status,
		"summary": rec.Summary,
		"score":   rec.Score,
	})
}

func (s *Server) handleFetch(c *gin.Context) {
	if s.fetch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据源未启用"})
		return
	}
	var req struct {
		Exchange  string `json:"exchange"`
		Symbol    string `json:"symbol" binding:"required"`
		Timeframe string `json:"timeframe" binding:"required"`
		StartTS   int64  `json:"start_ts" binding:"required"`
		EndTS     int64  `json:"end_ts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.fetch.SubmitFetch(source.FetchParams{
		Exchange:  req.Exchange,
		Symbol:    req.Symbol,
		Timeframe: req.Timeframe,
		Start:     req.StartTS,
		End:       req.EndTS,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (s *Server) handleFetchStatus(c *gin.Context) {
	if s.fetch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据源未启用"})
		return
	}
	job, ok := s.fetch.Job(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleJobs(c *gin.Context) {
	if s.fetch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据源未启用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.fetch.Jobs()})
}

func (s *Server) handleManifest(c *gin.Context) {
	if s.candles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情存储未启用"})
		return
	}
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/timeframe 必填"})
		return
	}
	info, err := s.candles.Manifest(c.Request.Context(), symbol, tf)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": info})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
