package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"stratlab/internal/config"
	"stratlab/internal/httpapi"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/runner"
	"stratlab/internal/schema"
	sigdoc "stratlab/internal/signal"
	"stratlab/internal/source"
	"stratlab/internal/store"
	"stratlab/internal/strategy"
)

func main() {
	var (
		serve        = flag.Bool("serve", false, "启动 HTTP 服务")
		signalsPath  = flag.String("signals", "", "单次评测：信号文档路径（JSON 数组）")
		symbol       = flag.String("symbol", "", "目标币")
		submission   = flag.String("submission", "", "单次评测：提交名（默认取文件名）")
		generate     = flag.Bool("generate", false, "用内置参考策略生成信号文档")
		universePath = flag.String("universe", "", "币种清单 YAML（默认内置清单）")
		outPath      = flag.String("out", "", "生成的信号文档输出路径（默认 stdout）")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	auditFile, err := setupAuditOutput(cfg.App.AuditPath)
	if err != nil {
		log.Fatalf("初始化审计日志失败: %v", err)
	}
	if auditFile != nil {
		defer auditFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)

	candles, err := store.NewCandleStore(cfg.App.DataRoot)
	if err != nil {
		log.Fatalf("打开行情存储失败: %v", err)
	}
	defer candles.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.App.ResultDB), 0o755); err != nil {
		log.Fatalf("创建结果目录失败: %v", err)
	}
	results, err := store.NewResultStore(cfg.App.ResultDB)
	if err != nil {
		log.Fatalf("打开结果存储失败: %v", err)
	}
	defer results.Close()

	var registry *schema.Registry
	if path := strings.TrimSpace(cfg.Schema.Path); path != "" {
		registry, err = schema.NewRegistry(path)
		if err != nil {
			log.Fatalf("加载信号 schema 失败: %v", err)
		}
		if cfg.Schema.Watch {
			go func() {
				if err := registry.Watch(ctx); err != nil {
					logger.Warnf("schema 热更新退出: %v", err)
				}
			}()
		}
	}

	fetch, err := buildFetchService(cfg, candles)
	if err != nil {
		log.Fatalf("初始化数据源失败: %v", err)
	}
	fetch.SetContext(ctx)

	run, err := runner.New(runner.Config{
		Results:            results,
		Candles:            candles,
		Fetch:              fetch,
		Schema:             registry,
		DefaultInitialCash: cfg.Simulation.InitialCash,
		DefaultFeeRate:     cfg.Simulation.FeeRate,
		DefaultTimeframe:   cfg.Simulation.ExecutionTimeframe,
		FallbackTimeframes: cfg.Simulation.FallbackTimeframes,
		MaxConcurrent:      cfg.Simulation.MaxConcurrentRuns,
		ReportDir:          cfg.App.ReportDir,
	})
	if err != nil {
		log.Fatalf("初始化运行器失败: %v", err)
	}
	run.SetContext(ctx)

	if *serve {
		server, err := httpapi.NewServer(httpapi.Config{
			Addr:    cfg.App.HTTPAddr,
			Runner:  run,
			Fetch:   fetch,
			Results: results,
			Candles: candles,
		})
		if err != nil {
			log.Fatalf("初始化 HTTP 服务失败: %v", err)
		}
		logger.Infof("HTTP 服务监听 %s", cfg.App.HTTPAddr)
		if err := server.Start(ctx); err != nil {
			log.Fatalf("HTTP 服务退出: %v", err)
		}
		return
	}

	if *generate {
		if *symbol == "" {
			fmt.Fprintln(os.Stderr, "用法: stratlab -generate -symbol LDO [-universe coins.yaml] [-out signals.json]")
			os.Exit(2)
		}
		if err := runGenerate(ctx, fetch, candles, *symbol, *universePath, *outPath); err != nil {
			log.Fatalf("生成信号失败: %v", err)
		}
		return
	}

	if *signalsPath == "" || *symbol == "" {
		fmt.Fprintln(os.Stderr, "用法: stratlab -serve | stratlab -signals file.json -symbol LDO")
		flag.PrintDefaults()
		os.Exit(2)
	}
	raw, err := os.ReadFile(*signalsPath)
	if err != nil {
		log.Fatalf("读取信号文档失败: %v", err)
	}
	name := *submission
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(*signalsPath), filepath.Ext(*signalsPath))
	}
	outcome, err := run.Evaluate(ctx, runner.RunRequest{
		Submission: name,
		Symbol:     *symbol,
		Signals:    raw,
	})
	if err != nil {
		log.Fatalf("评测失败: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"run_id":     outcome.Record.RunID,
		"summary":    outcome.Summary,
		"score":      outcome.Score,
		"trades":     len(outcome.Result.TradeLog),
		"rejections": len(outcome.Result.Rejections),
		"report":     outcome.Report,
	}); err != nil {
		log.Fatalf("输出结果失败: %v", err)
	}
}

func loadConfig() *config.Config {
	cfgPath := os.Getenv("STRATLAB_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
		if _, err := os.Stat(cfgPath); err != nil {
			logger.Infof("未找到配置文件 %s，使用内置默认值", cfgPath)
			return config.Default()
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	return cfg
}

func buildFetchService(cfg *config.Config, candles *store.CandleStore) (*source.Service, error) {
	binanceSrc, err := source.NewBinanceSource(source.BinanceConfig{
		BaseURL:  cfg.Fetch.BaseURL,
		ProxyURL: cfg.Fetch.ProxyURL,
	})
	if err != nil {
		return nil, err
	}
	return source.NewService(source.ServiceConfig{
		Store:           candles,
		Sources:         map[string]source.CandleSource{"binance": binanceSrc},
		DefaultExchange: cfg.Fetch.Exchange,
		RateLimitPerMin: cfg.Fetch.RateLimitPerMin,
		MaxBatch:        cfg.Fetch.MaxBatch,
		MaxConcurrent:   cfg.Fetch.MaxConcurrent,
	})
}

// runGenerate 用内置参考策略为 universe 中的目标币生成信号文档，
// 输出前走与外部提交相同的文档校验。
func runGenerate(ctx context.Context, fetch *source.Service, candles *store.CandleStore, symbol, universePath, outPath string) error {
	universe := strategy.DefaultUniverse()
	if universePath != "" {
		var err error
		universe, err = strategy.LoadUniverse(universePath)
		if err != nil {
			return err
		}
	}
	coin, ok := universe.Get(symbol)
	if !ok {
		return fmt.Errorf("目标币 %s 不在清单中（可选: %v）", symbol, universe.Symbols())
	}

	manifest, err := candles.Manifest(ctx, coin.Symbol, coin.Timeframe)
	if err != nil {
		return err
	}
	if manifest.Rows == 0 {
		return fmt.Errorf("%s@%s 没有本地行情数据，先通过 /api/fetch 拉取", coin.Symbol, coin.Timeframe)
	}
	target, err := candles.Frame(ctx, coin.Symbol, coin.Timeframe, manifest.MinTime, manifest.MaxTime)
	if err != nil {
		return err
	}

	anchors := make([]market.Frame, 0, len(coin.Anchors))
	for _, anchor := range coin.Anchors {
		if fetch != nil {
			if _, err := fetch.EnsureRange(ctx, anchor, coin.Timeframe, manifest.MinTime, manifest.MaxTime); err != nil {
				logger.Warnf("锚点 %s 数据补齐失败: %v", anchor, err)
			}
		}
		frame, err := candles.Frame(ctx, anchor, coin.Timeframe, manifest.MinTime, manifest.MaxTime)
		if err != nil {
			return err
		}
		if len(frame.Candles) == 0 {
			return fmt.Errorf("锚点 %s@%s 没有行情数据", anchor, coin.Timeframe)
		}
		anchors = append(anchors, frame)
	}

	signals, err := strategy.NewAnchorPump(strategy.AnchorPumpConfig{}).Generate(target, anchors)
	if err != nil {
		return err
	}
	doc, err := strategy.Document(signals)
	if err != nil {
		return err
	}
	if err := sigdoc.ValidateDocument(doc); err != nil {
		return fmt.Errorf("生成的文档未通过校验: %w", err)
	}

	logger.Infof("为 %s 生成 %d 条信号（区间 %d..%d）", coin.Symbol, len(signals), manifest.MinTime, manifest.MaxTime)
	if outPath == "" {
		fmt.Println(string(doc))
		return nil
	}
	return os.WriteFile(outPath, doc, 0o644)
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func setupAuditOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetAuditWriter(f)
	return f, nil
}
