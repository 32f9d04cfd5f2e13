package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finproof/config"
	"finproof/database"
	"finproof/exchange/connector"
	"finproof/insights"
	"finproof/ledger"
	"finproof/lock"
	"finproof/logger"
	"finproof/metrics"
	"finproof/notify"
	"finproof/proof"
	"finproof/storage"
	"finproof/submission"
)

// Version 版本号
var Version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "YAML 配置文件路径（可选）")
	debugMode := flag.Bool("debug", false, "启用 DEBUG 日志")
	showVersion := flag.Bool("version", false, "显示版本号")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return proof.ExitOK
	}
	defer logger.Close()

	logger.Info("🚀 FinProof 贡献证明启动...")
	logger.Info("📦 版本号: %s", Version)

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Warn("⚠️ %v", err)
	}

	cfg, err := config.Load(*configPath, config.EnvProvider{})
	if err != nil {
		logger.Error("❌ 加载配置失败: %v", err)
		return proof.ExitFailure
	}
	if *debugMode {
		cfg.App.LogLevel = "debug"
	}
	logLevel := logger.ParseLogLevel(cfg.App.LogLevel)
	logger.SetLevel(logLevel)
	logger.Info("日志级别设置为: %s", logLevel.String())
	logger.Debug("生效配置:\n%s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pm := metrics.NewPrometheusMetrics()
	defer func() {
		if !cfg.Metrics.Enabled {
			return
		}
		if err := pm.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Warn("⚠️ 写出指标失败: %v", err)
		}
	}()

	notifier := notify.NewNotificationService(cfg)

	resp, err := generate(ctx, cfg, pm)
	if err != nil {
		code := proof.ExitCode(err)
		logger.Error("❌ 证明生成失败 (exit %d): %v", code, err)
		notifier.Send(ctx, &notify.Event{
			Type:     notify.EventProofFailed,
			JobID:    cfg.Proof.JobID,
			FileID:   cfg.Proof.FileID,
			Error:    err.Error(),
			ExitCode: code,
		})
		return code
	}

	path, err := proof.WriteResults(cfg.App.OutputDir, resp)
	if err != nil {
		logger.Error("❌ 写出结果失败: %v", err)
		return proof.ExitFailure
	}
	logger.Info("✅ 证明已写出: %s (valid=%v, score=%.6f)", path, resp.Valid, resp.Score)

	notifier.Send(ctx, &notify.Event{
		Type:        notify.EventProofGenerated,
		Timestamp:   time.Now().UTC(),
		JobID:       cfg.Proof.JobID,
		FileID:      cfg.Proof.FileID,
		Valid:       resp.Valid,
		Score:       resp.Score,
		Attestation: resp,
	})
	return proof.ExitOK
}

// generate 初始化依赖并运行流水线
func generate(ctx context.Context, cfg *config.Config, pm *metrics.PrometheusMetrics) (*proof.Response, error) {
	sub, err := submission.Load(cfg.App.InputDir)
	if err != nil {
		return nil, err
	}
	logger.Info("📄 提交文件 %s, 类型 %s", sub.FileName(), sub.Kind)

	logger.Info("🔧 正在初始化数据库...")
	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrLedger, err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: ping: %w", ledger.ErrLedger, err)
	}
	logger.Info("✅ 数据库初始化完成 (%s)", cfg.Database.Type)

	distLock, err := lock.NewDistributedLock(cfg)
	if err != nil {
		return nil, err
	}
	defer distLock.Close()
	if cfg.DistributedLock.Enabled {
		logger.Info("✅ 分布式锁已启用 (%s)", cfg.DistributedLock.Redis.Addr)
	}

	store, err := storage.NewStore(cfg)
	if err != nil {
		return nil, err
	}

	gen := proof.NewGenerator(cfg, proof.Deps{
		Ledger:   ledger.New(db),
		Lock:     distLock,
		Store:    store,
		Insights: insights.NewService(db),
		Metrics:  pm,
		Coinbase: func() (proof.CoinbaseSource, error) {
			c, err := connector.NewCoinbase(cfg, pm)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Binance: func() (proof.BinanceSource, error) {
			c, err := connector.NewBinance(cfg, pm)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	})

	resp, err := gen.Generate(ctx, sub)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("🛑 收到退出信号，运行已取消")
		}
		return nil, err
	}
	return resp, nil
}
