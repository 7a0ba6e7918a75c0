package bootstrap

import (
	"log"
	"time"

	"github.com/chatrag/backend-go/internal/config"
	"github.com/chatrag/backend-go/internal/database"
	"github.com/chatrag/backend-go/internal/ingestion"
	"github.com/chatrag/backend-go/internal/kafka"
	"github.com/chatrag/backend-go/internal/logger"
	"github.com/chatrag/backend-go/internal/pipeline"
	"github.com/chatrag/backend-go/internal/rewriter"
	"github.com/chatrag/backend-go/internal/vectorindex"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	VectorIndex *vectorindex.Client
	Pipeline    *pipeline.Pipeline
	Tracker     *ingestion.Tracker

	cleanupTasks []func() error
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// Init bootstraps configuration, logger and shared infrastructure
// components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	config.WatchConfig(func(newCfg *config.Config) {
		logger.Info("configuration reloaded")
	})

	app := &App{}

	// 向量索引服务客户端（租户隔离传输层）
	app.VectorIndex = vectorindex.NewClient(
		cfg.VectorIndex.BaseURL,
		time.Duration(cfg.VectorIndex.Timeout)*time.Second,
	)

	// Redis：改写结果缓存，连接失败只降级不致命
	var cache rewriter.Cache
	if rdb, err := database.InitRedis(); err != nil {
		logger.Warn("redis unavailable, rewrite cache disabled", zap.Error(err))
	} else {
		if c := rewriter.NewRedisCache(rdb, time.Duration(cfg.Rewrite.CacheTTL)*time.Second); c != nil {
			cache = c
		}
		app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
	}

	// 查询改写器：禁用或没有API key时所有查询原样通过
	rw := rewriter.NewRewriter(nil)
	if cfg.Rewrite.Enabled {
		model := rewriter.NewOpenAIModel(
			cfg.Rewrite.APIKey,
			cfg.Rewrite.Model,
			cfg.Rewrite.BaseURL,
			time.Duration(cfg.Rewrite.TimeoutSecond)*time.Second,
		)
		if model == nil {
			logger.Warn("rewrite enabled but no API key configured, queries pass through unchanged")
		}
		opts := []rewriter.Option{
			rewriter.WithHistoryTurns(cfg.Rewrite.HistoryTurns),
			rewriter.WithMaxFilenames(cfg.Rewrite.MaxFilenames),
		}
		if cache != nil {
			opts = append(opts, rewriter.WithCache(cache))
		}
		rw = rewriter.NewRewriter(model, opts...)
	}

	// Kafka审计事件（可选）
	pipelineOpts := []pipeline.Option{}
	if cfg.Kafka.Enabled {
		if err := kafka.InitProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			logger.Warn("kafka unavailable, retrieval audit disabled", zap.Error(err))
		} else {
			pipelineOpts = append(pipelineOpts, pipeline.WithAuditSink(kafka.GetProducer()))
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return kafka.GetProducer().Close()
			})
		}
	}

	app.Pipeline = pipeline.NewPipeline(app.VectorIndex, rw, pipelineOpts...)

	app.Tracker = ingestion.NewTracker(app.VectorIndex,
		ingestion.WithPollInterval(cfg.Ingestion.PollInterval()),
		ingestion.WithSinglePoll(cfg.Ingestion.SinglePollInterval(), cfg.Ingestion.SingleMaxAttempt),
	)

	globalApp = app
	logger.Info("application bootstrapped",
		zap.String("vector_index", cfg.VectorIndex.BaseURL),
		zap.Bool("rewrite_enabled", cfg.Rewrite.Enabled),
		zap.Bool("kafka_enabled", cfg.Kafka.Enabled))
	return app, nil
}

// Shutdown releases resources acquired during Init.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Error("cleanup task failed", zap.Error(err))
		}
	}
	logger.Sync()
}
