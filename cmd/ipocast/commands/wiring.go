package commands

import (
	"fmt"

	"github.com/wonny/ipocast/internal/collector"
	"github.com/wonny/ipocast/internal/features"
	"github.com/wonny/ipocast/internal/model"
	"github.com/wonny/ipocast/internal/pipeline"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/database"
	"github.com/wonny/ipocast/pkg/httputil"
	"github.com/wonny/ipocast/pkg/logger"
	"github.com/wonny/ipocast/pkg/redis"
)

// app holds the wired components shared by the CLI commands.
type app struct {
	cfg       *config.Config
	logger    *logger.Logger
	db        *database.DB
	redis     *redis.Client
	collector *collector.Collector
	runner    *pipeline.Runner
	ensemble  *model.Ensemble
}

// buildApp wires config, storage and the pipeline.
// ⭐ SSOT: 컴포넌트 조립은 여기서만
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "ipocast")

	// KIS는 쿼터가 있어 전용 rate-limited 클라이언트를 쓴다
	kisHTTP := httputil.New(log).WithRateLimit(cfg.KIS.RateLimit)
	scrapeHTTP := httputil.NewWithTimeout(log, cfg.Scrape38.Timeout)

	scraper := collector.NewScraper(cfg.Scrape38, scrapeHTTP, log)
	kis := collector.NewKISClient(cfg.KIS, kisHTTP, cache, log)
	repo := collector.NewRepository(db.Pool)
	col := collector.New(scraper, kis, repo, log)

	engineer := features.NewEngineer(cfg.Model, log)
	ensemble := model.NewEnsemble(cfg.Model, log)
	runner := pipeline.NewRunner(col, engineer, ensemble, cfg, log)

	return &app{
		cfg:       cfg,
		logger:    log,
		db:        db,
		redis:     redisClient,
		collector: col,
		runner:    runner,
		ensemble:  ensemble,
	}, nil
}

// close releases storage connections.
func (a *app) close() {
	a.redis.Close()
	a.db.Close()
}
