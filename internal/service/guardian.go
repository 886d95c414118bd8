package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/consumer"
	"wisefido-guardian/internal/evaluator"
	"wisefido-guardian/internal/notifier"
	"wisefido-guardian/internal/repository"
	"wisefido-guardian/internal/trigger"
	"wisefido-guardian/internal/weather"
)

// GuardianService 监护服务（整合各层）
type GuardianService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	cacheManager  *consumer.CacheManager
	trailConsumer *consumer.TrailConsumer
	subjectsRepo  *repository.SubjectsRepository
	eventsRepo    *repository.TriggerEventsRepository
	zonesRepo     *repository.ZoneRepository
	evaluator     *evaluator.Engine
	triggerEngine *trigger.Engine
	sweeper       *trigger.Sweeper
	mqttNotifier  *notifier.MQTTNotifier
}

// NewGuardianService 创建监护服务
func NewGuardianService(cfg *config.Config, logger *zap.Logger) (*GuardianService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试数据库连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	subjectsRepo := repository.NewSubjectsRepository(db, logger)
	eventsRepo := repository.NewTriggerEventsRepository(db, logger)
	assessmentsRepo := repository.NewAssessmentsRepository(db, logger)
	emergenciesRepo := repository.NewEmergenciesRepository(db, logger)
	zonesRepo := repository.NewZoneRepository(db, logger)

	// 区域表加载失败不阻塞启动：区域判定降级为全否
	if err := zonesRepo.Reload(ctx); err != nil {
		logger.Warn("Failed to load zones, area classification disabled",
			zap.Error(err),
		)
	}

	// 4. 可选 MQTT 通知器
	var mqttNotifier *notifier.MQTTNotifier
	var triggerNotifier trigger.Notifier
	if cfg.MQTT.Broker != "" {
		mqttNotifier, err = notifier.NewMQTTNotifier(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create mqtt notifier: %w", err)
		}
		triggerNotifier = mqttNotifier
	}

	// 5. 创建评估与触发引擎
	evalEngine := evaluator.NewEngine(zonesRepo, logger)

	triggerCfg := trigger.Config{
		CriticalRisk:        cfg.Guardian.Trigger.CriticalRisk,
		HighRisk:            cfg.Guardian.Trigger.HighRisk,
		SustainedWindow:     cfg.SustainedWindow(),
		SustainedCount:      cfg.Guardian.Trigger.SustainedCount,
		AnomalyThreshold:    cfg.Guardian.Trigger.AnomalyThreshold,
		ConfidenceThreshold: cfg.Guardian.Trigger.ConfidenceThreshold,
		Cooldown:            cfg.Cooldown(),
		ConfirmTimeout:      cfg.ConfirmTimeout(),
	}
	triggerEngine := trigger.NewEngine(triggerCfg, eventsRepo, assessmentsRepo, emergenciesRepo, triggerNotifier, logger)
	sweeper := trigger.NewSweeper(triggerCfg, eventsRepo, emergenciesRepo, triggerNotifier, logger)

	// 6. 可选天气客户端
	var weatherProvider consumer.WeatherProvider
	if cfg.Weather.BaseURL != "" {
		weatherProvider = weather.NewClient(
			cfg.Weather.BaseURL,
			cfg.Weather.APIKey,
			time.Duration(cfg.Weather.TimeoutSec)*time.Second,
			logger,
		)
	}

	// 7. 创建 Consumer 层
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)
	trailConsumer := consumer.NewTrailConsumer(
		cfg,
		cacheManager,
		subjectsRepo,
		evalEngine,
		triggerEngine,
		weatherProvider,
		logger,
	)

	return &GuardianService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		logger:        logger,
		cacheManager:  cacheManager,
		trailConsumer: trailConsumer,
		subjectsRepo:  subjectsRepo,
		eventsRepo:    eventsRepo,
		zonesRepo:     zonesRepo,
		evaluator:     evalEngine,
		triggerEngine: triggerEngine,
		sweeper:       sweeper,
		mqttNotifier:  mqttNotifier,
	}, nil
}

// TriggerEngine 触发决策引擎（供外部 API 层调用 RespondToTrigger）
func (s *GuardianService) TriggerEngine() *trigger.Engine {
	return s.triggerEngine
}

// Start 启动服务：升级扫描器 goroutine + 轨迹消费者（阻塞至 ctx 取消）
func (s *GuardianService) Start(ctx context.Context) error {
	s.logger.Info("Starting guardian service")

	go s.sweeper.Run(ctx, time.Duration(s.config.Guardian.SweepInterval)*time.Second)

	if err := s.trailConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start trail consumer: %w", err)
	}

	return nil
}

// Stop 停止服务
func (s *GuardianService) Stop() error {
	s.logger.Info("Stopping guardian service")

	if s.mqttNotifier != nil {
		s.mqttNotifier.Close()
	}

	// 关闭数据库连接
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	// 关闭 Redis 连接
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
