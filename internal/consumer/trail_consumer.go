package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/evaluator"
	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/trigger"
)

// SubjectLister 活跃对象来源（PostgreSQL）
type SubjectLister interface {
	ListActiveSubjects(ctx context.Context) ([]*models.Subject, error)
}

// WeatherProvider 天气快照来源，可为 nil（评估链在无天气数据下照常运行）
type WeatherProvider interface {
	GetSnapshot(ctx context.Context, lat, lon float64) (*models.WeatherSnapshot, error)
}

// TrailConsumer 轨迹消费者（轮询 Redis 轨迹缓存并驱动评估链）
type TrailConsumer struct {
	config    *config.Config
	cache     *CacheManager
	subjects  SubjectLister
	evaluator *evaluator.Engine
	trigger   *trigger.Engine
	weather   WeatherProvider
	logger    *zap.Logger
	now       func() time.Time
}

// NewTrailConsumer 创建轨迹消费者。weather 可为 nil
func NewTrailConsumer(
	cfg *config.Config,
	cache *CacheManager,
	subjects SubjectLister,
	evalEngine *evaluator.Engine,
	triggerEngine *trigger.Engine,
	weather WeatherProvider,
	logger *zap.Logger,
) *TrailConsumer {
	return &TrailConsumer{
		config:    cfg,
		cache:     cache,
		subjects:  subjects,
		evaluator: evalEngine,
		trigger:   triggerEngine,
		weather:   weather,
		logger:    logger,
		now:       time.Now,
	}
}

// Start 启动消费者（轮询模式）
func (c *TrailConsumer) Start(ctx context.Context) error {
	c.logger.Info("Trail consumer started",
		zap.Int("poll_interval", c.config.Guardian.PollInterval),
		zap.Int("batch_size", c.config.Guardian.Evaluation.BatchSize),
	)

	ticker := time.NewTicker(time.Duration(c.config.Guardian.PollInterval) * time.Second)
	defer ticker.Stop()

	// 立即执行一次
	if err := c.evaluateAllSubjects(ctx); err != nil {
		c.logger.Error("Failed to evaluate subjects on startup",
			zap.Error(err),
		)
	}

	// 定期轮询
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Trail consumer stopped")
			return nil
		case <-ticker.C:
			if err := c.evaluateAllSubjects(ctx); err != nil {
				c.logger.Error("Failed to evaluate subjects",
					zap.Error(err),
				)
				// 继续执行，不中断
			}
		}
	}
}

// evaluateAllSubjects 评估所有活跃对象
func (c *TrailConsumer) evaluateAllSubjects(ctx context.Context) error {
	subjects, err := c.subjects.ListActiveSubjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active subjects: %w", err)
	}

	c.logger.Debug("Evaluating subjects",
		zap.Int("subject_count", len(subjects)),
	)

	batchSize := c.config.Guardian.Evaluation.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	for i := 0; i < len(subjects); i += batchSize {
		end := i + batchSize
		if end > len(subjects) {
			end = len(subjects)
		}

		if err := c.evaluateBatch(ctx, subjects[i:end]); err != nil {
			c.logger.Error("Failed to evaluate batch",
				zap.Int("batch_start", i),
				zap.Int("batch_end", end),
				zap.Error(err),
			)
			// 继续处理下一批，不中断
		}
	}

	return nil
}

// evaluateBatch 批量评估对象
func (c *TrailConsumer) evaluateBatch(ctx context.Context, subjects []*models.Subject) error {
	for _, subject := range subjects {
		// 检查上下文是否已取消
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.evaluateSubject(ctx, subject); err != nil {
			c.logger.Error("Failed to evaluate subject",
				zap.String("subject_id", subject.SubjectID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}

// evaluateSubject 单对象评估链：轨迹 → 移动/环境分析 → 风险分级 → 触发决策
func (c *TrailConsumer) evaluateSubject(ctx context.Context, subject *models.Subject) error {
	trail, err := c.cache.GetRecentTrail(ctx, subject.SubjectID)
	if err != nil {
		return err
	}
	if len(trail) == 0 {
		// 还没有轨迹数据，跳过
		c.logger.Debug("No trail data for subject",
			zap.String("subject_id", subject.SubjectID),
		)
		return nil
	}

	latest := trail[len(trail)-1]

	nearby, err := c.cache.GetNearbyCount(ctx, subject.SubjectID)
	if err != nil {
		c.logger.Warn("Failed to get nearby count, assuming sparse",
			zap.String("subject_id", subject.SubjectID),
			zap.Error(err),
		)
		nearby = 0
	}

	// 天气获取失败不阻塞评估
	var weather *models.WeatherSnapshot
	if c.weather != nil {
		weather, err = c.weather.GetSnapshot(ctx, latest.Latitude, latest.Longitude)
		if err != nil {
			c.logger.Debug("Weather snapshot unavailable",
				zap.String("subject_id", subject.SubjectID),
				zap.Error(err),
			)
			weather = nil
		}
	}

	movement := c.evaluator.AnalyzeMovement(trail)
	env := c.evaluator.AnalyzeEnvironment(c.now(), latest.Latitude, latest.Longitude, weather, nearby)
	assessment := c.evaluator.ClassifyRisk(movement, env)

	decision, err := c.trigger.EvaluateAutoTrigger(ctx, trigger.SubjectContext{
		SubjectID: subject.SubjectID,
		Latitude:  latest.Latitude,
		Longitude: latest.Longitude,
		Movement:  &movement,
	}, assessment)
	if err != nil {
		return fmt.Errorf("failed to evaluate trigger: %w", err)
	}

	if decision.Triggered {
		c.logger.Info("Auto trigger fired",
			zap.String("subject_id", subject.SubjectID),
			zap.String("trigger_type", decision.TriggerType),
			zap.Float64("risk_score", assessment.RiskScore),
		)
	}

	// 看板缓存写入失败不影响主流程
	if err := c.cache.UpdateAssessmentCache(ctx, subject.SubjectID, assessment); err != nil {
		c.logger.Warn("Failed to update assessment cache",
			zap.String("subject_id", subject.SubjectID),
			zap.Error(err),
		)
	}

	return nil
}
