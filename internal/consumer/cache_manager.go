package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/models"
)

// CacheManager Redis 缓存管理器（用于监护服务）
// 轨迹与附近人数由采集侧写入，本服务只读；最新评估由本服务写入供看板读取
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) trailKey(subjectID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Guardian.Cache.TrailKeyPrefix,
		subjectID,
		c.config.Guardian.Cache.TrailSuffix,
	)
}

// GetRecentTrail 读取对象近期轨迹，无缓存时返回 (nil, nil)
func (c *CacheManager) GetRecentTrail(ctx context.Context, subjectID string) ([]models.LocationSample, error) {
	val, err := c.redisClient.Get(ctx, c.trailKey(subjectID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trail cache: %w", err)
	}

	var trail []models.LocationSample
	if err := json.Unmarshal([]byte(val), &trail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trail: %w", err)
	}

	return trail, nil
}

// GetNearbyCount 读取对象附近人数估计，无缓存时返回 0
func (c *CacheManager) GetNearbyCount(ctx context.Context, subjectID string) (int, error) {
	key := fmt.Sprintf("%s%s%s",
		c.config.Guardian.Cache.TrailKeyPrefix,
		subjectID,
		c.config.Guardian.Cache.NearbySuffix,
	)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get nearby cache: %w", err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("failed to parse nearby count: %w", err)
	}

	return count, nil
}

// UpdateAssessmentCache 写入最新评估（设置 TTL）
func (c *CacheManager) UpdateAssessmentCache(ctx context.Context, subjectID string, assessment *models.RiskAssessment) error {
	key := fmt.Sprintf("%s%s%s",
		c.config.Guardian.Cache.TrailKeyPrefix,
		subjectID,
		c.config.Guardian.Cache.AssessmentSuffix,
	)

	jsonData, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Guardian.Cache.AssessmentTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set assessment cache: %w", err)
	}

	c.logger.Debug("Updated assessment cache",
		zap.String("subject_id", subjectID),
		zap.String("key", key),
		zap.String("risk_level", assessment.RiskLevel),
	)

	return nil
}
