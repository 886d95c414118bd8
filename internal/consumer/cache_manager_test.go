package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/models"
)

func setupCacheManager(t *testing.T) (*miniredis.Miniredis, *CacheManager) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Guardian.Cache.TrailKeyPrefix = "guardian:subject:"
	cfg.Guardian.Cache.TrailSuffix = ":trail"
	cfg.Guardian.Cache.NearbySuffix = ":nearby"
	cfg.Guardian.Cache.AssessmentSuffix = ":assessment"
	cfg.Guardian.Cache.AssessmentTTL = 300

	return mr, NewCacheManager(cfg, client, zap.NewNop())
}

func TestGetRecentTrail_Success(t *testing.T) {
	mr, cache := setupCacheManager(t)
	subjectID := uuid.New().String()

	trail := []models.LocationSample{
		{Latitude: 28.6139, Longitude: 77.2090, Timestamp: "2026-01-07T10:00:00Z"},
		{Latitude: 28.6149, Longitude: 77.2090, Timestamp: "2026-01-07T10:05:00Z"},
	}
	data, err := json.Marshal(trail)
	require.NoError(t, err)
	mr.Set("guardian:subject:"+subjectID+":trail", string(data))

	got, err := cache.GetRecentTrail(context.Background(), subjectID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 28.6139, got[0].Latitude)
	assert.Equal(t, "2026-01-07T10:05:00Z", got[1].Timestamp)
}

func TestGetRecentTrail_Missing(t *testing.T) {
	_, cache := setupCacheManager(t)

	got, err := cache.GetRecentTrail(context.Background(), uuid.New().String())

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRecentTrail_CorruptPayload(t *testing.T) {
	mr, cache := setupCacheManager(t)
	subjectID := uuid.New().String()

	mr.Set("guardian:subject:"+subjectID+":trail", "not-json")

	_, err := cache.GetRecentTrail(context.Background(), subjectID)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestGetNearbyCount_Success(t *testing.T) {
	mr, cache := setupCacheManager(t)
	subjectID := uuid.New().String()

	mr.Set("guardian:subject:"+subjectID+":nearby", "42")

	count, err := cache.GetNearbyCount(context.Background(), subjectID)

	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestGetNearbyCount_Missing(t *testing.T) {
	_, cache := setupCacheManager(t)

	count, err := cache.GetNearbyCount(context.Background(), uuid.New().String())

	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetNearbyCount_Garbage(t *testing.T) {
	mr, cache := setupCacheManager(t)
	subjectID := uuid.New().String()

	mr.Set("guardian:subject:"+subjectID+":nearby", "many")

	_, err := cache.GetNearbyCount(context.Background(), subjectID)

	assert.Error(t, err)
}

func TestUpdateAssessmentCache_Success(t *testing.T) {
	mr, cache := setupCacheManager(t)
	subjectID := uuid.New().String()

	assessment := &models.RiskAssessment{
		RiskLevel:     models.RiskMedium,
		RiskScore:     0.45,
		Confidence:    0.7,
		AlertPriority: models.PriorityLow,
		Timestamp:     time.Now(),
	}

	err := cache.UpdateAssessmentCache(context.Background(), subjectID, assessment)
	require.NoError(t, err)

	key := "guardian:subject:" + subjectID + ":assessment"
	val, err := mr.Get(key)
	require.NoError(t, err)

	var stored models.RiskAssessment
	require.NoError(t, json.Unmarshal([]byte(val), &stored))
	assert.Equal(t, models.RiskMedium, stored.RiskLevel)
	assert.Equal(t, 0.45, stored.RiskScore)

	// TTL 按配置写入
	assert.Equal(t, 300*time.Second, mr.TTL(key))
}
