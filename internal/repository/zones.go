package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// 区域类型
const (
	ZoneHotspot            = "hotspot"
	ZoneCommercial         = "commercial"
	ZoneCrime              = "crime"
	ZoneScam               = "scam"
	ZonePoorInfrastructure = "poor_infrastructure"
)

// ZoneRepository 地理区域仓库，兼作环境评估器的区域判定器
// 区域表全量加载进内存（量级在千条以内），Reload 可周期性刷新
type ZoneRepository struct {
	db     *sql.DB
	logger *zap.Logger

	mu    sync.RWMutex
	zones map[string][]models.Zone // kind → zones
}

// NewZoneRepository 创建区域仓库（初始为空，需 Reload 后生效）
func NewZoneRepository(db *sql.DB, logger *zap.Logger) *ZoneRepository {
	return &ZoneRepository{
		db:     db,
		logger: logger,
		zones:  make(map[string][]models.Zone),
	}
}

// Reload 全量重新加载区域表
func (r *ZoneRepository) Reload(ctx context.Context) error {
	query := `
		SELECT
			zone_id,
			kind,
			name,
			min_lat,
			max_lat,
			min_lon,
			max_lon
		FROM zones
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string][]models.Zone)
	total := 0
	for rows.Next() {
		var zone models.Zone
		err := rows.Scan(
			&zone.ZoneID,
			&zone.Kind,
			&zone.Name,
			&zone.MinLat,
			&zone.MaxLat,
			&zone.MinLon,
			&zone.MaxLon,
		)
		if err != nil {
			return fmt.Errorf("failed to scan zone: %w", err)
		}
		loaded[zone.Kind] = append(loaded[zone.Kind], zone)
		total++
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate zones: %w", err)
	}

	r.mu.Lock()
	r.zones = loaded
	r.mu.Unlock()

	r.logger.Info("Zones reloaded",
		zap.Int("total", total),
	)
	return nil
}

func (r *ZoneRepository) inZone(kind string, lat, lon float64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.zones[kind] {
		if r.zones[kind][i].Contains(lat, lon) {
			return true
		}
	}
	return false
}

// IsHotspot 是否人流热点区域
func (r *ZoneRepository) IsHotspot(lat, lon float64) bool {
	return r.inZone(ZoneHotspot, lat, lon)
}

// IsCommercial 是否商业区域
func (r *ZoneRepository) IsCommercial(lat, lon float64) bool {
	return r.inZone(ZoneCommercial, lat, lon)
}

// IsCrimeArea 是否治安风险区域
func (r *ZoneRepository) IsCrimeArea(lat, lon float64) bool {
	return r.inZone(ZoneCrime, lat, lon)
}

// IsScamArea 是否诈骗高发区域
func (r *ZoneRepository) IsScamArea(lat, lon float64) bool {
	return r.inZone(ZoneScam, lat, lon)
}

// IsPoorInfrastructure 是否基础设施薄弱区域
func (r *ZoneRepository) IsPoorInfrastructure(lat, lon float64) bool {
	return r.inZone(ZonePoorInfrastructure, lat, lon)
}
