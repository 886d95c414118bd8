package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// EmergenciesRepository 应急记录仓库
type EmergenciesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmergenciesRepository 创建应急记录仓库
func NewEmergenciesRepository(db *sql.DB, logger *zap.Logger) *EmergenciesRepository {
	return &EmergenciesRepository{
		db:     db,
		logger: logger,
	}
}

// CreateEmergency 创建应急记录，返回 emergency_id
func (r *EmergenciesRepository) CreateEmergency(ctx context.Context, emergency *models.Emergency) (string, error) {
	if emergency == nil {
		return "", fmt.Errorf("emergency is required")
	}
	if emergency.EmergencyID == "" {
		return "", fmt.Errorf("emergency_id is required")
	}
	if emergency.SubjectID == "" {
		return "", fmt.Errorf("subject_id is required")
	}
	if emergency.Source != "confirmed" && emergency.Source != "auto_escalated" {
		return "", fmt.Errorf("invalid emergency source: %s", emergency.Source)
	}

	query := `
		INSERT INTO emergencies (
			emergency_id,
			subject_id,
			trigger_event_id,
			source,
			risk_score,
			latitude,
			longitude,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		emergency.EmergencyID,
		emergency.SubjectID,
		emergency.TriggerEventID,
		emergency.Source,
		emergency.RiskScore,
		emergency.Latitude,
		emergency.Longitude,
		emergency.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create emergency: %w", err)
	}

	return emergency.EmergencyID, nil
}
