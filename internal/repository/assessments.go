package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// AssessmentsRepository 风险评估历史仓库
// SaveAssessment 是观测性写入；CountRecentHighRisk 是持续高风险规则的权威输入
type AssessmentsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssessmentsRepository 创建评估历史仓库
func NewAssessmentsRepository(db *sql.DB, logger *zap.Logger) *AssessmentsRepository {
	return &AssessmentsRepository{
		db:     db,
		logger: logger,
	}
}

// SaveAssessment 追加一条评估记录
func (r *AssessmentsRepository) SaveAssessment(ctx context.Context, subjectID string, assessment *models.RiskAssessment) error {
	if subjectID == "" {
		return fmt.Errorf("subject_id is required")
	}
	if assessment == nil {
		return fmt.Errorf("assessment is required")
	}

	breakdown, err := json.Marshal(assessment.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal breakdown: %w", err)
	}
	factors, err := json.Marshal(assessment.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	recommendations, err := json.Marshal(assessment.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	query := `
		INSERT INTO risk_assessments (
			assessment_id,
			subject_id,
			risk_level,
			risk_score,
			confidence,
			alert_priority,
			breakdown,
			factors,
			recommendations,
			assessed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		uuid.New().String(),
		subjectID,
		assessment.RiskLevel,
		assessment.RiskScore,
		assessment.Confidence,
		assessment.AlertPriority,
		breakdown,
		factors,
		recommendations,
		assessment.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}

	return nil
}

// CountRecentHighRisk 统计 since 之后分数不低于 minScore 的评估条数
func (r *AssessmentsRepository) CountRecentHighRisk(ctx context.Context, subjectID string, since time.Time, minScore float64) (int, error) {
	if subjectID == "" {
		return 0, fmt.Errorf("subject_id is required")
	}

	query := `
		SELECT COUNT(*)
		FROM risk_assessments
		WHERE subject_id = $1
		  AND assessed_at >= $2
		  AND risk_score >= $3
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, subjectID, since, minScore).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent high-risk assessments: %w", err)
	}

	return count, nil
}
