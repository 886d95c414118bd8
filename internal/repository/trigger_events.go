package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// TriggerEventsRepository 触发事件仓库
// 创建与状态迁移均为单条带条件的原子 SQL，多实例并发安全
type TriggerEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTriggerEventsRepository 创建触发事件仓库
func NewTriggerEventsRepository(db *sql.DB, logger *zap.Logger) *TriggerEventsRepository {
	return &TriggerEventsRepository{
		db:     db,
		logger: logger,
	}
}

const triggerEventColumns = `
	event_id,
	subject_id,
	trigger_type,
	risk_score,
	confidence,
	latitude,
	longitude,
	reason,
	status,
	requires_confirmation,
	created_at,
	responded_at,
	escalated_at,
	emergency_id,
	updated_at`

// CreateTriggerEvent 条件插入：同一对象存在 pending 事件，
// 或存在冷却期内的 escalated/auto_escalated 事件时不写入，返回 (false, nil)
func (r *TriggerEventsRepository) CreateTriggerEvent(ctx context.Context, event *models.TriggerEvent, cooldown time.Duration) (bool, error) {
	if event == nil {
		return false, fmt.Errorf("event is required")
	}
	if event.EventID == "" {
		return false, fmt.Errorf("event_id is required")
	}
	if event.SubjectID == "" {
		return false, fmt.Errorf("subject_id is required")
	}

	cooldownCutoff := event.CreatedAt.Add(-cooldown)

	query := `
		INSERT INTO trigger_events (
			event_id,
			subject_id,
			trigger_type,
			risk_score,
			confidence,
			latitude,
			longitude,
			reason,
			status,
			requires_confirmation,
			created_at,
			updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE NOT EXISTS (
			SELECT 1 FROM trigger_events
			WHERE subject_id = $2
			  AND (
				status = 'pending'
				OR (status IN ('escalated', 'auto_escalated') AND escalated_at > $13)
			  )
		)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.SubjectID,
		event.TriggerType,
		event.RiskScore,
		event.Confidence,
		event.Latitude,
		event.Longitude,
		event.Reason,
		event.Status,
		event.RequiresConfirmation,
		event.CreatedAt,
		event.UpdatedAt,
		cooldownCutoff,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create trigger event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// GetTriggerEvent 根据 event_id 获取触发事件，不存在时返回 (nil, nil)
func (r *TriggerEventsRepository) GetTriggerEvent(ctx context.Context, eventID string) (*models.TriggerEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	query := `
		SELECT ` + triggerEventColumns + `
		FROM trigger_events
		WHERE event_id = $1
	`

	event, err := scanTriggerEvent(r.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trigger event: %w", err)
	}

	return event, nil
}

// TransitionStatus pending → 终态的受控迁移
// WHERE status = 'pending' 保证终态事件不被改写；已迁移时返回 (false, nil)
func (r *TriggerEventsRepository) TransitionStatus(ctx context.Context, eventID, newStatus string, respondedAt, escalatedAt *time.Time, emergencyID *string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("event_id is required")
	}
	if newStatus == models.TriggerStatusPending {
		return false, fmt.Errorf("cannot transition back to pending")
	}

	query := `
		UPDATE trigger_events
		SET status = $2,
		    responded_at = $3,
		    escalated_at = $4,
		    emergency_id = $5,
		    updated_at = CURRENT_TIMESTAMP
		WHERE event_id = $1
		  AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, eventID, newStatus, respondedAt, escalatedAt, emergencyID)
	if err != nil {
		return false, fmt.Errorf("failed to transition trigger event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListPendingOlderThan 确认窗口超时扫描用：创建时间早于 cutoff 的 pending 事件
func (r *TriggerEventsRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.TriggerEvent, error) {
	query := `
		SELECT ` + triggerEventColumns + `
		FROM trigger_events
		WHERE status = 'pending'
		  AND created_at < $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending trigger events: %w", err)
	}
	defer rows.Close()

	events := []*models.TriggerEvent{}
	for rows.Next() {
		event, err := scanTriggerEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger events: %w", err)
	}

	return events, nil
}

// LatestEscalation 对象最近一次升级事件（冷却判断用），无则 (nil, nil)
func (r *TriggerEventsRepository) LatestEscalation(ctx context.Context, subjectID string) (*models.TriggerEvent, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject_id is required")
	}

	query := `
		SELECT ` + triggerEventColumns + `
		FROM trigger_events
		WHERE subject_id = $1
		  AND status IN ('escalated', 'auto_escalated')
		  AND escalated_at IS NOT NULL
		ORDER BY escalated_at DESC
		LIMIT 1
	`

	event, err := scanTriggerEvent(r.db.QueryRowContext(ctx, query, subjectID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest escalation: %w", err)
	}

	return event, nil
}

// rowScanner QueryRow 与 Rows 共用的扫描接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTriggerEvent(row rowScanner) (*models.TriggerEvent, error) {
	var event models.TriggerEvent
	var respondedAt, escalatedAt sql.NullTime
	var emergencyID sql.NullString

	err := row.Scan(
		&event.EventID,
		&event.SubjectID,
		&event.TriggerType,
		&event.RiskScore,
		&event.Confidence,
		&event.Latitude,
		&event.Longitude,
		&event.Reason,
		&event.Status,
		&event.RequiresConfirmation,
		&event.CreatedAt,
		&respondedAt,
		&escalatedAt,
		&emergencyID,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 处理可空字段
	if respondedAt.Valid {
		event.RespondedAt = &respondedAt.Time
	}
	if escalatedAt.Valid {
		event.EscalatedAt = &escalatedAt.Time
	}
	if emergencyID.Valid {
		event.EmergencyID = &emergencyID.String
	}

	return &event, nil
}
