package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// 触发相关错误
var (
	// ErrMissingSubject 缺失/非法对象ID，本次调用中止且不产生任何状态
	ErrMissingSubject = errors.New("subject_id is required")
	// ErrInvalidResponse 响应值不是 confirm/cancel
	ErrInvalidResponse = errors.New("invalid response, expected confirm or cancel")
	// ErrInvalidTransition 事件已处于终态，拒绝且不改变状态
	ErrInvalidTransition = errors.New("trigger event is not pending")
	// ErrEventNotFound 事件不存在
	ErrEventNotFound = errors.New("trigger event not found")
)

// 响应值
const (
	ResponseConfirm = "confirm"
	ResponseCancel  = "cancel"
)

// Config 触发决策配置（可覆盖）
type Config struct {
	CriticalRisk        float64       `yaml:"critical_risk"`
	HighRisk            float64       `yaml:"high_risk"`
	SustainedWindow     time.Duration `yaml:"sustained_window"`
	SustainedCount      int           `yaml:"sustained_count"`
	AnomalyThreshold    int           `yaml:"anomaly_threshold"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	Cooldown            time.Duration `yaml:"cooldown"`
	ConfirmTimeout      time.Duration `yaml:"confirm_timeout"`
}

// DefaultConfig 默认阈值
func DefaultConfig() Config {
	return Config{
		CriticalRisk:        0.85,
		HighRisk:            0.75,
		SustainedWindow:     300 * time.Second,
		SustainedCount:      3,
		AnomalyThreshold:    3,
		ConfidenceThreshold: 0.7,
		Cooldown:            1800 * time.Second,
		ConfirmTimeout:      60 * time.Second,
	}
}

// EventStore 触发事件存储（外部协作方）
// 引擎自身无对象级状态，冷却/挂起判断全部经由存储完成，
// 同一对象的并发评估由 CreateTriggerEvent 的原子条件插入串行化
type EventStore interface {
	// CreateTriggerEvent 原子创建：对象存在 pending 事件或冷却期内的升级事件时
	// 返回 (false, nil) 且不写入
	CreateTriggerEvent(ctx context.Context, event *models.TriggerEvent, cooldown time.Duration) (bool, error)
	GetTriggerEvent(ctx context.Context, eventID string) (*models.TriggerEvent, error)
	// TransitionStatus pending → 终态的受控迁移；事件已非 pending 时返回 (false, nil)
	TransitionStatus(ctx context.Context, eventID, newStatus string, respondedAt, escalatedAt *time.Time, emergencyID *string) (bool, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.TriggerEvent, error)
	// LatestEscalation 对象最近一次 escalated/auto_escalated 事件，无则 (nil, nil)
	LatestEscalation(ctx context.Context, subjectID string) (*models.TriggerEvent, error)
}

// AssessmentStore 评估历史存储
type AssessmentStore interface {
	// SaveAssessment 观测性写入，失败可被调用方吞掉
	SaveAssessment(ctx context.Context, subjectID string, assessment *models.RiskAssessment) error
	// CountRecentHighRisk 持续风险判定的权威输入，失败必须向上传播
	CountRecentHighRisk(ctx context.Context, subjectID string, since time.Time, minScore float64) (int, error)
}

// EmergencyCreator 应急记录创建（外部协作方）
type EmergencyCreator interface {
	CreateEmergency(ctx context.Context, emergency *models.Emergency) (string, error)
}

// Notifier 触发事件变更通知（尽力而为，失败不影响主流程）
type Notifier interface {
	PublishTriggerEvent(event *models.TriggerEvent, transition string)
}

// SubjectContext 触发评估的对象上下文
type SubjectContext struct {
	SubjectID string
	Latitude  float64
	Longitude float64
	Movement  *models.MovementBundle // 移动分析结果（规则4使用），可为 nil
}

// Engine 触发决策引擎（进程内无状态，可多实例并发运行）
type Engine struct {
	cfg         Config
	events      EventStore
	assessments AssessmentStore
	emergencies EmergencyCreator
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

// NewEngine 创建触发决策引擎。notifier 可为 nil
func NewEngine(
	cfg Config,
	events EventStore,
	assessments AssessmentStore,
	emergencies EmergencyCreator,
	notifier Notifier,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:         cfg,
		events:      events,
		assessments: assessments,
		emergencies: emergencies,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// EvaluateAutoTrigger 按规则顺序评估是否自动触发升级事件
// 规则顺序：冷却 → 危急风险 → 持续高风险 → 移动异常 → 环境紧急；
// 首个命中规则决定 trigger_type，后续命中只追加 reason
func (e *Engine) EvaluateAutoTrigger(ctx context.Context, sctx SubjectContext, assessment *models.RiskAssessment) (*models.TriggerDecision, error) {
	if sctx.SubjectID == "" {
		return nil, ErrMissingSubject
	}
	if assessment == nil {
		return nil, fmt.Errorf("assessment is required")
	}

	now := e.now()

	// 观测性历史写入：失败记录但不中断
	if err := e.assessments.SaveAssessment(ctx, sctx.SubjectID, assessment); err != nil {
		e.logger.Warn("Failed to save assessment history",
			zap.String("subject_id", sctx.SubjectID),
			zap.Error(err),
		)
	}

	// 规则1：冷却期内不再触发
	latest, err := e.events.LatestEscalation(ctx, sctx.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to check cooldown: %w", err)
	}
	if latest != nil && latest.EscalatedAt != nil {
		elapsed := now.Sub(*latest.EscalatedAt)
		if elapsed < e.cfg.Cooldown {
			remaining := (e.cfg.Cooldown - elapsed).Seconds()
			return &models.TriggerDecision{
				Triggered:            false,
				Reason:               "cooldown active after recent escalation",
				CooldownRemainingSec: &remaining,
			}, nil
		}
	}

	triggerType, reasons, err := e.evaluateRules(ctx, sctx, assessment, now)
	if err != nil {
		return nil, err
	}
	if triggerType == "" {
		return &models.TriggerDecision{
			Triggered: false,
			Reason:    "thresholds not met",
		}, nil
	}

	// 危急风险无需人工确认，其余触发进入确认窗口
	requiresConfirmation := triggerType != models.TriggerCriticalRisk

	event := &models.TriggerEvent{
		EventID:              uuid.New().String(),
		SubjectID:            sctx.SubjectID,
		TriggerType:          triggerType,
		RiskScore:            assessment.RiskScore,
		Confidence:           assessment.Confidence,
		Latitude:             sctx.Latitude,
		Longitude:            sctx.Longitude,
		Reason:               strings.Join(reasons, "; "),
		Status:               models.TriggerStatusPending,
		RequiresConfirmation: requiresConfirmation,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	created, err := e.events.CreateTriggerEvent(ctx, event, e.cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("failed to create trigger event: %w", err)
	}
	if !created {
		// 并发评估或竞态冷却：存储层拒绝，不视为错误
		return &models.TriggerDecision{
			Triggered: false,
			Reason:    "pending event or cooldown already exists",
		}, nil
	}

	e.logger.Info("Trigger event created",
		zap.String("event_id", event.EventID),
		zap.String("subject_id", sctx.SubjectID),
		zap.String("trigger_type", triggerType),
		zap.Float64("risk_score", assessment.RiskScore),
		zap.Bool("requires_confirmation", requiresConfirmation),
	)
	e.publish(event, "created")

	return &models.TriggerDecision{
		Triggered:            true,
		TriggerType:          triggerType,
		Reason:               event.Reason,
		RequiresConfirmation: requiresConfirmation,
		Event:                event,
	}, nil
}

// evaluateRules 规则2-5，返回首个命中的触发类型与全部命中原因
func (e *Engine) evaluateRules(ctx context.Context, sctx SubjectContext, assessment *models.RiskAssessment, now time.Time) (string, []string, error) {
	triggerType := ""
	var reasons []string
	hit := func(t, reason string) {
		if triggerType == "" {
			triggerType = t
		}
		reasons = append(reasons, reason)
	}

	confident := assessment.Confidence >= e.cfg.ConfidenceThreshold

	// 规则2：危急风险
	if assessment.RiskScore >= e.cfg.CriticalRisk && confident {
		hit(models.TriggerCriticalRisk,
			fmt.Sprintf("risk score %.2f exceeds critical threshold %.2f", assessment.RiskScore, e.cfg.CriticalRisk))
	}

	// 规则3：持续高风险（滚动窗口内 ≥N 次高风险评估）
	if assessment.RiskScore >= e.cfg.HighRisk && confident {
		since := now.Add(-e.cfg.SustainedWindow)
		count, err := e.assessments.CountRecentHighRisk(ctx, sctx.SubjectID, since, e.cfg.HighRisk)
		if err != nil {
			// 统计失败不可静默当作"无持续风险"
			return "", nil, fmt.Errorf("failed to count recent high-risk assessments: %w", err)
		}
		if count >= e.cfg.SustainedCount {
			hit(models.TriggerSustainedHighRisk,
				fmt.Sprintf("%d high-risk assessments within %s", count, e.cfg.SustainedWindow))
		}
	}

	// 规则4：移动异常聚集
	if sctx.Movement != nil {
		anomalies := sctx.Movement.HighSeverityCount()
		if sctx.Movement.PatternConfidence > 0.8 {
			anomalies += sctx.Movement.AbnormalDetected
		}
		if anomalies >= e.cfg.AnomalyThreshold {
			hit(models.TriggerMovementAnomalies,
				fmt.Sprintf("%d movement anomalies detected", anomalies))
		}
	}

	// 规则5：环境紧急
	if reason, ok := environmentalEmergency(assessment); ok {
		hit(models.TriggerEnvironmentalEmergency, reason)
	}

	return triggerType, reasons, nil
}

// environmentalEmergency 高严重度的致灾环境因素，或环境总分超 0.8
func environmentalEmergency(assessment *models.RiskAssessment) (string, bool) {
	for _, f := range assessment.Factors {
		if f.Source != "environmental" || f.Severity != models.SeverityHigh {
			continue
		}
		switch f.Kind {
		case models.FactorExtremeHeat, models.FactorSevereWeather, models.FactorInfrastructure:
			return "high-severity environmental factor: " + f.Kind, true
		}
	}
	if assessment.Breakdown.Environmental > 0.8 {
		return fmt.Sprintf("environmental risk %.2f exceeds 0.80", assessment.Breakdown.Environmental), true
	}
	return "", false
}

// RespondToTrigger 对 pending 事件的人工响应
// confirm → 创建应急记录并升级；cancel → 取消；其余拒绝且不改变状态
func (e *Engine) RespondToTrigger(ctx context.Context, eventID, response string) (*models.TriggerEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}
	if response != ResponseConfirm && response != ResponseCancel {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResponse, response)
	}

	event, err := e.events.GetTriggerEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trigger event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if event.Terminal() {
		return nil, fmt.Errorf("%w: event %s is %s", ErrInvalidTransition, eventID, event.Status)
	}

	now := e.now()

	if response == ResponseCancel {
		ok, err := e.events.TransitionStatus(ctx, eventID, models.TriggerStatusCancelled, &now, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to cancel trigger event: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: event %s", ErrInvalidTransition, eventID)
		}
		event.Status = models.TriggerStatusCancelled
		event.RespondedAt = &now

		e.logger.Info("Trigger event cancelled",
			zap.String("event_id", eventID),
			zap.String("subject_id", event.SubjectID),
		)
		e.publish(event, "cancelled")
		return event, nil
	}

	// confirm：先建应急记录，再做状态迁移
	emergencyID, err := e.emergencies.CreateEmergency(ctx, &models.Emergency{
		EmergencyID:    uuid.New().String(),
		SubjectID:      event.SubjectID,
		TriggerEventID: event.EventID,
		Source:         "confirmed",
		RiskScore:      event.RiskScore,
		Latitude:       event.Latitude,
		Longitude:      event.Longitude,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create emergency record: %w", err)
	}

	ok, err := e.events.TransitionStatus(ctx, eventID, models.TriggerStatusEscalated, &now, &now, &emergencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to escalate trigger event: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrInvalidTransition, eventID)
	}

	event.Status = models.TriggerStatusEscalated
	event.RespondedAt = &now
	event.EscalatedAt = &now
	event.EmergencyID = &emergencyID

	e.logger.Info("Trigger event escalated by confirmation",
		zap.String("event_id", eventID),
		zap.String("subject_id", event.SubjectID),
		zap.String("emergency_id", emergencyID),
	)
	e.publish(event, "escalated")
	return event, nil
}

func (e *Engine) publish(event *models.TriggerEvent, transition string) {
	if e.notifier == nil {
		return
	}
	e.notifier.PublishTriggerEvent(event, transition)
}
