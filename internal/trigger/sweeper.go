package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// Sweeper 升级扫描器：周期性地把确认窗口超时的 pending 事件自动升级
// 只选取 pending 行本身就是并发防护——已迁移的行不会再被选中，
// 多实例并发扫描由存储层 pending → auto_escalated 的原子迁移保证不重复升级
type Sweeper struct {
	cfg         Config
	events      EventStore
	emergencies EmergencyCreator
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

// NewSweeper 创建扫描器。notifier 可为 nil
func NewSweeper(
	cfg Config,
	events EventStore,
	emergencies EmergencyCreator,
	notifier Notifier,
	logger *zap.Logger,
) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		cfg:         cfg,
		events:      events,
		emergencies: emergencies,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// SweepExpiredPending 扫描一轮，返回本轮完成升级的事件
func (s *Sweeper) SweepExpiredPending(ctx context.Context) ([]*models.TriggerEvent, error) {
	now := s.now()
	cutoff := now.Add(-s.cfg.ConfirmTimeout)

	pending, err := s.events.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending events: %w", err)
	}

	var escalated []*models.TriggerEvent
	for _, event := range pending {
		emergencyID, err := s.emergencies.CreateEmergency(ctx, &models.Emergency{
			EmergencyID:    uuid.New().String(),
			SubjectID:      event.SubjectID,
			TriggerEventID: event.EventID,
			Source:         "auto_escalated",
			RiskScore:      event.RiskScore,
			Latitude:       event.Latitude,
			Longitude:      event.Longitude,
			CreatedAt:      now,
		})
		if err != nil {
			s.logger.Error("Failed to create emergency record during sweep",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			// 继续处理其他事件，不中断
			continue
		}

		ok, err := s.events.TransitionStatus(ctx, event.EventID, models.TriggerStatusAutoEscalated, nil, &now, &emergencyID)
		if err != nil {
			s.logger.Error("Failed to auto-escalate trigger event",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			// 并发扫描或同时到达的人工响应已完成迁移
			s.logger.Debug("Trigger event already transitioned, skipping",
				zap.String("event_id", event.EventID),
			)
			continue
		}

		event.Status = models.TriggerStatusAutoEscalated
		event.EscalatedAt = &now
		event.EmergencyID = &emergencyID
		escalated = append(escalated, event)

		s.logger.Info("Trigger event auto-escalated",
			zap.String("event_id", event.EventID),
			zap.String("subject_id", event.SubjectID),
			zap.String("emergency_id", emergencyID),
		)
		if s.notifier != nil {
			s.notifier.PublishTriggerEvent(event, "auto_escalated")
		}
	}

	return escalated, nil
}

// Run 按固定间隔循环扫描，直到上下文取消
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	s.logger.Info("Escalation sweeper started",
		zap.Duration("interval", interval),
		zap.Duration("confirm_timeout", s.cfg.ConfirmTimeout),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Escalation sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepExpiredPending(ctx); err != nil {
				s.logger.Error("Sweep failed",
					zap.Error(err),
				)
				// 继续下一轮，不中断
			}
		}
	}
}
