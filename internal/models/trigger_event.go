package models

import "time"

// 触发事件状态（pending 为唯一非终态，状态迁移单向）
const (
	TriggerStatusPending       = "pending"
	TriggerStatusEscalated     = "escalated"
	TriggerStatusAutoEscalated = "auto_escalated"
	TriggerStatusCancelled     = "cancelled"
)

// 触发类型
const (
	TriggerCriticalRisk         = "critical_risk"
	TriggerSustainedHighRisk    = "sustained_high_risk"
	TriggerMovementAnomalies    = "movement_anomalies"
	TriggerEnvironmentalEmergency = "environmental_emergency"
)

// TriggerEvent 自动触发事件（对应 trigger_events 表）
// 仅由触发决策引擎创建，终态后不可再变更
type TriggerEvent struct {
	EventID              string     `json:"event_id" db:"event_id"`
	SubjectID            string     `json:"subject_id" db:"subject_id"`
	TriggerType          string     `json:"trigger_type" db:"trigger_type"`
	RiskScore            float64    `json:"risk_score" db:"risk_score"`
	Confidence           float64    `json:"confidence" db:"confidence"`
	Latitude             float64    `json:"latitude" db:"latitude"`
	Longitude            float64    `json:"longitude" db:"longitude"`
	Reason               string     `json:"reason" db:"reason"`
	Status               string     `json:"status" db:"status"`
	RequiresConfirmation bool       `json:"requires_confirmation" db:"requires_confirmation"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	RespondedAt          *time.Time `json:"responded_at,omitempty" db:"responded_at"`
	EscalatedAt          *time.Time `json:"escalated_at,omitempty" db:"escalated_at"`
	EmergencyID          *string    `json:"emergency_id,omitempty" db:"emergency_id"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// Terminal 是否已进入终态
func (e *TriggerEvent) Terminal() bool {
	return e.Status != TriggerStatusPending
}

// Emergency 升级产生的应急记录（对应 emergencies 表）
type Emergency struct {
	EmergencyID    string    `json:"emergency_id" db:"emergency_id"`
	SubjectID      string    `json:"subject_id" db:"subject_id"`
	TriggerEventID string    `json:"trigger_event_id" db:"trigger_event_id"`
	Source         string    `json:"source" db:"source"` // confirmed 或 auto_escalated
	RiskScore      float64   `json:"risk_score" db:"risk_score"`
	Latitude       float64   `json:"latitude" db:"latitude"`
	Longitude      float64   `json:"longitude" db:"longitude"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TriggerDecision 触发评估结果
type TriggerDecision struct {
	Triggered            bool          `json:"triggered"`
	TriggerType          string        `json:"trigger_type,omitempty"`
	Reason               string        `json:"reason"`
	RequiresConfirmation bool          `json:"requires_confirmation"`
	CooldownRemainingSec *float64      `json:"cooldown_remaining_sec,omitempty"`
	Event                *TriggerEvent `json:"event,omitempty"`
}
