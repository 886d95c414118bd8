package models

// 移动检测结果类型
const (
	FindingSuddenStop      = "sudden_stop"
	FindingRapidMovement   = "rapid_movement"
	FindingCircular        = "circular_movement"
	FindingBacktracking    = "backtracking"
	FindingLongStationary  = "long_stationary_period"
	FindingErraticDirection = "erratic_direction_changes"
)

// 严重程度
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// MovementFinding 单个移动异常检测结果（每次评估临时生成，不落库）
// 证据字段按检测类型可选填充
type MovementFinding struct {
	Kind             string  `json:"kind"`
	Severity         string  `json:"severity"` // low, medium, high
	RiskContribution float64 `json:"risk_contribution"`
	Description      string  `json:"description"`

	// 证据字段（按检测类型填充）
	SpeedBefore     *float64 `json:"speed_before,omitempty"`      // 停止前速度（米/分钟）
	SpeedAfter      *float64 `json:"speed_after,omitempty"`       // 停止后速度（米/分钟）
	StopDurationMin *float64 `json:"stop_duration_min,omitempty"` // 停止持续时间（分钟）
	SpeedMPM        *float64 `json:"speed_mpm,omitempty"`         // 段速度（米/分钟）
	SegmentIndex    *int     `json:"segment_index,omitempty"`     // 段下标
	DurationMin     *float64 `json:"duration_min,omitempty"`      // 持续时间（分钟）
	Count           *int     `json:"count,omitempty"`             // 命中次数
	Ratio           *float64 `json:"ratio,omitempty"`             // 命中比例
}

// SpeedStats 段速度统计（米/分钟）
type SpeedStats struct {
	Mean     float64 `json:"mean"`
	Max      float64 `json:"max"`
	Variance float64 `json:"variance"`
}

// MovementBundle 移动分析结果（sudden stop / rapid movement / abnormal pattern 合并）
type MovementBundle struct {
	Score    float64           `json:"score"` // 综合移动风险 [0,1]
	Findings []MovementFinding `json:"findings"`

	SuddenStopScore float64 `json:"sudden_stop_score"`
	RapidScore      float64 `json:"rapid_score"`
	PatternScore    float64 `json:"pattern_score"`

	// 异常模式子检测置信度（样本不足时保持默认 0.5）
	PatternConfidence   float64 `json:"pattern_confidence"`
	AbnormalDetected    int     `json:"abnormal_detected"` // 命中的异常模式子检测数（0-4）
	SampleCount         int     `json:"sample_count"`
	SpeedStats          SpeedStats `json:"speed_stats"`
}

// HighSeverityCount 高严重度检测结果数量（触发规则4使用）
func (b *MovementBundle) HighSeverityCount() int {
	n := 0
	for _, f := range b.Findings {
		if f.Severity == SeverityHigh {
			n++
		}
	}
	return n
}
