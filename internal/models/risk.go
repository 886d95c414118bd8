package models

import "time"

// 风险级别
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// 告警优先级
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// 环境因素类型
const (
	FactorCrimeArea     = "crime_area"
	FactorScamArea      = "scam_area"
	FactorExtremeHeat   = "extreme_heat"
	FactorExtremeCold   = "extreme_cold"
	FactorSevereWeather = "severe_weather"
	FactorInfrastructure = "infrastructure"
)

// EnvironmentalFactor 环境风险因素（每次评估临时生成）
type EnvironmentalFactor struct {
	Kind             string  `json:"kind"`
	Severity         string  `json:"severity"`
	RiskContribution float64 `json:"risk_contribution"`
	Description      string  `json:"description"`
}

// EnvironmentalBundle 环境分析结果
type EnvironmentalBundle struct {
	TimeRisk  float64 `json:"time_risk"`  // 时段风险 [0,1]
	CrowdRisk float64 `json:"crowd_risk"` // 人群密度风险 [0,1]
	EnvRisk   float64 `json:"env_risk"`   // 一般环境因素风险 [0,1]

	CrowdLevel       string                `json:"crowd_level"` // low, medium, high, very_high
	EstimatedDensity float64               `json:"estimated_density"`
	Factors          []EnvironmentalFactor `json:"factors"`
	Recommendations  []string              `json:"recommendations"`
	HourKnown        bool                  `json:"hour_known"`
}

// RiskBreakdown 加权分量明细
type RiskBreakdown struct {
	Movement      float64 `json:"movement"`
	Environmental float64 `json:"environmental"`
	Time          float64 `json:"time"`
	Crowd         float64 `json:"crowd"`
}

// RiskFactor 展平后的可解释风险因素
type RiskFactor struct {
	Source       string  `json:"source"` // movement 或 environmental
	Kind         string  `json:"kind"`
	Severity     string  `json:"severity"`
	Contribution float64 `json:"contribution"`
	Description  string  `json:"description"`
}

// RiskAssessment 综合风险评估结果（每次评估新建，持久化归调用方所有）
type RiskAssessment struct {
	RiskLevel       string        `json:"risk_level"` // low, medium, high
	RiskScore       float64       `json:"risk_score"` // [0,1]
	Confidence      float64       `json:"confidence"` // [0,1]
	Breakdown       RiskBreakdown `json:"breakdown"`
	Factors         []RiskFactor  `json:"factors"`
	Recommendations []string      `json:"recommendations"`
	AlertPriority   string        `json:"alert_priority"` // low, medium, high, critical
	Timestamp       time.Time     `json:"timestamp"`
}
