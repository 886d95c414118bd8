package evaluator

import (
	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// 加权系数
const (
	weightMovement      = 0.4
	weightEnvironmental = 0.3
	weightTime          = 0.2
	weightCrowd         = 0.1
)

// ClassifyRisk 合并移动与环境分析结果，产出加权风险评估
// 纯计算，调用方拥有返回值的持久化责任
func (e *Engine) ClassifyRisk(movement models.MovementBundle, env models.EnvironmentalBundle) *models.RiskAssessment {
	score := clamp01(movement.Score*weightMovement +
		env.EnvRisk*weightEnvironmental +
		env.TimeRisk*weightTime +
		env.CrowdRisk*weightCrowd)

	level := levelForScore(score)
	priority := priorityFor(level, score)
	confidence := e.classificationConfidence(movement, env)

	assessment := &models.RiskAssessment{
		RiskLevel:  level,
		RiskScore:  score,
		Confidence: confidence,
		Breakdown: models.RiskBreakdown{
			Movement:      movement.Score,
			Environmental: env.EnvRisk,
			Time:          env.TimeRisk,
			Crowd:         env.CrowdRisk,
		},
		Factors:         flattenFactors(movement, env),
		Recommendations: buildRecommendations(priority, movement, env),
		AlertPriority:   priority,
		Timestamp:       e.now(),
	}

	e.logger.Debug("Risk classified",
		zap.String("level", level),
		zap.Float64("score", score),
		zap.Float64("confidence", confidence),
		zap.String("priority", priority),
	)

	return assessment
}

// levelForScore 风险分级，边界值归入较低档
func levelForScore(score float64) string {
	switch {
	case score <= 0.3:
		return models.RiskLow
	case score <= 0.6:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

// priorityFor 告警优先级
func priorityFor(level string, score float64) string {
	switch {
	case level == models.RiskHigh && score > 0.8:
		return models.PriorityCritical
	case level == models.RiskHigh:
		return models.PriorityHigh
	case level == models.RiskMedium && score > 0.5:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// classificationConfidence 置信度 = mean(移动模式置信度, 数据可得性启发值)
// 可得性从 0.8 起步：有环境因素列表 +0.1，时刻已知 +0.1，封顶 1.0
func (e *Engine) classificationConfidence(movement models.MovementBundle, env models.EnvironmentalBundle) float64 {
	availability := 0.8
	if len(env.Factors) > 0 {
		availability += 0.1
	}
	if env.HourKnown {
		availability += 0.1
	}
	availability = clamp01(availability)

	return clamp01((movement.PatternConfidence + availability) / 2)
}

// flattenFactors 把两侧检测结果展平成统一的可解释因素列表
func flattenFactors(movement models.MovementBundle, env models.EnvironmentalBundle) []models.RiskFactor {
	factors := make([]models.RiskFactor, 0, len(movement.Findings)+len(env.Factors))
	for _, f := range movement.Findings {
		factors = append(factors, models.RiskFactor{
			Source:       "movement",
			Kind:         f.Kind,
			Severity:     f.Severity,
			Contribution: f.RiskContribution,
			Description:  f.Description,
		})
	}
	for _, f := range env.Factors {
		factors = append(factors, models.RiskFactor{
			Source:       "environmental",
			Kind:         f.Kind,
			Severity:     f.Severity,
			Contribution: f.RiskContribution,
			Description:  f.Description,
		})
	}
	return factors
}

// buildRecommendations 合并优先级建议、因素建议与环境建议并去重
func buildRecommendations(priority string, movement models.MovementBundle, env models.EnvironmentalBundle) []string {
	var recs []string

	switch priority {
	case models.PriorityCritical:
		recs = append(recs, "Immediate check-in recommended; notify emergency contacts")
	case models.PriorityHigh:
		recs = append(recs, "Contact the subject and verify their situation")
	case models.PriorityMedium:
		recs = append(recs, "Monitor the subject closely for further anomalies")
	}

	for _, f := range movement.Findings {
		switch f.Kind {
		case models.FindingSuddenStop:
			recs = append(recs, "Verify why the subject stopped unexpectedly")
		case models.FindingRapidMovement:
			recs = append(recs, "Confirm the subject's mode of transport")
		case models.FindingLongStationary:
			recs = append(recs, "Check on the subject after the prolonged stationary period")
		}
	}

	recs = append(recs, env.Recommendations...)
	return dedupStrings(recs)
}
