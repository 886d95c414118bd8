package evaluator

import (
	"go.uber.org/zap"

	"wisefido-guardian/internal/geo"
	"wisefido-guardian/internal/models"
)

// AnalyzeMovement 分析位置轨迹，返回综合移动风险
// 输入要求按时间升序；样本不足时各子检测降级为零结果而不是报错
// （稀疏/脏数据是实时轨迹的常态）
func (e *Engine) AnalyzeMovement(samples []models.LocationSample) models.MovementBundle {
	stopScore, stopFindings := detectSuddenStops(samples)
	rapidScore, rapidFindings, stats := detectRapidMovement(samples)
	pattern := detectAbnormalPatterns(samples)

	findings := make([]models.MovementFinding, 0, len(stopFindings)+len(rapidFindings)+len(pattern.findings))
	findings = append(findings, stopFindings...)
	findings = append(findings, rapidFindings...)
	findings = append(findings, pattern.findings...)

	// 综合分数取 max 偏置：单个严重异常主导，同时共现异常仍抬高分数
	maxScore := stopScore
	if rapidScore > maxScore {
		maxScore = rapidScore
	}
	if pattern.score > maxScore {
		maxScore = pattern.score
	}
	meanScore := (stopScore + rapidScore + pattern.score) / 3
	combined := clamp01(maxScore*0.7 + meanScore*0.3)

	bundle := models.MovementBundle{
		Score:             combined,
		Findings:          findings,
		SuddenStopScore:   stopScore,
		RapidScore:        rapidScore,
		PatternScore:      pattern.score,
		PatternConfidence: pattern.confidence,
		AbnormalDetected:  pattern.detected,
		SampleCount:       len(samples),
		SpeedStats:        stats,
	}

	e.logger.Debug("Movement analysis completed",
		zap.Int("sample_count", len(samples)),
		zap.Int("finding_count", len(findings)),
		zap.Float64("score", combined),
	)

	return bundle
}

func distanceBetweenSamples(a, b models.LocationSample) float64 {
	return geo.DistanceMeters(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

func minutesBetweenSamples(a, b models.LocationSample) float64 {
	return geo.MinutesBetween(a.Timestamp, b.Timestamp)
}

// segmentSpeed 段速度（米/分钟）；时间差为 0 或不可解析时返回 0
func segmentSpeed(a, b models.LocationSample) float64 {
	minutes := minutesBetweenSamples(a, b)
	if minutes <= 0 {
		return 0
	}
	return distanceBetweenSamples(a, b) / minutes
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
