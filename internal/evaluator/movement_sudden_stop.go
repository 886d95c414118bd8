package evaluator

import (
	"fmt"

	"wisefido-guardian/internal/models"
)

// 突然停止检测阈值（米/分钟）
const (
	stopSpeedBeforeMin = 30.0 // 停止前速度下限
	stopSpeedAfterMax  = 5.0  // 停止后速度上限
)

// detectSuddenStops 突然停止检测（需要 ≥3 个点）
// 对每个内部三元组计算前后段速度，前快后停即命中；
// 每次命中累加 min(0.3, 停止分钟/60×0.1)，总分封顶 1.0
func detectSuddenStops(samples []models.LocationSample) (float64, []models.MovementFinding) {
	if len(samples) < 3 {
		return 0, nil
	}

	score := 0.0
	var findings []models.MovementFinding

	for i := 1; i < len(samples)-1; i++ {
		speedBefore := segmentSpeed(samples[i-1], samples[i])
		speedAfter := segmentSpeed(samples[i], samples[i+1])

		if speedBefore <= stopSpeedBeforeMin || speedAfter >= stopSpeedAfterMax {
			continue
		}

		stopDuration := minutesBetweenSamples(samples[i], samples[i+1])

		severity := models.SeverityLow
		if speedBefore > 60 && stopDuration > 30 {
			severity = models.SeverityHigh
		} else if speedBefore > 40 && stopDuration > 15 {
			severity = models.SeverityMedium
		}

		contribution := stopDuration / 60 * 0.1
		if contribution > 0.3 {
			contribution = 0.3
		}
		score += contribution

		findings = append(findings, models.MovementFinding{
			Kind:             models.FindingSuddenStop,
			Severity:         severity,
			RiskContribution: contribution,
			Description: fmt.Sprintf("speed dropped from %.1f to %.1f m/min, stopped for %.1f min",
				speedBefore, speedAfter, stopDuration),
			SpeedBefore:     floatPtr(speedBefore),
			SpeedAfter:      floatPtr(speedAfter),
			StopDurationMin: floatPtr(stopDuration),
			SegmentIndex:    intPtr(i),
		})
	}

	return clamp01(score), findings
}
