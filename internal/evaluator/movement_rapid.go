package evaluator

import (
	"fmt"

	"wisefido-guardian/internal/models"
)

// 快速移动检测阈值
// 注意：severity 分档（120/80）与实际计算的米/分钟速度量纲不一致，
// 疑似来源数据的单位问题，在产品方确认前保持字面值不变
const (
	rapidSpeedFlagMin     = 50.0  // 命中阈值（米/分钟）
	rapidSeverityHighMin  = 120.0 // severity 分档，量纲存疑，保持字面值
	rapidSeverityMedMin   = 80.0
	rapidContribHighSpeed = 100.0 // 贡献分档
	rapidContribMedSpeed  = 75.0
)

// detectRapidMovement 快速移动检测（需要 ≥2 个点）
// 逐段计算速度并统计 mean/max/variance
func detectRapidMovement(samples []models.LocationSample) (float64, []models.MovementFinding, models.SpeedStats) {
	if len(samples) < 2 {
		return 0, nil, models.SpeedStats{}
	}

	score := 0.0
	var findings []models.MovementFinding
	speeds := make([]float64, 0, len(samples)-1)

	for i := 1; i < len(samples); i++ {
		speed := segmentSpeed(samples[i-1], samples[i])
		speeds = append(speeds, speed)

		if speed <= rapidSpeedFlagMin {
			continue
		}

		severity := models.SeverityLow
		if speed > rapidSeverityHighMin {
			severity = models.SeverityHigh
		} else if speed > rapidSeverityMedMin {
			severity = models.SeverityMedium
		}

		var contribution float64
		switch {
		case speed > rapidContribHighSpeed:
			contribution = 0.4
		case speed > rapidContribMedSpeed:
			contribution = 0.2
		default:
			contribution = 0.1
		}
		score += contribution

		findings = append(findings, models.MovementFinding{
			Kind:             models.FindingRapidMovement,
			Severity:         severity,
			RiskContribution: contribution,
			Description:      fmt.Sprintf("segment speed %.1f m/min exceeds %.0f m/min", speed, rapidSpeedFlagMin),
			SpeedMPM:         floatPtr(speed),
			SegmentIndex:     intPtr(i - 1),
		})
	}

	return clamp01(score), findings, speedStats(speeds)
}

func speedStats(speeds []float64) models.SpeedStats {
	if len(speeds) == 0 {
		return models.SpeedStats{}
	}

	sum := 0.0
	max := speeds[0]
	for _, s := range speeds {
		sum += s
		if s > max {
			max = s
		}
	}
	mean := sum / float64(len(speeds))

	variance := 0.0
	for _, s := range speeds {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(speeds))

	return models.SpeedStats{Mean: mean, Max: max, Variance: variance}
}
