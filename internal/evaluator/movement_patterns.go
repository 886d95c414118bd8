package evaluator

import (
	"fmt"

	"wisefido-guardian/internal/geo"
	"wisefido-guardian/internal/models"
)

// 异常模式检测阈值
const (
	patternMinSamples       = 5
	clusterRadiusM          = 50.0 // 环绕移动聚类半径
	clusterRevisitMin       = 3    // 同一聚类命中次数阈值
	backtrackDistanceMaxM   = 30.0
	backtrackRatioMin       = 0.3
	stationarySegmentMaxM   = 20.0
	stationaryPeriodMinMin  = 60.0 // 静止区间时长阈值（分钟）
	sharpTurnDegrees        = 90.0
	sharpTurnRatioMin       = 0.4
)

type patternResult struct {
	score      float64
	findings   []models.MovementFinding
	detected   int
	confidence float64
}

// detectAbnormalPatterns 异常移动模式检测（需要 ≥5 个点）
// 四个独立子检测，只累加命中项的贡献，总分封顶 1.0；
// 样本不足时置信度保持默认 0.5
func detectAbnormalPatterns(samples []models.LocationSample) patternResult {
	result := patternResult{confidence: 0.5}
	if len(samples) < patternMinSamples {
		return result
	}

	if f, ok := detectCircularMovement(samples); ok {
		result.findings = append(result.findings, f)
		result.score += f.RiskContribution
		result.detected++
	}
	if f, ok := detectBacktracking(samples); ok {
		result.findings = append(result.findings, f)
		result.score += f.RiskContribution
		result.detected++
	}
	if f, ok := detectLongStationaryPeriods(samples); ok {
		result.findings = append(result.findings, f)
		result.score += f.RiskContribution
		result.detected++
	}
	if f, ok := detectErraticDirectionChanges(samples); ok {
		result.findings = append(result.findings, f)
		result.score += f.RiskContribution
		result.detected++
	}

	riskSum := result.score
	result.score = clamp01(result.score)

	// 置信度 = (命中比例, 风险和/0.5) 各自截断到 [0,1] 后取均值
	detectedFraction := clamp01(float64(result.detected) / 4)
	normalizedRisk := clamp01(riskSum / 0.5)
	result.confidence = clamp01((detectedFraction + normalizedRisk) / 2)

	return result
}

// detectCircularMovement 环绕移动：把 50 米内的点贪心归入已有聚类，
// 任一聚类命中 ≥3 次即判定
// 聚类中心固定为首个加入的点，不重算质心（缓慢漂移的环绕可能漏判，
// 与来源行为保持一致）
func detectCircularMovement(samples []models.LocationSample) (models.MovementFinding, bool) {
	type cluster struct {
		centerLat, centerLon float64
		count                int
	}

	var clusters []*cluster
	for _, s := range samples {
		matched := false
		for _, c := range clusters {
			if geo.DistanceMeters(s.Latitude, s.Longitude, c.centerLat, c.centerLon) <= clusterRadiusM {
				c.count++
				matched = true
				break
			}
		}
		if !matched {
			clusters = append(clusters, &cluster{centerLat: s.Latitude, centerLon: s.Longitude, count: 1})
		}
	}

	maxVisits := 0
	for _, c := range clusters {
		if c.count > maxVisits {
			maxVisits = c.count
		}
	}
	if maxVisits < clusterRevisitMin {
		return models.MovementFinding{}, false
	}

	return models.MovementFinding{
		Kind:             models.FindingCircular,
		Severity:         models.SeverityMedium,
		RiskContribution: 0.2,
		Description:      fmt.Sprintf("location cluster revisited %d times within %.0f m", maxVisits, clusterRadiusM),
		Count:            intPtr(maxVisits),
	}, true
}

// detectBacktracking 折返：三元组 (i-2,i-1,i) 中
// dist(i,i-2) < dist(i,i-1) 且 dist(i,i-2) < 30 米记一次命中，
// 命中数/总段数 > 0.3 即判定，贡献 min(0.3, ratio)
func detectBacktracking(samples []models.LocationSample) (models.MovementFinding, bool) {
	flags := 0
	for i := 2; i < len(samples); i++ {
		dBack := distanceBetweenSamples(samples[i], samples[i-2])
		dPrev := distanceBetweenSamples(samples[i], samples[i-1])
		if dBack < dPrev && dBack < backtrackDistanceMaxM {
			flags++
		}
	}

	totalSegments := len(samples) - 1
	ratio := float64(flags) / float64(totalSegments)
	if ratio <= backtrackRatioMin {
		return models.MovementFinding{}, false
	}

	contribution := ratio
	if contribution > 0.3 {
		contribution = 0.3
	}

	return models.MovementFinding{
		Kind:             models.FindingBacktracking,
		Severity:         models.SeverityMedium,
		RiskContribution: contribution,
		Description:      fmt.Sprintf("%d of %d segments doubled back within %.0f m", flags, totalSegments, backtrackDistanceMaxM),
		Count:            intPtr(flags),
		Ratio:            floatPtr(ratio),
	}, true
}

// detectLongStationaryPeriods 长时间静止：连续段位移均 <20 米构成静止区间，
// 区间时长 >60 分钟记录一次，贡献 min(0.2, 次数×0.1)
func detectLongStationaryPeriods(samples []models.LocationSample) (models.MovementFinding, bool) {
	periods := 0
	var longest float64

	runStart := -1
	for i := 1; i < len(samples); i++ {
		if distanceBetweenSamples(samples[i-1], samples[i]) < stationarySegmentMaxM {
			if runStart < 0 {
				runStart = i - 1
			}
			continue
		}
		if runStart >= 0 {
			duration := minutesBetweenSamples(samples[runStart], samples[i-1])
			if duration > stationaryPeriodMinMin {
				periods++
				if duration > longest {
					longest = duration
				}
			}
			runStart = -1
		}
	}
	if runStart >= 0 {
		duration := minutesBetweenSamples(samples[runStart], samples[len(samples)-1])
		if duration > stationaryPeriodMinMin {
			periods++
			if duration > longest {
				longest = duration
			}
		}
	}

	if periods == 0 {
		return models.MovementFinding{}, false
	}

	contribution := float64(periods) * 0.1
	if contribution > 0.2 {
		contribution = 0.2
	}

	return models.MovementFinding{
		Kind:             models.FindingLongStationary,
		Severity:         models.SeverityMedium,
		RiskContribution: contribution,
		Description:      fmt.Sprintf("%d stationary period(s), longest %.0f min", periods, longest),
		Count:            intPtr(periods),
		DurationMin:      floatPtr(longest),
	}, true
}

// detectErraticDirectionChanges 急转向：相邻段方位角差归一化到 ≤180°，
// >90° 计一次急转，急转数超过样本数 40% 即判定，贡献 min(0.25, 次数/样本数)
func detectErraticDirectionChanges(samples []models.LocationSample) (models.MovementFinding, bool) {
	sharpTurns := 0
	var prevBearing float64
	hasPrev := false

	for i := 1; i < len(samples); i++ {
		bearing := geo.BearingDegrees(
			samples[i-1].Latitude, samples[i-1].Longitude,
			samples[i].Latitude, samples[i].Longitude,
		)
		if hasPrev {
			delta := bearing - prevBearing
			if delta < 0 {
				delta = -delta
			}
			if delta > 180 {
				delta = 360 - delta
			}
			if delta > sharpTurnDegrees {
				sharpTurns++
			}
		}
		prevBearing = bearing
		hasPrev = true
	}

	n := len(samples)
	if float64(sharpTurns) <= sharpTurnRatioMin*float64(n) {
		return models.MovementFinding{}, false
	}

	contribution := float64(sharpTurns) / float64(n)
	if contribution > 0.25 {
		contribution = 0.25
	}

	return models.MovementFinding{
		Kind:             models.FindingErraticDirection,
		Severity:         models.SeverityMedium,
		RiskContribution: contribution,
		Description:      fmt.Sprintf("%d sharp turns over %d samples", sharpTurns, n),
		Count:            intPtr(sharpTurns),
	}, true
}
