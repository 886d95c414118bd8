package evaluator

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// 人群密度分级阈值（取满足的最高档）
const (
	crowdVeryHighMin = 100.0
	crowdHighMin     = 50.0
	crowdMediumMin   = 25.0
	crowdLowMin      = 10.0
)

// 固定假日表（月/日）
var fixedHolidays = map[[2]int]bool{
	{1, 1}:   true, // 元旦
	{1, 26}:  true, // Republic Day
	{8, 15}:  true, // Independence Day
	{10, 2}:  true, // Gandhi Jayanti
	{12, 25}: true, // Christmas
	{12, 31}: true, // New Year's Eve
}

// AnalyzeEnvironment 环境风险分析：时段风险 + 人群密度风险 + 一般环境因素
// weather 可为 nil（调用方未提供天气快照）
func (e *Engine) AnalyzeEnvironment(t time.Time, lat, lon float64, weather *models.WeatherSnapshot, nearbyCount int) models.EnvironmentalBundle {
	bundle := models.EnvironmentalBundle{
		HourKnown: !t.IsZero(),
	}

	e.analyzeTimeRisk(t, &bundle)
	e.analyzeCrowdDensity(lat, lon, nearbyCount, &bundle)
	e.analyzeEnvironmentalFactors(lat, lon, weather, &bundle)

	bundle.Recommendations = dedupStrings(bundle.Recommendations)

	e.logger.Debug("Environment analysis completed",
		zap.Float64("time_risk", bundle.TimeRisk),
		zap.Float64("crowd_risk", bundle.CrowdRisk),
		zap.Float64("env_risk", bundle.EnvRisk),
		zap.Int("factor_count", len(bundle.Factors)),
	)

	return bundle
}

// analyzeTimeRisk 时段风险：6 个固定小时区间的基础风险，
// 周末 ×1.1，固定假日 ×1.2，封顶 1.0
func (e *Engine) analyzeTimeRisk(t time.Time, bundle *models.EnvironmentalBundle) {
	if t.IsZero() {
		return
	}

	hour := t.Hour()
	var base float64
	nightLike := false
	switch {
	case hour < 5:
		base = 0.8
		nightLike = true
	case hour < 8:
		base = 0.4
	case hour < 12:
		base = 0.2
	case hour < 17:
		base = 0.1
	case hour < 20:
		base = 0.3
	default:
		base = 0.7
		nightLike = true
	}

	risk := base
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		risk *= 1.1
	}
	if fixedHolidays[[2]int{int(t.Month()), t.Day()}] {
		risk *= 1.2
	}
	risk = clamp01(risk)

	bundle.TimeRisk = risk

	if nightLike || risk > 0.6 {
		bundle.Recommendations = append(bundle.Recommendations,
			"Avoid travelling alone during late-night hours; keep location sharing on")
	}
}

// analyzeCrowdDensity 人群密度风险：附近对象数 × 场所系数后按阈值分级
func (e *Engine) analyzeCrowdDensity(lat, lon float64, nearbyCount int, bundle *models.EnvironmentalBundle) {
	multiplier := 1.0
	if e.places.IsHotspot(lat, lon) {
		multiplier = 3.0
	} else if e.places.IsCommercial(lat, lon) {
		multiplier = 2.0
	}

	density := float64(nearbyCount) * multiplier

	level := "low"
	risk := 0.2
	switch {
	case density >= crowdVeryHighMin:
		level = "very_high"
		risk = 0.8
	case density >= crowdHighMin:
		level = "high"
		risk = 0.5
	case density >= crowdMediumMin:
		level = "medium"
		risk = 0.3
	case density >= crowdLowMin:
		level = "low"
		risk = 0.2
	default:
		// 低于最小分级阈值：视作稀疏人群
		level = "low"
		risk = 0.1
	}

	bundle.CrowdLevel = level
	bundle.EstimatedDensity = density
	bundle.CrowdRisk = risk

	if level == "very_high" {
		bundle.Recommendations = append(bundle.Recommendations,
			"Very dense crowd nearby; stay aware of belongings and exits")
	}
}

// analyzeEnvironmentalFactors 一般环境因素：区域标记 + 天气 + 基础设施，
// 各自独立触发并累加贡献，总分封顶 1.0，建议按因素类型去重
func (e *Engine) analyzeEnvironmentalFactors(lat, lon float64, weather *models.WeatherSnapshot, bundle *models.EnvironmentalBundle) {
	risk := 0.0
	add := func(f models.EnvironmentalFactor, recommendation string) {
		bundle.Factors = append(bundle.Factors, f)
		risk += f.RiskContribution
		if recommendation != "" {
			bundle.Recommendations = append(bundle.Recommendations, recommendation)
		}
	}

	if e.places.IsCrimeArea(lat, lon) {
		add(models.EnvironmentalFactor{
			Kind:             models.FactorCrimeArea,
			Severity:         models.SeverityHigh,
			RiskContribution: 0.4,
			Description:      "location is inside a flagged crime area",
		}, "Leave the flagged area and move towards a populated, well-lit route")
	}
	if e.places.IsScamArea(lat, lon) {
		add(models.EnvironmentalFactor{
			Kind:             models.FactorScamArea,
			Severity:         models.SeverityMedium,
			RiskContribution: 0.2,
			Description:      "location is inside a flagged scam-prone area",
		}, "Be cautious of strangers offering unsolicited help or deals")
	}

	if weather != nil {
		if weather.TemperatureC != nil {
			t := *weather.TemperatureC
			if t > 40 {
				add(models.EnvironmentalFactor{
					Kind:             models.FactorExtremeHeat,
					Severity:         models.SeverityHigh,
					RiskContribution: 0.3,
					Description:      fmt.Sprintf("extreme heat: %.1f°C", t),
				}, "Stay hydrated and avoid prolonged sun exposure")
			} else if t < 5 {
				add(models.EnvironmentalFactor{
					Kind:             models.FactorExtremeCold,
					Severity:         models.SeverityMedium,
					RiskContribution: 0.2,
					Description:      fmt.Sprintf("extreme cold: %.1f°C", t),
				}, "Limit time outdoors and keep warm")
			}
		}
		if cond := strings.ToLower(weather.Condition); cond != "" {
			if strings.Contains(cond, "storm") || strings.Contains(cond, "heavy rain") || strings.Contains(cond, "snow") {
				add(models.EnvironmentalFactor{
					Kind:             models.FactorSevereWeather,
					Severity:         models.SeverityHigh,
					RiskContribution: 0.4,
					Description:      "severe weather: " + weather.Condition,
				}, "Seek shelter until severe weather passes")
			}
		}
	}

	if e.places.IsPoorInfrastructure(lat, lon) {
		add(models.EnvironmentalFactor{
			Kind:             models.FactorInfrastructure,
			Severity:         models.SeverityMedium,
			RiskContribution: 0.2,
			Description:      "area has poor lighting or road infrastructure",
		}, "Prefer main roads with working street lighting")
	}

	bundle.EnvRisk = clamp01(risk)
}

// dedupStrings 去重并保持原有顺序
func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
