package evaluator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// buildTrail 按 (纬度, 经度, 分钟偏移) 构造升序轨迹
func buildTrail(points [][3]float64) []models.LocationSample {
	base := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)
	samples := make([]models.LocationSample, 0, len(points))
	for _, p := range points {
		samples = append(samples, models.LocationSample{
			Latitude:  p[0],
			Longitude: p[1],
			Timestamp: base.Add(time.Duration(p[2]) * time.Minute).Format(time.RFC3339),
		})
	}
	return samples
}

func findingsOfKind(b models.MovementBundle, kind string) []models.MovementFinding {
	var out []models.MovementFinding
	for _, f := range b.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestAnalyzeMovement_EmptyTrail(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	bundle := e.AnalyzeMovement(nil)

	assert.Equal(t, 0.0, bundle.Score)
	assert.Empty(t, bundle.Findings)
	assert.Equal(t, 0.5, bundle.PatternConfidence)
}

func TestAnalyzeMovement_SinglePoint(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	bundle := e.AnalyzeMovement(buildTrail([][3]float64{{28.6139, 77.2090, 0}}))

	assert.Equal(t, 0.0, bundle.Score)
	assert.Empty(t, bundle.Findings)
}

func TestDetectSuddenStops_Basic(t *testing.T) {
	// 前段 ~444.8m/10min ≈ 44.5 m/min（>30），后段 0 m/min（<5）
	trail := buildTrail([][3]float64{
		{28.6139, 77.2090, 0},
		{28.6179, 77.2090, 10},
		{28.6179, 77.2090, 20},
	})

	score, findings := detectSuddenStops(trail)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, models.FindingSuddenStop, f.Kind)
	// speed_before 44.5 > 40 但停止时长 10 分钟未超 15 → low
	assert.Equal(t, models.SeverityLow, f.Severity)
	assert.InDelta(t, 10.0/60*0.1, f.RiskContribution, 1e-9)
	assert.InDelta(t, 44.5, *f.SpeedBefore, 0.5)
	assert.InDelta(t, 0.0, *f.SpeedAfter, 1e-9)
	assert.InDelta(t, 10.0, *f.StopDurationMin, 1e-9)
	assert.InDelta(t, score, f.RiskContribution, 1e-9)
}

func TestDetectSuddenStops_MediumSeverity(t *testing.T) {
	// 前段 ~889.6m/20min 不够，改为 ~889.6m/18min = 49.4 m/min；
	// 用 0.008 度 / 18 分钟 ≈ 49.4 m/min（>40），停止 20 分钟（>15）→ medium
	trail := buildTrail([][3]float64{
		{28.6139, 77.2090, 0},
		{28.6219, 77.2090, 18},
		{28.6219, 77.2090, 38},
	})

	_, findings := detectSuddenStops(trail)

	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityMedium, findings[0].Severity)
}

func TestDetectSuddenStops_TooFewPoints(t *testing.T) {
	trail := buildTrail([][3]float64{
		{28.6139, 77.2090, 0},
		{28.6179, 77.2090, 10},
	})

	score, findings := detectSuddenStops(trail)

	assert.Equal(t, 0.0, score)
	assert.Empty(t, findings)
}

func TestDetectRapidMovement_Basic(t *testing.T) {
	// 0.01 度纬度 ≈ 1111.9m / 10min ≈ 111 m/min
	trail := buildTrail([][3]float64{
		{28.6139, 77.2090, 0},
		{28.6239, 77.2090, 10},
	})

	score, findings, stats := detectRapidMovement(trail)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, models.FindingRapidMovement, f.Kind)
	// 111 m/min：>80 但 ≤120 → medium；>100 → 贡献 0.4
	assert.Equal(t, models.SeverityMedium, f.Severity)
	assert.InDelta(t, 0.4, f.RiskContribution, 1e-9)
	assert.InDelta(t, 0.4, score, 1e-9)
	assert.InDelta(t, 111.2, stats.Max, 1.0)
	assert.InDelta(t, 111.2, stats.Mean, 1.0)
	assert.InDelta(t, 0.0, stats.Variance, 1e-6)
}

func TestDetectRapidMovement_Monotonic(t *testing.T) {
	// 命中段越多，聚合分数不应下降（封顶 1.0 前）
	one := buildTrail([][3]float64{
		{28.6139, 77.2090, 0},
		{28.6239, 77.2090, 10},
	})
	two := buildTrail([][3]float64{
		{28.6139, 77.2090, 0},
		{28.6239, 77.2090, 10},
		{28.6339, 77.2090, 20},
	})
	three := buildTrail([][3]float64{
		{28.6139, 77.2090, 0},
		{28.6239, 77.2090, 10},
		{28.6339, 77.2090, 20},
		{28.6439, 77.2090, 30},
	})

	s1, _, _ := detectRapidMovement(one)
	s2, _, _ := detectRapidMovement(two)
	s3, _, _ := detectRapidMovement(three)

	assert.GreaterOrEqual(t, s2, s1)
	assert.GreaterOrEqual(t, s3, s2)
	assert.LessOrEqual(t, s3, 1.0)
}

func TestDetectRapidMovement_ScoreCapped(t *testing.T) {
	points := make([][3]float64, 0, 5)
	for i := 0; i < 5; i++ {
		points = append(points, [3]float64{28.6139 + 0.01*float64(i), 77.2090, float64(i * 10)})
	}

	score, _, _ := detectRapidMovement(buildTrail(points))

	assert.Equal(t, 1.0, score)
}

func TestDetectAbnormalPatterns_LongStationaryPeriod(t *testing.T) {
	// 同一点每 5 分钟采样，总时长 70 分钟（>60）→ 必须产出静止区间检测结果
	points := make([][3]float64, 0, 15)
	for i := 0; i <= 14; i++ {
		points = append(points, [3]float64{28.6139, 77.2090, float64(i * 5)})
	}

	e := NewEngine(nil, zap.NewNop())
	bundle := e.AnalyzeMovement(buildTrail(points))

	stationary := findingsOfKind(bundle, models.FindingLongStationary)
	require.Len(t, stationary, 1)
	assert.InDelta(t, 0.1, stationary[0].RiskContribution, 1e-9)
	assert.InDelta(t, 70.0, *stationary[0].DurationMin, 1e-9)
	assert.Equal(t, 1, *stationary[0].Count)
}

func TestDetectAbnormalPatterns_CircularMovement(t *testing.T) {
	// 三个相距 >50m 的点循环访问三轮
	a := [2]float64{28.6139, 77.2090}
	b := [2]float64{28.6149, 77.2090}
	c := [2]float64{28.6144, 77.2100}
	var points [][3]float64
	for cycle := 0; cycle < 3; cycle++ {
		for i, p := range [][2]float64{a, b, c} {
			points = append(points, [3]float64{p[0], p[1], float64((cycle*3 + i) * 5)})
		}
	}

	result := detectAbnormalPatterns(buildTrail(points))

	var circular *models.MovementFinding
	for i := range result.findings {
		if result.findings[i].Kind == models.FindingCircular {
			circular = &result.findings[i]
		}
	}
	require.NotNil(t, circular)
	assert.InDelta(t, 0.2, circular.RiskContribution, 1e-9)
	assert.GreaterOrEqual(t, *circular.Count, 3)
}

func TestDetectAbnormalPatterns_Backtracking(t *testing.T) {
	// X/Y 两点往返，折返距离 0 <30m，比例远超 0.3
	x := [2]float64{28.6139, 77.2090}
	y := [2]float64{28.6149, 77.2090}
	var points [][3]float64
	for i := 0; i < 7; i++ {
		p := x
		if i%2 == 1 {
			p = y
		}
		points = append(points, [3]float64{p[0], p[1], float64(i * 5)})
	}

	result := detectAbnormalPatterns(buildTrail(points))

	var back *models.MovementFinding
	for i := range result.findings {
		if result.findings[i].Kind == models.FindingBacktracking {
			back = &result.findings[i]
		}
	}
	require.NotNil(t, back)
	assert.InDelta(t, 0.3, back.RiskContribution, 1e-9)
	assert.Greater(t, *back.Ratio, 0.3)
}

func TestDetectAbnormalPatterns_ErraticDirectionChanges(t *testing.T) {
	// 南北往返：方位角 0°/180° 交替，每次转向 180° > 90°
	x := [2]float64{28.6139, 77.2090}
	y := [2]float64{28.6149, 77.2090}
	var points [][3]float64
	for i := 0; i < 7; i++ {
		p := x
		if i%2 == 1 {
			p = y
		}
		points = append(points, [3]float64{p[0], p[1], float64(i * 5)})
	}

	result := detectAbnormalPatterns(buildTrail(points))

	var erratic *models.MovementFinding
	for i := range result.findings {
		if result.findings[i].Kind == models.FindingErraticDirection {
			erratic = &result.findings[i]
		}
	}
	require.NotNil(t, erratic)
	assert.LessOrEqual(t, erratic.RiskContribution, 0.25)
}

func TestDetectAbnormalPatterns_TooFewSamples(t *testing.T) {
	points := [][3]float64{
		{28.6139, 77.2090, 0},
		{28.6149, 77.2090, 5},
		{28.6139, 77.2090, 10},
		{28.6149, 77.2090, 15},
	}

	result := detectAbnormalPatterns(buildTrail(points))

	assert.Equal(t, 0.0, result.score)
	assert.Empty(t, result.findings)
	assert.Equal(t, 0.5, result.confidence)
}

func TestAnalyzeMovement_ScoreAlwaysInRange(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	trails := [][]models.LocationSample{
		nil,
		buildTrail([][3]float64{{0, 0, 0}}),
		buildTrail([][3]float64{{28.6139, 77.2090, 0}, {28.9, 77.9, 1}}),
	}
	// 坏时间戳轨迹
	bad := []models.LocationSample{
		{Latitude: 28.6139, Longitude: 77.2090, Timestamp: "garbage"},
		{Latitude: 28.6239, Longitude: 77.2090, Timestamp: ""},
		{Latitude: 28.6339, Longitude: 77.2090, Timestamp: "also-garbage"},
	}
	trails = append(trails, bad)

	for i, trail := range trails {
		bundle := e.AnalyzeMovement(trail)
		assert.GreaterOrEqual(t, bundle.Score, 0.0, fmt.Sprintf("trail %d", i))
		assert.LessOrEqual(t, bundle.Score, 1.0, fmt.Sprintf("trail %d", i))
		assert.GreaterOrEqual(t, bundle.PatternConfidence, 0.0)
		assert.LessOrEqual(t, bundle.PatternConfidence, 1.0)
	}
}

func TestMovementBundle_HighSeverityCount(t *testing.T) {
	bundle := models.MovementBundle{
		Findings: []models.MovementFinding{
			{Kind: models.FindingRapidMovement, Severity: models.SeverityHigh},
			{Kind: models.FindingSuddenStop, Severity: models.SeverityLow},
			{Kind: models.FindingRapidMovement, Severity: models.SeverityHigh},
		},
	}
	assert.Equal(t, 2, bundle.HighSeverityCount())
}
