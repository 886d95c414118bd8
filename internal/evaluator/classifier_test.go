package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

func TestLevelForScore_BoundaryExact(t *testing.T) {
	assert.Equal(t, models.RiskLow, levelForScore(0.30))
	assert.Equal(t, models.RiskMedium, levelForScore(0.30000001))
	assert.Equal(t, models.RiskMedium, levelForScore(0.60))
	assert.Equal(t, models.RiskHigh, levelForScore(0.60000001))
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, models.PriorityCritical, priorityFor(models.RiskHigh, 0.85))
	assert.Equal(t, models.PriorityHigh, priorityFor(models.RiskHigh, 0.7))
	assert.Equal(t, models.PriorityMedium, priorityFor(models.RiskMedium, 0.55))
	assert.Equal(t, models.PriorityLow, priorityFor(models.RiskMedium, 0.45))
	assert.Equal(t, models.PriorityLow, priorityFor(models.RiskLow, 0.2))
}

func TestClassifyRisk_WeightedScore(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	movement := models.MovementBundle{Score: 0.5, PatternConfidence: 0.5}
	env := models.EnvironmentalBundle{EnvRisk: 0.4, TimeRisk: 0.2, CrowdRisk: 0.1}

	a := e.ClassifyRisk(movement, env)

	// 0.5×0.4 + 0.4×0.3 + 0.2×0.2 + 0.1×0.1 = 0.37
	assert.InDelta(t, 0.37, a.RiskScore, 1e-9)
	assert.Equal(t, models.RiskMedium, a.RiskLevel)
	assert.InDelta(t, 0.5, a.Breakdown.Movement, 1e-9)
	assert.InDelta(t, 0.4, a.Breakdown.Environmental, 1e-9)
	assert.InDelta(t, 0.2, a.Breakdown.Time, 1e-9)
	assert.InDelta(t, 0.1, a.Breakdown.Crowd, 1e-9)
}

func TestClassifyRisk_ScoreClamped(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	movement := models.MovementBundle{Score: 1.0, PatternConfidence: 0.9}
	env := models.EnvironmentalBundle{EnvRisk: 1.0, TimeRisk: 1.0, CrowdRisk: 1.0}

	a := e.ClassifyRisk(movement, env)

	assert.Equal(t, 1.0, a.RiskScore)
	assert.Equal(t, models.RiskHigh, a.RiskLevel)
	assert.Equal(t, models.PriorityCritical, a.AlertPriority)
}

func TestClassifyRisk_Confidence(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	// 移动模式置信度默认 0.5；有环境因素 +0.1，时刻已知 +0.1 → 可得性 1.0
	movement := models.MovementBundle{Score: 0.1, PatternConfidence: 0.5}
	env := models.EnvironmentalBundle{
		HourKnown: true,
		Factors:   []models.EnvironmentalFactor{{Kind: models.FactorScamArea}},
	}

	a := e.ClassifyRisk(movement, env)

	assert.InDelta(t, 0.75, a.Confidence, 1e-9)
}

func TestClassifyRisk_ConfidenceWithoutData(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	movement := models.MovementBundle{PatternConfidence: 0.5}
	env := models.EnvironmentalBundle{}

	a := e.ClassifyRisk(movement, env)

	// (0.5 + 0.8) / 2
	assert.InDelta(t, 0.65, a.Confidence, 1e-9)
}

func TestClassifyRisk_FlattensFactors(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	movement := models.MovementBundle{
		Score:             0.4,
		PatternConfidence: 0.5,
		Findings: []models.MovementFinding{
			{Kind: models.FindingSuddenStop, Severity: models.SeverityHigh, RiskContribution: 0.3},
		},
	}
	env := models.EnvironmentalBundle{
		EnvRisk: 0.4,
		Factors: []models.EnvironmentalFactor{
			{Kind: models.FactorCrimeArea, Severity: models.SeverityHigh, RiskContribution: 0.4},
		},
	}

	a := e.ClassifyRisk(movement, env)

	assert.Len(t, a.Factors, 2)
	assert.Equal(t, "movement", a.Factors[0].Source)
	assert.Equal(t, models.FindingSuddenStop, a.Factors[0].Kind)
	assert.Equal(t, "environmental", a.Factors[1].Source)
	assert.Equal(t, models.FactorCrimeArea, a.Factors[1].Kind)
}

func TestClassifyRisk_RecommendationsDeduped(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	movement := models.MovementBundle{
		Score:             0.9,
		PatternConfidence: 0.5,
		Findings: []models.MovementFinding{
			{Kind: models.FindingSuddenStop, Severity: models.SeverityHigh},
			{Kind: models.FindingSuddenStop, Severity: models.SeverityLow},
		},
	}
	env := models.EnvironmentalBundle{
		Recommendations: []string{"Verify why the subject stopped unexpectedly"},
	}

	a := e.ClassifyRisk(movement, env)

	seen := make(map[string]bool)
	for _, r := range a.Recommendations {
		assert.False(t, seen[r], "duplicate recommendation: %s", r)
		seen[r] = true
	}
}

func TestClassifyRisk_Timestamp(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())
	fixed := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	a := e.ClassifyRisk(models.MovementBundle{PatternConfidence: 0.5}, models.EnvironmentalBundle{})

	assert.Equal(t, fixed, a.Timestamp)
}
