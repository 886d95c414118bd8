package evaluator

import (
	"time"

	"go.uber.org/zap"
)

// PlaceClassifier 坐标上下文判定接口（可插拔，默认全部返回 false）
type PlaceClassifier interface {
	IsHotspot(lat, lon float64) bool
	IsCommercial(lat, lon float64) bool
	IsCrimeArea(lat, lon float64) bool
	IsScamArea(lat, lon float64) bool
	IsPoorInfrastructure(lat, lon float64) bool
}

// nullClassifier 默认实现：无任何区域信息
type nullClassifier struct{}

func (nullClassifier) IsHotspot(lat, lon float64) bool            { return false }
func (nullClassifier) IsCommercial(lat, lon float64) bool         { return false }
func (nullClassifier) IsCrimeArea(lat, lon float64) bool          { return false }
func (nullClassifier) IsScamArea(lat, lon float64) bool           { return false }
func (nullClassifier) IsPoorInfrastructure(lat, lon float64) bool { return false }

// NullClassifier 返回全 false 的默认区域判定器
func NullClassifier() PlaceClassifier {
	return nullClassifier{}
}

// Engine 风险评估引擎（纯计算，无共享可变状态，可并发调用）
type Engine struct {
	places PlaceClassifier
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine 创建评估引擎。places 传 nil 时使用全 false 判定器
func NewEngine(places PlaceClassifier, logger *zap.Logger) *Engine {
	if places == nil {
		places = nullClassifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		places: places,
		logger: logger,
		now:    time.Now,
	}
}

// clamp01 把分数限制到 [0,1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
