package models

// LocationSample 位置采样点（来自上游采集服务，按时间升序排列）
// Timestamp 为 RFC3339 字符串，上游数据可能包含无法解析的时间戳，
// 时间计算由 geo.MinutesBetween 容错处理
type LocationSample struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Timestamp string   `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // 定位精度（米）
	Speed     *float64 `json:"speed,omitempty"`    // 上报速度（可选，分析时不依赖）
	Heading   *float64 `json:"heading,omitempty"`  // 上报朝向（度）
}

// WeatherSnapshot 天气快照（可选输入，由调用方提供）
type WeatherSnapshot struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"` // 摄氏温度
	Condition    string   `json:"condition,omitempty"`     // 天气状况描述，如 "thunderstorm"
}
