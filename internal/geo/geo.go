package geo

import (
	"math"
	"time"
)

// 平均地球半径（米）
const earthRadiusM = 6371000

// DistanceMeters 两坐标点间的大圆距离（haversine，米），不修改输入
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLatRad := (lat2 - lat1) * math.Pi / 180
	deltaLonRad := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLatRad/2)*math.Sin(deltaLatRad/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLonRad/2)*math.Sin(deltaLonRad/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// BearingDegrees 从点1到点2的罗盘方位角，范围 [0,360)
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLonRad := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLonRad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLonRad)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// MinutesBetween 两个时间戳之间的绝对分钟数
// 上游数据可能携带无法解析的时间戳，此时返回 0 而不是报错，
// 调用方对坏数据保持容错（行为已文档化，并非"静默正确"）
func MinutesBetween(t1, t2 string) float64 {
	ts1, ok := parseTimestamp(t1)
	if !ok {
		return 0
	}
	ts2, ok := parseTimestamp(t2)
	if !ok {
		return 0
	}
	return math.Abs(ts2.Sub(ts1).Minutes())
}

func parseTimestamp(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	// 部分上游以不带时区的格式上报
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
