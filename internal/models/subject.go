package models

import "time"

// Subject 被监护对象（对应 subjects 表）
type Subject struct {
	SubjectID   string    `json:"subject_id" db:"subject_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Status      string    `json:"status" db:"status"` // active 或 inactive
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Zone 地理区域标注（对应 zones 表，经纬度包围盒）
type Zone struct {
	ZoneID string  `json:"zone_id" db:"zone_id"`
	Kind   string  `json:"kind" db:"kind"` // hotspot, commercial, crime, scam, poor_infrastructure
	Name   string  `json:"name" db:"name"`
	MinLat float64 `json:"min_lat" db:"min_lat"`
	MaxLat float64 `json:"max_lat" db:"max_lat"`
	MinLon float64 `json:"min_lon" db:"min_lon"`
	MaxLon float64 `json:"max_lon" db:"max_lon"`
}

// Contains 坐标是否落在包围盒内（边界含）
func (z *Zone) Contains(lat, lon float64) bool {
	return lat >= z.MinLat && lat <= z.MaxLat && lon >= z.MinLon && lon <= z.MaxLon
}
