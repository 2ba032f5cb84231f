// Package evaluator 将单条读数映射为 0 或 1 条报警。
// 纯函数，不做跨传感器组合判断，也不做去重；
// 重复触发的读数各自产生独立报警行，由操作员通过确认机制收敛。
package evaluator

import (
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"
)

// 报警消息文案（固定文本，前端直接展示）
const (
	msgFire        = "Fire detected! Evacuate immediately!"
	msgCODangerous = "Dangerous CO level detected! Leave the room!"
	msgCOHigh      = "High CO level detected!"
	msgAirQuality  = "Very poor air quality detected!"
)

// Evaluate 根据刚更新的传感器子记录推导报警
func Evaluate(kind models.SensorKind, snap models.Snapshot, at time.Time) []models.Alert {
	switch kind {
	case models.SensorFlame:
		if snap.Flame.Status == "FIRE DETECTED" {
			return []models.Alert{{
				Timestamp: at,
				AlertType: models.AlertTypeFire,
				Message:   msgFire,
				Severity:  models.SeverityCritical,
			}}
		}

	case models.SensorCO:
		switch snap.CO.Level {
		case "Dangerous":
			return []models.Alert{{
				Timestamp: at,
				AlertType: models.AlertTypeCO,
				Message:   msgCODangerous,
				Severity:  models.SeverityCritical,
			}}
		case "High":
			return []models.Alert{{
				Timestamp: at,
				AlertType: models.AlertTypeCO,
				Message:   msgCOHigh,
				Severity:  models.SeverityWarning,
			}}
		}

	case models.SensorParticulate:
		if snap.PM25.Quality == "Very Unhealthy" || snap.PM25.Quality == "Hazardous" {
			return []models.Alert{{
				Timestamp: at,
				AlertType: models.AlertTypeAirQuality,
				Message:   msgAirQuality,
				Severity:  models.SeverityWarning,
			}}
		}
	}

	return nil
}
