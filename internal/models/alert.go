package models

import "time"

// 报警类型
const (
	AlertTypeFire       = "FIRE"
	AlertTypeCO         = "CO"
	AlertTypeAirQuality = "AIR_QUALITY"
)

// 报警级别
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert 一条持久化报警
// 写入后不可变，唯一例外是 acknowledged 标记（显式确认操作更新）。
type Alert struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	AlertType    string    `json:"alert_type"`
	Message      string    `json:"message"`
	Severity     string    `json:"severity"`
	Acknowledged bool      `json:"acknowledged"`
}
