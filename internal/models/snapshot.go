package models

import "time"

// COState MQ-7 一氧化碳传感器最新状态
type COState struct {
	Raw       int        `json:"raw"`
	Voltage   float64    `json:"voltage"`
	Level     string     `json:"level"`
	Timestamp *time.Time `json:"timestamp"`
}

// FlameState 火焰传感器最新状态
type FlameState struct {
	Detected  bool       `json:"detected"`
	Status    string     `json:"status"`
	Timestamp *time.Time `json:"timestamp"`
}

// DHT22State DHT22 温湿度传感器最新状态
type DHT22State struct {
	Temperature float64    `json:"temperature"`
	Humidity    float64    `json:"humidity"`
	TempStatus  string     `json:"tempStatus"`
	HumidStatus string     `json:"humidStatus"`
	Timestamp   *time.Time `json:"timestamp"`
}

// PM25State PM2.5 粉尘传感器最新状态
type PM25State struct {
	Raw       int        `json:"raw"`
	Voltage   float64    `json:"voltage"`
	Dust      float64    `json:"dust"` // mg/m³
	Quality   string     `json:"quality"`
	Timestamp *time.Time `json:"timestamp"`
}

// SE95State SE95 温度传感器最新状态
type SE95State struct {
	Temperature float64    `json:"temp"`
	Status      string     `json:"status"`
	Timestamp   *time.Time `json:"timestamp"`
}

// AvgTemperature 两路温度的派生平均值（两路都有读数时才存在）
type AvgTemperature struct {
	Temp   float64 `json:"temp"`
	Status string  `json:"status"`
}

// EnabledFlags 各传感器启用状态（enable 控制通道使用固件命名：dht 而非 dht22）
type EnabledFlags struct {
	MQ7   bool `json:"mq7"`
	Flame bool `json:"flame"`
	DHT   bool `json:"dht"`
	PM25  bool `json:"pm25"`
	SE95  bool `json:"se95"`
}

// Snapshot 全量当前状态（广播给前端的完整对象，字段名与 WebSocket 协议对齐）
// 唯一写者是 reducer，其他组件只能拿到序列化副本。
type Snapshot struct {
	CO               COState         `json:"mq7"`
	Flame            FlameState      `json:"flame"`
	DHT22            DHT22State      `json:"dht22"`
	PM25             PM25State       `json:"pm25"`
	SE95             SE95State       `json:"se95"`
	AvgTemperature   *AvgTemperature `json:"avgTemperature"`
	Status           string          `json:"status"` // "online" / "offline"
	LastUpdate       *time.Time      `json:"lastUpdate"`
	SensorsEnabled   EnabledFlags    `json:"sensorsEnabled"`
	PollingRate      int             `json:"pollingRate"` // ms
	StatusLedEnabled bool            `json:"statusLedEnabled"`
}

// NewSnapshot 创建进程启动时的默认快照
func NewSnapshot() Snapshot {
	return Snapshot{
		Status: StatusOffline,
		SensorsEnabled: EnabledFlags{
			MQ7: true, Flame: true, DHT: true, PM25: true, SE95: true,
		},
		PollingRate:      100,
		StatusLedEnabled: true,
	}
}

// 连接状态常量
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// AvgTemperatureStatus 将平均温度映射到 5 档状态
// 阈值与固件保持逐位一致，外部看板依赖这些字面值。
func AvgTemperatureStatus(temp float64) string {
	switch {
	case temp < 15:
		return "Cold"
	case temp < 20:
		return "Cool"
	case temp < 25:
		return "Comfortable"
	case temp < 30:
		return "Warm"
	default:
		return "Hot"
	}
}
