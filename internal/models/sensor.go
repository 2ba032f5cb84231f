package models

import "time"

// SensorKind 传感器类型（封闭枚举，对应固件 payload 的 sensor 判别字段）
type SensorKind string

const (
	SensorCO            SensorKind = "mq7"   // MQ-7 一氧化碳传感器
	SensorFlame         SensorKind = "flame" // 红外火焰传感器
	SensorHumidityTemp  SensorKind = "dht22" // DHT22 温湿度传感器
	SensorParticulate   SensorKind = "pm25"  // PM2.5 粉尘传感器
	SensorSecondaryTemp SensorKind = "se95"  // SE95 I2C 温度传感器
)

// AllSensorKinds 所有已知传感器类型
var AllSensorKinds = []SensorKind{
	SensorCO, SensorFlame, SensorHumidityTemp, SensorParticulate, SensorSecondaryTemp,
}

// 时序 series_key（与前端图表和历史 API 对齐，不可改动）
const (
	SeriesCOLevel          = "co_level"
	SeriesFlame            = "flame"
	SeriesTemperatureDHT22 = "temperature_dht22"
	SeriesTemperatureSE95  = "temperature_se95"
	SeriesHumidity         = "humidity"
	SeriesAirQuality       = "air_quality"
)

// AllSeriesKeys 所有已知 series_key
var AllSeriesKeys = []string{
	SeriesCOLevel, SeriesFlame, SeriesTemperatureDHT22,
	SeriesTemperatureSE95, SeriesHumidity, SeriesAirQuality,
}

// ValidSeriesKey 检查 series_key 是否合法
func ValidSeriesKey(key string) bool {
	for _, k := range AllSeriesKeys {
		if k == key {
			return true
		}
	}
	return false
}

// StoredReading 一条持久化的传感器读数（append-only，仅保留期清理会删除）
type StoredReading struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SeriesKey string    `json:"series_key"`
	Value     *float64  `json:"value"`
	Unit      string    `json:"unit"`
	Status    string    `json:"status"`
	RawData   string    `json:"raw_data"` // 原始 payload（审计用）
}

// SeriesStats 一个时间窗口内的未分桶统计
type SeriesStats struct {
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Avg   *float64 `json:"avg"`
	Count int64    `json:"count"`
}
