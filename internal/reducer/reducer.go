// Package reducer 持有当前状态 Snapshot 的唯一写者。
// 所有变更（传感器读数和操作指令）都串行通过这里，
// 锁只覆盖单次 apply/命令调用，不跨持久化或网络调用。
package reducer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/evaluator"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"

	"go.uber.org/zap"
)

// 摄入路径错误：坏消息只丢弃，绝不影响后续消息
var (
	ErrUnknownTopic     = errors.New("unknown topic")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Result 一次成功 apply 的产物
type Result struct {
	Kind         models.SensorKind      // 状态消息时为空
	Readings     []models.StoredReading // 本次读数产生的待持久化行（dht22 为两行）
	Alerts       []models.Alert         // 派生报警（0 或 1 条）
	SnapshotJSON []byte                 // 变更后的完整快照副本
}

// Reducer 状态归约器
type Reducer struct {
	mu       sync.Mutex
	snapshot models.Snapshot

	dataTopic   string
	statusTopic string
	logger      *zap.Logger
}

// New 创建 Reducer（快照初始为全零默认值、offline）
func New(dataTopic, statusTopic string, logger *zap.Logger) *Reducer {
	return &Reducer{
		snapshot:    models.NewSnapshot(),
		dataTopic:   dataTopic,
		statusTopic: statusTopic,
		logger:      logger,
	}
}

// inboundReading 统一数据主题上的标签联合消息体
// 各传感器类型要求的字段不同，缺字段按坏消息拒绝。
type inboundReading struct {
	Sensor      string   `json:"sensor"`
	Type        string   `json:"type"`
	Raw         *int     `json:"raw"`
	Voltage     *float64 `json:"voltage"`
	Level       *string  `json:"level"`
	Detected    *bool    `json:"detected"`
	Status      *string  `json:"status"`
	Temp        *float64 `json:"temp"`
	Humidity    *float64 `json:"humidity"`
	TempStatus  *string  `json:"tempStatus"`
	HumidStatus *string  `json:"humidStatus"`
	Dust        *float64 `json:"dust"`
	Quality     *string  `json:"quality"`
}

// Apply 处理一条入站消息。
// 成功时恰好更新对应传感器的子记录和 lastUpdate/online，
// 并返回待持久化读数、派生报警和快照副本。
// 失败时快照完全不变，返回 nil Result。
func (r *Reducer) Apply(topic string, payload []byte, arrival time.Time) (*Result, error) {
	switch topic {
	case r.statusTopic:
		return r.applyStatus(payload)
	case r.dataTopic:
		return r.applyReading(payload, arrival)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
}

// applyStatus 处理状态主题（online/offline 字面量），不触碰任何传感器子记录
func (r *Reducer) applyStatus(payload []byte) (*Result, error) {
	token := string(payload)
	if token != models.StatusOnline && token != models.StatusOffline {
		return nil, fmt.Errorf("%w: invalid status token %q", ErrMalformedPayload, token)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot.Status = token
	return &Result{SnapshotJSON: r.marshalLocked()}, nil
}

func (r *Reducer) applyReading(payload []byte, arrival time.Time) (*Result, error) {
	var msg inboundReading
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kind := models.SensorKind(msg.Sensor)
	var readings []models.StoredReading

	switch kind {
	case models.SensorCO:
		if msg.Raw == nil || msg.Voltage == nil || msg.Level == nil {
			return nil, fmt.Errorf("%w: incomplete mq7 reading", ErrMalformedPayload)
		}
		r.snapshot.CO = models.COState{
			Raw: *msg.Raw, Voltage: *msg.Voltage, Level: *msg.Level, Timestamp: &arrival,
		}
		readings = append(readings, storedReading(arrival, models.SeriesCOLevel, msg.Voltage, "V", *msg.Level, payload))

	case models.SensorFlame:
		if msg.Detected == nil || msg.Status == nil {
			return nil, fmt.Errorf("%w: incomplete flame reading", ErrMalformedPayload)
		}
		r.snapshot.Flame = models.FlameState{
			Detected: *msg.Detected, Status: *msg.Status, Timestamp: &arrival,
		}
		v := 0.0
		if *msg.Detected {
			v = 1.0
		}
		readings = append(readings, storedReading(arrival, models.SeriesFlame, &v, "", *msg.Status, payload))

	case models.SensorHumidityTemp:
		if msg.Temp == nil || msg.Humidity == nil || msg.TempStatus == nil || msg.HumidStatus == nil {
			return nil, fmt.Errorf("%w: incomplete dht22 reading", ErrMalformedPayload)
		}
		r.snapshot.DHT22 = models.DHT22State{
			Temperature: *msg.Temp, Humidity: *msg.Humidity,
			TempStatus: *msg.TempStatus, HumidStatus: *msg.HumidStatus, Timestamp: &arrival,
		}
		readings = append(readings,
			storedReading(arrival, models.SeriesTemperatureDHT22, msg.Temp, "°C", *msg.TempStatus, payload),
			storedReading(arrival, models.SeriesHumidity, msg.Humidity, "%", *msg.HumidStatus, payload),
		)

	case models.SensorParticulate:
		if msg.Raw == nil || msg.Voltage == nil || msg.Dust == nil || msg.Quality == nil {
			return nil, fmt.Errorf("%w: incomplete pm25 reading", ErrMalformedPayload)
		}
		r.snapshot.PM25 = models.PM25State{
			Raw: *msg.Raw, Voltage: *msg.Voltage, Dust: *msg.Dust, Quality: *msg.Quality, Timestamp: &arrival,
		}
		// 固件 dust 单位 mg/m³，序列存 µg/m³（与空气质量分级阈值同单位）
		ug := *msg.Dust * 1000
		readings = append(readings, storedReading(arrival, models.SeriesAirQuality, &ug, "µg/m³", *msg.Quality, payload))

	case models.SensorSecondaryTemp:
		if msg.Temp == nil || msg.Status == nil {
			return nil, fmt.Errorf("%w: incomplete se95 reading", ErrMalformedPayload)
		}
		r.snapshot.SE95 = models.SE95State{
			Temperature: *msg.Temp, Status: *msg.Status, Timestamp: &arrival,
		}
		readings = append(readings, storedReading(arrival, models.SeriesTemperatureSE95, msg.Temp, "°C", *msg.Status, payload))

	default:
		return nil, fmt.Errorf("%w: unknown sensor %q", ErrMalformedPayload, msg.Sensor)
	}

	r.snapshot.Status = models.StatusOnline
	r.snapshot.LastUpdate = &arrival
	r.recomputeAvgTemperatureLocked()

	alerts := evaluator.Evaluate(kind, r.snapshot, arrival)

	return &Result{
		Kind:         kind,
		Readings:     readings,
		Alerts:       alerts,
		SnapshotJSON: r.marshalLocked(),
	}, nil
}

// recomputeAvgTemperatureLocked 两路温度都有读数时重算派生平均温度
func (r *Reducer) recomputeAvgTemperatureLocked() {
	if r.snapshot.DHT22.Timestamp == nil || r.snapshot.SE95.Timestamp == nil {
		return
	}
	avg := (r.snapshot.DHT22.Temperature + r.snapshot.SE95.Temperature) / 2
	r.snapshot.AvgTemperature = &models.AvgTemperature{
		Temp:   avg,
		Status: models.AvgTemperatureStatus(avg),
	}
}

// MarkOffline 无读数超时后由 staleness 检查调用。
// 返回快照副本和是否发生了变化（已是 offline 时不重复广播）。
func (r *Reducer) MarkOffline() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot.Status == models.StatusOffline {
		return nil, false
	}
	r.snapshot.Status = models.StatusOffline
	return r.marshalLocked(), true
}

// LastUpdate 最近一次接受读数的时间（staleness 检查用）
func (r *Reducer) LastUpdate() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot.LastUpdate
}

// SetPollingRate 乐观更新轮询间隔（设备尚未确认），返回快照副本
func (r *Reducer) SetPollingRate(ms int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.PollingRate = ms
	return r.marshalLocked()
}

// SetSensorEnabled 乐观更新传感器启用标记，返回快照副本。
// sensor 必须是 enable 通道的固件命名（mq7/flame/dht/pm25/se95），由调用方校验。
func (r *Reducer) SetSensorEnabled(sensor string, enabled bool) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch sensor {
	case "mq7":
		r.snapshot.SensorsEnabled.MQ7 = enabled
	case "flame":
		r.snapshot.SensorsEnabled.Flame = enabled
	case "dht":
		r.snapshot.SensorsEnabled.DHT = enabled
	case "pm25":
		r.snapshot.SensorsEnabled.PM25 = enabled
	case "se95":
		r.snapshot.SensorsEnabled.SE95 = enabled
	}
	return r.marshalLocked()
}

// SetIndicator 乐观更新状态指示灯标记，返回快照副本
func (r *Reducer) SetIndicator(enabled bool) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.StatusLedEnabled = enabled
	return r.marshalLocked()
}

// Snapshot 当前快照的序列化副本（新连接的观察者和 REST 查询用）
func (r *Reducer) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marshalLocked()
}

// marshalLocked 在锁内序列化快照，保证副本不被并发写撕裂
func (r *Reducer) marshalLocked() []byte {
	data, err := json.Marshal(r.snapshot)
	if err != nil {
		// Snapshot 是纯数据结构，序列化不应失败
		r.logger.Error("Failed to marshal snapshot", zap.Error(err))
		return []byte("{}")
	}
	return data
}

func storedReading(at time.Time, seriesKey string, value *float64, unit, status string, raw []byte) models.StoredReading {
	return models.StoredReading{
		Timestamp: at,
		SeriesKey: seriesKey,
		Value:     value,
		Unit:      unit,
		Status:    status,
		RawData:   string(raw),
	}
}
