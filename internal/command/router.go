// Package command 校验并下发操作指令（轮询间隔、传感器开关、蜂鸣器、指示灯）。
// 校验失败同步返回给调用方，不产生任何 MQTT 发布；
// 校验通过后先乐观更新快照（设备尚未确认），再发布到控制主题。
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/config"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/reducer"

	"go.uber.org/zap"
)

// 指令校验错误
var (
	ErrOutOfRange     = errors.New("polling rate out of range")
	ErrUnknownSensor  = errors.New("unknown sensor")
	ErrUnknownCommand = errors.New("unknown buzzer command")
	ErrInvalidType    = errors.New("invalid value type")
)

// 轮询间隔合法区间（ms），与固件一致
const (
	MinPollingRate = 100
	MaxPollingRate = 60000
)

var validSensors = map[string]bool{
	"mq7": true, "flame": true, "dht": true, "pm25": true, "se95": true,
}

var validBuzzerCommands = map[string]bool{
	"alarm": true, "warning": true, "test": true, "off": true,
}

// Publisher 下游发布接口（MQTT 客户端实现）
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Router 指令路由器
type Router struct {
	reducer   *reducer.Reducer
	publisher Publisher
	topics    config.TopicsConfig
	logger    *zap.Logger
}

// NewRouter 创建指令路由器
func NewRouter(rd *reducer.Reducer, publisher Publisher, topics config.TopicsConfig, logger *zap.Logger) *Router {
	return &Router{
		reducer:   rd,
		publisher: publisher,
		topics:    topics,
		logger:    logger,
	}
}

// SetPollingRate 修改设备轮询间隔。
// 返回更新后的快照副本，调用方负责广播。
func (r *Router) SetPollingRate(ms int) ([]byte, error) {
	if ms < MinPollingRate || ms > MaxPollingRate {
		return nil, fmt.Errorf("%w: %d (must be %d..%d ms)", ErrOutOfRange, ms, MinPollingRate, MaxPollingRate)
	}

	snapshot := r.reducer.SetPollingRate(ms)

	if err := r.publisher.Publish(r.topics.ControlRate, []byte(strconv.Itoa(ms))); err != nil {
		r.logger.Warn("Failed to publish rate command", zap.Error(err))
	}
	r.logger.Info("Polling rate changed", zap.Int("rate_ms", ms))

	return snapshot, nil
}

// SetSensorEnabled 启用/禁用某个传感器
func (r *Router) SetSensorEnabled(sensor string, enabled bool) ([]byte, error) {
	if !validSensors[sensor] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, sensor)
	}

	snapshot := r.reducer.SetSensorEnabled(sensor, enabled)

	payload, _ := json.Marshal(map[string]any{"sensor": sensor, "enabled": enabled})
	if err := r.publisher.Publish(r.topics.ControlEnable, payload); err != nil {
		r.logger.Warn("Failed to publish enable command", zap.Error(err))
	}
	r.logger.Info("Sensor toggled", zap.String("sensor", sensor), zap.Bool("enabled", enabled))

	return snapshot, nil
}

// TriggerBuzzer 触发蜂鸣器。蜂鸣器状态不入快照，只转发，不触发广播。
func (r *Router) TriggerBuzzer(cmd string) error {
	if !validBuzzerCommands[cmd] {
		return fmt.Errorf("%w: %q (use alarm, warning, test or off)", ErrUnknownCommand, cmd)
	}

	if err := r.publisher.Publish(r.topics.ControlBuzzer, []byte(cmd)); err != nil {
		r.logger.Warn("Failed to publish buzzer command", zap.Error(err))
		return fmt.Errorf("failed to forward buzzer command: %w", err)
	}
	r.logger.Info("Buzzer command sent", zap.String("command", cmd))

	return nil
}

// SetIndicator 开关状态指示灯
func (r *Router) SetIndicator(enabled bool) ([]byte, error) {
	snapshot := r.reducer.SetIndicator(enabled)

	token := "off"
	if enabled {
		token = "on"
	}
	if err := r.publisher.Publish(r.topics.ControlLED, []byte(token)); err != nil {
		r.logger.Warn("Failed to publish led command", zap.Error(err))
	}
	r.logger.Info("Status LED toggled", zap.Bool("enabled", enabled))

	return snapshot, nil
}
