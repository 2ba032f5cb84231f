package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/bucket"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/command"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"

	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 10

// ReadingsStore 历史查询依赖（ReadingsRepository 实现）
type ReadingsStore interface {
	History(ctx context.Context, seriesKey string, hours float64, bucketMinutes *int) ([]bucket.Point, error)
	QueryWindow(ctx context.Context, seriesKey string, hours float64) ([]bucket.Point, error)
	Statistics(ctx context.Context, seriesKey string, hours float64) (*models.SeriesStats, error)
}

// AlertsStore 报警查询依赖（AlertsRepository 实现）
type AlertsStore interface {
	Recent(ctx context.Context, limit int) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id int64) (bool, error)
}

// Commander 指令路由依赖（command.Router 实现）
type Commander interface {
	SetPollingRate(ms int) ([]byte, error)
	SetSensorEnabled(sensor string, enabled bool) ([]byte, error)
	TriggerBuzzer(cmd string) error
	SetIndicator(enabled bool) ([]byte, error)
}

// Broadcaster 快照扇出依赖（broadcaster.Hub 实现）
type Broadcaster interface {
	Broadcast(snapshot []byte)
}

// SnapshotFunc 当前快照序列化副本
type SnapshotFunc func() []byte

// MonitorHandler 查询与控制 API
type MonitorHandler struct {
	readings ReadingsStore
	alerts   AlertsStore
	commands Commander
	hub      Broadcaster
	snapshot SnapshotFunc
	logger   *zap.Logger
}

// NewMonitorHandler 创建 API 处理器
func NewMonitorHandler(
	readings ReadingsStore,
	alerts AlertsStore,
	commands Commander,
	hub Broadcaster,
	snapshot SnapshotFunc,
	logger *zap.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		readings: readings,
		alerts:   alerts,
		commands: commands,
		hub:      hub,
		snapshot: snapshot,
		logger:   logger,
	}
}

// GetSensors GET /api/sensors：当前快照
func (h *MonitorHandler) GetSensors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.snapshot())
}

// GetHistory GET /api/history/{seriesKey}?hours=&bucket=
// bucket 缺省时按窗口自适应；bucket=0 返回原始数据。
func (h *MonitorHandler) GetHistory(w http.ResponseWriter, r *http.Request, seriesKey string) {
	if !models.ValidSeriesKey(seriesKey) {
		writeError(w, http.StatusBadRequest, "unknown series key")
		return
	}

	hours := parseFloat(r.URL.Query().Get("hours"), 24)

	var bucketMinutes *int
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 0 {
			writeError(w, http.StatusBadRequest, "invalid bucket size")
			return
		}
		bucketMinutes = &m
	}

	points, err := h.readings.History(r.Context(), seriesKey, hours, bucketMinutes)
	if err != nil {
		h.logger.Error("Failed to query history",
			zap.String("series_key", seriesKey),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}

	if points == nil {
		points = []bucket.Point{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"series": seriesKey,
		"hours":  hours,
		"data":   points,
	})
}

// GetStats GET /api/stats/{seriesKey}?hours=：窗口内未分桶统计
func (h *MonitorHandler) GetStats(w http.ResponseWriter, r *http.Request, seriesKey string) {
	if !models.ValidSeriesKey(seriesKey) {
		writeError(w, http.StatusBadRequest, "unknown series key")
		return
	}

	hours := parseFloat(r.URL.Query().Get("hours"), 24)

	stats, err := h.readings.Statistics(r.Context(), seriesKey, hours)
	if err != nil {
		h.logger.Error("Failed to query statistics",
			zap.String("series_key", seriesKey),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to query statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetAlerts GET /api/alerts?limit=：最近报警，新的在前
func (h *MonitorHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	if limit <= 0 {
		limit = 50
	}

	alerts, err := h.alerts.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to query alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// AckAlert POST /api/alerts/{id}/ack：确认报警
func (h *MonitorHandler) AckAlert(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	ok, err := h.alerts.Acknowledge(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to acknowledge alert", zap.Int64("alert_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to acknowledge alert")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ControlRate POST /api/control/rate {"rate": ms}
func (h *MonitorHandler) ControlRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rate *int `json:"rate"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil || body.Rate == nil {
		writeError(w, http.StatusBadRequest, command.ErrInvalidType.Error())
		return
	}

	snapshot, err := h.commands.SetPollingRate(*body.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.hub.Broadcast(snapshot)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rate": *body.Rate})
}

// ControlEnable POST /api/control/enable {"sensor": ..., "enabled": bool}
func (h *MonitorHandler) ControlEnable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sensor  string `json:"sensor"`
		Enabled *bool  `json:"enabled"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, command.ErrInvalidType.Error())
		return
	}

	snapshot, err := h.commands.SetSensorEnabled(body.Sensor, *body.Enabled)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.hub.Broadcast(snapshot)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sensor":  body.Sensor,
		"enabled": *body.Enabled,
	})
}

// ControlBuzzer POST /api/control/buzzer {"command": alarm|warning|test|off}
func (h *MonitorHandler) ControlBuzzer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command string `json:"command"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeError(w, http.StatusBadRequest, command.ErrInvalidType.Error())
		return
	}

	if err := h.commands.TriggerBuzzer(body.Command); err != nil {
		if errors.Is(err, command.ErrUnknownCommand) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// 蜂鸣器不入快照，无需广播
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "command": body.Command})
}

// ControlLED POST /api/control/led {"enabled": bool}
func (h *MonitorHandler) ControlLED(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, command.ErrInvalidType.Error())
		return
	}

	snapshot, err := h.commands.SetIndicator(*body.Enabled)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.hub.Broadcast(snapshot)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "enabled": *body.Enabled})
}

// trimPathSuffix 分离 /api/alerts/{id}/ack 形态路径的 id 段
func trimPathSuffix(path, prefix, suffix string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return "", false
	}
	if suffix != "" {
		if !strings.HasSuffix(rest, suffix) {
			return "", false
		}
		rest = strings.TrimSuffix(rest, suffix)
	}
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
