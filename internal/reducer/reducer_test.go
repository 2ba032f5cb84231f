package reducer

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testDataTopic   = "home/sensors/data"
	testStatusTopic = "home/sensors/status"
)

func newTestReducer(t *testing.T) *Reducer {
	t.Helper()
	return New(testDataTopic, testStatusTopic, zap.NewNop())
}

func decodeSnapshot(t *testing.T, data []byte) models.Snapshot {
	t.Helper()
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func TestApply_MQ7UpdatesOnlyThatKind(t *testing.T) {
	r := newTestReducer(t)
	arrival := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	payload := []byte(`{"sensor":"mq7","type":"co","raw":1200,"voltage":0.45,"level":"Moderate"}`)

	result, err := r.Apply(testDataTopic, payload, arrival)
	require.NoError(t, err)

	snap := decodeSnapshot(t, result.SnapshotJSON)
	assert.Equal(t, 1200, snap.CO.Raw)
	assert.Equal(t, 0.45, snap.CO.Voltage)
	assert.Equal(t, "Moderate", snap.CO.Level)
	require.NotNil(t, snap.CO.Timestamp)
	assert.Equal(t, arrival, *snap.CO.Timestamp)

	// 其余子记录保持默认值
	assert.Nil(t, snap.Flame.Timestamp)
	assert.Nil(t, snap.DHT22.Timestamp)
	assert.Nil(t, snap.PM25.Timestamp)
	assert.Nil(t, snap.SE95.Timestamp)
	assert.Nil(t, snap.AvgTemperature)

	assert.Equal(t, models.StatusOnline, snap.Status)
	require.NotNil(t, snap.LastUpdate)
	assert.Equal(t, arrival, *snap.LastUpdate)
}

func TestApply_MQ7ProducesOneReading(t *testing.T) {
	r := newTestReducer(t)
	arrival := time.Now().UTC()
	payload := []byte(`{"sensor":"mq7","type":"co","raw":800,"voltage":0.25,"level":"Good"}`)

	result, err := r.Apply(testDataTopic, payload, arrival)
	require.NoError(t, err)

	require.Len(t, result.Readings, 1)
	reading := result.Readings[0]
	assert.Equal(t, models.SeriesCOLevel, reading.SeriesKey)
	require.NotNil(t, reading.Value)
	assert.Equal(t, 0.25, *reading.Value)
	assert.Equal(t, "V", reading.Unit)
	assert.Equal(t, "Good", reading.Status)
	assert.Equal(t, string(payload), reading.RawData)
	assert.Empty(t, result.Alerts)
}

func TestApply_DHT22YieldsTwoReadings(t *testing.T) {
	r := newTestReducer(t)
	payload := []byte(`{"sensor":"dht22","type":"temp_humidity","temp":21.5,"humidity":55.0,"tempStatus":"Comfortable","humidStatus":"Comfortable"}`)

	result, err := r.Apply(testDataTopic, payload, time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, result.Readings, 2)
	assert.Equal(t, models.SeriesTemperatureDHT22, result.Readings[0].SeriesKey)
	assert.Equal(t, 21.5, *result.Readings[0].Value)
	assert.Equal(t, "°C", result.Readings[0].Unit)
	assert.Equal(t, models.SeriesHumidity, result.Readings[1].SeriesKey)
	assert.Equal(t, 55.0, *result.Readings[1].Value)
	assert.Equal(t, "%", result.Readings[1].Unit)
}

func TestApply_PM25StoresMicrograms(t *testing.T) {
	r := newTestReducer(t)
	payload := []byte(`{"sensor":"pm25","type":"dust","raw":1500,"voltage":1.2,"dust":0.035,"quality":"Moderate"}`)

	result, err := r.Apply(testDataTopic, payload, time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, result.Readings, 1)
	assert.Equal(t, models.SeriesAirQuality, result.Readings[0].SeriesKey)
	assert.InDelta(t, 35.0, *result.Readings[0].Value, 1e-9)
	assert.Equal(t, "µg/m³", result.Readings[0].Unit)
}

func TestApply_FlameFireProducesAlert(t *testing.T) {
	r := newTestReducer(t)
	payload := []byte(`{"sensor":"flame","type":"ir","detected":true,"status":"FIRE DETECTED"}`)

	result, err := r.Apply(testDataTopic, payload, time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertTypeFire, result.Alerts[0].AlertType)
	assert.Equal(t, models.SeverityCritical, result.Alerts[0].Severity)

	require.Len(t, result.Readings, 1)
	assert.Equal(t, models.SeriesFlame, result.Readings[0].SeriesKey)
	assert.Equal(t, 1.0, *result.Readings[0].Value)
}

func TestApply_MalformedPayloadIsNoOp(t *testing.T) {
	r := newTestReducer(t)
	before := r.Snapshot()

	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type":"co","raw":1}`),                    // 缺 sensor 判别字段
		[]byte(`{"sensor":"unknown","raw":1}`),             // 未知传感器
		[]byte(`{"sensor":"mq7","raw":1}`),                 // mq7 缺必要字段
		[]byte(`{"sensor":"dht22","temp":20}`),             // dht22 缺湿度
		[]byte(`{"sensor":"flame","detected":true}`),       // flame 缺 status
		[]byte(`{"sensor":"se95","status":"Comfortable"}`), // se95 缺温度
	}

	for _, payload := range cases {
		result, err := r.Apply(testDataTopic, payload, time.Now().UTC())
		require.Error(t, err, "payload=%s", payload)
		assert.ErrorIs(t, err, ErrMalformedPayload, "payload=%s", payload)
		assert.Nil(t, result, "payload=%s", payload)
	}

	// 快照完全未变，lastUpdate 未记录
	assert.Equal(t, string(before), string(r.Snapshot()))
}

func TestApply_UnknownTopicRejected(t *testing.T) {
	r := newTestReducer(t)

	result, err := r.Apply("home/other/topic", []byte(`{}`), time.Now().UTC())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTopic)
	assert.Nil(t, result)
}

func TestApply_StatusTopic(t *testing.T) {
	r := newTestReducer(t)

	result, err := r.Apply(testStatusTopic, []byte("online"), time.Now().UTC())
	require.NoError(t, err)
	snap := decodeSnapshot(t, result.SnapshotJSON)
	assert.Equal(t, models.StatusOnline, snap.Status)
	// 状态消息不触碰任何传感器子记录，也不记录 lastUpdate
	assert.Nil(t, snap.LastUpdate)
	assert.Empty(t, result.Readings)

	result, err = r.Apply(testStatusTopic, []byte("offline"), time.Now().UTC())
	require.NoError(t, err)
	snap = decodeSnapshot(t, result.SnapshotJSON)
	assert.Equal(t, models.StatusOffline, snap.Status)
}

func TestApply_StatusTopicInvalidToken(t *testing.T) {
	r := newTestReducer(t)

	_, err := r.Apply(testStatusTopic, []byte("rebooting"), time.Now().UTC())

	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestApply_IdenticalPayloadNotDeduplicated(t *testing.T) {
	r := newTestReducer(t)
	payload := []byte(`{"sensor":"mq7","type":"co","raw":800,"voltage":0.25,"level":"Good"}`)

	first, err := r.Apply(testDataTopic, payload, time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	second, err := r.Apply(testDataTopic, payload, time.Date(2026, 8, 15, 10, 0, 1, 0, time.UTC))
	require.NoError(t, err)

	// 相同读数稍后再来仍是新读数：各产生一条持久化行
	require.Len(t, first.Readings, 1)
	require.Len(t, second.Readings, 1)
}

func applyTemp(t *testing.T, r *Reducer, dhtTemp, se95Temp float64) models.Snapshot {
	t.Helper()
	dht := fmt.Sprintf(`{"sensor":"dht22","type":"temp_humidity","temp":%v,"humidity":50,"tempStatus":"x","humidStatus":"x"}`, dhtTemp)
	se95 := fmt.Sprintf(`{"sensor":"se95","type":"temp","temp":%v,"status":"x"}`, se95Temp)

	_, err := r.Apply(testDataTopic, []byte(dht), time.Now().UTC())
	require.NoError(t, err)
	result, err := r.Apply(testDataTopic, []byte(se95), time.Now().UTC())
	require.NoError(t, err)

	return decodeSnapshot(t, result.SnapshotJSON)
}

func TestAvgTemperature_RequiresBothSources(t *testing.T) {
	r := newTestReducer(t)
	payload := []byte(`{"sensor":"dht22","type":"temp_humidity","temp":22,"humidity":50,"tempStatus":"x","humidStatus":"x"}`)

	result, err := r.Apply(testDataTopic, payload, time.Now().UTC())
	require.NoError(t, err)

	snap := decodeSnapshot(t, result.SnapshotJSON)
	assert.Nil(t, snap.AvgTemperature)
}

func TestAvgTemperature_MeanAndBands(t *testing.T) {
	tests := []struct {
		dht, se95 float64
		wantTemp  float64
		wantBand  string
	}{
		{14.9, 14.9, 14.9, "Cold"},
		{15.0, 15.0, 15.0, "Cool"},
		{19.9, 19.9, 19.9, "Cool"},
		{20.0, 20.0, 20.0, "Comfortable"},
		{24.9, 24.9, 24.9, "Comfortable"},
		{25.0, 25.0, 25.0, "Warm"},
		{29.9, 29.9, 29.9, "Warm"},
		{30.0, 30.0, 30.0, "Hot"},
		{10.0, 30.0, 20.0, "Comfortable"}, // 算术平均
	}

	for _, tt := range tests {
		r := newTestReducer(t)
		snap := applyTemp(t, r, tt.dht, tt.se95)

		require.NotNil(t, snap.AvgTemperature, "dht=%v se95=%v", tt.dht, tt.se95)
		assert.InDelta(t, tt.wantTemp, snap.AvgTemperature.Temp, 1e-9)
		assert.Equal(t, tt.wantBand, snap.AvgTemperature.Status, "avg=%v", tt.wantTemp)
	}
}

func TestCommandMutators(t *testing.T) {
	r := newTestReducer(t)

	snap := decodeSnapshot(t, r.SetPollingRate(5000))
	assert.Equal(t, 5000, snap.PollingRate)

	snap = decodeSnapshot(t, r.SetSensorEnabled("pm25", false))
	assert.False(t, snap.SensorsEnabled.PM25)
	assert.True(t, snap.SensorsEnabled.MQ7)

	snap = decodeSnapshot(t, r.SetIndicator(false))
	assert.False(t, snap.StatusLedEnabled)
}

func TestMarkOffline(t *testing.T) {
	r := newTestReducer(t)

	// 初始就是 offline，不应重复广播
	_, changed := r.MarkOffline()
	assert.False(t, changed)

	_, err := r.Apply(testDataTopic, []byte(`{"sensor":"se95","type":"temp","temp":20,"status":"x"}`), time.Now().UTC())
	require.NoError(t, err)

	data, changed := r.MarkOffline()
	require.True(t, changed)
	snap := decodeSnapshot(t, data)
	assert.Equal(t, models.StatusOffline, snap.Status)
}

// TestApply_ConcurrentNoTornSnapshots 两类传感器并发交错摄入时，
// 广播副本里每个子记录都必须是完整一致的，不允许撕裂。
func TestApply_ConcurrentNoTornSnapshots(t *testing.T) {
	r := newTestReducer(t)

	const iterations = 200
	var wg sync.WaitGroup
	snapshots := make(chan []byte, iterations*2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			payload := fmt.Sprintf(`{"sensor":"mq7","type":"co","raw":%d,"voltage":%d,"level":"L%d"}`, i, i, i)
			result, err := r.Apply(testDataTopic, []byte(payload), time.Now().UTC())
			if err == nil {
				snapshots <- result.SnapshotJSON
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			payload := fmt.Sprintf(`{"sensor":"se95","type":"temp","temp":%d,"status":"S%d"}`, i, i)
			result, err := r.Apply(testDataTopic, []byte(payload), time.Now().UTC())
			if err == nil {
				snapshots <- result.SnapshotJSON
			}
		}
	}()
	wg.Wait()
	close(snapshots)

	for data := range snapshots {
		var snap models.Snapshot
		require.NoError(t, json.Unmarshal(data, &snap))
		// mq7 子记录内部一致：raw、voltage、level 来自同一条读数
		if snap.CO.Timestamp != nil {
			assert.Equal(t, float64(snap.CO.Raw), snap.CO.Voltage)
			assert.Equal(t, fmt.Sprintf("L%d", snap.CO.Raw), snap.CO.Level)
		}
		// se95 子记录内部一致
		if snap.SE95.Timestamp != nil {
			assert.Equal(t, fmt.Sprintf("S%d", int(snap.SE95.Temperature)), snap.SE95.Status)
		}
	}
}
