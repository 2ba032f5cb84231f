package bucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestAdaptiveMinutes(t *testing.T) {
	tests := []struct {
		hours float64
		want  int
	}{
		{0.0833, 0}, // 5 分钟窗口：原始数据
		{0.25, 0},
		{0.5, 1},
		{1, 1},
		{6, 5},
		{24, 15},
		{168, 60}, // 1 周
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AdaptiveMinutes(tt.hours), "hours=%v", tt.hours)
	}
}

func TestAggregate_RawPassthrough(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	points := []Point{
		{Timestamp: base, Value: fp(1), Status: "Good"},
		{Timestamp: base.Add(10 * time.Second), Value: fp(2), Status: "Good"},
		{Timestamp: base.Add(20 * time.Second), Value: fp(3), Status: "Moderate"},
	}

	out := Aggregate(points, 0)

	require.Len(t, out, 3)
	assert.Equal(t, points, out)
}

func TestAggregate_SingleBucketMean(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	points := []Point{
		{Timestamp: base, Value: fp(10), Status: "Good"},
		{Timestamp: base.Add(20 * time.Second), Value: fp(20), Status: "Good"},
		{Timestamp: base.Add(40 * time.Second), Value: fp(30), Status: "Good"},
	}

	out := Aggregate(points, 1)

	require.Len(t, out, 1)
	require.NotNil(t, out[0].Value)
	assert.Equal(t, 20.0, *out[0].Value)
	assert.Equal(t, "Good", out[0].Status)
	// 桶时间戳为 floor 到桶起点
	assert.Equal(t, base, out[0].Timestamp)
}

func TestAggregate_BucketFloorTimestamp(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 7, 33, 0, time.UTC)
	out := Aggregate([]Point{{Timestamp: ts, Value: fp(5)}}, 5)

	require.Len(t, out, 1)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC), out[0].Timestamp)
}

func TestAggregate_MultipleBucketsAscending(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	points := []Point{
		{Timestamp: base, Value: fp(1)},
		{Timestamp: base.Add(30 * time.Second), Value: fp(3)},
		{Timestamp: base.Add(90 * time.Second), Value: fp(10)},
		{Timestamp: base.Add(150 * time.Second), Value: fp(20)},
	}

	out := Aggregate(points, 1)

	require.Len(t, out, 3)
	assert.Equal(t, 2.0, *out[0].Value)
	assert.Equal(t, 10.0, *out[1].Value)
	assert.Equal(t, 20.0, *out[2].Value)
	assert.True(t, out[0].Timestamp.Before(out[1].Timestamp))
	assert.True(t, out[1].Timestamp.Before(out[2].Timestamp))
}

func TestAggregate_NullValuesExcludedFromMean(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	points := []Point{
		{Timestamp: base, Value: fp(10), Status: "Good"},
		{Timestamp: base.Add(10 * time.Second), Value: nil, Status: "Moderate"},
		{Timestamp: base.Add(20 * time.Second), Value: fp(20), Status: "Good"},
	}

	out := Aggregate(points, 1)

	require.Len(t, out, 1)
	assert.Equal(t, 15.0, *out[0].Value)
}

func TestAggregate_AllNullBucketOmitted(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	points := []Point{
		{Timestamp: base, Value: nil, Status: "Good"},
		{Timestamp: base.Add(10 * time.Second), Value: nil, Status: "Good"},
		{Timestamp: base.Add(2 * time.Minute), Value: fp(7), Status: "Good"},
	}

	out := Aggregate(points, 1)

	// 全 null 的桶整体省略，不输出 null 点
	require.Len(t, out, 1)
	assert.Equal(t, 7.0, *out[0].Value)
}

func TestAggregate_StatusDeduplicated(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	points := []Point{
		{Timestamp: base, Value: fp(1), Status: "Good"},
		{Timestamp: base.Add(10 * time.Second), Value: fp(2), Status: "Moderate"},
		{Timestamp: base.Add(20 * time.Second), Value: fp(3), Status: "Good"},
	}

	out := Aggregate(points, 1)

	require.Len(t, out, 1)
	assert.Equal(t, "Good,Moderate", out[0].Status)
}

func TestAggregate_Empty(t *testing.T) {
	out := Aggregate(nil, 5)
	assert.Empty(t, out)
}
