// Package bucket 实现历史查询的时间分桶聚合。
// 聚合是纯函数，独立于存储引擎，分桶边界算法可单独测试。
package bucket

import (
	"strings"
	"time"
)

// Point 一个时序采样点（原始行或聚合结果）
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     *float64  `json:"value"`
	Status    string    `json:"status"`
}

// AdaptiveMinutes 根据查询窗口长度选择聚合粒度（分钟）
// 0 表示不聚合（原始数据）。粒度表与前端图表点数预期对齐：
// 1h≈60点、6h≈72点、24h≈96点、1 周≈168点。
func AdaptiveMinutes(hours float64) int {
	switch {
	case hours <= 0.25:
		return 0
	case hours <= 1:
		return 1
	case hours <= 6:
		return 5
	case hours <= 24:
		return 15
	default:
		return 60
	}
}

// Aggregate 将按时间升序排列的原始点按 bucketMinutes 分桶。
// 每桶取数值的算术平均（null 不计入），桶时间戳为桶起点（floor）。
// 没有任何数值的桶整体省略，不输出 null 点。
// status 为桶内出现过的不同状态标签去重后按首次出现顺序以逗号连接，
// 仅用于前端着色，属于有损摘要。
// bucketMinutes <= 0 时原样返回（原始数据模式）。
func Aggregate(points []Point, bucketMinutes int) []Point {
	if bucketMinutes <= 0 {
		return points
	}

	width := int64(bucketMinutes) * 60

	type group struct {
		sum      float64
		count    int
		statuses []string
		seen     map[string]bool
	}

	var order []int64
	groups := make(map[int64]*group)

	for _, p := range points {
		b := p.Timestamp.Unix() / width
		g, ok := groups[b]
		if !ok {
			g = &group{seen: make(map[string]bool)}
			groups[b] = g
			order = append(order, b)
		}
		if p.Value != nil {
			g.sum += *p.Value
			g.count++
		}
		if p.Status != "" && !g.seen[p.Status] {
			g.seen[p.Status] = true
			g.statuses = append(g.statuses, p.Status)
		}
	}

	out := make([]Point, 0, len(order))
	for _, b := range order {
		g := groups[b]
		if g.count == 0 {
			continue
		}
		avg := g.sum / float64(g.count)
		out = append(out, Point{
			Timestamp: time.Unix(b*width, 0).UTC(),
			Value:     &avg,
			Status:    strings.Join(g.statuses, ","),
		})
	}

	return out
}
