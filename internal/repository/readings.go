package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/bucket"
	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"

	"go.uber.org/zap"
)

// ReadingsRepository 传感器读数时序仓库（append-only）
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository 创建读数仓库
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 追加一条读数
func (r *ReadingsRepository) Insert(ctx context.Context, reading *models.StoredReading) (int64, error) {
	query := `
		INSERT INTO sensor_readings (
			timestamp,
			series_key,
			value,
			unit,
			status,
			raw_data
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		reading.Timestamp,
		reading.SeriesKey,
		reading.Value,
		reading.Unit,
		reading.Status,
		reading.RawData,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to insert sensor reading: %w", err)
	}

	return id, nil
}

// QueryWindow 查询窗口内的原始点，按时间升序。
// hours 可为小数（如 0.0833 表示 5 分钟）。
func (r *ReadingsRepository) QueryWindow(ctx context.Context, seriesKey string, hours float64) ([]bucket.Point, error) {
	since := time.Now().UTC().Add(-time.Duration(hours * float64(time.Hour)))

	query := `
		SELECT timestamp, value, status
		FROM sensor_readings
		WHERE series_key = $1
		  AND timestamp >= $2
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, seriesKey, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor readings: %w", err)
	}
	defer rows.Close()

	var points []bucket.Point
	for rows.Next() {
		var p bucket.Point
		var value sql.NullFloat64
		var status sql.NullString
		if err := rows.Scan(&p.Timestamp, &value, &status); err != nil {
			return nil, fmt.Errorf("failed to scan sensor reading: %w", err)
		}
		if value.Valid {
			v := value.Float64
			p.Value = &v
		}
		if status.Valid {
			p.Status = status.String
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensor readings: %w", err)
	}

	return points, nil
}

// History 带自适应分桶的历史查询。
// bucketMinutes == nil 时按窗口长度自适应选择粒度；0 为原始数据哨兵值。
func (r *ReadingsRepository) History(ctx context.Context, seriesKey string, hours float64, bucketMinutes *int) ([]bucket.Point, error) {
	minutes := bucket.AdaptiveMinutes(hours)
	if bucketMinutes != nil {
		minutes = *bucketMinutes
	}

	points, err := r.QueryWindow(ctx, seriesKey, hours)
	if err != nil {
		return nil, err
	}

	return bucket.Aggregate(points, minutes), nil
}

// Statistics 窗口内未分桶统计（min/max/avg/count，null 值不计入聚合）
func (r *ReadingsRepository) Statistics(ctx context.Context, seriesKey string, hours float64) (*models.SeriesStats, error) {
	since := time.Now().UTC().Add(-time.Duration(hours * float64(time.Hour)))

	query := `
		SELECT
			MIN(value) AS min,
			MAX(value) AS max,
			AVG(value) AS avg,
			COUNT(*) AS count
		FROM sensor_readings
		WHERE series_key = $1
		  AND timestamp >= $2
	`

	var stats models.SeriesStats
	var min, max, avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, seriesKey, since).Scan(&min, &max, &avg, &stats.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}

	if min.Valid {
		stats.Min = &min.Float64
	}
	if max.Valid {
		stats.Max = &max.Float64
	}
	if avg.Valid {
		stats.Avg = &avg.Float64
	}

	return &stats, nil
}

// Prune 删除早于保留期的读数，返回删除行数
func (r *ReadingsRepository) Prune(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sensor_readings WHERE timestamp < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sensor readings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get pruned row count: %w", err)
	}

	return deleted, nil
}
