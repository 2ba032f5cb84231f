package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"

	"go.uber.org/zap"
)

// AlertsRepository 报警仓库
// 行写入后不可变，仅 acknowledged 标记可由确认操作更新。
type AlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertsRepository 创建报警仓库
func NewAlertsRepository(db *sql.DB, logger *zap.Logger) *AlertsRepository {
	return &AlertsRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 追加一条报警
func (r *AlertsRepository) Insert(ctx context.Context, alert *models.Alert) (int64, error) {
	query := `
		INSERT INTO alerts (
			timestamp,
			alert_type,
			message,
			severity,
			acknowledged
		) VALUES (
			$1, $2, $3, $4, $5
		)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		alert.Timestamp,
		alert.AlertType,
		alert.Message,
		alert.Severity,
		alert.Acknowledged,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	return id, nil
}

// Recent 最近的报警，按时间降序
func (r *AlertsRepository) Recent(ctx context.Context, limit int) ([]models.Alert, error) {
	query := `
		SELECT id, timestamp, alert_type, message, severity, acknowledged
		FROM alerts
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.AlertType, &a.Message, &a.Severity, &a.Acknowledged); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// Acknowledge 按 id 确认报警，返回是否命中
func (r *AlertsRepository) Acknowledge(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get acknowledged row count: %w", err)
	}

	return affected > 0, nil
}

// Prune 删除早于保留期且已确认的报警。
// 未确认的报警无论多旧都保留。
func (r *AlertsRepository) Prune(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE timestamp < $1 AND acknowledged = TRUE`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get pruned row count: %w", err)
	}

	return deleted, nil
}
