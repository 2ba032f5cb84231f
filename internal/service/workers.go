package service

import (
	"context"
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"

	"go.uber.org/zap"
)

// 离线检测周期。阈值本身由 OFFLINE_AFTER_SECONDS 配置。
const stalenessCheckInterval = 5 * time.Second

// persistWorker 按触发顺序消费持久化队列。
// 单写者保证存储时序与归约顺序一致；单条写失败只记录并继续。
func (s *MonitorService) persistWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.persistCh:
			s.processPersistJob(ctx, job)
		}
	}
}

func (s *MonitorService) processPersistJob(ctx context.Context, job persistJob) {
	for i := range job.readings {
		if _, err := s.readingsRepo.Insert(ctx, &job.readings[i]); err != nil {
			s.logger.Error("Failed to persist reading",
				zap.String("series_key", job.readings[i].SeriesKey),
				zap.Error(err),
			)
		}
	}

	for i := range job.alerts {
		id, err := s.alertsRepo.Insert(ctx, &job.alerts[i])
		if err != nil {
			s.logger.Error("Failed to persist alert",
				zap.String("alert_type", job.alerts[i].AlertType),
				zap.Error(err),
			)
		} else {
			job.alerts[i].ID = id
		}

		if s.webhook != nil && job.alerts[i].Severity == models.SeverityCritical {
			if err := s.webhook.Notify(ctx, job.alerts[i]); err != nil {
				s.logger.Warn("Failed to deliver alert webhook", zap.Error(err))
			}
		}
	}

	if s.snapshotCache != nil && job.snapshot != nil {
		if err := s.snapshotCache.Store(ctx, job.snapshot); err != nil {
			s.logger.Warn("Failed to mirror snapshot to redis", zap.Error(err))
		}
	}
}

// retentionLoop 定期清理过期数据：读数无条件删除，报警仅删已确认的。
// 独立于摄入与查询路径运行。
func (s *MonitorService) retentionLoop(ctx context.Context) {
	interval := time.Duration(s.config.Retention.IntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 启动时立即执行一次
	s.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *MonitorService) prune(ctx context.Context) {
	days := s.config.Retention.Days

	readings, err := s.readingsRepo.Prune(ctx, days)
	if err != nil {
		s.logger.Error("Failed to prune readings", zap.Error(err))
	}

	alerts, err := s.alertsRepo.Prune(ctx, days)
	if err != nil {
		s.logger.Error("Failed to prune alerts", zap.Error(err))
	}

	s.logger.Info("Retention prune completed",
		zap.Int("retention_days", days),
		zap.Int64("readings_deleted", readings),
		zap.Int64("alerts_deleted", alerts),
	)
}

// stalenessLoop 超过配置时限没有任何被接受的读数时，将快照标记为 offline 并广播。
// 显式的 offline 状态消息仍由 reducer 直接处理，这里只兜底传输层静默断开的情况。
func (s *MonitorService) stalenessLoop(ctx context.Context) {
	threshold := time.Duration(s.config.Snapshot.OfflineAfter) * time.Second
	if threshold <= 0 {
		return
	}

	ticker := time.NewTicker(stalenessCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := s.reducer.LastUpdate()
			if last == nil || time.Since(*last) < threshold {
				continue
			}
			if snapshot, changed := s.reducer.MarkOffline(); changed {
				s.logger.Warn("No sensor readings received, marking offline",
					zap.Duration("threshold", threshold),
				)
				s.hub.Broadcast(snapshot)
				select {
				case s.persistCh <- persistJob{snapshot: snapshot}:
				default:
				}
			}
		}
	}
}
