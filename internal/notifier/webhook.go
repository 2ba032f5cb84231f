// Package notifier 将 critical 级报警推送到外部 webhook。
// 推送在持久化工作协程内进行，失败只记录，不重入摄入路径。
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/zOnlyKroks/Feuermelder-HSBI/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier 报警 webhook 推送器
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建推送器
func NewWebhookNotifier(url string, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Notify 推送一条报警
func (n *WebhookNotifier) Notify(ctx context.Context, alert models.Alert) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post(n.url)

	if err != nil {
		return fmt.Errorf("failed to post alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}

	n.logger.Info("Alert webhook delivered",
		zap.String("alert_type", alert.AlertType),
		zap.String("severity", alert.Severity),
	)

	return nil
}
