package consumer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"body-metrics/internal/models"
)

// HAState Home Assistant 实体状态响应
type HAState struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastUpdated string `json:"last_updated"`
}

// RESTPoller Home Assistant REST 轮询器
// MQTT 之外的备用采集通道，定期拉取实体状态写入缓存
type RESTPoller struct {
	httpClient *resty.Client
	cache      *SensorCache
	entities   []string
	interval   time.Duration
	logger     *zap.Logger
}

// NewRESTPoller 创建 REST 轮询器
func NewRESTPoller(
	baseURL, token string,
	interval time.Duration,
	cache *SensorCache,
	entries []models.ScaleEntry,
	logger *zap.Logger,
) *RESTPoller {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if token != "" {
		client.SetHeader("Authorization", "Bearer "+token)
	}

	return &RESTPoller{
		httpClient: client,
		cache:      cache,
		entities:   collectTopics(entries),
		interval:   interval,
		logger:     logger,
	}
}

// Start 启动轮询循环
func (p *RESTPoller) Start(ctx context.Context) error {
	p.logger.Info("REST poller started",
		zap.Int("entity_count", len(p.entities)),
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("REST poller stopped")
			return nil
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

// pollOnce 拉取所有实体的当前状态
func (p *RESTPoller) pollOnce() {
	for _, entityID := range p.entities {
		state, err := p.fetchState(entityID)
		if err != nil {
			p.logger.Warn("Failed to fetch entity state",
				zap.String("entity_id", entityID),
				zap.Error(err),
			)
			continue
		}
		p.cache.Update(entityID, state.State)
	}
}

// fetchState 调用 HA states API 获取单个实体
func (p *RESTPoller) fetchState(entityID string) (*HAState, error) {
	var state HAState
	resp, err := p.httpClient.R().
		SetResult(&state).
		Get("/api/states/" + entityID)

	if err != nil {
		return nil, fmt.Errorf("failed to call states API: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("states API returned status %d for %s", resp.StatusCode(), entityID)
	}

	return &state, nil
}
