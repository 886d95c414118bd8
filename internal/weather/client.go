package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wisefido-guardian/internal/models"
)

// weatherResponse 天气服务响应
type weatherResponse struct {
	Status       int      `json:"status"`
	Msg          string   `json:"msg"`
	TemperatureC *float64 `json:"temperature_c"`
	Condition    string   `json:"condition"`
}

// Client 天气快照客户端
// 天气属于可选输入，调用方在任何错误下都应以 nil 快照继续评估
type Client struct {
	httpClient *resty.Client
	apiKey     string
	logger     *zap.Logger
}

// NewClient 创建天气客户端
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// GetSnapshot 获取坐标处的当前天气快照
func (c *Client) GetSnapshot(ctx context.Context, lat, lon float64) (*models.WeatherSnapshot, error) {
	var response weatherResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":     fmt.Sprintf("%.6f", lat),
			"lon":     fmt.Sprintf("%.6f", lon),
			"api_key": c.apiKey,
		}).
		SetResult(&response).
		Get("/v1/current")

	if err != nil {
		return nil, fmt.Errorf("failed to call weather API: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode())
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("weather API error: %s (status: %d)", response.Msg, response.Status)
	}

	c.logger.Debug("Weather snapshot retrieved",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.String("condition", response.Condition),
	)

	return &models.WeatherSnapshot{
		TemperatureC: response.TemperatureC,
		Condition:    response.Condition,
	}, nil
}
