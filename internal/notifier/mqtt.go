package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/models"
)

// triggerMessage 发布到 MQTT 的触发事件消息
type triggerMessage struct {
	Transition string               `json:"transition"` // created, escalated, auto_escalated, cancelled
	Event      *models.TriggerEvent `json:"event"`
	PublishedAt time.Time           `json:"published_at"`
}

// MQTTNotifier 触发事件的 MQTT 通知器（观测路径，尽力而为）
// 发布失败只记录日志，绝不影响触发主流程
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewMQTTNotifier 创建并连接 MQTT 通知器
func NewMQTTNotifier(cfg *config.MQTTConfig, logger *zap.Logger) (*MQTTNotifier, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTNotifier{
		client: client,
		topic:  cfg.Topic,
		logger: logger,
	}, nil
}

// PublishTriggerEvent 发布触发事件状态变更
func (n *MQTTNotifier) PublishTriggerEvent(event *models.TriggerEvent, transition string) {
	payload, err := json.Marshal(triggerMessage{
		Transition:  transition,
		Event:       event,
		PublishedAt: time.Now(),
	})
	if err != nil {
		n.logger.Warn("Failed to marshal trigger message",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}

	token := n.client.Publish(n.topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		n.logger.Warn("Failed to publish trigger event",
			zap.String("event_id", event.EventID),
			zap.String("transition", transition),
			zap.Error(token.Error()),
		)
		return
	}

	n.logger.Debug("Trigger event published",
		zap.String("event_id", event.EventID),
		zap.String("transition", transition),
		zap.String("topic", n.topic),
	)
}

// Close 断开 MQTT 连接
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
