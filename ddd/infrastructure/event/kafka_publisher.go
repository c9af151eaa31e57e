package event

import (
	"context"
	"encoding/json"
	"fmt"

	"media-service/ddd/domain/gateway"
	"media-service/pkg/logger"
)

// Producer 发送单条消息，*kafka.Client 满足该接口
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher 将产物事件写入 Kafka，key 为首个产物 key，保证同一对象的事件有序
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishArtifactsStored(ctx context.Context, e gateway.ArtifactsStoredEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal artifacts stored event: %w", err)
	}
	key := partitionKey(e)
	if err := p.producer.Produce(ctx, p.topic, []byte(key), value); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	logger.WithContext(ctx).Debug("artifacts stored event published", map[string]interface{}{
		"topic": p.topic,
		"key":   key,
	})
	return nil
}

func partitionKey(e gateway.ArtifactsStoredEvent) string {
	switch {
	case e.PlaylistKey != "":
		return e.PlaylistKey
	case e.ImageKey != "":
		return e.ImageKey
	default:
		return e.SourceURL
	}
}
