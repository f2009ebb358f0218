// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"kb-space-go/internal/config"
	"kb-space-go/pkg/events"
	"kb-space-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
// 未启用时 producer 保持为 nil，发布调用会被跳过，便于在没有 Kafka 的环境下运行。
func InitProducer(cfg config.KafkaConfig) {
	if !cfg.Enabled {
		log.Info("Kafka 未启用，工作空间变更事件将不会发布")
		return
	}
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// PublishWorkSpaceEvent 发布一条工作空间变更事件。
// 事件发布是尽力而为的：失败只记录日志，不影响已提交的数据库事务。
func PublishWorkSpaceEvent(ctx context.Context, event events.WorkSpaceEvent) {
	if producer == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("序列化工作空间事件失败: %v", err)
		return
	}

	// 以节点 id 作为消息 key，保证同一节点的事件落到同一分区、保持顺序
	err = producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.WorkSpaceID), 10)),
		Value: payload,
	})
	if err != nil {
		log.Errorf("发布工作空间事件失败: action=%s, workSpaceId=%d, err=%v", event.Action, event.WorkSpaceID, err)
	}
}

// Close 关闭 Kafka 生产者，在服务停机时调用。
func Close() {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
}
