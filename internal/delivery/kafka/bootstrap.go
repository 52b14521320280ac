package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/azizikri/referral-claim/internal/config"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

func topicsFor(cfg *config.Config) []string {
	topics := make([]string, 0, len(RequestTopics)*3+1)
	topics = append(topics, RequestTopics...)
	topics = append(topics, RetryTopics...)
	for _, t := range RequestTopics {
		topics = append(topics, t+TopicDLQSuffix)
	}
	return append(topics, replyTopic(cfg.KafkaInstanceID))
}

func replyTopic(instanceID string) string {
	return fmt.Sprintf("%s%s", TopicReplyPrefix, instanceID)
}

func EnsureTopics(ctx context.Context, client *kgo.Client, cfg *config.Config, log *zap.Logger) error {
	adm := kadm.NewClient(client)

	partitions := cfg.TopicPartitions()
	retryPartitions := cfg.RetryPartitions()
	replicationFactor := cfg.ReplicationFactor()

	for _, topic := range topicsFor(cfg) {
		p := partitions
		if strings.HasSuffix(topic, TopicRetrySuffix) || strings.HasSuffix(topic, TopicDLQSuffix) {
			p = retryPartitions
		}

		resp, err := adm.CreateTopics(ctx, int32(p), replicationFactor, nil, topic)
		if err != nil {
			return fmt.Errorf("failed to create topic %s: %w", topic, err)
		}
		for _, detail := range resp {
			if detail.Err != nil && !strings.Contains(detail.Err.Error(), "already exists") {
				return fmt.Errorf("failed to create topic %s: %w", detail.Topic, detail.Err)
			}
		}
	}

	log.Info("all topics ensured")
	return nil
}
