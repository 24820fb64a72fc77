// Package pubsub provides a task queue backed by Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/zap"

	"storyvault/internal/archive"
)

// Config identifies the Pub/Sub topic and subscription used for crawl tasks.
type Config struct {
	ProjectID      string
	TopicID        string
	SubscriptionID string
}

// Queue publishes crawl tasks to a topic and pulls them from a subscription.
type Queue struct {
	client *pubsub.Client
	cfg    Config
	logger *zap.Logger

	items chan archive.TaskItem

	startOnce sync.Once
	stop      context.CancelFunc
}

func fullTopicName(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

func fullSubscriptionName(projectID, subID string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
}

// New creates a Pub/Sub client and verifies the topic is active. It
// authenticates using Application Default Credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
		Topic: fullTopicName(cfg.ProjectID, cfg.TopicID),
	})
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("closing pubsub client after topic lookup failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get pubsub topic %q: %w", cfg.TopicID, err)
	}
	if topic.State != pubsubpb.Topic_ACTIVE {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("closing pubsub client after topic state check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q is not active", cfg.TopicID)
	}

	return &Queue{
		client: client,
		cfg:    cfg,
		logger: logger,
		items:  make(chan archive.TaskItem, 16),
	}, nil
}

// Enqueue publishes one task and waits for the server acknowledgement.
func (q *Queue) Enqueue(ctx context.Context, item archive.TaskItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal task item: %w", err)
	}
	publisher := q.client.Publisher(fullTopicName(q.cfg.ProjectID, q.cfg.TopicID))
	result := publisher.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish task item: %w", err)
	}
	return nil
}

// Dequeue returns the next pulled task, starting the subscription receiver on
// first use.
func (q *Queue) Dequeue(ctx context.Context) (archive.TaskItem, error) {
	q.startOnce.Do(q.startReceiver)

	select {
	case <-ctx.Done():
		return archive.TaskItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item := <-q.items:
		return item, nil
	}
}

func (q *Queue) startReceiver() {
	recvCtx, cancel := context.WithCancel(context.Background())
	q.stop = cancel

	subscriber := q.client.Subscriber(fullSubscriptionName(q.cfg.ProjectID, q.cfg.SubscriptionID))
	go func() {
		err := subscriber.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			var item archive.TaskItem
			if err := json.Unmarshal(msg.Data, &item); err != nil {
				q.logger.Warn("dropping malformed task message", zap.Error(err))
				msg.Ack()
				return
			}
			select {
			case q.items <- item:
				msg.Ack()
			case <-recvCtx.Done():
				msg.Nack()
			}
		})
		if err != nil && recvCtx.Err() == nil {
			q.logger.Error("pubsub receive stopped", zap.Error(err))
		}
	}()
}

// Close stops the receiver and closes the underlying client.
func (q *Queue) Close() error {
	if q.stop != nil {
		q.stop()
	}
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
