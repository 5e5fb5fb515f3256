package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Reserved stream entry fields. Every other field is a message property.
const (
	fieldBody       = "body"
	fieldEnqueuedAt = "enqueued_at"
)

// Dead-letter entry fields
const (
	FieldReason         = "reason"
	FieldDescription    = "description"
	FieldOriginalID     = "original_id"
	FieldDeliveryCount  = "delivery_count"
	FieldDeadLetteredAt = "dead_lettered_at"
)

// RedisStreamConfig holds Redis Streams broker settings
type RedisStreamConfig struct {
	Stream           string
	Group            string
	Consumer         string // defaults to hostname plus a random suffix
	DeadLetterStream string
	LeaseDuration    time.Duration // idle time after which a delivery is reclaimed
	BlockTimeout     time.Duration // blocking read per Receive call
}

// Validate checks required fields and fills defaults
func (c *RedisStreamConfig) Validate() error {
	if c.Stream == "" {
		return errors.New("queue: stream is required")
	}
	if c.Group == "" {
		return errors.New("queue: consumer group is required")
	}
	if c.DeadLetterStream == "" {
		c.DeadLetterStream = c.Stream + ":deadletter"
	}
	if c.DeadLetterStream == c.Stream {
		return errors.New("queue: dead-letter stream must differ from the main stream")
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = 5 * time.Minute
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.Consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "invoicesync"
		}
		c.Consumer = host + "-" + uuid.NewString()[:8]
	}
	return nil
}

// RedisStreamBroker delivers messages from a Redis stream through a consumer
// group. Unsettled deliveries stay in the group's pending list and are
// reclaimed once idle for the lease duration. Abandon marks an entry as
// already idle so it is reclaimed on the next Receive.
type RedisStreamBroker struct {
	client *redis.Client
	config RedisStreamConfig
	logger *zap.Logger

	mu          sync.Mutex
	claimCursor string
}

// Ensure RedisStreamBroker implements Broker and Publisher
var (
	_ Broker    = (*RedisStreamBroker)(nil)
	_ Publisher = (*RedisStreamBroker)(nil)
)

// NewRedisStreamBroker creates the broker and ensures the consumer group
// exists. The broker takes ownership of client.
func NewRedisStreamBroker(ctx context.Context, client *redis.Client, cfg RedisStreamConfig, logger *zap.Logger) (*RedisStreamBroker, error) {
	if client == nil {
		return nil, errors.New("queue: redis client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &RedisStreamBroker{
		client:      client,
		config:      cfg,
		logger:      logger.With(zap.String("stream", cfg.Stream), zap.String("consumer", cfg.Consumer)),
		claimCursor: "0-0",
	}
	if err := b.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Config returns the effective configuration
func (b *RedisStreamBroker) Config() RedisStreamConfig {
	return b.config
}

func (b *RedisStreamBroker) ensureGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.config.Stream, b.config.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("queue: create consumer group %s: %w", b.config.Group, err)
	}
	return nil
}

// Publish appends body to the stream
func (b *RedisStreamBroker) Publish(ctx context.Context, body []byte, properties map[string]string) (string, error) {
	values := make(map[string]any, len(properties)+2)
	for k, v := range properties {
		if k == fieldBody || k == fieldEnqueuedAt {
			continue
		}
		values[k] = v
	}
	values[fieldBody] = body
	values[fieldEnqueuedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.config.Stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("queue: publish: %w", err)
	}
	return id, nil
}

// Receive reclaims one idle delivery if there is any, otherwise reads one new
// entry, blocking up to the configured timeout.
func (b *RedisStreamBroker) Receive(ctx context.Context) (*Message, error) {
	entry, err := b.reclaim(ctx)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry, err = b.readNew(ctx)
		if err != nil {
			return nil, err
		}
	}
	if entry == nil {
		return nil, nil
	}

	count, err := b.deliveryCount(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	return toMessage(*entry, count), nil
}

func (b *RedisStreamBroker) reclaim(ctx context.Context) (*redis.XMessage, error) {
	b.mu.Lock()
	start := b.claimCursor
	b.mu.Unlock()

	msgs, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   b.config.Stream,
		Group:    b.config.Group,
		Consumer: b.config.Consumer,
		MinIdle:  b.config.LeaseDuration,
		Start:    start,
		Count:    1,
	}).Result()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("queue: reclaim: %w", err)
	}

	if next == "" {
		next = "0-0"
	}
	b.mu.Lock()
	b.claimCursor = next
	b.mu.Unlock()

	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

func (b *RedisStreamBroker) readNew(ctx context.Context) (*redis.XMessage, error) {
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.config.Group,
		Consumer: b.config.Consumer,
		Streams:  []string{b.config.Stream, ">"},
		Count:    1,
		Block:    b.config.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("queue: read: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return &streams[0].Messages[0], nil
}

// deliveryCount reads the entry's delivery counter from the pending list
func (b *RedisStreamBroker) deliveryCount(ctx context.Context, id string) (int, error) {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: b.config.Stream,
		Group:  b.config.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: read delivery count for %s: %w", id, err)
	}
	if len(pending) == 0 || pending[0].RetryCount < 1 {
		return 1, nil
	}
	return int(pending[0].RetryCount), nil
}

// Complete acknowledges msg
func (b *RedisStreamBroker) Complete(ctx context.Context, msg *Message) error {
	acked, err := b.client.XAck(ctx, b.config.Stream, b.config.Group, msg.ID).Result()
	if err != nil {
		return fmt.Errorf("queue: complete %s: %w", msg.ID, err)
	}
	if acked == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.ID)
	}
	return nil
}

// Abandon keeps msg pending and sets its idle time to the lease so the next
// reclaim picks it up. The delivery counter is left unchanged.
func (b *RedisStreamBroker) Abandon(ctx context.Context, msg *Message) error {
	err := b.client.Do(ctx, "XCLAIM",
		b.config.Stream, b.config.Group, b.config.Consumer, 0, msg.ID,
		"IDLE", b.config.LeaseDuration.Milliseconds(),
		"JUSTID",
	).Err()
	if err != nil {
		return fmt.Errorf("queue: abandon %s: %w", msg.ID, err)
	}
	return nil
}

// DeadLetter copies msg to the dead-letter stream and acknowledges it in one
// transaction.
func (b *RedisStreamBroker) DeadLetter(ctx context.Context, msg *Message, reason, description string) error {
	values := make(map[string]any, len(msg.Properties)+6)
	for k, v := range msg.Properties {
		values[k] = v
	}
	values[fieldBody] = msg.Body
	values[FieldReason] = reason
	values[FieldDescription] = description
	values[FieldOriginalID] = msg.ID
	values[FieldDeliveryCount] = strconv.Itoa(msg.DeliveryCount)
	values[FieldDeadLetteredAt] = time.Now().UTC().Format(time.RFC3339Nano)

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: b.config.DeadLetterStream, Values: values})
		pipe.XAck(ctx, b.config.Stream, b.config.Group, msg.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue: dead-letter %s: %w", msg.ID, err)
	}

	b.logger.Debug("Message moved to dead-letter stream",
		zap.String("message_id", msg.ID),
		zap.String("dead_letter_stream", b.config.DeadLetterStream),
	)
	return nil
}

// Ping checks the Redis connection
func (b *RedisStreamBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (b *RedisStreamBroker) Close() error {
	return b.client.Close()
}

func toMessage(entry redis.XMessage, deliveryCount int) *Message {
	msg := &Message{
		ID:            entry.ID,
		DeliveryCount: deliveryCount,
		Properties:    make(map[string]string, len(entry.Values)),
	}
	for k, v := range entry.Values {
		s := fmt.Sprint(v)
		switch k {
		case fieldBody:
			msg.Body = []byte(s)
		case fieldEnqueuedAt:
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				msg.EnqueuedAt = t
			}
		default:
			msg.Properties[k] = s
		}
	}
	return msg
}
