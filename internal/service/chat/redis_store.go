package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
)

const updateRetries = 5

// RedisConfig 描述 Redis 连接参数
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps each conversation as a JSON document plus a sorted index by creation time.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// OpenRedisStore connects to Redis and verifies the connection.
func OpenRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, cfg.KeyPrefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "agora:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) conversationKey(id string) string {
	return s.keyPrefix + "conversation:" + id
}

func (s *RedisStore) indexKey() string {
	return s.keyPrefix + "conversations"
}

func (s *RedisStore) Create(ctx context.Context, conversation chat.Conversation) error {
	if conversation.ID == "" {
		return ErrConversationIDRequired
	}
	data, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.conversationKey(conversation.ID), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(conversation.CreatedAt.UnixNano()),
			Member: conversation.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conversation.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (chat.Conversation, error) {
	if id == "" {
		return chat.Conversation{}, ErrConversationIDRequired
	}
	return s.load(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (chat.Conversation, error) {
	data, err := c.Get(ctx, s.conversationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return chat.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	var conversation chat.Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return chat.Conversation{}, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return conversation, nil
}

func (s *RedisStore) List(ctx context.Context) ([]chat.Conversation, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(ids) == 0 {
		return []chat.Conversation{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.conversationKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	out := make([]chat.Conversation, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// index entry outlived its document
			continue
		}
		var conversation chat.Conversation
		if err := json.Unmarshal([]byte(raw), &conversation); err != nil {
			return nil, fmt.Errorf("failed to decode conversation %s: %w", ids[i], err)
		}
		out = append(out, conversation)
	}
	return out, nil
}

// Update uses WATCH so concurrent writers to the same conversation retry instead of losing messages.
func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*chat.Conversation) error) (chat.Conversation, error) {
	if id == "" {
		return chat.Conversation{}, ErrConversationIDRequired
	}
	key := s.conversationKey(id)

	var updated chat.Conversation
	txn := func(tx *redis.Tx) error {
		conversation, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := mutate(&conversation); err != nil {
			return err
		}
		data, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = conversation
		}
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return chat.Conversation{}, err
		}
		return updated, nil
	}
	return chat.Conversation{}, fmt.Errorf("conversation %s: too many concurrent updates", id)
}
