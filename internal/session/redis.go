package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix はセッションキーの既定の接頭辞。
const DefaultKeyPrefix = "shoppybot:session"

// RedisStore はRedisにセッションをJSONとして保存するStore実装。
// 放置されたセッションも失効させないため、既定ではTTLを設定しない。
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *slog.Logger
}

// RedisOption はRedisStoreのオプション。
type RedisOption func(*RedisStore)

// WithKeyPrefix はキーの接頭辞を変更する。空文字の場合は既定値のまま。
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithTTL はセッションの有効期限を設定する。0の場合は無期限。
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithLogger はログの出力先を設定する。
func WithLogger(logger *slog.Logger) RedisOption {
	return func(s *RedisStore) { s.logger = logger }
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Get はユーザーのセッションを返す。存在しない場合は空のセッションを返す。
// 保存値を解釈できない場合も空のセッションを返し、次のPutで上書きされる。
func (s *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		s.logger.WarnContext(ctx, "セッションを解釈できないため破棄します",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return New(), nil
	}
	sess.Normalize()
	return sess, nil
}

// Put はユーザーのセッションを保存する。
func (s *RedisStore) Put(ctx context.Context, userID int64, sess *Session) error {
	sess.Normalize()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Ping はRedisへの接続を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(userID int64) string {
	return fmt.Sprintf("%s:%d", s.keyPrefix, userID)
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
