package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const tokenKeyPrefix = "reconnect:"

var ErrTokenNotFound = errors.New("reconnect token not found or expired")

// TokenInfo binds a reconnect token to the exact seat and match instance that
// issued it. Tokens never carry across matches.
type TokenInfo struct {
	RoomCode string `json:"roomCode"`
	Seat     int    `json:"seat"`
	MatchID  string `json:"matchId"`
	UserID   uint   `json:"userId"`
}

// TokenStore keeps reconnect tokens in Redis; the TTL mirrors the grace
// period, so an expired key and an expired grace window agree.
type TokenStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewTokenStore(rdb *redis.Client, logger *zap.Logger) *TokenStore {
	return &TokenStore{rdb: rdb, logger: logger}
}

func (s *TokenStore) Save(ctx context.Context, token string, info TokenInfo, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, tokenKeyPrefix+token, infoJSON, ttl).Err(); err != nil {
		s.logger.Error("Error storing reconnect token", zap.Error(err))
		return err
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, token string) (TokenInfo, error) {
	var info TokenInfo
	if s == nil || s.rdb == nil {
		return info, ErrTokenNotFound
	}
	infoJSON, err := s.rdb.Get(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return info, ErrTokenNotFound
		}
		return info, err
	}
	if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
		return info, err
	}
	return info, nil
}

// Delete consumes a token; single use is enforced here and by the per-room
// event loop.
func (s *TokenStore) Delete(ctx context.Context, token string) {
	if s == nil || s.rdb == nil || token == "" {
		return
	}
	if err := s.rdb.Del(ctx, tokenKeyPrefix+token).Err(); err != nil {
		s.logger.Error("Error deleting reconnect token", zap.Error(err))
	}
}
