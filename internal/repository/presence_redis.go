package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"doc-tracker/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore 每个文档一个有序集合，score 为最后心跳的毫秒时间戳，
// 页码和会话放在同名的 hash 里
type RedisPresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPresenceStore(client *redis.Client, ttl time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{client: client, ttl: ttl}
}

func presenceKey(documentID uint) string {
	return "presence:doc:" + strconv.FormatUint(uint64(documentID), 10)
}

func presenceMetaKey(documentID uint) string {
	return presenceKey(documentID) + ":meta"
}

type presenceMeta struct {
	ShareID    uint   `json:"share_id"`
	SessionID  string `json:"session_id"`
	PageNumber int    `json:"page_number"`
}

func (s *RedisPresenceStore) Touch(ctx context.Context, p model.Presence) error {
	meta, err := json.Marshal(presenceMeta{ShareID: p.ShareID, SessionID: p.SessionID, PageNumber: p.PageNumber})
	if err != nil {
		return err
	}

	key := presenceKey(p.DocumentID)
	metaKey := presenceMetaKey(p.DocumentID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(p.LastSeenAt.UnixMilli()), Member: p.ViewerID})
	pipe.HSet(ctx, metaKey, p.ViewerID, meta)
	// 整个文档一段时间没人访问时键自动过期
	pipe.Expire(ctx, key, 2*s.ttl)
	pipe.Expire(ctx, metaKey, 2*s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to touch presence: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) Active(ctx context.Context, documentID uint, since time.Time) ([]model.Presence, error) {
	key := presenceKey(documentID)
	min := strconv.FormatInt(since.UnixMilli(), 10)

	// 先清掉过期成员
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", "("+min).Err(); err != nil {
		return nil, err
	}
	members, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: min, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	fields := make([]string, len(members))
	for i, m := range members {
		fields[i] = m.Member.(string)
	}
	metas, err := s.client.HMGet(ctx, presenceMetaKey(documentID), fields...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]model.Presence, 0, len(members))
	// 按最近心跳倒序
	for i := len(members) - 1; i >= 0; i-- {
		p := model.Presence{
			ViewerID:   fields[i],
			DocumentID: documentID,
			LastSeenAt: time.UnixMilli(int64(members[i].Score)),
		}
		if raw, ok := metas[i].(string); ok {
			var meta presenceMeta
			if json.Unmarshal([]byte(raw), &meta) == nil {
				p.ShareID = meta.ShareID
				p.SessionID = meta.SessionID
				p.PageNumber = meta.PageNumber
			}
		}
		result = append(result, p)
	}
	return result, nil
}
