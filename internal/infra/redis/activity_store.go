package redis

import (
	"context"
	"encoding/json"
	"strconv"

	"competition-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ActivityLogStore keeps the activity history in Redis:
//
//	RPUSH competition:activity:user:{userID} <json>
//	INCR  competition:activity:count:{participationID}
type ActivityLogStore struct {
	client *redis.Client
}

const activityPrefix = "competition:activity:"

func NewActivityLogStore(client *redis.Client) *ActivityLogStore {
	return &ActivityLogStore{client: client}
}

func (s *ActivityLogStore) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, userLogKey(entry.UserID), payload)
	if entry.ParticipationID != nil {
		pipe.Incr(ctx, countKey(*entry.ParticipationID))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *ActivityLogStore) CountForParticipation(ctx context.Context, participationID string) (int, error) {
	raw, err := s.client.Get(ctx, countKey(participationID)).Result()
	if isNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// ForUser returns the user's entries, oldest first.
func (s *ActivityLogStore) ForUser(ctx context.Context, userID string) ([]domain.ActivityLogEntry, error) {
	raw, err := s.client.LRange(ctx, userLogKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActivityLogEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.ActivityLogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *ActivityLogStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, activityPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func userLogKey(userID string) string {
	return activityPrefix + "user:" + userID
}

func countKey(participationID string) string {
	return activityPrefix + "count:" + participationID
}
