package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redis key布局
const (
	redisSeqKey  = "account:user:seq"     // INCR 自增id
	redisNameKey = "account:user:name:%s" // username -> id
	redisUserKey = "account:user:%d"      // HSET 记录
)

// RedisStore 基于redis的存储, 用户名唯一性由SETNX保证
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", addr)
	}
	return NewRedisStoreClient(client), nil
}

// NewRedisStoreClient 复用已有的客户端
func NewRedisStoreClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	id, err := r.client.Get(ctx, fmt.Sprintf(redisNameKey, username)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get username index")
	}
	cmd := r.client.HGetAll(ctx, fmt.Sprintf(redisUserKey, id))
	if err := cmd.Err(); err != nil {
		return nil, errors.Wrap(err, "redis hgetall user")
	}
	if len(cmd.Val()) == 0 {
		return nil, ErrNotFound
	}
	var u User
	if err := cmd.Scan(&u); err != nil {
		return nil, errors.Wrap(err, "redis scan user")
	}
	return &u, nil
}

func (r *RedisStore) CreateUser(ctx context.Context, u *User) error {
	id, err := r.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return errors.Wrap(err, "redis incr user seq")
	}
	nameKey := fmt.Sprintf(redisNameKey, u.Username)
	ok, err := r.client.SetNX(ctx, nameKey, id, 0).Result()
	if err != nil {
		return errors.Wrap(err, "redis setnx username index")
	}
	if !ok {
		return ErrExists
	}
	_, err = r.client.HSet(ctx, fmt.Sprintf(redisUserKey, id),
		"id", id,
		"username", u.Username,
		"password", u.Password,
		"role", u.Role).Result()
	if err != nil {
		r.client.Del(ctx, nameKey) // 回滚索引
		return errors.Wrap(err, "redis hset user")
	}
	u.ID = id
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
