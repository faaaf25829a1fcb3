// Package store 账号存储
package store

import (
	"context"
	"strings"

	"github.com/cloudapex/mqaccount/conf"
	"github.com/cloudapex/mqaccount/log"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user already exists")
)

// User 账号记录, Password为哈希后的密码
type User struct {
	ID       int64  `json:"id" redis:"id"`
	Username string `json:"username" redis:"username"`
	Password string `json:"password" redis:"password"`
	Role     string `json:"role" redis:"role"`
}

// Store 账号存储接口
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// CreateUser 用户名已存在返回ErrExists, 成功后回填u.ID
	CreateUser(ctx context.Context, u *User) error
	Close() error
}

// Open 按配置选择存储后端
func Open(ctx context.Context, cfg conf.Store) (Store, error) {
	driver := strings.ToLower(cfg.Driver)
	log.Info("account store driver: %s", driver)
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, cfg.DSN)
	}
	return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
}
