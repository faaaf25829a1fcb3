package account

import (
	"context"

	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/mqrpc"
	"github.com/cloudapex/mqaccount/store"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Handlers 账号操作处理
type Handlers struct {
	store store.Store
}

func NewHandlers(s store.Store) *Handlers {
	return &Handlers{store: s}
}

// RegisterTo 把全部操作注册到服务上
func (h *Handlers) RegisterTo(r interface {
	Register(action string, f mqrpc.Handler)
}) {
	r.Register(ActionRegisterUser, h.RegisterUser)
	r.Register(ActionGetUserByUsername, h.GetUserByUsername)
}

// RegisterUser 创建账号, 用户名已存在时失败
func (h *Handlers) RegisterUser(ctx context.Context, data jsoniter.RawMessage) (any, error) {
	span := log.ContextValueTrace(ctx)

	var req RegisterRequest
	if err := mqrpc.Bind(data, &req); err != nil {
		return nil, err
	}
	if req.Username == "" {
		return nil, errors.New(MsgUsernameRequired)
	}
	log.TInfo(span, "Processing register request for user: %s", req.Username)

	err := h.store.CreateUser(ctx, &store.User{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if errors.Is(err, store.ErrExists) {
		log.TWarning(span, "register: username %s already exists", req.Username)
		return nil, errors.New(MsgUserExists)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return &RegisterReply{Success: MsgRegistered}, nil
}

// GetUserByUsername 按用户名查询账号记录
func (h *Handlers) GetUserByUsername(ctx context.Context, data jsoniter.RawMessage) (any, error) {
	span := log.ContextValueTrace(ctx)

	var req UserRequest
	if err := mqrpc.Bind(data, &req); err != nil {
		return nil, err
	}
	if req.Username == "" {
		return nil, errors.New(MsgUsernameRequired)
	}
	log.TInfo(span, "Processing login request for user: %s", req.Username)

	u, err := h.store.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		log.TWarning(span, "User not found: %s", req.Username)
		return nil, errors.New(MsgUserNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}
