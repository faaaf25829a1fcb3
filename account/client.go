package account

import (
	"context"

	"github.com/cloudapex/mqaccount/mqrpc"
)

// ClientOption 客户端配置项
type ClientOption func(*Client)

// Routes 自定义路由键
func Routes(register, login string) ClientOption {
	return func(c *Client) {
		c.registerKey = register
		c.loginKey = login
	}
}

// Client 账号服务的调用方
type Client struct {
	rpc         mqrpc.RPCClient
	registerKey string
	loginKey    string
}

func NewClient(rpc mqrpc.RPCClient, opts ...ClientOption) *Client {
	c := &Client{rpc: rpc, registerKey: RouteRegister, loginKey: RouteLogin}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RegisterUser 调用register_user
func (c *Client) RegisterUser(ctx context.Context, req *RegisterRequest) (*RegisterReply, error) {
	var reply RegisterReply
	if err := mqrpc.Json(&reply, mqrpc.RpcResult(c.rpc.Call(ctx, c.registerKey, ActionRegisterUser, req))); err != nil {
		return nil, err
	}
	return &reply, nil
}

// GetUserByUsername 调用get_user_by_username
func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := mqrpc.Json(&u, mqrpc.RpcResult(c.rpc.Call(ctx, c.loginKey, ActionGetUserByUsername, &UserRequest{Username: username}))); err != nil {
		return nil, err
	}
	return &u, nil
}
