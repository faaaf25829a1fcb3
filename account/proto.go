// Package account 账号操作(register_user / get_user_by_username)
package account

import (
	"github.com/cloudapex/mqaccount/store"
)

// 操作名
const (
	ActionRegisterUser      = "register_user"
	ActionGetUserByUsername = "get_user_by_username"
)

// 默认路由键(版本化)
const (
	RouteRegister = "user.v1.register"
	RouteLogin    = "user.v1.login"
)

// 操作失败时回复中的error
const (
	MsgUsernameRequired = "username is required"
	MsgUserExists       = "User with this username already exists"
	MsgUserNotFound     = "User not found"
	MsgRegistered       = "User registered successfully"
)

// RegisterRequest register_user的data, Password为已哈希的密码
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RegisterReply register_user成功回复
type RegisterReply struct {
	Success string `json:"success"`
}

// UserRequest get_user_by_username的data
type UserRequest struct {
	Username string `json:"username"`
}

// User 账号记录
type User = store.User
