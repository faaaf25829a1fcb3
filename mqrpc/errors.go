package mqrpc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindDecode      ErrorKind = "decode"      // 消息格式错误,不重试
	KindUnsupported ErrorKind = "unsupported" // 未知action
	KindHandler     ErrorKind = "handler"     // 操作本身失败
	KindTransport   ErrorKind = "transport"   // 发布/连接失败
	KindTimeout     ErrorKind = "timeout"     // 等待回复超时
	KindClosed      ErrorKind = "closed"      // 客户端已关闭
	KindCanceled    ErrorKind = "canceled"    // 调用方取消
)

// 回复中的错误前缀
const (
	InvalidFormatMsg = "Invalid message format"
	UnknownActionMsg = "Unknown action: "
)

var (
	ErrTimeout   = &Error{Kind: KindTimeout, Message: "Timeout waiting for response from consumer"}
	ErrClosed    = &Error{Kind: KindClosed, Message: "rpc client closed"}
	ErrTransport = &Error{Kind: KindTransport, Message: "transport error"}
	ErrDecode    = &Error{Kind: KindDecode, Message: InvalidFormatMsg}

	ErrAlreadySettled = errors.New("mqrpc: delivery already settled")
	ErrNil            = errors.New("mqrpc: nil returned")
)

// Error 调用方观察到的唯一错误类型
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil && e.Message == "" {
		return e.cause.Error()
	}
	return e.Message
}

// Cause github.com/pkg/errors
func (e *Error) Cause() error  { return e.cause }
func (e *Error) Unwrap() error { return e.cause }

// Is 同Kind即相等, errors.Is(err, mqrpc.ErrTimeout)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError 创建错误
func NewError(kind ErrorKind, cause error, format string, a ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), cause: cause}
}

// RemoteError 把回复中的error字段还原为错误
func RemoteError(msg string) *Error {
	switch {
	case strings.HasPrefix(msg, InvalidFormatMsg):
		return &Error{Kind: KindDecode, Message: msg}
	case strings.HasPrefix(msg, UnknownActionMsg):
		return &Error{Kind: KindUnsupported, Message: msg}
	}
	return &Error{Kind: KindHandler, Message: msg}
}

// UnknownAction 未知action错误信息
func UnknownAction(action string) string { return UnknownActionMsg + action }

// KindOf 获取错误分类, 非*Error返回""
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
