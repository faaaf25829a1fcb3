// Package mqrpc rpc接口定义
package mqrpc

import (
	"context"

	"github.com/cloudapex/mqaccount/mqrpc/core"
	jsoniter "github.com/json-iterator/go"
)

// Message 要发布到broker的一条消息
type Message struct {
	RoutingKey    string
	Body          []byte
	CorrelationID string
	ReplyTo       string // 为空表示不需要回复
	Trace         []byte
}

// Delivery 从broker收到的一条消息, 必须且只能被Ack或Reject一次
type Delivery interface {
	RoutingKey() string
	Body() []byte
	CorrelationID() string
	ReplyTo() string
	Trace() []byte

	Ack() error    // 处理成功,从broker永久移除
	Reject() error // 处理失败,丢弃且不重新投递
}

// DeliveryHandler 消息处理回调
type DeliveryHandler func(d Delivery)

// Subscription 消费订阅
type Subscription interface {
	Stop() error
}

// Publisher 发布者(必须并发安全)
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// ClientBroker RPC调用方需要的broker能力
type ClientBroker interface {
	Publisher
	ReplyTo() string // 本实例独占的回复地址
	ConsumeReplies(handler DeliveryHandler) (Subscription, error)
}

// ServerBroker RPC服务方需要的broker能力
type ServerBroker interface {
	Publisher
	ConsumeRequests(ctx context.Context, handler DeliveryHandler) (Subscription, error)
}

// Handler 操作处理函数, data为请求中的data字段
type Handler func(ctx context.Context, data jsoniter.RawMessage) (any, error)

// CallInfo RPC的请求信息
type CallInfo struct {
	RPCInfo  *core.RequestInfo
	Result   *core.ResultInfo
	ExecTime int64
}

// RPCListener 事件监听器
type RPCListener interface {
	/**
	BeforeHandle会对请求做一些前置处理,如:打印统计日志等。
	return error  当error不为nil时将直接返回该错误信息而不会再执行后续调用
	*/
	BeforeHandle(action string, callInfo *CallInfo) error
	OnError(action string, callInfo *CallInfo, err error)
	/**
	action 		操作名
	result		执行结果
	execTime 	方法执行时间 单位为 Nano 纳秒
	*/
	OnComplete(action string, callInfo *CallInfo, result *core.ResultInfo, execTime int64)
}

// GoroutineControl 服务协程数量控制
type GoroutineControl interface {
	Wait() error
	WaitContext(ctx context.Context) error
	Finish()
}

// RPCServer 服务定义
type RPCServer interface {
	SetListener(listener RPCListener)
	SetGoroutineControl(control GoroutineControl)
	GetExecuting() int64
	Register(action string, f Handler) // 注册操作(必须在Start之前)
	Start(ctx context.Context) error
	Done() (err error)
}

// RPCClient 客户端定义
type RPCClient interface {
	Call(ctx context.Context, routingKey, action string, data any) ([]byte, error) // 等待回复
	CallNR(ctx context.Context, routingKey, action string, data any) error        // 无需回复
	Pending() int
	Done() (err error)
}
