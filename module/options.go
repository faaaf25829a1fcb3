package module

import (
	"github.com/cloudapex/mqaccount/mqrpc"
)

// Option 模块配置项
type Option func(*Options)

// Options 模块配置
type Options struct {
	ID           string             // 节点id(默认取settings.ID,为空则随机生成)
	Broker       mqrpc.ServerBroker // 请求队列所在的broker(默认app.Default().Session())
	RpcLog       bool               // 打印每个请求的日志(默认Config.RpcLog)
	MaxCoroutine uint32             // 同时处理的请求数(默认app Options.RPCMaxCoroutine)
}

// ID 节点id
func ID(id string) Option {
	return func(o *Options) {
		o.ID = id
	}
}

// Broker 指定broker
func Broker(b mqrpc.ServerBroker) Option {
	return func(o *Options) {
		o.Broker = b
	}
}

// RpcLog 是否打印请求日志
func RpcLog(on bool) Option {
	return func(o *Options) {
		o.RpcLog = on
	}
}

// MaxCoroutine 同时处理的请求数
func MaxCoroutine(n uint32) Option {
	return func(o *Options) {
		o.MaxCoroutine = n
	}
}
