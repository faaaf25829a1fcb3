package app

import (
	"github.com/cloudapex/mqaccount/conf"
	"github.com/cloudapex/mqaccount/mqrpc"
	rpcbase "github.com/cloudapex/mqaccount/mqrpc/base"
	"github.com/nats-io/nats.go"
)

// IApp 应用定义
type IApp interface {
	OnInit() error
	OnDestroy() error

	Run(mods ...IModule) error

	// Config 获取启动配置
	Config() conf.Config

	// Options 获取应用配置
	Options() Options
	// Transporter 获取消息传输对象
	Transporter() *nats.Conn
	// Session 获取broker会话(exchange/queue/reply)
	Session() *rpcbase.NatsSession
	// RPCClient 获取进程内共享的RPC客户端(首次调用时创建)
	RPCClient() (mqrpc.RPCClient, error)
	// WorkDir 获取进程工作目录
	WorkDir() string
	// GetProcessEnv 获取应用进程分组ID(dev,test,...)
	GetProcessEnv() string

	// UpdateOptions 允许再次更新应用配置(before app.Run)
	UpdateOptions(opts ...Option) error

	// 回调(hook)
	OnConfigurationLoaded(func()) error        // 设置应用启动配置初始化完成后回调
	OnModuleInited(func(module IModule)) error // 设置每个模块初始化完成后回调
	GetModuleInited() func(module IModule)     // 获取每个模块初始化完成后回调函数
	OnStartup(func()) error                    // 设置应用启动完成后回调
}

// IModule 基本模块定义
type IModule interface {
	GetType() string // 模块类型
	Version() string // 模块版本

	Run(closeSig chan bool)

	OnInit(settings *conf.ModuleSettings) // 所有初始化逻辑都放到Init中, 重载OnInit不可调用基类!(由Init层层调用base.Init)即可
	OnDestroy()
	OnAppConfigurationLoaded()                   // 当App初始化时调用，这个接口不管这个模块是否在这个进程运行都会调用
	OnConfChanged(settings *conf.ModuleSettings) // 为以后动态配置做准备(目前没用)
}

// IRPCModule RPC模块定义(消费请求队列)
type IRPCModule interface {
	IModule

	// 模块服务ID
	GetServerID() string
	GetModuleSettings() (settings *conf.ModuleSettings)

	// 注册操作(必须在Run之前)
	Register(action string, f mqrpc.Handler)
}

// FileNameHandler 自定义日志文件名字
type FileNameHandler func(logdir, prefix, processID, suffix string) string

// ServerRPCHandler 服务方RPC监控
type ServerRPCHandler func(module IModule, callInfo *mqrpc.CallInfo)
