// Package mqaccount 基于消息队列请求/回复的账号服务
package mqaccount

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cloudapex/mqaccount/app"
	"github.com/cloudapex/mqaccount/conf"
	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/module"
	"github.com/cloudapex/mqaccount/mqrpc"
	rpcbase "github.com/cloudapex/mqaccount/mqrpc/base"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// CreateApp 创建应用
func CreateApp(opts ...app.Option) app.IApp {
	return app.Default(&DefaultApp{
		opts:    app.NewOptions(opts...),
		manager: module.NewModuleManager(),
	})
}

// DefaultApp 默认应用
type DefaultApp struct {
	opts app.Options

	manager *module.ModuleManager
	session *rpcbase.NatsSession

	clientMu sync.Mutex
	client   *rpcbase.RPCClient

	// 回调方法:
	onConfigurationLoaded func()                   // 应用启动配置初始化完成后回调
	onModuleInited        func(module app.IModule) // 每个模块初始化完成后回调
	onStartup             func()                   // 应用启动完成后回调
}

// initConfig 初始化 config(本地文件 > consul > 默认配置+环境变量)
func (this *DefaultApp) initConfig() error {
	if this.opts.ConfPath != "" {
		return conf.LoadConfig(this.opts.ConfPath)
	}
	if len(this.opts.ConsulAddr) != 0 {
		return conf.LoadConsul(this.opts.ConsulAddr[0], this.opts.ConfigKey)
	}
	cfg := conf.Default()
	if err := conf.Parse(strings.NewReader(""), &cfg); err != nil {
		return errors.Wrap(err, "parse config from env")
	}
	conf.Conf = cfg
	return nil
}

// initLogs 初始化 logs
func (this *DefaultApp) initLogs() error {
	log.Init(
		log.WithDebug(this.opts.Debug),
		log.WithProcessID(this.opts.ProcessEnv),
		log.WithLogDir(this.opts.LogDir),
		log.WithLogFileName(this.opts.LogFileName),
		log.WithLogSetting(conf.Conf.Log))
	return nil
}

// initNats 初始化 nats会话并声明exchange
func (this *DefaultApp) initNats() error {
	c := conf.Conf
	opts := []rpcbase.SessionOption{
		rpcbase.Name(fmt.Sprintf("mqaccount-%s-%d", this.opts.ProcessEnv, os.Getpid())),
		rpcbase.Reconnect(c.Nats.MaxReconnects, c.Nats.ReconnectWait.Std()),
		rpcbase.Exchange(c.Broker.Exchange, c.Broker.RoutingKeys...),
		rpcbase.Queue(c.Broker.Queue, c.Broker.Prefetch),
	}
	if this.opts.Nats != nil {
		opts = append(opts, rpcbase.Conn(this.opts.Nats))
	} else {
		opts = append(opts, rpcbase.Addrs(strings.Split(c.Nats.Addr, ",")...))
	}
	s, err := rpcbase.NewNatsSession(opts...)
	if err != nil {
		return errors.Wrap(err, "initNats")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.DeclareExchange(ctx); err != nil {
		s.Close()
		return errors.Wrap(err, "initNats")
	}
	this.session = s
	this.opts.Nats = s.Conn()
	log.Info("nats addr:%s exchange:%s routingKeys:%v", c.Nats.Addr, c.Broker.Exchange, c.Broker.RoutingKeys)
	return nil
}

// OnInit 初始化(初始化modules之前执行)
func (this *DefaultApp) OnInit() error { return nil }

// OnDestroy 应用退出
func (this *DefaultApp) OnDestroy() error {
	this.manager.Destroy()

	this.clientMu.Lock()
	if this.client != nil {
		_ = this.client.Done()
	}
	this.clientMu.Unlock()

	if this.session != nil {
		return this.session.Close()
	}
	return nil
}

// Run 运行应用
func (this *DefaultApp) Run(mods ...app.IModule) error {
	// init config
	if err := this.initConfig(); err != nil {
		return err
	}

	// init log
	if err := this.initLogs(); err != nil {
		return err
	}

	// callback
	if this.onConfigurationLoaded != nil {
		this.onConfigurationLoaded()
	}

	// init nats
	if err := this.initNats(); err != nil {
		return err
	}

	// start modules
	log.Info("mqaccount %v starting...", this.opts.Version)

	// 1 Register
	for i := 0; i < len(mods); i++ {
		mods[i].OnAppConfigurationLoaded()
		this.manager.Register(mods[i])
	}
	this.OnInit() // 初始化modules之前回调(重载)

	// 2 init modules
	this.manager.Init(conf.Conf, this.opts.ProcessEnv)

	// 3 startup callback
	if this.onStartup != nil {
		this.onStartup() // 初始化modules之后回调
	}
	log.Info("mqaccount %v started, modules %v", this.opts.Version, this.manager.Running())

	// close
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.Sync()

	//如果一分钟都关不了则强制关闭
	timeout := time.NewTimer(this.opts.KillWaitTTL)
	wait := make(chan struct{})
	go func() {
		this.OnDestroy()
		wait <- struct{}{}
	}()
	select {
	case <-timeout.C:
		panic(fmt.Sprintf("mqaccount close timeout (signal: %v)", sig))
	case <-wait:
		log.Info("mqaccount closing down (signal: %v)", sig)
	}
	log.Sync()
	return nil
}

// Config 获取启动配置
func (this *DefaultApp) Config() conf.Config { return conf.Conf }

// Options 获取应用选项
func (this *DefaultApp) Options() app.Options { return this.opts }

// Transporter 获取消息传输对象
func (this *DefaultApp) Transporter() *nats.Conn { return this.opts.Nats }

// Session 获取broker会话
func (this *DefaultApp) Session() *rpcbase.NatsSession { return this.session }

// RPCClient 获取进程内共享的RPC客户端(首次调用时创建)
func (this *DefaultApp) RPCClient() (mqrpc.RPCClient, error) {
	this.clientMu.Lock()
	defer this.clientMu.Unlock()
	if this.client != nil {
		return this.client, nil
	}
	if this.session == nil {
		return nil, errors.New("nats session not ready (call RPCClient after app.Run started)")
	}
	client, err := rpcbase.NewRPCClient(this.session,
		rpcbase.Timeout(conf.Conf.RPC.Timeout.Std()),
		rpcbase.RpcLog(conf.Conf.RpcLog))
	if err != nil {
		return nil, err
	}
	this.client = client
	return client, nil
}

// WorkDir 获取进程工作目录
func (this *DefaultApp) WorkDir() string { return this.opts.WorkDir }

// GetProcessEnv 获取应用进程分组环境ID
func (this *DefaultApp) GetProcessEnv() string { return this.opts.ProcessEnv }

// UpdateOptions 允许再次更新应用配置(before app.Run)
func (this *DefaultApp) UpdateOptions(opts ...app.Option) error {
	for _, o := range opts {
		o(&this.opts)
	}
	return nil
}

// --------------- 回调(hook)

// OnConfigurationLoaded 设置应用启动配置初始化完成后回调
func (this *DefaultApp) OnConfigurationLoaded(_func func()) error {
	this.onConfigurationLoaded = _func
	return nil
}

// OnModuleInited 设置每个模块初始化完成后回调
func (this *DefaultApp) OnModuleInited(_func func(module app.IModule)) error {
	this.onModuleInited = _func
	return nil
}

// GetModuleInited 获取每个模块初始化完成后回调函数
func (this *DefaultApp) GetModuleInited() func(module app.IModule) { return this.onModuleInited }

// OnStartup 设置应用启动完成后回调
func (this *DefaultApp) OnStartup(_func func()) error {
	this.onStartup = _func
	return nil
}
