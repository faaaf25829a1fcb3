// Copyright 2014 mqant Author. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package module BaseModule定义
package module

import (
	"context"
	"fmt"

	"github.com/cloudapex/mqaccount/app"
	"github.com/cloudapex/mqaccount/conf"
	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/mqrpc"
	rpcbase "github.com/cloudapex/mqaccount/mqrpc/base"
	"github.com/cloudapex/mqaccount/mqrpc/core"
	"github.com/cloudapex/mqaccount/tools"
	"github.com/pborman/uuid"
)

var _ mqrpc.RPCListener = &ModuleBase{}

// ModuleBase 默认的RPCModule实现(消费请求队列)
type ModuleBase struct {
	Impl     app.IRPCModule
	settings *conf.ModuleSettings

	serverID string
	server   *rpcbase.RPCServer
	listener mqrpc.RPCListener
}

// Init 模块初始化(由派生类调用)
func (this *ModuleBase) Init(impl app.IRPCModule, settings *conf.ModuleSettings, opt ...Option) {
	// 初始化模块
	this.Impl = impl
	if settings == nil {
		settings = &conf.ModuleSettings{}
	}
	this.settings = settings

	opts := Options{}
	for _, o := range opt {
		o(&opts)
	}
	if a := app.Default(); a != nil {
		if opts.Broker == nil {
			if s := a.Session(); s != nil {
				opts.Broker = s
			}
		}
		if opts.MaxCoroutine == 0 {
			opts.MaxCoroutine = a.Options().RPCMaxCoroutine
		}
		opts.RpcLog = opts.RpcLog || a.Config().RpcLog
	}
	if opts.Broker == nil {
		panic(fmt.Sprintf("ModuleBase: module[%s] has no broker", impl.GetType()))
	}

	if len(opts.ID) == 0 {
		opts.ID = tools.Tern(settings.ID != "", settings.ID, uuid.New())
	}
	this.serverID = fmt.Sprintf("%s@%s", impl.GetType(), opts.ID)

	this.server = rpcbase.NewRPCServer(opts.Broker,
		rpcbase.ServerRpcLog(opts.RpcLog),
		rpcbase.MaxCoroutine(opts.MaxCoroutine))
	this.server.SetListener(this)
}

// OnInit 当模块初始化时调用
func (this *ModuleBase) OnInit(settings *conf.ModuleSettings) {
	// 所有初始化逻辑都放到Init中, 重载OnInit不可调用基类!
	panic("ModuleBase: OnInit() must be implemented")
}

// Run 开始消费请求队列, 直到收到关闭信号
func (this *ModuleBase) Run(closeSig chan bool) {
	if err := this.server.Start(context.Background()); err != nil {
		log.Error("module[%s] start consuming fail: %v", this.GetServerID(), err)
	} else {
		log.Info("module[%s] consuming actions %v", this.GetServerID(), this.server.Actions())
	}
	<-closeSig
}

// OnDestroy 当模块注销时调用
func (this *ModuleBase) OnDestroy() {
	_ = this.server.Done() //一定别忘了关闭RPC
}

// Register 注册操作(必须在Run之前)
func (this *ModuleBase) Register(action string, f mqrpc.Handler) {
	this.server.Register(action, f)
	log.Debug("module[%s] register action[%s] -> %s", this.GetServerID(), action, tools.FuncName(f))
}

// SetListener  mqrpc.RPCListener
func (this *ModuleBase) SetListener(listener mqrpc.RPCListener) {
	this.listener = listener
}

// GetImpl 获取子类
func (this *ModuleBase) GetImpl() app.IRPCModule {
	return this.Impl
}

// GetServer 获取RPC服务
func (this *ModuleBase) GetServer() *rpcbase.RPCServer {
	return this.server
}

// GetServerID 节点ID(moduleType@id)
func (this *ModuleBase) GetServerID() string {
	if this.serverID == "" {
		return "no server"
	}
	return this.serverID
}

// GetModuleSettings  获取Config.Module[typ].Settings
func (this *ModuleBase) GetModuleSettings() *conf.ModuleSettings {
	return this.settings
}

// OnConfChanged 当配置变更时调用(目前没用)
func (this *ModuleBase) OnConfChanged(settings *conf.ModuleSettings) {}

// OnAppConfigurationLoaded 当应用配置加载完成时调用
func (this *ModuleBase) OnAppConfigurationLoaded() {
	// 当App初始化时调用，这个接口不管这个模块是否在这个进程运行都会调用
}

// ================= RPCListener[监听事件]

// BeforeHandle  hander执行前调用
func (this *ModuleBase) BeforeHandle(action string, callInfo *mqrpc.CallInfo) error {
	if a := app.Default(); a != nil && a.Options().ServerRPCHandler != nil {
		a.Options().ServerRPCHandler(this.Impl, callInfo)
	}
	if this.listener != nil {
		return this.listener.BeforeHandle(action, callInfo)
	}
	return nil
}

// OnError  hander执行错误调用
func (this *ModuleBase) OnError(action string, callInfo *mqrpc.CallInfo, err error) {
	if this.listener != nil {
		this.listener.OnError(action, callInfo, err)
	}
}

// OnComplete hander成功执行完成时调用
// action 	操作名
// result		执行结果
// exec_time 	方法执行时间 单位为 Nano 纳秒  1000000纳秒等于1毫秒
func (this *ModuleBase) OnComplete(action string, callInfo *mqrpc.CallInfo, result *core.ResultInfo, execTime int64) {
	if this.listener != nil {
		this.listener.OnComplete(action, callInfo, result, execTime)
	}
}
