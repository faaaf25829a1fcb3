// Copyright 2014 river Author. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package rpcbase

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/mqrpc"
	"github.com/cloudapex/mqaccount/mqrpc/core"
	"github.com/pkg/errors"
)

// ServerOptions 服务端配置
type ServerOptions struct {
	RpcLog       bool
	MaxCoroutine uint32 // 同时处理的请求数, 0即1(串行)
}

// ServerOption 配置项
type ServerOption func(*ServerOptions)

func ServerRpcLog(on bool) ServerOption {
	return func(o *ServerOptions) { o.RpcLog = on }
}
func MaxCoroutine(n uint32) ServerOption {
	return func(o *ServerOptions) { o.MaxCoroutine = n }
}

var _ mqrpc.RPCServer = &RPCServer{}

// RPCServer 消费请求队列, 按action分发到注册的Handler并回复
type RPCServer struct {
	opts      ServerOptions
	broker    mqrpc.ServerBroker
	handlers  map[string]mqrpc.Handler
	started   atomic.Bool
	sub       mqrpc.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	quit      context.Context // Done后关闭, 排队中的请求放弃
	stop      context.CancelFunc
	mu        sync.Mutex
	stopped   bool
	wg        sync.WaitGroup //任务阻塞
	listener  mqrpc.RPCListener
	control   mqrpc.GoroutineControl //控制可同时处理的最大请求数
	executing atomic.Int64           //正在执行的请求数量
}

func NewRPCServer(broker mqrpc.ServerBroker, opts ...ServerOption) *RPCServer {
	var o ServerOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := &RPCServer{
		opts:     o,
		broker:   broker,
		handlers: make(map[string]mqrpc.Handler),
		control:  NewGoroutineControl(o.MaxCoroutine),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.quit, s.stop = context.WithCancel(context.Background())
	return s
}

func (s *RPCServer) SetListener(listener mqrpc.RPCListener) {
	s.listener = listener
}
func (s *RPCServer) SetGoroutineControl(control mqrpc.GoroutineControl) {
	s.control = control
}

// GetExecuting 当前正在处理的请求数量
func (s *RPCServer) GetExecuting() int64 {
	return s.executing.Load()
}

// Register you must call the function before calling Start
func (s *RPCServer) Register(action string, f mqrpc.Handler) {
	if s.started.Load() {
		panic(fmt.Sprintf("action %v: register after start", action))
	}
	if f == nil {
		panic(fmt.Sprintf("action %v: nil handler", action))
	}
	if _, ok := s.handlers[action]; ok {
		panic(fmt.Sprintf("action %v: already registered", action))
	}
	s.handlers[action] = f
}

// Actions 已注册的操作名
func (s *RPCServer) Actions() []string {
	actions := make([]string, 0, len(s.handlers))
	for action := range s.handlers {
		actions = append(actions, action)
	}
	return actions
}

// Start 开始消费请求队列
func (s *RPCServer) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("rpc server already started")
	}
	sub, err := s.broker.ConsumeRequests(ctx, s.onRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Done 停止消费并等待正在执行的请求完成, 之后到达的请求不确认(由broker重新投递)
func (s *RPCServer) Done() (err error) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.stop()
	if s.sub != nil {
		err = s.sub.Stop()
	}
	s.wg.Wait()
	s.cancel()
	return
}

func (s *RPCServer) onRequest(d mqrpc.Delivery) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		log.Debug("rpc server stopped, request cid=%s left unacked", d.CorrelationID())
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if s.control != nil {
		//协程数量达到最大限制
		if err := s.control.WaitContext(s.quit); err != nil {
			log.Debug("rpc server stopped, request cid=%s left unacked", d.CorrelationID())
			return
		}
		defer s.control.Finish()
		if s.quit.Err() != nil {
			return
		}
	}
	s.executing.Add(1)
	defer s.executing.Add(-1)
	s.Handle(d)
}

// Handle 处理一条请求: 解码 -> 查找 -> 执行 -> 确认 -> 回复
func (s *RPCServer) Handle(d mqrpc.Delivery) {
	start := time.Now()
	req, err := mqrpc.DecodeRequest(d.Body())
	if err != nil {
		msg := fmt.Sprintf("%s: %v", mqrpc.InvalidFormatMsg, err)
		log.Warning("rpc request on %s cid=%s rejected: %s", d.RoutingKey(), d.CorrelationID(), msg)
		s.settle(d, false)
		s.reply(d, &core.ResultInfo{Cid: d.CorrelationID(), Error: msg})
		return
	}
	req.Cid = d.CorrelationID()
	req.ReplyTo = d.ReplyTo()
	req.Trace = d.Trace()

	callInfo := &mqrpc.CallInfo{RPCInfo: req}
	span := extractSpan(req.Trace)
	ctx := log.ContextWithTrace(s.ctx, span)

	handler, ok := s.handlers[req.Action]
	if !ok {
		msg := mqrpc.UnknownAction(req.Action)
		log.TWarning(span, "rpc request on %s cid=%s: %s", d.RoutingKey(), req.Cid, msg)
		s.settle(d, true)
		s.errorCallback(start, d, callInfo, msg)
		return
	}

	if s.listener != nil {
		if err := s.listener.BeforeHandle(req.Action, callInfo); err != nil {
			s.settle(d, false)
			s.errorCallback(start, d, callInfo, err.Error())
			return
		}
	}

	result, err := s.invoke(ctx, handler, req)
	if err == nil {
		callInfo.Result, err = resultOf(req.Cid, result)
	}
	if err != nil {
		log.TWarning(span, "rpc Exec Action = %v cid=%s ERROR = %v", req.Action, req.Cid, err)
		s.settle(d, false)
		s.errorCallback(start, d, callInfo, err.Error())
		return
	}

	s.settle(d, true)
	callInfo.ExecTime = time.Since(start).Nanoseconds()
	s.reply(d, callInfo.Result)
	if s.opts.RpcLog {
		log.TInfo(span, "rpc Exec Action = %v Elapsed = %v", req.Action, time.Since(start))
	}
	if s.listener != nil {
		s.listener.OnComplete(req.Action, callInfo, callInfo.Result, callInfo.ExecTime)
	}
}

// invoke 执行Handler, panic视为操作失败
func (s *RPCServer) invoke(ctx context.Context, handler mqrpc.Handler, req *core.RequestInfo) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 1024)
			l := runtime.Stack(buf, false)
			log.Error("rpc func(%s) panic %v\n ----Stack----\n%s", req.Action, r, string(buf[:l]))
			err = errors.Errorf("%v", r)
		}
	}()
	return handler(ctx, req.Data)
}

func (s *RPCServer) errorCallback(start time.Time, d mqrpc.Delivery, callInfo *mqrpc.CallInfo, msg string) {
	callInfo.Result = &core.ResultInfo{Cid: callInfo.RPCInfo.Cid, Error: msg}
	callInfo.ExecTime = time.Since(start).Nanoseconds()
	s.reply(d, callInfo.Result)
	if s.listener != nil {
		s.listener.OnError(callInfo.RPCInfo.Action, callInfo, errors.New(msg))
	}
}

func (s *RPCServer) settle(d mqrpc.Delivery, ok bool) {
	var err error
	if ok {
		err = d.Ack()
	} else {
		err = d.Reject()
	}
	if err != nil {
		log.Warning("settle request cid=%s ack=%v: %v", d.CorrelationID(), ok, err)
	}
}

// reply 有回复地址才回复, 发布失败只记录
func (s *RPCServer) reply(d mqrpc.Delivery, res *core.ResultInfo) {
	if d.ReplyTo() == "" {
		if res.Failed() {
			log.Warning("rpc callback error: %s", res.Error)
		}
		return
	}
	body, err := mqrpc.EncodeResult(res)
	if err != nil {
		log.Error("encode reply cid=%s: %v", res.Cid, err)
		return
	}
	err = s.broker.Publish(s.ctx, &mqrpc.Message{
		RoutingKey:    d.ReplyTo(),
		Body:          body,
		CorrelationID: d.CorrelationID(),
		Trace:         d.Trace(),
	})
	if err != nil {
		log.Warning("rpc callback cid=%s to %s: %v", res.Cid, d.ReplyTo(), err)
	}
}

func resultOf(cid string, result any) (*core.ResultInfo, error) {
	raw, err := mqrpc.MarshalData(result)
	if err != nil {
		return nil, errors.Wrap(err, "encode result")
	}
	if !mqrpc.IsObject(raw) {
		return nil, errors.New("result must be a json object")
	}
	return &core.ResultInfo{Cid: cid, Result: raw}, nil
}

func extractSpan(trace []byte) log.TraceSpan {
	if len(trace) == 0 {
		return nil
	}
	span := &log.TraceSpanImp{}
	if err := span.Unmarshal(trace); err != nil || span.Trace == "" {
		return nil
	}
	return span.ExtractSpan()
}
