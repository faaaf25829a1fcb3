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
	"sync"
	"time"

	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/mqrpc"
	"github.com/cloudapex/mqaccount/mqrpc/core"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

// DefaultTimeout 等待回复的默认超时
const DefaultTimeout = 60 * time.Second

// ClientOptions 客户端配置
type ClientOptions struct {
	Timeout time.Duration
	RpcLog  bool
}

// ClientOption 配置项
type ClientOption func(*ClientOptions)

func Timeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}
func RpcLog(on bool) ClientOption {
	return func(o *ClientOptions) { o.RpcLog = on }
}

var _ mqrpc.RPCClient = &RPCClient{}

// RPCClient 通过broker发请求并按correlation id等待回复
type RPCClient struct {
	opts    ClientOptions
	broker  mqrpc.ClientBroker
	replyTo string
	table   *PendingTable
	sub     mqrpc.Subscription
	once    sync.Once
}

// NewRPCClient 创建客户端并开始消费回复队列
func NewRPCClient(broker mqrpc.ClientBroker, opts ...ClientOption) (*RPCClient, error) {
	o := ClientOptions{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	c := &RPCClient{
		opts:    o,
		broker:  broker,
		replyTo: broker.ReplyTo(),
		table:   NewPendingTable(),
	}
	sub, err := broker.ConsumeReplies(c.onReply)
	if err != nil {
		log.Error("rpc client consume replies: %v", err)
		return nil, err
	}
	c.sub = sub
	return c, nil
}

// Pending 正在等待回复的调用数
func (c *RPCClient) Pending() int { return c.table.Len() }

// Done 关闭客户端, 所有等待中的调用立即以closed错误返回
func (c *RPCClient) Done() (err error) {
	c.once.Do(func() {
		if n := c.table.Close(mqrpc.ErrClosed); n > 0 {
			log.Warning("rpc client closed with %d pending calls", n)
		}
		if c.sub != nil {
			err = c.sub.Stop()
		}
	})
	return
}

// Close 同Done
func (c *RPCClient) Close() error { return c.Done() }

// Call 发送请求并等待回复, 成功返回回复body(json对象)
func (c *RPCClient) Call(ctx context.Context, routingKey, action string, data any) ([]byte, error) {
	start := time.Now()
	r, err := c.call(ctx, routingKey, action, data)
	if c.opts.RpcLog {
		log.TInfo(log.ContextValueTrace(ctx), "rpc Call RoutingKey = %v Action = %v Elapsed = %v ERROR = %v", routingKey, action, time.Since(start), err)
	}
	return r, err
}

func (c *RPCClient) call(ctx context.Context, routingKey, action string, data any) ([]byte, error) {
	body, err := encodeRequest(action, data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ctxError(err)
	}

	cid := uuid.New()
	call, err := c.table.Add(cid, time.Now().Add(c.opts.Timeout))
	if err != nil {
		if errors.Is(err, errClosedTable) {
			return nil, mqrpc.ErrClosed
		}
		return nil, mqrpc.NewError(mqrpc.KindTransport, err, "register call: %v", err)
	}

	// 先登记再发布, 回复不会早于登记到达
	err = c.broker.Publish(ctx, &mqrpc.Message{
		RoutingKey:    routingKey,
		Body:          body,
		CorrelationID: cid,
		ReplyTo:       c.replyTo,
		Trace:         traceOf(ctx),
	})
	if err != nil {
		c.table.Remove(cid)
		return nil, transportError(err)
	}

	timer := time.NewTimer(time.Until(call.deadline))
	defer timer.Stop()

	select {
	case r := <-call.done:
		return r.body, r.err
	case <-timer.C:
		if c.table.Remove(cid) {
			log.Warning("rpc call %s(%s) cid=%s timeout after %v", routingKey, action, cid, c.opts.Timeout)
			return nil, mqrpc.ErrTimeout
		}
	case <-ctx.Done():
		if c.table.Remove(cid) {
			return nil, ctxError(ctx.Err())
		}
	}
	// 回复已经抢先完成, 结果必然在done里
	r := <-call.done
	return r.body, r.err
}

// CallNR 发送请求不等待回复
func (c *RPCClient) CallNR(ctx context.Context, routingKey, action string, data any) error {
	start := time.Now()
	err := c.callNR(ctx, routingKey, action, data)
	if c.opts.RpcLog {
		log.TInfo(log.ContextValueTrace(ctx), "rpc CallNR RoutingKey = %v Action = %v Elapsed = %v ERROR = %v", routingKey, action, time.Since(start), err)
	}
	return err
}

func (c *RPCClient) callNR(ctx context.Context, routingKey, action string, data any) error {
	if c.table.closed() {
		return mqrpc.ErrClosed
	}
	body, err := encodeRequest(action, data)
	if err != nil {
		return err
	}
	err = c.broker.Publish(ctx, &mqrpc.Message{
		RoutingKey:    routingKey,
		Body:          body,
		CorrelationID: uuid.New(),
		Trace:         traceOf(ctx),
	})
	if err != nil {
		return transportError(err)
	}
	return nil
}

// onReply 回复分发: 解码 -> 查表 -> 完成调用 -> 确认
func (c *RPCClient) onReply(d mqrpc.Delivery) {
	defer func() {
		if err := d.Ack(); err != nil && !errors.Is(err, mqrpc.ErrAlreadySettled) {
			log.Warning("ack reply: %v", err)
		}
	}()

	cid := d.CorrelationID()
	if cid == "" {
		log.Warning("reply without correlation id discarded")
		return
	}
	res, err := mqrpc.DecodeResult(cid, d.Body())
	if err != nil {
		derr := mqrpc.NewError(mqrpc.KindDecode, err, "%s: %v", mqrpc.InvalidFormatMsg, err)
		if c.table.Resolve(cid, nil, derr) {
			log.Warning("malformed reply cid=%s: %v", cid, err)
		} else {
			log.Warning("malformed reply cid=%s discarded: %v", cid, err)
		}
		return
	}

	var ok bool
	if res.Failed() {
		ok = c.table.Resolve(cid, nil, mqrpc.RemoteError(res.Error))
	} else {
		ok = c.table.Resolve(cid, res.Result, nil)
	}
	if !ok {
		log.Warning("reply cid=%s has no pending call, discarded", cid)
	}
}

func encodeRequest(action string, data any) ([]byte, error) {
	raw, err := mqrpc.MarshalData(data)
	if err != nil {
		return nil, mqrpc.NewError(mqrpc.KindDecode, err, "encode request: %v", err)
	}
	body, err := mqrpc.EncodeRequest(&core.RequestInfo{Action: action, Data: raw})
	if err != nil {
		return nil, mqrpc.NewError(mqrpc.KindDecode, err, "encode request: %v", err)
	}
	return body, nil
}

func traceOf(ctx context.Context) []byte {
	span := log.ContextValueTrace(ctx)
	if span == nil {
		return nil
	}
	b, err := span.Marshal()
	if err != nil {
		return nil
	}
	return b
}

// ctxError 调用方ctx结束: 到期视为超时, 否则为取消
func ctxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return mqrpc.ErrTimeout
	}
	return mqrpc.NewError(mqrpc.KindCanceled, err, "rpc call canceled: %v", err)
}

func transportError(err error) error {
	if mqrpc.KindOf(err) != "" {
		return err
	}
	return mqrpc.NewError(mqrpc.KindTransport, err, "publish: %v", err)
}
