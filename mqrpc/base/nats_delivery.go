package rpcbase

import (
	"github.com/cloudapex/mqaccount/mqrpc"
	"github.com/cloudapex/mqaccount/mqrpc/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

var (
	_ mqrpc.Delivery = &jsDelivery{}
	_ mqrpc.Delivery = &coreDelivery{}
)

// jsDelivery 请求队列(JetStream consumer)上的投递, Reject即Term(不再投递)
type jsDelivery struct {
	msg   jetstream.Msg
	state ackState
}

func newJsDelivery(msg jetstream.Msg) *jsDelivery { return &jsDelivery{msg: msg} }

func (d *jsDelivery) RoutingKey() string    { return d.msg.Subject() }
func (d *jsDelivery) Body() []byte          { return d.msg.Data() }
func (d *jsDelivery) CorrelationID() string { return header(d.msg.Headers(), core.HeaderCorrelationID) }
func (d *jsDelivery) ReplyTo() string       { return header(d.msg.Headers(), core.HeaderReplyTo) }
func (d *jsDelivery) Trace() []byte         { return headerBytes(d.msg.Headers(), core.HeaderTrace) }
func (d *jsDelivery) Ack() error            { return d.state.ack(d.msg.Ack) }
func (d *jsDelivery) Reject() error         { return d.state.reject(d.msg.Term) }

// coreDelivery 回复队列(core nats inbox)上的投递, broker侧无需确认
type coreDelivery struct {
	msg   *nats.Msg
	state ackState
}

func newCoreDelivery(msg *nats.Msg) *coreDelivery { return &coreDelivery{msg: msg} }

func (d *coreDelivery) RoutingKey() string    { return d.msg.Subject }
func (d *coreDelivery) Body() []byte          { return d.msg.Data }
func (d *coreDelivery) CorrelationID() string { return header(d.msg.Header, core.HeaderCorrelationID) }
func (d *coreDelivery) ReplyTo() string       { return header(d.msg.Header, core.HeaderReplyTo) }
func (d *coreDelivery) Trace() []byte         { return headerBytes(d.msg.Header, core.HeaderTrace) }
func (d *coreDelivery) Ack() error            { return d.state.ack(nil) }
func (d *coreDelivery) Reject() error         { return d.state.reject(nil) }

func header(h nats.Header, key string) string {
	if h == nil {
		return ""
	}
	return h.Get(key)
}

func headerBytes(h nats.Header, key string) []byte {
	if v := header(h, key); v != "" {
		return []byte(v)
	}
	return nil
}

func toNatsMsg(msg *mqrpc.Message) *nats.Msg {
	m := nats.NewMsg(msg.RoutingKey)
	m.Data = msg.Body
	if msg.CorrelationID != "" {
		m.Header.Set(core.HeaderCorrelationID, msg.CorrelationID)
	}
	if msg.ReplyTo != "" {
		m.Header.Set(core.HeaderReplyTo, msg.ReplyTo)
	}
	if len(msg.Trace) > 0 {
		m.Header.Set(core.HeaderTrace, string(msg.Trace))
	}
	return m
}
