package rpcbase

import (
	"context"
	"sync"

	"github.com/cloudapex/mqaccount/mqrpc"
)

// memDelivery 内存broker上的投递
type memDelivery struct {
	msg   mqrpc.Message
	state ackState
}

func (d *memDelivery) RoutingKey() string    { return d.msg.RoutingKey }
func (d *memDelivery) Body() []byte          { return d.msg.Body }
func (d *memDelivery) CorrelationID() string { return d.msg.CorrelationID }
func (d *memDelivery) ReplyTo() string       { return d.msg.ReplyTo }
func (d *memDelivery) Trace() []byte         { return d.msg.Trace }
func (d *memDelivery) Ack() error            { return d.state.ack(nil) }
func (d *memDelivery) Reject() error         { return d.state.reject(nil) }

type subFunc func() error

func (f subFunc) Stop() error { return f() }

// memBroker 单进程内的broker: 发往replyTo的消息同步交给回复handler, 其余进入请求队列串行消费
type memBroker struct {
	mu          sync.Mutex
	replyTo     string
	replyH      mqrpc.DeliveryHandler
	requests    chan *memDelivery
	published   []mqrpc.Message
	delivered   []*memDelivery
	failPublish error
	dropRequest bool // 模拟没有消费者
}

func newMemBroker() *memBroker {
	return &memBroker{
		replyTo:  "_INBOX.test",
		requests: make(chan *memDelivery, 256),
	}
}

func (b *memBroker) ReplyTo() string { return b.replyTo }

func (b *memBroker) Publish(ctx context.Context, msg *mqrpc.Message) error {
	b.mu.Lock()
	if b.failPublish != nil {
		err := b.failPublish
		b.mu.Unlock()
		return err
	}
	b.published = append(b.published, *msg)
	replyH, drop := b.replyH, b.dropRequest
	b.mu.Unlock()

	d := &memDelivery{msg: *msg}
	if msg.RoutingKey == b.replyTo {
		if replyH != nil {
			replyH(d)
		}
		return nil
	}
	if !drop {
		b.requests <- d
	}
	return nil
}

func (b *memBroker) ConsumeReplies(handler mqrpc.DeliveryHandler) (mqrpc.Subscription, error) {
	b.mu.Lock()
	b.replyH = handler
	b.mu.Unlock()
	return subFunc(func() error {
		b.mu.Lock()
		b.replyH = nil
		b.mu.Unlock()
		return nil
	}), nil
}

func (b *memBroker) ConsumeRequests(ctx context.Context, handler mqrpc.DeliveryHandler) (mqrpc.Subscription, error) {
	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case d := <-b.requests:
				b.mu.Lock()
				b.delivered = append(b.delivered, d)
				b.mu.Unlock()
				handler(d)
			case <-stop:
				return
			}
		}
	}()
	var once sync.Once
	return subFunc(func() error {
		once.Do(func() {
			close(stop)
			<-exited
		})
		return nil
	}), nil
}

// deliverReply 直接向回复队列投递一条原始回复
func (b *memBroker) deliverReply(cid string, body []byte) *memDelivery {
	b.mu.Lock()
	replyH := b.replyH
	b.mu.Unlock()
	d := &memDelivery{msg: mqrpc.Message{RoutingKey: b.replyTo, Body: body, CorrelationID: cid}}
	if replyH != nil {
		replyH(d)
	}
	return d
}

func (b *memBroker) setDrop(drop bool) {
	b.mu.Lock()
	b.dropRequest = drop
	b.mu.Unlock()
}

func (b *memBroker) lastPublished() mqrpc.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[len(b.published)-1]
}

func (b *memBroker) firstPublished() mqrpc.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[0]
}

func (b *memBroker) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *memBroker) deliveries() []*memDelivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*memDelivery(nil), b.delivered...)
}
