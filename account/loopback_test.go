package account

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cloudapex/mqaccount/mqrpc"
)

type loopDelivery struct {
	msg     mqrpc.Message
	settled atomic.Int32 // 0 未确认 1 ack 2 reject
}

func (d *loopDelivery) RoutingKey() string    { return d.msg.RoutingKey }
func (d *loopDelivery) Body() []byte          { return d.msg.Body }
func (d *loopDelivery) CorrelationID() string { return d.msg.CorrelationID }
func (d *loopDelivery) ReplyTo() string       { return d.msg.ReplyTo }
func (d *loopDelivery) Trace() []byte         { return d.msg.Trace }

func (d *loopDelivery) Ack() error {
	if !d.settled.CompareAndSwap(0, 1) {
		return mqrpc.ErrAlreadySettled
	}
	return nil
}

func (d *loopDelivery) Reject() error {
	if !d.settled.CompareAndSwap(0, 2) {
		return mqrpc.ErrAlreadySettled
	}
	return nil
}

type stopFunc func() error

func (f stopFunc) Stop() error { return f() }

// loopback 同时扮演调用方和服务方的broker
type loopback struct {
	mu       sync.Mutex
	replyTo  string
	replyH   mqrpc.DeliveryHandler
	requests chan *loopDelivery
	handled  []*loopDelivery
	drop     bool
}

func newLoopback() *loopback {
	return &loopback{replyTo: "_INBOX.account", requests: make(chan *loopDelivery, 64)}
}

func (b *loopback) ReplyTo() string { return b.replyTo }

func (b *loopback) Publish(ctx context.Context, msg *mqrpc.Message) error {
	b.mu.Lock()
	replyH, drop := b.replyH, b.drop
	b.mu.Unlock()

	d := &loopDelivery{msg: *msg}
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

func (b *loopback) ConsumeReplies(handler mqrpc.DeliveryHandler) (mqrpc.Subscription, error) {
	b.mu.Lock()
	b.replyH = handler
	b.mu.Unlock()
	return stopFunc(func() error { return nil }), nil
}

func (b *loopback) ConsumeRequests(ctx context.Context, handler mqrpc.DeliveryHandler) (mqrpc.Subscription, error) {
	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case d := <-b.requests:
				handler(d)
				b.mu.Lock()
				b.handled = append(b.handled, d)
				b.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
	var once sync.Once
	return stopFunc(func() error {
		once.Do(func() {
			close(stop)
			<-exited
		})
		return nil
	}), nil
}

func (b *loopback) setDrop(drop bool) {
	b.mu.Lock()
	b.drop = drop
	b.mu.Unlock()
}

// last 最近处理完的请求
func (b *loopback) last() *loopDelivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handled) == 0 {
		return nil
	}
	return b.handled[len(b.handled)-1]
}
