package rpcbase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/mqrpc"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

var (
	_ mqrpc.ClientBroker = &NatsSession{}
	_ mqrpc.ServerBroker = &NatsSession{}
)

// SessionOptions broker会话配置
type SessionOptions struct {
	Addrs         []string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration

	Exchange    string   // stream名称
	Queue       string   // durable consumer名称
	RoutingKeys []string // stream subjects & consumer filter
	Prefetch    int      // 最多未确认的投递数
	AckWait     time.Duration

	Conn *nats.Conn // 复用已有连接(不负责关闭)
}

// SessionOption 配置项
type SessionOption func(*SessionOptions)

func Addrs(addrs ...string) SessionOption {
	return func(o *SessionOptions) { o.Addrs = addrs }
}
func Name(name string) SessionOption {
	return func(o *SessionOptions) { o.Name = name }
}
func Reconnect(max int, wait time.Duration) SessionOption {
	return func(o *SessionOptions) {
		o.MaxReconnects = max
		if wait > 0 {
			o.ReconnectWait = wait
		}
	}
}
func Exchange(name string, routingKeys ...string) SessionOption {
	return func(o *SessionOptions) {
		o.Exchange = name
		o.RoutingKeys = routingKeys
	}
}
func Queue(name string, prefetch int) SessionOption {
	return func(o *SessionOptions) {
		o.Queue = name
		if prefetch > 0 {
			o.Prefetch = prefetch
		}
	}
}
func AckWait(d time.Duration) SessionOption {
	return func(o *SessionOptions) { o.AckWait = d }
}
func Conn(nc *nats.Conn) SessionOption {
	return func(o *SessionOptions) { o.Conn = nc }
}

// NatsSession 持有连接、exchange(stream)、请求队列(consumer)和回复队列(inbox)
type NatsSession struct {
	opts    SessionOptions
	nc      *nats.Conn
	ownConn bool
	js      jetstream.JetStream
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	declaredExch bool
	cons         jetstream.Consumer
	replyTo      string
	replySub     *nats.Subscription
	reqHandler   mqrpc.DeliveryHandler
	reqConsume   jetstream.ConsumeContext
	restoring    bool
}

func setAddrs(addrs []string) []string {
	var cAddrs []string
	for _, addr := range addrs {
		if len(addr) == 0 {
			continue
		}
		if !strings.HasPrefix(addr, "nats://") && !strings.HasPrefix(addr, "tls://") {
			addr = "nats://" + addr
		}
		cAddrs = append(cAddrs, addr)
	}
	if len(cAddrs) == 0 {
		cAddrs = []string{nats.DefaultURL}
	}
	return cAddrs
}

// NewNatsSession 建立连接(断线后由nats自动重连, 重连后重新声明拓扑)
func NewNatsSession(opts ...SessionOption) (*NatsSession, error) {
	o := SessionOptions{
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Prefetch:      1,
		AckWait:       5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &NatsSession{opts: o}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.limiter = rate.NewLimiter(rate.Every(o.ReconnectWait), 1)

	if o.Conn != nil {
		s.nc = o.Conn
	} else {
		nc, err := nats.Connect(strings.Join(setAddrs(o.Addrs), ","),
			nats.Name(o.Name),
			nats.MaxReconnects(o.MaxReconnects),
			nats.ReconnectWait(o.ReconnectWait))
		if err != nil {
			s.cancel()
			return nil, mqrpc.NewError(mqrpc.KindTransport, err, "nats connect: %v", err)
		}
		s.nc = nc
		s.ownConn = true
	}
	s.nc.SetDisconnectErrHandler(func(nc *nats.Conn, err error) {
		if err != nil {
			log.Warning("nats disconnected: %v", err)
		}
	})
	s.nc.SetReconnectHandler(func(nc *nats.Conn) {
		log.Info("nats reconnected to %s", nc.ConnectedUrl())
		go s.restore()
	})
	s.nc.SetClosedHandler(func(nc *nats.Conn) {
		log.Info("nats connection closed")
	})

	js, err := jetstream.New(s.nc)
	if err != nil {
		s.Close()
		return nil, mqrpc.NewError(mqrpc.KindTransport, err, "jetstream: %v", err)
	}
	s.js = js
	return s, nil
}

// Options 会话配置
func (s *NatsSession) Options() SessionOptions { return s.opts }

// Conn 底层连接
func (s *NatsSession) Conn() *nats.Conn { return s.nc }

// DeclareExchange 声明exchange(durable stream, subjects为全部routing key)
func (s *NatsSession) DeclareExchange(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.declareExchange(ctx); err != nil {
		return err
	}
	s.declaredExch = true
	return nil
}

func (s *NatsSession) declareExchange(ctx context.Context) error {
	_, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      s.opts.Exchange,
		Subjects:  s.opts.RoutingKeys,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return mqrpc.NewError(mqrpc.KindTransport, err, "declare exchange %s: %v", s.opts.Exchange, err)
	}
	log.Info("exchange %s declared with routing keys %v", s.opts.Exchange, s.opts.RoutingKeys)
	return nil
}

// DeclareQueue 声明请求队列(durable consumer, 显式确认, 最多Prefetch条未确认)
func (s *NatsSession) DeclareQueue(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.declareQueue(ctx)
}

func (s *NatsSession) declareQueue(ctx context.Context) error {
	if !s.declaredExch {
		if err := s.declareExchange(ctx); err != nil {
			return err
		}
		s.declaredExch = true
	}
	cons, err := s.js.CreateOrUpdateConsumer(ctx, s.opts.Exchange, jetstream.ConsumerConfig{
		Durable:        s.opts.Queue,
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        s.opts.AckWait,
		MaxAckPending:  s.opts.Prefetch,
		DeliverPolicy:  jetstream.DeliverAllPolicy,
		FilterSubjects: s.opts.RoutingKeys,
	})
	if err != nil {
		return mqrpc.NewError(mqrpc.KindTransport, err, "declare queue %s: %v", s.opts.Queue, err)
	}
	s.cons = cons
	for _, key := range s.opts.RoutingKeys {
		log.Info("queue %s bound to exchange %s with routing key: %s", s.opts.Queue, s.opts.Exchange, key)
	}
	return nil
}

// ReplyTo 本会话独占的回复地址
func (s *NatsSession) ReplyTo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replyTo == "" {
		s.replyTo = nats.NewInbox()
	}
	return s.replyTo
}

// Publish 发布消息(不等待broker确认), 并发安全
func (s *NatsSession) Publish(ctx context.Context, msg *mqrpc.Message) error {
	if err := ctx.Err(); err != nil {
		return mqrpc.NewError(mqrpc.KindTransport, err, "publish %s: %v", msg.RoutingKey, err)
	}
	if s.nc.IsClosed() {
		return mqrpc.NewError(mqrpc.KindTransport, nats.ErrConnectionClosed, "publish %s: %v", msg.RoutingKey, nats.ErrConnectionClosed)
	}
	if err := s.nc.PublishMsg(toNatsMsg(msg)); err != nil {
		return mqrpc.NewError(mqrpc.KindTransport, err, "publish %s: %v", msg.RoutingKey, err)
	}
	return nil
}

// ConsumeReplies 开始消费回复队列
func (s *NatsSession) ConsumeReplies(handler mqrpc.DeliveryHandler) (mqrpc.Subscription, error) {
	subject := s.ReplyTo()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replySub != nil {
		return nil, errors.New("reply queue already consumed")
	}
	sub, err := s.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(newCoreDelivery(m))
	})
	if err != nil {
		return nil, mqrpc.NewError(mqrpc.KindTransport, err, "subscribe reply queue: %v", err)
	}
	s.replySub = sub
	log.Info("reply queue %s ready", subject)
	return &natsSubscription{stop: func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.replySub == nil {
			return nil
		}
		err := s.replySub.Unsubscribe()
		s.replySub = nil
		return err
	}}, nil
}

// ConsumeRequests 开始消费请求队列(handler串行调用)
func (s *NatsSession) ConsumeRequests(ctx context.Context, handler mqrpc.DeliveryHandler) (mqrpc.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reqHandler != nil {
		return nil, errors.New("request queue already consumed")
	}
	if s.cons == nil {
		if err := s.declareQueue(ctx); err != nil {
			return nil, err
		}
	}
	s.reqHandler = handler
	if err := s.startConsume(); err != nil {
		s.reqHandler = nil
		return nil, err
	}
	return &natsSubscription{stop: s.stopRequests}, nil
}

func (s *NatsSession) startConsume() error {
	handler := s.reqHandler
	cc, err := s.cons.Consume(func(m jetstream.Msg) {
		handler(newJsDelivery(m))
	},
		jetstream.PullMaxMessages(s.opts.Prefetch),
		jetstream.ConsumeErrHandler(s.onConsumeErr))
	if err != nil {
		return mqrpc.NewError(mqrpc.KindTransport, err, "consume queue %s: %v", s.opts.Queue, err)
	}
	s.reqConsume = cc
	return nil
}

func (s *NatsSession) stopRequests() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reqConsume != nil {
		s.reqConsume.Stop()
		s.reqConsume = nil
	}
	s.reqHandler = nil
	return nil
}

func (s *NatsSession) onConsumeErr(_ jetstream.ConsumeContext, err error) {
	if errors.Is(err, jetstream.ErrConsumerDeleted) || errors.Is(err, jetstream.ErrConsumerNotFound) {
		log.Warning("queue %s lost: %v", s.opts.Queue, err)
		go s.restore()
		return
	}
	log.Debug("queue %s consume: %v", s.opts.Queue, err)
}

// restore 重连后重新声明exchange/queue并恢复消费, 按ReconnectWait限速重试
func (s *NatsSession) restore() {
	s.mu.Lock()
	if s.restoring || s.closed {
		s.mu.Unlock()
		return
	}
	s.restoring = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.restoring = false
		s.mu.Unlock()
	}()

	for attempt := 1; ; attempt++ {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return // 会话已关闭
		}
		err := s.redeclare()
		if err == nil {
			if attempt > 1 {
				log.Info("broker topology restored after %d attempts", attempt)
			}
			return
		}
		log.Warning("restore broker topology attempt %d: %v", attempt, err)
	}
}

func (s *NatsSession) redeclare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	if s.declaredExch {
		if err := s.declareExchange(ctx); err != nil {
			return err
		}
	}
	if s.cons == nil {
		return nil
	}
	if err := s.declareQueue(ctx); err != nil {
		return err
	}
	if s.reqHandler != nil {
		if s.reqConsume != nil {
			s.reqConsume.Stop()
			s.reqConsume = nil
		}
		return s.startConsume()
	}
	return nil
}

// Close 关闭会话(独占的回复队列随连接一起释放)
func (s *NatsSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	if s.reqConsume != nil {
		s.reqConsume.Stop()
		s.reqConsume = nil
	}
	var err error
	if s.replySub != nil {
		err = s.replySub.Unsubscribe()
		s.replySub = nil
	}
	s.mu.Unlock()

	if s.ownConn {
		s.nc.Close()
	}
	return err
}

type natsSubscription struct {
	once sync.Once
	stop func() error
	err  error
}

func (n *natsSubscription) Stop() error {
	n.once.Do(func() { n.err = n.stop() })
	return n.err
}
