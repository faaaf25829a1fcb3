package rpcbase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudapex/mqaccount/mqrpc"
	"github.com/cloudapex/mqaccount/mqrpc/core"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawServer 启动只有服务端的环境, 回复由测试直接收取
func rawServer(t *testing.T, register func(s *RPCServer)) (*memBroker, chan mqrpc.Delivery) {
	t.Helper()
	b := newMemBroker()
	replies := make(chan mqrpc.Delivery, 16)
	_, err := b.ConsumeReplies(func(d mqrpc.Delivery) { replies <- d })
	require.NoError(t, err)

	server := NewRPCServer(b)
	if register != nil {
		register(server)
	}
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Done() })
	return b, replies
}

func send(t *testing.T, b *memBroker, cid, body string) {
	t.Helper()
	require.NoError(t, b.Publish(context.Background(), &mqrpc.Message{
		RoutingKey:    testKey,
		Body:          []byte(body),
		CorrelationID: cid,
		ReplyTo:       b.ReplyTo(),
	}))
}

func recvReply(t *testing.T, replies chan mqrpc.Delivery) mqrpc.Delivery {
	t.Helper()
	select {
	case d := <-replies:
		return d
	case <-time.After(time.Second):
		t.Fatal("no reply")
	}
	return nil
}

func TestServerInvalidMessageFormat(t *testing.T) {
	for _, body := range []string{
		"garbage",
		`{"data":{}}`,
		`{"action":"echo"}`,
		`{"action":"echo","data":"x"}`,
	} {
		b, replies := rawServer(t, func(s *RPCServer) { s.Register("echo", echoHandler) })
		send(t, b, "c1", body)

		d := recvReply(t, replies)
		assert.Equal(t, "c1", d.CorrelationID())
		res, err := mqrpc.DecodeResult(d.CorrelationID(), d.Body())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(res.Error, "Invalid message format"), body)
		assert.Equal(t, mqrpc.KindDecode, mqrpc.RemoteError(res.Error).Kind)

		ds := b.deliveries()
		require.Len(t, ds, 1)
		assert.True(t, ds[0].state.rejected(), body)
	}
}

func TestServerHandlerPanic(t *testing.T) {
	b, replies := rawServer(t, func(s *RPCServer) {
		s.Register("boom", func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
			panic("store exploded")
		})
	})
	send(t, b, "c2", `{"action":"boom","data":{}}`)

	res, err := mqrpc.DecodeResult("c2", recvReply(t, replies).Body())
	require.NoError(t, err)
	assert.Equal(t, "store exploded", res.Error)
	assert.True(t, b.deliveries()[0].state.rejected())
}

func TestServerNonObjectResult(t *testing.T) {
	b, replies := rawServer(t, func(s *RPCServer) {
		s.Register("list", func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
			return []int{1, 2}, nil
		})
	})
	send(t, b, "c3", `{"action":"list","data":{}}`)

	res, err := mqrpc.DecodeResult("c3", recvReply(t, replies).Body())
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.True(t, b.deliveries()[0].state.rejected())
}

func TestServerNoReplyTo(t *testing.T) {
	b, replies := rawServer(t, func(s *RPCServer) { s.Register("echo", echoHandler) })
	require.NoError(t, b.Publish(context.Background(), &mqrpc.Message{
		RoutingKey: testKey,
		Body:       []byte(`{"action":"echo","data":{"username":"x"}}`),
	}))

	require.Eventually(t, func() bool {
		ds := b.deliveries()
		return len(ds) == 1 && ds[0].state.acked()
	}, time.Second, time.Millisecond)
	select {
	case <-replies:
		t.Fatal("unexpected reply")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestServerReplyPublishFailureStillSettles(t *testing.T) {
	b, _ := rawServer(t, func(s *RPCServer) { s.Register("echo", echoHandler) })
	d := &memDelivery{msg: mqrpc.Message{
		RoutingKey:    testKey,
		Body:          []byte(`{"action":"echo","data":{}}`),
		CorrelationID: "c4",
		ReplyTo:       "_INBOX.gone",
	}}
	b.failPublish = errors.New("broken pipe")

	server := NewRPCServer(b)
	server.Register("echo", echoHandler)
	server.Handle(d)
	assert.True(t, d.state.acked())
}

func TestServerRegister(t *testing.T) {
	s := NewRPCServer(newMemBroker())
	s.Register("echo", echoHandler)
	assert.Equal(t, []string{"echo"}, s.Actions())
	assert.Panics(t, func() { s.Register("echo", echoHandler) })
	assert.Panics(t, func() { s.Register("nil", nil) })

	require.NoError(t, s.Start(context.Background()))
	defer s.Done()
	assert.Panics(t, func() { s.Register("late", echoHandler) })
	assert.Error(t, s.Start(context.Background()))
}

type countingListener struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	block     string
}

func (l *countingListener) BeforeHandle(action string, callInfo *mqrpc.CallInfo) error {
	if action == l.block {
		return errors.New("blocked")
	}
	return nil
}

func (l *countingListener) OnError(action string, callInfo *mqrpc.CallInfo, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, action)
}

func (l *countingListener) OnComplete(action string, callInfo *mqrpc.CallInfo, result *core.ResultInfo, execTime int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = append(l.completed, action)
}

func TestServerListener(t *testing.T) {
	l := &countingListener{block: "blocked"}
	b, replies := rawServer(t, func(s *RPCServer) {
		s.SetListener(l)
		s.Register("echo", echoHandler)
		s.Register("blocked", echoHandler)
	})

	send(t, b, "c5", `{"action":"echo","data":{}}`)
	recvReply(t, replies)
	send(t, b, "c6", `{"action":"blocked","data":{}}`)
	res, err := mqrpc.DecodeResult("c6", recvReply(t, replies).Body())
	require.NoError(t, err)
	assert.Equal(t, "blocked", res.Error)
	send(t, b, "c7", `{"action":"missing","data":{}}`)
	recvReply(t, replies)

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.failed) == 2
	}, time.Second, time.Millisecond)
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Equal(t, []string{"echo"}, l.completed)
	assert.Equal(t, []string{"blocked", "missing"}, l.failed)
}

func TestServerSerializedByDefault(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		maxSeen int
	)
	b, replies := rawServer(t, func(s *RPCServer) {
		s.Register("slow", func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
			mu.Lock()
			running++
			if running > maxSeen {
				maxSeen = running
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return nil, nil
		})
	})
	for i := 0; i < 5; i++ {
		send(t, b, "c", `{"action":"slow","data":{}}`)
	}
	for i := 0; i < 5; i++ {
		recvReply(t, replies)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxSeen)
}

func TestServerDoneLeavesPendingUnsettled(t *testing.T) {
	b := newMemBroker()
	var calls atomic.Int32
	server := NewRPCServer(b)
	server.Register("echo", func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
		calls.Add(1)
		return map[string]any{}, nil
	})
	require.NoError(t, server.Start(context.Background()))

	// 占满协程配额, 请求排队等待
	control := NewGoroutineControl(1)
	require.NoError(t, control.Wait())
	server.SetGoroutineControl(control)

	body := []byte(`{"action":"echo","data":{}}`)
	queued := &memDelivery{msg: mqrpc.Message{RoutingKey: testKey, Body: body, CorrelationID: "c1"}}
	finished := make(chan struct{})
	go func() {
		server.onRequest(queued)
		close(finished)
	}()

	require.NoError(t, server.Done())
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("queued request still waiting after Done")
	}
	assert.False(t, queued.state.settled())

	late := &memDelivery{msg: mqrpc.Message{RoutingKey: testKey, Body: body, CorrelationID: "c2"}}
	server.onRequest(late)
	assert.False(t, late.state.settled())
	assert.Zero(t, calls.Load())
	assert.Zero(t, server.GetExecuting())
}
