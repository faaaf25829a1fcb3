package rpcbase

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudapex/mqaccount/mqrpc"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testExchange = "test_exchange"
	testQueue    = "test_queue"
)

// runJetStream 启动内嵌的nats-server(开启JetStream), port=-1随机端口
func runJetStream(t *testing.T, port int, storeDir string) *server.Server {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = port
	opts.JetStream = true
	opts.StoreDir = storeDir
	return natsserver.RunServer(&opts)
}

func shutdown(srv *server.Server) {
	srv.Shutdown()
	srv.WaitForShutdown()
}

func newTestSession(t *testing.T, srv *server.Server, opts ...SessionOption) *NatsSession {
	t.Helper()
	opts = append([]SessionOption{
		Addrs(srv.ClientURL()),
		Name("rpcbase-test"),
		Reconnect(-1, 50*time.Millisecond),
		Exchange(testExchange, testKey),
		Queue(testQueue, 1),
	}, opts...)
	s, err := NewNatsSession(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.DeclareExchange(ctx))
	return s
}

func publishRequest(t *testing.T, s *NatsSession, cid string) {
	t.Helper()
	require.NoError(t, s.Publish(context.Background(), &mqrpc.Message{
		RoutingKey:    testKey,
		Body:          []byte(`{"action":"echo","data":{"username":"` + cid + `"}}`),
		CorrelationID: cid,
	}))
}

func recvDelivery(t *testing.T, ch chan mqrpc.Delivery, wait time.Duration) mqrpc.Delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(wait):
		t.Fatal("no delivery")
	}
	return nil
}

func TestNatsSessionRoundTrip(t *testing.T) {
	srv := runJetStream(t, -1, t.TempDir())
	defer shutdown(srv)
	s := newTestSession(t, srv)

	server := NewRPCServer(s)
	server.Register("echo", echoHandler)
	require.NoError(t, server.Start(context.Background()))
	defer server.Done()

	client, err := NewRPCClient(s, Timeout(5*time.Second))
	require.NoError(t, err)
	defer client.Done()

	name, err := mqrpc.String("username", mqrpc.RpcResult(client.Call(context.Background(), testKey, "echo", echoReq{Username: "alice"})))
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	assert.Equal(t, 0, client.Pending())

	// 确认后消息从exchange移除
	stream, err := s.js.Stream(context.Background(), testExchange)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		info, err := stream.Info(context.Background())
		return err == nil && info.State.Msgs == 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Close())
	err = s.Publish(context.Background(), &mqrpc.Message{RoutingKey: testKey, Body: []byte(`{}`)})
	assert.ErrorIs(t, err, mqrpc.ErrTransport)
}

func TestNatsSessionRejectNotRedelivered(t *testing.T) {
	srv := runJetStream(t, -1, t.TempDir())
	defer shutdown(srv)
	s := newTestSession(t, srv, AckWait(200*time.Millisecond))

	var calls atomic.Int32
	server := NewRPCServer(s)
	server.Register("fail", func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
		calls.Add(1)
		return nil, errors.New("User with this username already exists")
	})
	require.NoError(t, server.Start(context.Background()))
	defer server.Done()

	client, err := NewRPCClient(s, Timeout(5*time.Second))
	require.NoError(t, err)
	defer client.Done()

	_, err = client.Call(context.Background(), testKey, "fail", echoReq{Username: "bob"})
	require.Error(t, err)
	assert.Equal(t, mqrpc.KindHandler, mqrpc.KindOf(err))

	// 超过AckWait也不会重新投递
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	info, err := s.cons.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.NumAckPending)
	assert.Zero(t, info.NumRedelivered)
}

func TestNatsSessionPrefetchSerializes(t *testing.T) {
	srv := runJetStream(t, -1, t.TempDir())
	defer shutdown(srv)
	s := newTestSession(t, srv, AckWait(30*time.Second))

	deliveries := make(chan mqrpc.Delivery, 4)
	sub, err := s.ConsumeRequests(context.Background(), func(d mqrpc.Delivery) { deliveries <- d })
	require.NoError(t, err)
	defer sub.Stop()

	publishRequest(t, s, "c1")
	publishRequest(t, s, "c2")

	first := recvDelivery(t, deliveries, 2*time.Second)
	assert.Equal(t, "c1", first.CorrelationID())
	assert.Equal(t, testKey, first.RoutingKey())

	// 第一条未确认前不投递第二条
	select {
	case d := <-deliveries:
		t.Fatalf("unexpected delivery %s before ack", d.CorrelationID())
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, first.Ack())
	assert.ErrorIs(t, first.Reject(), mqrpc.ErrAlreadySettled)

	second := recvDelivery(t, deliveries, 2*time.Second)
	assert.Equal(t, "c2", second.CorrelationID())
	require.NoError(t, second.Ack())

	_, err = s.ConsumeRequests(context.Background(), func(d mqrpc.Delivery) {})
	assert.Error(t, err) // 请求队列只能消费一次
}

func TestNatsSessionResumesAfterRestart(t *testing.T) {
	dir := t.TempDir()
	srv := runJetStream(t, -1, dir)
	port := srv.Addr().(*net.TCPAddr).Port
	s := newTestSession(t, srv)

	deliveries := make(chan mqrpc.Delivery, 4)
	sub, err := s.ConsumeRequests(context.Background(), func(d mqrpc.Delivery) {
		_ = d.Ack()
		deliveries <- d
	})
	require.NoError(t, err)
	defer sub.Stop()

	publishRequest(t, s, "before")
	assert.Equal(t, "before", recvDelivery(t, deliveries, 2*time.Second).CorrelationID())

	shutdown(srv)
	require.Eventually(t, func() bool { return !s.Conn().IsConnected() }, 2*time.Second, 10*time.Millisecond)

	srv = runJetStream(t, port, dir)
	defer shutdown(srv)
	require.Eventually(t, func() bool { return s.Conn().IsConnected() }, 5*time.Second, 20*time.Millisecond)

	// 等待exchange恢复后再发布
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_, err := s.js.Stream(ctx, testExchange)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	publishRequest(t, s, "after")
	assert.Equal(t, "after", recvDelivery(t, deliveries, 10*time.Second).CorrelationID())
}
