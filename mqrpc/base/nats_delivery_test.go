package rpcbase

import (
	"testing"

	"github.com/cloudapex/mqaccount/mqrpc"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestToNatsMsgHeaders(t *testing.T) {
	m := toNatsMsg(&mqrpc.Message{
		RoutingKey:    "user.v1.login",
		Body:          []byte(`{"action":"get_user_by_username","data":{}}`),
		CorrelationID: "cid-1",
		ReplyTo:       "_INBOX.abc",
		Trace:         []byte(`{"Trace":"t","Span":"s"}`),
	})

	d := newCoreDelivery(m)
	assert.Equal(t, "user.v1.login", d.RoutingKey())
	assert.Equal(t, "cid-1", d.CorrelationID())
	assert.Equal(t, "_INBOX.abc", d.ReplyTo())
	assert.Equal(t, `{"Trace":"t","Span":"s"}`, string(d.Trace()))

	// 回复不带Reply-To
	m = toNatsMsg(&mqrpc.Message{RoutingKey: "_INBOX.abc", CorrelationID: "cid-1"})
	d = newCoreDelivery(m)
	assert.Empty(t, d.ReplyTo())
	assert.Nil(t, d.Trace())
}

func TestCoreDeliveryWithoutHeaders(t *testing.T) {
	d := newCoreDelivery(&nats.Msg{Subject: "x", Data: []byte("{}")})
	assert.Empty(t, d.CorrelationID())
	assert.Empty(t, d.ReplyTo())

	assert.NoError(t, d.Ack())
	assert.ErrorIs(t, d.Reject(), mqrpc.ErrAlreadySettled)
	assert.True(t, d.state.acked())
}

func TestSetAddrs(t *testing.T) {
	assert.Equal(t, []string{"nats://a:4222", "tls://b:4222"}, setAddrs([]string{"", "a:4222", "tls://b:4222"}))
	assert.Equal(t, []string{nats.DefaultURL}, setAddrs(nil))
}
