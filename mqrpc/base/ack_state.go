package rpcbase

import (
	"sync/atomic"

	"github.com/cloudapex/mqaccount/mqrpc"
)

// 每条投递的确认状态
const (
	stateUnacked int32 = iota
	stateAcked
	stateRejected
)

// ackState 投递确认状态机: unacked -> acked | rejected, 只能迁移一次
type ackState struct {
	v atomic.Int32
}

func (s *ackState) settle(to int32, fn func() error) error {
	if !s.v.CompareAndSwap(stateUnacked, to) {
		return mqrpc.ErrAlreadySettled
	}
	if fn == nil {
		return nil
	}
	return fn()
}

func (s *ackState) ack(fn func() error) error    { return s.settle(stateAcked, fn) }
func (s *ackState) reject(fn func() error) error { return s.settle(stateRejected, fn) }

func (s *ackState) acked() bool    { return s.v.Load() == stateAcked }
func (s *ackState) rejected() bool { return s.v.Load() == stateRejected }
func (s *ackState) settled() bool  { return s.v.Load() != stateUnacked }
