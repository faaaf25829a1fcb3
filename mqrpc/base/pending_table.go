package rpcbase

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var errDuplicateCid = errors.New("duplicate correlation id")

// callResult 一次调用的最终结果(回复/超时/关闭 三者只取第一个)
type callResult struct {
	body []byte
	err  error
}

// pendingCall 等待回复的调用
type pendingCall struct {
	cid      string
	deadline time.Time
	done     chan callResult // 容量1, 只会被写一次
}

// PendingTable 调用方的 cid -> pendingCall 表
//
// 生命周期: 创建时为空, 只在调用进行中持有条目, Close之后为空且不再接受新条目。
// 删除和写结果在同一把锁内完成, 所以 Resolve/Remove/Close 中只有一个能拿到条目。
type PendingTable struct {
	mu       sync.Mutex
	calls    map[string]*pendingCall
	isClosed bool
}

func NewPendingTable() *PendingTable {
	return &PendingTable{calls: make(map[string]*pendingCall)}
}

// Add 登记一个调用
func (t *PendingTable) Add(cid string, deadline time.Time) (*pendingCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isClosed {
		return nil, errClosedTable
	}
	if _, ok := t.calls[cid]; ok {
		return nil, errDuplicateCid
	}
	call := &pendingCall{
		cid:      cid,
		deadline: deadline,
		done:     make(chan callResult, 1),
	}
	t.calls[cid] = call
	return call, nil
}

// Resolve 用回复完成调用, 条目不存在(已超时/已完成)时返回false
func (t *PendingTable) Resolve(cid string, body []byte, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.calls[cid]
	if !ok {
		return false
	}
	delete(t.calls, cid)
	call.done <- callResult{body: body, err: err}
	return true
}

// Remove 超时/发布失败时注销, 返回false说明已经被Resolve抢先完成
func (t *PendingTable) Remove(cid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.calls[cid]; !ok {
		return false
	}
	delete(t.calls, cid)
	return true
}

// Contains 是否还在等待
func (t *PendingTable) Contains(cid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.calls[cid]
	return ok
}

// Len 正在等待的调用数
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func (t *PendingTable) closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isClosed
}

// Close 用err完成所有等待中的调用, 之后Add都会失败
func (t *PendingTable) Close(err error) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isClosed = true
	n := len(t.calls)
	for cid, call := range t.calls {
		delete(t.calls, cid)
		call.done <- callResult{err: err}
	}
	return n
}

var errClosedTable = errors.New("pending table closed")
