package rpcbase

import (
	"context"

	"github.com/cloudapex/mqaccount/mqrpc"
)

// NewGoroutineControl 同时执行的请求数量上限(size=1即串行)
func NewGoroutineControl(size uint32) mqrpc.GoroutineControl {
	if size == 0 {
		size = 1
	}
	control := GtControl{
		listCtr: make(chan struct{}, size),
		maxSize: size,
	}
	return &control
}

type GtControl struct {
	listCtr chan struct{}
	maxSize uint32
}

func (g *GtControl) Wait() error {
	g.listCtr <- struct{}{}
	return nil
}

// WaitContext 同Wait, 可被ctx打断
func (g *GtControl) WaitContext(ctx context.Context) error {
	select {
	case g.listCtr <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *GtControl) Finish() {
	select {
	case <-g.listCtr:
	default:
		return
	}
}

func (g *GtControl) GetMax() uint32 {
	return g.maxSize
}
