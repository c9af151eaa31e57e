package executor

import (
	"context"

	"media-service/ddd/domain/port"
)

type future struct {
	done chan struct{}
	res  *port.EncodeResult
	err  error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func completed(res *port.EncodeResult, err error) *future {
	f := newFuture()
	f.complete(res, err)
	return f
}

func (f *future) complete(res *port.EncodeResult, err error) {
	f.res, f.err = res, err
	close(f.done)
}

func (f *future) Done() <-chan struct{} { return f.done }

func (f *future) Wait(ctx context.Context) (*port.EncodeResult, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
